package encoder

import (
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/unetseg/arch"
)

// Encoder is encoder interface for a image segmentation model.
//
// ForwardAll returns the pre-pool feature map of every stage, shallowest
// first, and the pooled output of the deepest stage. The caller owns all
// returned tensors.
type Encoder interface {
	ForwardAll(x *ts.Tensor, train bool) (skips [arch.Depth]*ts.Tensor, out *ts.Tensor)
}
