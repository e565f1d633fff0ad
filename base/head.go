package base

import (
	"github.com/sugarme/gotch/nn"

	"github.com/sugarme/unetseg/arch"
)

// NewSegmentationHead creates the 1x1 output convolution mapping cIn feature
// channels to arch.OutChannels(numClasses) logit maps.
//
// No activation is applied. Sigmoid or softmax belongs to the loss or the
// caller, see Activation.
func NewSegmentationHead(p *nn.Path, cIn, numClasses int64) *nn.Conv2D {
	return Conv2d(p, cIn, arch.OutChannels(numClasses), arch.HeadKernel, 0, 1)
}
