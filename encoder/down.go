package encoder

import (
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/unetseg/arch"
	"github.com/sugarme/unetseg/base"
)

// DownBlock is a ConvBlock followed by a 2x2 max-pool.
type DownBlock struct {
	Conv *base.ConvBlock
}

// NewDownBlock creates a DownBlock. The ConvBlock variables live under `conv`.
func NewDownBlock(p *nn.Path, cIn, cOut int64) *DownBlock {
	return &DownBlock{
		Conv: base.NewConvBlock(p.Sub("conv"), cIn, cOut),
	}
}

// ForwardT returns the pre-pool map, kept for the skip connection, and the
// pooled map passed to the next stage. Odd sizes are floored by the pool.
func (d *DownBlock) ForwardT(x *ts.Tensor, train bool) (skip, down *ts.Tensor) {
	skip = d.Conv.ForwardT(x, train) // [B cOut H W]

	// ksize = 2; stride=2; padding=0; dilation=1; ceil=false
	k, s := arch.PoolKernel, arch.PoolStride
	down = skip.MustMaxPool2d([]int64{k, k}, []int64{s, s}, []int64{0, 0}, []int64{1, 1}, false, false) // [B cOut H/2 W/2]

	return skip, down
}
