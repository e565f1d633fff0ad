package unet

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/unetseg/arch"
	"github.com/sugarme/unetseg/base"
)

// UpBlock upsamples with a learned transposed convolution, concatenates the
// encoder skip map and runs a ConvBlock over the result.
type UpBlock struct {
	Up   *nn.ConvTranspose2D
	Conv *base.ConvBlock
}

// NewUpBlock creates an UpBlock taking cIn deep channels and a skip map of
// cOut channels to cOut channels.
func NewUpBlock(p *nn.Path, cIn, cOut int64) *UpBlock {
	up := base.ConvTranspose2d(p.Sub("up"), cIn, cOut, arch.UpKernel, 0, arch.UpStride)
	conv := base.NewConvBlock(p.Sub("conv"), 2*cOut, cOut)

	return &UpBlock{
		Up:   up,
		Conv: conv,
	}
}

// ForwardSkip upsamples x, concatenates it with skip along channels and
// forwards through the ConvBlock. It fails with base.ErrShapeMismatch when the
// upsampled map and skip differ in spatial size. Neither input is dropped.
func (u *UpBlock) ForwardSkip(x, skip *ts.Tensor, train bool) (*ts.Tensor, error) {
	up := u.Up.Forward(x) // [B cOut 2H 2W]
	if err := base.CheckSpatial(up.MustSize(), skip.MustSize()); err != nil {
		up.MustDrop()
		return nil, err
	}

	cat := ts.MustCat([]ts.Tensor{*up, *skip}, 1) // [B 2*cOut 2H 2W]
	up.MustDrop()
	out := u.Conv.ForwardT(cat, train) // [B cOut 2H 2W]
	cat.MustDrop()

	return out, nil
}

// UNetDecoder is the expanding path: arch.Depth UpBlocks following
// arch.DecoderChannels.
type UNetDecoder struct {
	Blocks [arch.Depth]*UpBlock
}

// NewUNetDecoder creates UNetDecoder. Block i lives under `<i>`.
func NewUNetDecoder(p *nn.Path) *UNetDecoder {
	var blocks [arch.Depth]*UpBlock
	for i := 0; i < arch.Depth; i++ {
		blocks[i] = NewUpBlock(p.Sub(fmt.Sprint(i)), arch.DecoderChannels[i], arch.DecoderChannels[i+1])
	}

	return &UNetDecoder{Blocks: blocks}
}

// ForwardFeatures runs the decoder from the bottleneck map, consuming skips
// deepest first, and returns the output of every stage (d1..d4). On error the
// stages already computed are dropped. Inputs are never dropped.
func (d *UNetDecoder) ForwardFeatures(bottleneck *ts.Tensor, skips [arch.Depth]*ts.Tensor, train bool) ([arch.Depth]*ts.Tensor, error) {
	var outs [arch.Depth]*ts.Tensor

	x := bottleneck
	for i, block := range d.Blocks {
		skip := skips[arch.Depth-1-i]
		out, err := block.ForwardSkip(x, skip, train)
		if err != nil {
			for _, o := range outs[:i] {
				o.MustDrop()
			}
			return [arch.Depth]*ts.Tensor{}, errors.Wrapf(err, "decoder stage %d", i+1)
		}
		outs[i] = out
		x = out
	}

	return outs, nil
}
