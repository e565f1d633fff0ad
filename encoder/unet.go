package encoder

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/unetseg/arch"
)

// UNetEncoder is the contracting path: arch.Depth DownBlocks following
// arch.EncoderChannels.
type UNetEncoder struct {
	Blocks [arch.Depth]*DownBlock
}

// NewUNetEncoder creates UNetEncoder. Block i lives under `<i>`.
func NewUNetEncoder(p *nn.Path) *UNetEncoder {
	var blocks [arch.Depth]*DownBlock
	for i := 0; i < arch.Depth; i++ {
		blocks[i] = NewDownBlock(p.Sub(fmt.Sprint(i)), arch.EncoderChannels[i], arch.EncoderChannels[i+1])
	}

	return &UNetEncoder{Blocks: blocks}
}

// ForwardAll implements Encoder interface for UNetEncoder.
func (e *UNetEncoder) ForwardAll(x *ts.Tensor, train bool) (skips [arch.Depth]*ts.Tensor, out *ts.Tensor) {
	// E.g. x [2 3 128 128]
	// s1 [2  64 128 128]  p1 [2  64 64 64]
	// s2 [2 128  64  64]  p2 [2 128 32 32]
	// s3 [2 256  32  32]  p3 [2 256 16 16]
	// s4 [2 512  16  16]  p4 [2 512  8  8]
	in := x
	for i, block := range e.Blocks {
		skip, down := block.ForwardT(in, train)
		if i > 0 {
			in.MustDrop()
		}
		skips[i] = skip
		in = down
	}

	return skips, in
}
