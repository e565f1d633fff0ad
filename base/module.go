package base

import (
	"log"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/unetseg/arch"
)

// Conv2d creates Conv2D module.
func Conv2d(p *nn.Path, cIn, cOut, ksize, padding, stride int64) *nn.Conv2D {
	config := nn.DefaultConv2DConfig()
	config.Stride = []int64{stride, stride}
	config.Padding = []int64{padding, padding}

	return nn.NewConv2D(p, cIn, cOut, ksize, config)
}

// ConvTranspose2d creates ConvTranspose2D module with a square kernel.
func ConvTranspose2d(p *nn.Path, cIn, cOut, ksize, padding, stride int64) *nn.ConvTranspose2D {
	config := &nn.ConvTranspose2DConfig{
		Stride:        []int64{stride, stride},
		Padding:       []int64{padding, padding},
		OutputPadding: []int64{0, 0},
		Dilation:      []int64{1, 1},
		Groups:        1,
		Bias:          true,
		WsInit:        nn.NewKaimingUniformInit(),
		BsInit:        nn.NewConstInit(0.0),
	}

	return nn.NewConvTranspose2D(p, cIn, cOut, []int64{ksize, ksize}, config)
}

// ConvBlock is two 3x3 convolutions, each followed by batch norm, and a
// trailing ReLU. Padding keeps the spatial size.
type ConvBlock struct {
	Conv1 *nn.Conv2D
	Bn1   *nn.BatchNorm
	Conv2 *nn.Conv2D
	Bn2   *nn.BatchNorm

	cIn  int64
	cOut int64
}

// NewConvBlock creates a ConvBlock. Variables live under `conv_block.{0..3}`
// of the given path.
func NewConvBlock(p *nn.Path, cIn, cOut int64) *ConvBlock {
	if cIn <= 0 || cOut <= 0 {
		log.Fatalf("NewConvBlock: invalid channels %d -> %d\n", cIn, cOut)
	}

	seq := p.Sub("conv_block")
	bnConfig := nn.DefaultBatchNormConfig()

	return &ConvBlock{
		Conv1: Conv2d(seq.Sub("0"), cIn, cOut, arch.ConvKernel, arch.ConvPadding, 1),
		Bn1:   nn.BatchNorm2D(seq.Sub("1"), cOut, bnConfig),
		Conv2: Conv2d(seq.Sub("2"), cOut, cOut, arch.ConvKernel, arch.ConvPadding, 1),
		Bn2:   nn.BatchNorm2D(seq.Sub("3"), cOut, bnConfig),
		cIn:   cIn,
		cOut:  cOut,
	}
}

// InChannels returns the expected input channels.
func (b *ConvBlock) InChannels() int64 { return b.cIn }

// OutChannels returns the produced channels.
func (b *ConvBlock) OutChannels() int64 { return b.cOut }

// ForwardT implements ts.ModuleT interface for ConvBlock.
func (b *ConvBlock) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	c1 := b.Conv1.Forward(x) // [B cOut H W]
	bn1 := b.Bn1.ForwardT(c1, train)
	c1.MustDrop()
	c2 := b.Conv2.Forward(bn1)
	bn1.MustDrop()
	bn2 := b.Bn2.ForwardT(c2, train)
	c2.MustDrop()

	return bn2.MustRelu(true)
}
