package unet

import (
	"log"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/unetseg/arch"
	"github.com/sugarme/unetseg/base"
	"github.com/sugarme/unetseg/encoder"
)

// UNet is a UNET model struct
// Ref: https://arxiv.org/abs/1505.04597
//
// Input [B 3 H W] with H and W divisible by 16. Output [B C H W] logits with
// C = arch.OutChannels(numClasses). No sigmoid or softmax is applied.
type UNet struct {
	encoder    encoder.Encoder
	bottleneck *base.ConvBlock
	decoder    *UNetDecoder
	head       *nn.Conv2D
	numClasses int64
}

// NewUNet creates a UNet for numClasses classes.
//
// Variables are named after the reference model's parameters
// (encoder_blocks.<i>.conv.conv_block.<j>, b.conv_block.<j>,
// decoder_blocks.<i>.up, decoder_blocks.<i>.conv.conv_block.<j>, outputs)
// so converted weights load with VarStore.Load.
func NewUNet(p *nn.Path, numClasses int64) (*UNet, error) {
	if err := arch.CheckClasses(numClasses); err != nil {
		return nil, err
	}

	enc := encoder.NewUNetEncoder(p.Sub("encoder_blocks"))
	b := base.NewConvBlock(p.Sub("b"), arch.EncoderChannels[arch.Depth], arch.BottleneckChannels)
	dec := NewUNetDecoder(p.Sub("decoder_blocks"))
	head := base.NewSegmentationHead(p.Sub("outputs"), arch.DecoderChannels[arch.Depth], numClasses)

	return &UNet{
		encoder:    enc,
		bottleneck: b,
		decoder:    dec,
		head:       head,
		numClasses: numClasses,
	}, nil
}

// DefaultUNet creates a binary UNet (one output channel).
func DefaultUNet(p *nn.Path) *UNet {
	net, err := NewUNet(p, 1)
	if err != nil {
		log.Fatalf("DefaultUNet: %v\n", err)
	}

	return net
}

// NumClasses returns the class count the model was built for.
func (n *UNet) NumClasses() int64 { return n.numClasses }

// OutChannels returns the number of logit maps produced.
func (n *UNet) OutChannels() int64 { return arch.OutChannels(n.numClasses) }

// Forward returns logits for x. A spatial size not divisible by 16 surfaces
// as base.ErrShapeMismatch from the first decoder stage that cannot line up
// with its skip map.
func (n *UNet) Forward(x *ts.Tensor, train bool) (*ts.Tensor, error) {
	f, err := n.ForwardFeatures(x, train)
	if err != nil {
		return nil, err
	}

	logits := f.Logits
	f.Logits = nil
	f.Drop()

	return logits, nil
}

// ForwardT implements ts.ModuleT for UNet model. It panics where Forward
// returns an error.
func (n *UNet) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	logits, err := n.Forward(x, train)
	if err != nil {
		panic(err)
	}

	return logits
}

// ForwardFeatures runs the network and keeps every intermediate feature map.
// The caller must call Drop on the result.
func (n *UNet) ForwardFeatures(x *ts.Tensor, train bool) (*Features, error) {
	skips, pooled := n.encoder.ForwardAll(x, train) // s1..s4, p4 [B 512 H/16 W/16]
	b := n.bottleneck.ForwardT(pooled, train)       // [B 1024 H/16 W/16]
	pooled.MustDrop()

	decoded, err := n.decoder.ForwardFeatures(b, skips, train) // d1..d4
	if err != nil {
		for _, s := range skips {
			s.MustDrop()
		}
		b.MustDrop()
		return nil, err
	}

	logits := n.head.Forward(decoded[arch.Depth-1]) // [B C H W]

	return &Features{
		Skips:      skips,
		Bottleneck: b,
		Decoded:    decoded,
		Logits:     logits,
	}, nil
}

// NumParams counts trainable parameters held by vs. It reads the store's
// trainable list in place; VarStore.TrainableVariables returns each variable
// twice on this gotch version and clones every entry.
func NumParams(vs *nn.VarStore) int64 {
	var total int64
	for _, v := range vs.Vars.TrainableVariables {
		n := int64(1)
		for _, d := range v.MustSize() {
			n *= d
		}
		total += n
	}

	return total
}
