package arch

import (
	"fmt"

	"github.com/pkg/errors"
)

// Shape is a feature map shape in [B C H W] order.
type Shape [4]int64

// NewShape builds a Shape from a tensor size. It returns false when size is
// not 4-dimensional.
func NewShape(size []int64) (Shape, bool) {
	var s Shape
	if len(size) != 4 {
		return s, false
	}
	copy(s[:], size)

	return s, true
}

func (s Shape) Batch() int64    { return s[0] }
func (s Shape) Channels() int64 { return s[1] }
func (s Shape) Height() int64   { return s[2] }
func (s Shape) Width() int64    { return s[3] }

// Spatial returns [H W].
func (s Shape) Spatial() [2]int64 {
	return [2]int64{s[2], s[3]}
}

func (s Shape) String() string {
	return fmt.Sprintf("[%d %d %d %d]", s[0], s[1], s[2], s[3])
}

// Kind tags a stage of the network.
type Kind int

const (
	KindInput Kind = iota
	KindDown
	KindBottleneck
	KindUp
	KindHead
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindDown:
		return "down"
	case KindBottleneck:
		return "bottleneck"
	case KindUp:
		return "up"
	case KindHead:
		return "head"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Stage is one block of the network with its shapes.
//
// For a down stage Skip is the pre-pool map kept for the decoder and Out is
// the pooled map. For an up stage Skip is the encoder map it consumes and
// SkipFrom names the stage that produced it.
type Stage struct {
	Name     string
	Kind     Kind
	In       Shape
	Out      Shape
	Skip     Shape
	SkipFrom string
	Params   int64
}

// NamedShape pairs a feature map name (s1, b, d1, ...) with its shape.
type NamedShape struct {
	Name  string
	Shape Shape
}

// Plan is the static unrolled network for a given input size.
type Plan struct {
	NumClasses int64
	Input      Shape
	Output     Shape
	Stages     []Stage
}

// NewPlan computes every stage shape for an input of [batch 3 height width].
func NewPlan(batch, height, width, numClasses int64) (*Plan, error) {
	if batch < 1 {
		return nil, errors.Wrapf(ErrInvalidBatch, "got %d", batch)
	}
	if err := CheckClasses(numClasses); err != nil {
		return nil, err
	}
	if height < SpatialDivisor || width < SpatialDivisor ||
		height%SpatialDivisor != 0 || width%SpatialDivisor != 0 {
		return nil, errors.Wrapf(ErrIndivisible, "got %dx%d", height, width)
	}

	input := Shape{batch, InputChannels, height, width}
	stages := make([]Stage, 0, 2*Depth+3)
	stages = append(stages, Stage{Name: "input", Kind: KindInput, In: input, Out: input})

	x := input
	var skips [Depth]Stage
	for i := 0; i < Depth; i++ {
		cIn, cOut := EncoderChannels[i], EncoderChannels[i+1]
		skip := Shape{batch, cOut, x[2], x[3]}
		pooled := Shape{batch, cOut, x[2] / PoolStride, x[3] / PoolStride}
		st := Stage{
			Name:   fmt.Sprintf("down%d", i+1),
			Kind:   KindDown,
			In:     x,
			Out:    pooled,
			Skip:   skip,
			Params: DownBlockParams(cIn, cOut),
		}
		skips[i] = st
		stages = append(stages, st)
		x = pooled
	}

	b := Shape{batch, BottleneckChannels, x[2], x[3]}
	stages = append(stages, Stage{
		Name:   "bottleneck",
		Kind:   KindBottleneck,
		In:     x,
		Out:    b,
		Params: ConvBlockParams(EncoderChannels[Depth], BottleneckChannels),
	})
	x = b

	for i := 0; i < Depth; i++ {
		cIn, cOut := DecoderChannels[i], DecoderChannels[i+1]
		from := skips[Depth-1-i]
		out := Shape{batch, cOut, x[2] * UpStride, x[3] * UpStride}
		stages = append(stages, Stage{
			Name:     fmt.Sprintf("up%d", i+1),
			Kind:     KindUp,
			In:       x,
			Out:      out,
			Skip:     from.Skip,
			SkipFrom: from.Name,
			Params:   UpBlockParams(cIn, cOut),
		})
		x = out
	}

	output := Shape{batch, OutChannels(numClasses), x[2], x[3]}
	stages = append(stages, Stage{
		Name:   "head",
		Kind:   KindHead,
		In:     x,
		Out:    output,
		Params: HeadParams(numClasses),
	})

	return &Plan{
		NumClasses: numClasses,
		Input:      input,
		Output:     output,
		Stages:     stages,
	}, nil
}

// Stage looks up a stage by name.
func (p *Plan) Stage(name string) (Stage, bool) {
	for _, s := range p.Stages {
		if s.Name == name {
			return s, true
		}
	}

	return Stage{}, false
}

// TotalParams sums trainable parameters over all stages.
func (p *Plan) TotalParams() int64 {
	var n int64
	for _, s := range p.Stages {
		n += s.Params
	}

	return n
}

// Features lists the named feature maps in forward order:
// s1..s4, b, d1..d4, output.
func (p *Plan) Features() []NamedShape {
	var (
		skips   []NamedShape
		decoded []NamedShape
		b       NamedShape
		out     NamedShape
	)
	for _, s := range p.Stages {
		switch s.Kind {
		case KindDown:
			skips = append(skips, NamedShape{fmt.Sprintf("s%d", len(skips)+1), s.Skip})
		case KindBottleneck:
			b = NamedShape{"b", s.Out}
		case KindUp:
			decoded = append(decoded, NamedShape{fmt.Sprintf("d%d", len(decoded)+1), s.Out})
		case KindHead:
			out = NamedShape{"output", s.Out}
		}
	}

	features := append(skips, b)
	features = append(features, decoded...)

	return append(features, out)
}
