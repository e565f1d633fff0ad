package unet

import (
	"fmt"

	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/unetseg/arch"
)

// Features holds every intermediate map of one forward pass.
type Features struct {
	Skips      [arch.Depth]*ts.Tensor // s1..s4, encoder pre-pool maps
	Bottleneck *ts.Tensor             // b
	Decoded    [arch.Depth]*ts.Tensor // d1..d4
	Logits     *ts.Tensor             // output
}

// Names lists feature names in forward order, matching arch.Plan.Features.
func (f *Features) Names() []string {
	names := make([]string, 0, 2*arch.Depth+2)
	for i := 0; i < arch.Depth; i++ {
		names = append(names, fmt.Sprintf("s%d", i+1))
	}
	names = append(names, "b")
	for i := 0; i < arch.Depth; i++ {
		names = append(names, fmt.Sprintf("d%d", i+1))
	}

	return append(names, "output")
}

func (f *Features) tensors() []*ts.Tensor {
	out := make([]*ts.Tensor, 0, 2*arch.Depth+2)
	out = append(out, f.Skips[:]...)
	out = append(out, f.Bottleneck)
	out = append(out, f.Decoded[:]...)

	return append(out, f.Logits)
}

// Get returns the named feature map (s1..s4, b, d1..d4, output).
func (f *Features) Get(name string) (*ts.Tensor, bool) {
	for i, n := range f.Names() {
		if n == name {
			x := f.tensors()[i]
			return x, x != nil
		}
	}

	return nil, false
}

// Shapes returns the shape of every held feature map in forward order.
func (f *Features) Shapes() []arch.NamedShape {
	names := f.Names()
	var shapes []arch.NamedShape
	for i, x := range f.tensors() {
		if x == nil {
			continue
		}
		s, ok := arch.NewShape(x.MustSize())
		if !ok {
			continue
		}
		shapes = append(shapes, arch.NamedShape{Name: names[i], Shape: s})
	}

	return shapes
}

// Drop releases every held tensor.
func (f *Features) Drop() {
	for _, x := range f.tensors() {
		if x != nil {
			x.MustDrop()
		}
	}
	f.Skips = [arch.Depth]*ts.Tensor{}
	f.Bottleneck = nil
	f.Decoded = [arch.Depth]*ts.Tensor{}
	f.Logits = nil
}
