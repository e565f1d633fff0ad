package encoder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/unetseg/arch"
	"github.com/sugarme/unetseg/encoder"
)

func TestDownBlockHalves(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	block := encoder.NewDownBlock(vs.Root(), 3, 16)

	for _, hw := range [][2]int64{{32, 32}, {24, 40}, {17, 9}} {
		x := ts.MustRandn([]int64{2, 3, hw[0], hw[1]}, gotch.Float, gotch.CPU)
		ts.NoGrad(func() {
			skip, down := block.ForwardT(x, false)
			assert.Equal(t, []int64{2, 16, hw[0], hw[1]}, skip.MustSize())
			assert.Equal(t, []int64{2, 16, hw[0] / 2, hw[1] / 2}, down.MustSize())
			skip.MustDrop()
			down.MustDrop()
		})
		x.MustDrop()
	}
}

func TestUNetEncoderForwardAll(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	var enc encoder.Encoder = encoder.NewUNetEncoder(vs.Root())

	plan, err := arch.NewPlan(1, 64, 32, 1)
	assert.NoError(t, err)

	x := ts.MustRandn([]int64{1, 3, 64, 32}, gotch.Float, gotch.CPU)
	defer x.MustDrop()

	ts.NoGrad(func() {
		skips, out := enc.ForwardAll(x, false)
		features := plan.Features()
		for i, s := range skips {
			assert.Equal(t, features[i].Shape[:], s.MustSize(), features[i].Name)
			s.MustDrop()
		}
		assert.Equal(t, []int64{1, 512, 4, 2}, out.MustSize())
		out.MustDrop()
	})
}
