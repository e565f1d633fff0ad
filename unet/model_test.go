package unet_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/unetseg/arch"
	"github.com/sugarme/unetseg/base"
	"github.com/sugarme/unetseg/unet"
)

var _ ts.ModuleT = (*unet.UNet)(nil)

func newNet(t *testing.T, numClasses int64) (*nn.VarStore, *unet.UNet) {
	t.Helper()
	vs := nn.NewVarStore(gotch.CPU)
	net, err := unet.NewUNet(vs.Root(), numClasses)
	require.NoError(t, err)

	return vs, net
}

func TestNewUNetInvalidClasses(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	_, err := unet.NewUNet(vs.Root(), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, arch.ErrInvalidClasses))
}

func TestUNetFeatureShapes(t *testing.T) {
	_, net := newNet(t, 1)

	plan, err := arch.NewPlan(2, 128, 128, 1)
	require.NoError(t, err)

	x := ts.MustRandn([]int64{2, 3, 128, 128}, gotch.Float, gotch.CPU)
	defer x.MustDrop()

	ts.NoGrad(func() {
		f, err := net.ForwardFeatures(x, false)
		require.NoError(t, err)
		defer f.Drop()

		assert.Equal(t, plan.Features(), f.Shapes())

		d4, ok := f.Get("d4")
		require.True(t, ok)
		assert.Equal(t, []int64{2, 64, 128, 128}, d4.MustSize())

		_, ok = f.Get("p4")
		assert.False(t, ok)
	})
}

func TestUNetOutputChannels(t *testing.T) {
	for _, tt := range []struct {
		classes int64
		want    int64
	}{{1, 1}, {2, 2}, {4, 2}} {
		_, net := newNet(t, tt.classes)
		assert.Equal(t, tt.want, net.OutChannels())
		assert.Equal(t, tt.classes, net.NumClasses())

		x := ts.MustRandn([]int64{1, 3, 32, 32}, gotch.Float, gotch.CPU)
		ts.NoGrad(func() {
			out, err := net.Forward(x, false)
			require.NoError(t, err)
			assert.Equal(t, []int64{1, tt.want, 32, 32}, out.MustSize())
			out.MustDrop()
		})
		x.MustDrop()
	}
}

func TestUNetShapePreserving(t *testing.T) {
	_, net := newNet(t, 1)

	for _, hw := range [][2]int64{{16, 16}, {48, 32}, {64, 80}} {
		x := ts.MustRandn([]int64{3, 3, hw[0], hw[1]}, gotch.Float, gotch.CPU)
		ts.NoGrad(func() {
			out := net.ForwardT(x, false)
			assert.Equal(t, []int64{3, 1, hw[0], hw[1]}, out.MustSize())
			out.MustDrop()
		})
		x.MustDrop()
	}
}

func TestUNetIndivisibleInput(t *testing.T) {
	_, net := newNet(t, 1)

	// 100 -> 50 -> 25 -> 12 -> 6; upsampling 12 gives 24, skip s3 is 25.
	x := ts.MustRandn([]int64{1, 3, 100, 100}, gotch.Float, gotch.CPU)
	defer x.MustDrop()

	ts.NoGrad(func() {
		out, err := net.Forward(x, false)
		require.Error(t, err)
		assert.Nil(t, out)
		assert.True(t, errors.Is(err, base.ErrShapeMismatch))
		assert.Contains(t, err.Error(), "decoder stage 2")

		assert.Panics(t, func() {
			net.ForwardT(x, false)
		})
	})
}

func TestUpBlock(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	block := unet.NewUpBlock(vs.Root(), 8, 4)

	x := ts.MustRandn([]int64{2, 8, 5, 6}, gotch.Float, gotch.CPU)
	defer x.MustDrop()
	skip := ts.MustRandn([]int64{2, 4, 10, 12}, gotch.Float, gotch.CPU)
	defer skip.MustDrop()
	bad := ts.MustRandn([]int64{2, 4, 11, 12}, gotch.Float, gotch.CPU)
	defer bad.MustDrop()

	ts.NoGrad(func() {
		out, err := block.ForwardSkip(x, skip, false)
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 4, 10, 12}, out.MustSize())
		out.MustDrop()

		_, err = block.ForwardSkip(x, bad, false)
		require.Error(t, err)
		assert.True(t, errors.Is(err, base.ErrShapeMismatch))
	})
}

func TestNumParams(t *testing.T) {
	for _, classes := range []int64{1, 3} {
		vs, _ := newNet(t, classes)
		plan, err := arch.NewPlan(1, 128, 128, classes)
		require.NoError(t, err)
		assert.Equal(t, plan.TotalParams(), unet.NumParams(vs))
	}

	vs, _ := newNet(t, 1)
	assert.Equal(t, int64(31043521), unet.NumParams(vs))
	// Counting twice must not change the store.
	assert.Equal(t, int64(31043521), unet.NumParams(vs))
	assert.Len(t, vs.Vars.TrainableVariables, 4*2*4+2*4+2*4*5+2)
}

func TestDefaultUNet(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	net := unet.DefaultUNet(vs.Root())
	require.NotNil(t, net)
	assert.Equal(t, int64(1), net.OutChannels())
	assert.Equal(t, int64(31043521), unet.NumParams(vs))
}

func TestVariableNames(t *testing.T) {
	vs, _ := newNet(t, 2)
	vars := vs.Variables()

	for name, want := range map[string][]int64{
		"encoder_blocks.0.conv.conv_block.0.weight": {64, 3, 3, 3},
		"encoder_blocks.3.conv.conv_block.2.weight": {512, 512, 3, 3},
		"encoder_blocks.3.conv.conv_block.3.bias":   {512},
		"b.conv_block.0.weight":                     {1024, 512, 3, 3},
		"decoder_blocks.0.up.weight":                {1024, 512, 2, 2},
		"decoder_blocks.0.up.bias":                  {512},
		"decoder_blocks.0.conv.conv_block.0.weight": {512, 1024, 3, 3},
		"decoder_blocks.3.conv.conv_block.2.weight": {64, 64, 3, 3},
		"outputs.weight":                            {2, 64, 1, 1},
		"outputs.bias":                              {2},
	} {
		v, ok := vars[name]
		if assert.True(t, ok, name) {
			assert.Equal(t, want, v.MustSize(), name)
		}
	}
}
