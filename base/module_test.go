package base_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/unetseg/base"
)

func TestConvBlockPreservesSpatialSize(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	block := base.NewConvBlock(vs.Root(), 3, 8)
	assert.Equal(t, int64(3), block.InChannels())
	assert.Equal(t, int64(8), block.OutChannels())

	x := ts.MustRandn([]int64{2, 3, 20, 12}, gotch.Float, gotch.CPU)
	defer x.MustDrop()

	ts.NoGrad(func() {
		out := block.ForwardT(x, false)
		defer out.MustDrop()
		assert.Equal(t, []int64{2, 8, 20, 12}, out.MustSize())

		// ReLU is the last op.
		for _, v := range out.Float64Values() {
			require.GreaterOrEqual(t, v, 0.0)
		}
	})
}

func TestConvBlockVariables(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	base.NewConvBlock(vs.Root().Sub("b"), 4, 6)

	vars := vs.Variables()
	for _, name := range []string{
		"b.conv_block.0.weight",
		"b.conv_block.0.bias",
		"b.conv_block.1.weight",
		"b.conv_block.1.bias",
		"b.conv_block.1.running_mean",
		"b.conv_block.1.running_var",
		"b.conv_block.2.weight",
		"b.conv_block.2.bias",
		"b.conv_block.3.weight",
		"b.conv_block.3.bias",
	} {
		_, ok := vars[name]
		assert.True(t, ok, name)
	}

	w := vars["b.conv_block.0.weight"]
	assert.Equal(t, []int64{6, 4, 3, 3}, w.MustSize())
}

func TestSegmentationHead(t *testing.T) {
	for _, tt := range []struct {
		classes int64
		want    int64
	}{{1, 1}, {2, 2}, {7, 2}} {
		vs := nn.NewVarStore(gotch.CPU)
		head := base.NewSegmentationHead(vs.Root(), 64, tt.classes)
		x := ts.MustRandn([]int64{1, 64, 16, 16}, gotch.Float, gotch.CPU)
		out := head.Forward(x)
		assert.Equal(t, []int64{1, tt.want, 16, 16}, out.MustSize())
		out.MustDrop()
		x.MustDrop()
	}
}

func TestCheckSpatial(t *testing.T) {
	require.NoError(t, base.CheckSpatial([]int64{2, 64, 16, 16}, []int64{2, 512, 16, 16}))

	err := base.CheckSpatial([]int64{2, 64, 24, 24}, []int64{2, 64, 25, 25})
	require.Error(t, err)
	assert.True(t, errors.Is(err, base.ErrShapeMismatch))
	assert.Contains(t, err.Error(), "[2 64 24 24]")

	err = base.CheckSpatial([]int64{2, 64, 24}, []int64{2, 64, 24, 24})
	assert.True(t, errors.Is(err, base.ErrShapeMismatch))

	err = base.CheckSpatial([]int64{1, 64, 24, 24}, []int64{2, 64, 24, 24})
	assert.True(t, errors.Is(err, base.ErrShapeMismatch))
}
