// Package arch describes the fixed UNet layout: channel schedule, kernel
// sizes and the shape and parameter arithmetic that follows from them.
//
// Nothing here touches libtorch, so it can be used to check inputs and to
// produce reports before a VarStore is ever built.
package arch

import (
	"github.com/pkg/errors"
)

// Depth is the number of down (and up) stages.
const Depth = 4

// SpatialDivisor is the factor input height and width must be divisible by.
// Each down stage halves the spatial size: 2^Depth.
const SpatialDivisor = 1 << Depth

// Kernel configuration shared by all blocks.
const (
	ConvKernel    int64 = 3
	ConvPadding   int64 = 1
	PoolKernel    int64 = 2
	PoolStride    int64 = 2
	UpKernel      int64 = 2
	UpStride      int64 = 2
	HeadKernel    int64 = 1
	InputChannels int64 = 3
)

// Channel schedule.
var (
	EncoderChannels    = [Depth + 1]int64{3, 64, 128, 256, 512}
	BottleneckChannels int64 = 1024
	DecoderChannels    = [Depth + 1]int64{1024, 512, 256, 128, 64}
)

var (
	ErrInvalidClasses = errors.New("number of classes must be at least 1")
	ErrInvalidBatch   = errors.New("batch size must be at least 1")
	ErrIndivisible    = errors.New("spatial size must be divisible by 16")
)

// CheckClasses validates the constructor class count.
func CheckClasses(numClasses int64) error {
	if numClasses < 1 {
		return errors.Wrapf(ErrInvalidClasses, "got %d", numClasses)
	}

	return nil
}

// OutChannels returns the number of output channels of the segmentation head:
// a single logit map for binary tasks, two maps otherwise.
func OutChannels(numClasses int64) int64 {
	if numClasses > 1 {
		return 2
	}

	return 1
}

// ConvParams counts the weights and bias of a convolution.
func ConvParams(cIn, cOut, ksize int64) int64 {
	return cIn*cOut*ksize*ksize + cOut
}

// ConvBlockParams counts trainable parameters of a ConvBlock:
// two biased 3x3 convolutions and two batch-norm affine pairs.
func ConvBlockParams(cIn, cOut int64) int64 {
	return ConvParams(cIn, cOut, ConvKernel) + 2*cOut +
		ConvParams(cOut, cOut, ConvKernel) + 2*cOut
}

// DownBlockParams counts trainable parameters of a DownBlock. Pooling has none.
func DownBlockParams(cIn, cOut int64) int64 {
	return ConvBlockParams(cIn, cOut)
}

// UpBlockParams counts trainable parameters of an UpBlock: the transposed
// convolution plus a ConvBlock over the concatenated channels.
func UpBlockParams(cIn, cOut int64) int64 {
	return ConvParams(cIn, cOut, UpKernel) + ConvBlockParams(2*cOut, cOut)
}

// HeadParams counts the 1x1 output convolution.
func HeadParams(numClasses int64) int64 {
	return ConvParams(DecoderChannels[Depth], OutChannels(numClasses), HeadKernel)
}
