package base

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sugarme/gotch"
	ts "github.com/sugarme/gotch/tensor"
)

// Activation turns head logits into probabilities.
//
// The network itself returns logits. Whoever owns the loss decides whether an
// activation is applied and which one, so it lives out here.
type Activation int

const (
	NoActivation Activation = iota
	Sigmoid
	Softmax
)

func (a Activation) String() string {
	switch a {
	case NoActivation:
		return "none"
	case Sigmoid:
		return "sigmoid"
	case Softmax:
		return "softmax"
	default:
		return fmt.Sprintf("activation(%d)", int(a))
	}
}

// ParseActivation parses "none", "sigmoid" or "softmax".
func ParseActivation(s string) (Activation, error) {
	switch s {
	case "none", "":
		return NoActivation, nil
	case "sigmoid":
		return Sigmoid, nil
	case "softmax":
		return Softmax, nil
	default:
		return NoActivation, errors.Errorf("unknown activation %q", s)
	}
}

// ActivationFor picks the activation matching the head's output channels:
// sigmoid for a single binary map, softmax over channels otherwise.
func ActivationFor(numClasses int64) Activation {
	if numClasses > 1 {
		return Softmax
	}

	return Sigmoid
}

// Apply returns a new tensor. The input is kept.
func (a Activation) Apply(logits *ts.Tensor) *ts.Tensor {
	switch a {
	case Sigmoid:
		return logits.MustSigmoid(false)
	case Softmax:
		return logits.MustSoftmax(1, gotch.Float, false)
	default:
		return logits.MustDetach(false)
	}
}

// Foreground returns the foreground probability map [B 1 H W] for a
// probability tensor from Apply: the single channel of a binary head or
// channel 1 of a two-channel head.
func Foreground(prob *ts.Tensor) *ts.Tensor {
	size := prob.MustSize()
	if len(size) == 4 && size[1] > 1 {
		return prob.MustSelect(1, 1, false).MustUnsqueeze(1, true)
	}

	return prob.MustDetach(false)
}

// Threshold returns a float mask, 1 where x > threshold and 0 elsewhere.
func Threshold(x *ts.Tensor, threshold float64) *ts.Tensor {
	return x.MustGt(ts.FloatScalar(threshold), false).MustTotype(gotch.Float, true)
}
