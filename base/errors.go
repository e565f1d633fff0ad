package base

import (
	"github.com/pkg/errors"
)

// ErrShapeMismatch is returned when two feature maps that must line up
// spatially do not.
var ErrShapeMismatch = errors.New("shape mismatch")

// CheckSpatial reports whether two [B C H W] sizes share batch, height and
// width, the dimensions a channel concatenation needs to agree on.
func CheckSpatial(got, want []int64) error {
	if len(got) != 4 || len(want) != 4 {
		return errors.Wrapf(ErrShapeMismatch, "expected 4-D feature maps, got %v and %v", got, want)
	}
	if got[0] != want[0] || got[2] != want[2] || got[3] != want[3] {
		return errors.Wrapf(ErrShapeMismatch, "cannot concatenate %v with %v", got, want)
	}

	return nil
}
