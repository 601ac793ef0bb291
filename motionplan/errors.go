package motionplan

import "github.com/pkg/errors"

var (
	// ErrInvalidGeometry means the targets or robot positions handed to the planner are
	// malformed: wrong shape, empty, or holding non-finite coordinates.
	ErrInvalidGeometry = errors.New("invalid planning geometry")

	// ErrInvalidRequest means a planning parameter is out of range.
	ErrInvalidRequest = errors.New("invalid planning request")
)

func newInvalidGeometryError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidGeometry, format, args...)
}

func newInvalidRequestError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidRequest, format, args...)
}
