package utils

import "github.com/pkg/errors"

// NewUnexpectedTypeError is used when a message or value has the wrong type.
func NewUnexpectedTypeError[ExpectedT any](actual interface{}) error {
	var expected ExpectedT
	return errors.Errorf("expected %T but got %T", expected, actual)
}
