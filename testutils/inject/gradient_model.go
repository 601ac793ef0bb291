package inject

import (
	"github.com/golang/geo/r2"

	"go.viam.com/fimnav/fim"
)

// GradientModel is an injected fim.GradientModel.
type GradientModel struct {
	fim.GradientModel
	GradientFunc func(q, p []r2.Point, coefs []fim.Coefficients) ([]r2.Point, error)
}

// Gradient calls the injected GradientFunc or the real model.
func (m *GradientModel) Gradient(q, p []r2.Point, coefs []fim.Coefficients) ([]r2.Point, error) {
	if m.GradientFunc == nil {
		return m.GradientModel.Gradient(q, p, coefs)
	}
	return m.GradientFunc(q, p, coefs)
}
