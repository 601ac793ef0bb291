package fim

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// minRange keeps a robot sitting on a target from dividing by zero; such a robot
// contributes nothing.
const minRange = 1e-9

// A GradientModel maps a geometry and the per-robot coefficients to the gradient of an
// information criterion with respect to each robot position. Implementations must be
// deterministic.
type GradientModel interface {
	Gradient(q, p []r2.Point, coefs []Coefficients) ([]r2.Point, error)
}

// Model is the analytic log-det Fisher information model described in the package doc.
type Model struct{}

// NewModel returns the analytic model.
func NewModel() *Model {
	return &Model{}
}

type robotTerm struct {
	d      r2.Point // robot minus target
	r      float64
	weight float64 // h'(r)^2 / r^2
	dw     float64 // d(weight)/dr
	ok     bool
}

func termFor(target, robot r2.Point, c Coefficients) robotTerm {
	d := robot.Sub(target)
	r := d.Norm()
	if r < minRange {
		return robotTerm{}
	}
	slope := c.Slope(r)
	curv := c.Curvature(r)
	g := slope * slope
	weight := g / (r * r)
	dw := 2*slope*curv/(r*r) - 2*g/(r*r*r)
	if !isFinite(weight) || !isFinite(dw) {
		return robotTerm{}
	}
	return robotTerm{d: d, r: r, weight: weight, dw: dw, ok: true}
}

// information assembles the 2×2 Fisher information about one target.
func information(terms []robotTerm) *mat.SymDense {
	var xx, xy, yy float64
	for _, t := range terms {
		if !t.ok {
			continue
		}
		xx += t.weight * t.d.X * t.d.X
		xy += t.weight * t.d.X * t.d.Y
		yy += t.weight * t.d.Y * t.d.Y
	}
	return mat.NewSymDense(2, []float64{xx, xy, xy, yy})
}

func checkShapes(q, p []r2.Point, coefs []Coefficients) error {
	if len(q) == 0 {
		return errors.New("no targets")
	}
	if len(p) != len(coefs) {
		return errors.Errorf("have %d robot positions but %d coefficient sets", len(p), len(coefs))
	}
	return nil
}

// Gradient returns dL/dp_i for every robot, L the summed log-det criterion. Targets whose
// information matrix is singular contribute nothing, so the result is always finite.
func (m *Model) Gradient(q, p []r2.Point, coefs []Coefficients) ([]r2.Point, error) {
	if err := checkShapes(q, p, coefs); err != nil {
		return nil, err
	}
	grad := make([]r2.Point, len(p))
	terms := make([]robotTerm, len(p))
	for _, target := range q {
		for i, robot := range p {
			terms[i] = termFor(target, robot, coefs[i])
		}
		var inv mat.Dense
		if err := inv.Inverse(information(terms)); err != nil {
			// singular or near singular information: no usable ascent direction from this target
			continue
		}
		for i, t := range terms {
			if !t.ok {
				continue
			}
			fx := inv.At(0, 0)*t.d.X + inv.At(0, 1)*t.d.Y
			fy := inv.At(1, 0)*t.d.X + inv.At(1, 1)*t.d.Y
			quad := t.d.X*fx + t.d.Y*fy
			radial := t.dw / t.r * quad
			contrib := r2.Point{
				X: radial*t.d.X + 2*t.weight*fx,
				Y: radial*t.d.Y + 2*t.weight*fy,
			}
			if !isFinite(contrib.X) || !isFinite(contrib.Y) {
				continue
			}
			grad[i] = grad[i].Add(contrib)
		}
	}
	return grad, nil
}

// Criterion is the summed log det of the per-target Fisher information. It is -Inf when any
// target is unobservable from the current geometry.
func (m *Model) Criterion(q, p []r2.Point, coefs []Coefficients) (float64, error) {
	if err := checkShapes(q, p, coefs); err != nil {
		return 0, err
	}
	total := 0.0
	terms := make([]robotTerm, len(p))
	for _, target := range q {
		for i, robot := range p {
			terms[i] = termFor(target, robot, coefs[i])
		}
		logDet, sign := mat.LogDet(information(terms))
		if sign <= 0 {
			return math.Inf(-1), nil
		}
		total += logDet
	}
	return total, nil
}

// Bind fixes the coefficients, yielding the two-argument gradient function the planner
// consumes.
func Bind(model GradientModel, coefs []Coefficients) func(q, p []r2.Point) ([]r2.Point, error) {
	bound := append([]Coefficients(nil), coefs...)
	return func(q, p []r2.Point) ([]r2.Point, error) {
		return model.Gradient(q, p, bound)
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
