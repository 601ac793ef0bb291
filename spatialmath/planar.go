// Package spatialmath defines the planar geometry helpers used by the planner: robot and
// target positions are r2.Points in a shared world frame, in meters.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// ErrMalformedVector is returned when a flat coordinate array cannot be read as N×2 points.
var ErrMalformedVector = errors.New("malformed planar coordinate vector")

// PointsFromFlat reshapes a flat [x0, y0, x1, y1, ...] array into N points. The array must be
// non-empty, have even length and hold only finite values.
func PointsFromFlat(flat []float64) ([]r2.Point, error) {
	if len(flat) == 0 {
		return nil, errors.Wrap(ErrMalformedVector, "empty")
	}
	if len(flat)%2 != 0 {
		return nil, errors.Wrapf(ErrMalformedVector, "odd length %d", len(flat))
	}
	pts := make([]r2.Point, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		pt := r2.Point{X: flat[i], Y: flat[i+1]}
		if !IsFinitePoint(pt) {
			return nil, errors.Wrapf(ErrMalformedVector, "non-finite coordinate at index %d", i/2)
		}
		pts = append(pts, pt)
	}
	return pts, nil
}

// PointsFromFlat32 is PointsFromFlat for the float32 arrays estimators publish.
func PointsFromFlat32(flat []float32) ([]r2.Point, error) {
	wide := make([]float64, len(flat))
	for i, v := range flat {
		wide[i] = float64(v)
	}
	return PointsFromFlat(wide)
}

// Flatten is the inverse of PointsFromFlat.
func Flatten(pts []r2.Point) []float64 {
	flat := make([]float64, 0, 2*len(pts))
	for _, pt := range pts {
		flat = append(flat, pt.X, pt.Y)
	}
	return flat
}

// IsFinitePoint reports whether both coordinates are finite.
func IsFinitePoint(pt r2.Point) bool {
	return !math.IsNaN(pt.X) && !math.IsNaN(pt.Y) && !math.IsInf(pt.X, 0) && !math.IsInf(pt.Y, 0)
}

// AllFinite reports whether every point is finite.
func AllFinite(pts []r2.Point) bool {
	for _, pt := range pts {
		if !IsFinitePoint(pt) {
			return false
		}
	}
	return true
}

// ClipNorm scales v down so its length is at most limit. Vectors already within the limit
// are returned unchanged.
func ClipNorm(v r2.Point, limit float64) r2.Point {
	n := v.Norm()
	if n <= limit || n == 0 {
		return v
	}
	return v.Mul(limit / n)
}

// StackedNorm is the Euclidean norm of all vectors concatenated, i.e. the norm of an R×2
// gradient taken as one 2R vector.
func StackedNorm(vs []r2.Point) float64 {
	if len(vs) == 0 {
		return 0
	}
	return floats.Norm(Flatten(vs), 2)
}

// ClonePoints returns a copy of pts.
func ClonePoints(pts []r2.Point) []r2.Point {
	return append([]r2.Point(nil), pts...)
}
