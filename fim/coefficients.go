// Package fim implements the Fisher information criterion for a fleet of range-dependent
// sensors observing one or more targets, and its analytic gradient with respect to the
// sensor positions.
//
// Each robot i carries a sensor whose noiseless reading of a target at distance r is
//
//	h_i(r) = K_i * (r - C1_i)^B_i + C0_i
//
// With additive Gaussian noise of unit variance the information robot i contributes about
// the target location q is h_i'(r)^2 * u u^T, u the unit bearing from q to the robot. The
// fleet criterion is the sum over targets of log det of the summed information.
package fim

import (
	"math"
)

// Coefficients are the sensor-response parameters of one robot.
type Coefficients struct {
	C1 float64 `json:"c1"`
	C0 float64 `json:"c0"`
	K  float64 `json:"k"`
	B  float64 `json:"b"`
}

// Response is the noiseless reading at range r.
func (c Coefficients) Response(r float64) float64 {
	return c.K*math.Pow(r-c.C1, c.B) + c.C0
}

// Slope is dh/dr at range r.
func (c Coefficients) Slope(r float64) float64 {
	return c.K * c.B * math.Pow(r-c.C1, c.B-1)
}

// Curvature is d²h/dr² at range r.
func (c Coefficients) Curvature(r float64) float64 {
	return c.K * c.B * (c.B - 1) * math.Pow(r-c.C1, c.B-2)
}
