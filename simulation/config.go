// Package simulation stands in for the robots, the moving target and the estimators so the
// controller can be exercised end to end over an in-process ros.Bus.
package simulation

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/fimnav/estimation"
	"go.viam.com/fimnav/fim"
)

// DefaultCoefficients is the sensor model of robots that do not configure one.
var DefaultCoefficients = fim.Coefficients{C1: -0.3, C0: 0.1, K: 1, B: -2}

// TargetConfig describes how one simulated target moves. With a positive Radius it circles
// Center at AngularSpeed rad/s starting from angle 0; otherwise it starts at Start and moves
// at constant Velocity.
type TargetConfig struct {
	Name         string     `json:"name"`
	Start        [2]float64 `json:"start"`
	Velocity     [2]float64 `json:"velocity"`
	Center       [2]float64 `json:"center"`
	Radius       float64    `json:"radius"`
	AngularSpeed float64    `json:"angular_speed"`
}

// PositionAt is the target position t seconds into the simulation.
func (tc TargetConfig) PositionAt(t float64) r2.Point {
	if tc.Radius > 0 {
		angle := tc.AngularSpeed * t
		return r2.Point{
			X: tc.Center[0] + tc.Radius*math.Cos(angle),
			Y: tc.Center[1] + tc.Radius*math.Sin(angle),
		}
	}
	return r2.Point{X: tc.Start[0] + tc.Velocity[0]*t, Y: tc.Start[1] + tc.Velocity[1]*t}
}

// Config holds the simulation parameters.
type Config struct {
	Seed    uint64         `json:"seed"`
	Targets []TargetConfig `json:"targets"`
	// EstimateNoise is the standard deviation, in meters, added to each estimated coordinate.
	EstimateNoise float64 `json:"estimate_noise"`
	// DropProbability is, per algorithm name, the chance a step publishes no estimate.
	DropProbability map[string]float64 `json:"drop_probability,omitempty"`
	// CoefficientsEvery re-publishes sensor coefficients every that many steps. Zero publishes
	// them only on the first step.
	CoefficientsEvery int `json:"coefficients_every"`
}

// DefaultConfig is one target circling (5, 5) with an unreliable EKF.
func DefaultConfig() Config {
	return Config{
		Seed: 1,
		Targets: []TargetConfig{{
			Name:         "target_0",
			Center:       [2]float64{5, 5},
			Radius:       2,
			AngularSpeed: 0.1,
		}},
		EstimateNoise: 0.1,
		DropProbability: map[string]float64{
			estimation.AlgorithmEKF.String():          0.3,
			estimation.AlgorithmIntersection.String(): 0.1,
		},
	}
}

// Validate returns every problem with the configuration under path.
func (cfg *Config) Validate(path string) error {
	var errs error
	if len(cfg.Targets) == 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationFieldRequiredError(path, "targets"))
	}
	for i, target := range cfg.Targets {
		if target.Name == "" {
			errs = multierr.Append(errs, goutils.NewConfigValidationFieldRequiredError(fmt.Sprintf("%s.targets.%d", path, i), "name"))
		}
	}
	if !(cfg.EstimateNoise >= 0) {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("estimate_noise must be non-negative, got %g", cfg.EstimateNoise)))
	}
	for name, p := range cfg.DropProbability {
		if _, err := estimation.ParseAlgorithm(name); err != nil {
			errs = multierr.Append(errs, goutils.NewConfigValidationError(path, err))
		}
		if !(p >= 0 && p <= 1) {
			errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
				errors.Errorf("drop_probability for %s must be in [0, 1], got %g", name, p)))
		}
	}
	if cfg.CoefficientsEvery < 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("coefficients_every must be non-negative, got %d", cfg.CoefficientsEvery)))
	}
	return errs
}
