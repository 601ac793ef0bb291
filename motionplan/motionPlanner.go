// Package motionplan plans finite-horizon trajectories for a fleet of mobile sensors by
// constrained gradient ascent on an information criterion.
package motionplan

import (
	"context"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/fimnav/logging"
	"go.viam.com/fimnav/spatialmath"
)

// GradientFunc returns, for targets q and robot positions p, the gradient of the
// criterion being ascended with respect to each robot position.
type GradientFunc func(q, p []r2.Point) ([]r2.Point, error)

// MotionPlanner turns a planning request into waypoints.
type MotionPlanner interface {
	Plan(ctx context.Context, grad GradientFunc, req Request) (*Plan, error)
}

// FIMAscentPlanner ascends the gradient returned by a GradientFunc, clipping every robot's
// step to MaxSpeed*Dt.
type FIMAscentPlanner struct {
	logger logging.Logger
}

// NewFIMAscentPlanner returns the gradient-ascent planner.
func NewFIMAscentPlanner(logger logging.Logger) *FIMAscentPlanner {
	return &FIMAscentPlanner{logger: logger}
}

var _ MotionPlanner = (*FIMAscentPlanner)(nil)

// Plan implements MotionPlanner.
func (mp *FIMAscentPlanner) Plan(ctx context.Context, grad GradientFunc, req Request) (*Plan, error) {
	return PlanFIMAscent(ctx, mp.logger, grad, req)
}

// PlanFIMAscent runs Horizon-1 steps of gradient ascent from req.Positions. Each step moves
// every robot by StepGain times its gradient, shortened to at most MaxSpeed*Dt. When the
// stacked gradient norm drops below Epsilon the remaining waypoints repeat the current
// positions. Malformed geometry fails with ErrInvalidGeometry before any ascent is done;
// non-finite gradient entries are treated as zero.
func PlanFIMAscent(ctx context.Context, logger logging.Logger, grad GradientFunc, req Request) (*Plan, error) {
	if grad == nil {
		return nil, newInvalidRequestError("no gradient function")
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	maxStep := req.MaxStep() * (1 - stepSlack)
	gain := req.stepGain()
	targets := spatialmath.ClonePoints(req.Targets)

	waypoints := make([][]r2.Point, req.Horizon)
	waypoints[0] = spatialmath.ClonePoints(req.Positions)
	convergedAt := -1

	for t := 0; t < req.Horizon-1; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := waypoints[t]
		g, err := grad(targets, spatialmath.ClonePoints(current))
		if err != nil {
			return nil, errors.Wrapf(err, "gradient at step %d", t)
		}
		if len(g) != len(current) {
			return nil, errors.Errorf("gradient at step %d has %d entries for %d robots", t, len(g), len(current))
		}
		sanitized := 0
		for i := range g {
			if !spatialmath.IsFinitePoint(g[i]) {
				g[i] = r2.Point{}
				sanitized++
			}
		}
		if sanitized > 0 && logger != nil {
			logger.Debugw("zeroed non-finite gradient entries", "step", t, "robots", sanitized)
		}

		if spatialmath.StackedNorm(g) < req.Epsilon {
			convergedAt = t
			for rest := t + 1; rest < req.Horizon; rest++ {
				waypoints[rest] = spatialmath.ClonePoints(current)
			}
			break
		}

		next := make([]r2.Point, len(current))
		for i, pos := range current {
			next[i] = pos.Add(spatialmath.ClipNorm(g[i].Mul(gain), maxStep))
		}
		waypoints[t+1] = next
	}

	if logger != nil {
		logger.Debugw("planned", "request", req.String(), "converged_at", convergedAt)
	}
	return NewPlan(waypoints, convergedAt)
}
