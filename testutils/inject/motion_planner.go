package inject

import (
	"context"

	"go.viam.com/fimnav/motionplan"
)

// MotionPlanner is an injected motionplan.MotionPlanner.
type MotionPlanner struct {
	motionplan.MotionPlanner
	PlanFunc func(ctx context.Context, grad motionplan.GradientFunc, req motionplan.Request) (*motionplan.Plan, error)
}

// Plan calls the injected PlanFunc or the real planner.
func (mp *MotionPlanner) Plan(
	ctx context.Context,
	grad motionplan.GradientFunc,
	req motionplan.Request,
) (*motionplan.Plan, error) {
	if mp.PlanFunc == nil {
		return mp.MotionPlanner.Plan(ctx, grad, req)
	}
	return mp.PlanFunc(ctx, grad, req)
}
