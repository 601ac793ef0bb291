package motionplan

import (
	"fmt"

	"github.com/golang/geo/r2"

	"go.viam.com/fimnav/spatialmath"
)

// default values for planning requests.
const (
	// number of waypoints per robot in a plan.
	defaultHorizon = 50

	// max linear speed of a TurtleBot3 Burger, m/s.
	defaultMaxSpeed = 0.22

	// seconds between consecutive waypoints.
	defaultDt = 0.1

	// gradient norm below which ascent is considered converged.
	defaultEpsilon = 0.1

	// proposed displacement per unit of gradient, before speed clipping.
	defaultStepGain = 1.0

	// clipped steps are kept this fraction inside the speed limit so that rounding in
	// the position update cannot push a step over it.
	stepSlack = 1e-9
)

// Request is everything one planning call needs: the PlanningRequest snapshot of a
// control tick.
type Request struct {
	// Targets are the N estimated target locations.
	Targets []r2.Point
	// Positions are the R current robot positions; waypoint 0 of the plan.
	Positions []r2.Point
	// NumRobots must equal len(Positions).
	NumRobots int
	// Horizon is the number of waypoints per robot, T.
	Horizon int
	// MaxSpeed is the maximum linear speed, m/s.
	MaxSpeed float64
	// Dt is the time between waypoints, s.
	Dt float64
	// Epsilon is the convergence tolerance on the stacked gradient norm.
	Epsilon float64
	// StepGain scales the gradient into a proposed displacement. Zero means the default.
	StepGain float64
}

// NewRequest fills in the default horizon, speed, interval, tolerance and gain.
func NewRequest(targets, positions []r2.Point) Request {
	return Request{
		Targets:   targets,
		Positions: positions,
		NumRobots: len(positions),
		Horizon:   defaultHorizon,
		MaxSpeed:  defaultMaxSpeed,
		Dt:        defaultDt,
		Epsilon:   defaultEpsilon,
		StepGain:  defaultStepGain,
	}
}

// MaxStep is the largest displacement a robot may make between two waypoints.
func (req Request) MaxStep() float64 {
	return req.MaxSpeed * req.Dt
}

func (req Request) stepGain() float64 {
	if req.StepGain == 0 {
		return defaultStepGain
	}
	return req.StepGain
}

func (req Request) String() string {
	return fmt.Sprintf("targets=%d robots=%d T=%d v_max=%g dt=%g eps=%g",
		len(req.Targets), req.NumRobots, req.Horizon, req.MaxSpeed, req.Dt, req.Epsilon)
}

// validate checks parameters before geometry so configuration mistakes are reported as such.
func (req Request) validate() error {
	switch {
	case req.Horizon < 1:
		return newInvalidRequestError("horizon must be at least 1, got %d", req.Horizon)
	case !(req.MaxSpeed > 0):
		return newInvalidRequestError("max speed must be positive, got %g", req.MaxSpeed)
	case !(req.Dt > 0):
		return newInvalidRequestError("dt must be positive, got %g", req.Dt)
	case !(req.Epsilon >= 0):
		return newInvalidRequestError("epsilon must be non-negative, got %g", req.Epsilon)
	case req.StepGain < 0:
		return newInvalidRequestError("step gain must be non-negative, got %g", req.StepGain)
	}
	if len(req.Targets) == 0 {
		return newInvalidGeometryError("no target estimate")
	}
	if !spatialmath.AllFinite(req.Targets) {
		return newInvalidGeometryError("target estimate has non-finite coordinates")
	}
	if req.NumRobots < 1 {
		return newInvalidGeometryError("need at least one robot, got %d", req.NumRobots)
	}
	if len(req.Positions) != req.NumRobots {
		return newInvalidGeometryError("have %d robot positions for %d robots", len(req.Positions), req.NumRobots)
	}
	if !spatialmath.AllFinite(req.Positions) {
		return newInvalidGeometryError("robot positions have non-finite coordinates")
	}
	return nil
}
