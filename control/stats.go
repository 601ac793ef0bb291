package control

import (
	"sync"
	"time"

	"go.viam.com/fimnav/estimation"
	"go.viam.com/fimnav/motionplan"
	"go.viam.com/fimnav/utils"
)

// State is how far a control cycle got.
type State int

// The states of a control cycle, in order.
const (
	StateAwaitingPoses State = iota
	StateAwaitingEstimate
	StateAwaitingCoefficients
	StatePlanning
	StateDispatch
)

func (s State) String() string {
	switch s {
	case StateAwaitingPoses:
		return "awaiting_poses"
	case StateAwaitingEstimate:
		return "awaiting_estimate"
	case StateAwaitingCoefficients:
		return "awaiting_coefficients"
	case StatePlanning:
		return "planning"
	case StateDispatch:
		return "dispatch"
	default:
		return "unknown"
	}
}

// SkipReason is why a control cycle ended without dispatching a plan.
type SkipReason string

// The reasons a cycle can be skipped.
const (
	SkipNoPoses                = SkipReason("no_poses")
	SkipNoEstimate             = SkipReason("no_estimate")
	SkipCoefficientsIncomplete = SkipReason("coefficients_incomplete")
	SkipInvalidGeometry        = SkipReason("invalid_geometry")
	SkipPlanningFailed         = SkipReason("planning_failed")
	SkipDispatchFailed         = SkipReason("dispatch_failed")
)

// TickResult describes one control cycle.
type TickResult struct {
	Tick    uint64
	Reached State
	// Skipped is empty when the plan was dispatched.
	Skipped SkipReason
	// Robots names the plan's columns, in configuration order.
	Robots []string
	Source estimation.Algorithm
	Plan   *motionplan.Plan
}

// Dispatched reports whether the cycle handed a plan to the dispatcher.
func (res TickResult) Dispatched() bool {
	return res.Reached == StateDispatch && res.Skipped == ""
}

// Stats are the loop counters.
type Stats struct {
	Ticks      uint64
	Dispatched uint64
	Skipped    map[SkipReason]uint64
	// PlanSeconds summarizes recent planning durations.
	PlanSeconds utils.Summary
}

type statsTracker struct {
	mu         sync.Mutex
	dispatches uint64
	skips      map[SkipReason]uint64
	lastSkip   SkipReason
	planTimes  *utils.RollingWindow
}

func newStatsTracker(window int) *statsTracker {
	return &statsTracker{
		skips:     map[SkipReason]uint64{},
		planTimes: utils.NewRollingWindow(window),
	}
}

// skipped counts a skip and reports whether the reason differs from the previous cycle's.
func (st *statsTracker) skipped(reason SkipReason) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.skips[reason]++
	changed := reason != st.lastSkip
	st.lastSkip = reason
	return changed
}

func (st *statsTracker) planned(elapsed time.Duration) {
	st.planTimes.Add(elapsed.Seconds())
}

func (st *statsTracker) dispatched() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.dispatches++
	st.lastSkip = ""
}

func (st *statsTracker) snapshot(ticks uint64) Stats {
	st.mu.Lock()
	defer st.mu.Unlock()
	skips := make(map[SkipReason]uint64, len(st.skips))
	for reason, n := range st.skips {
		skips[reason] = n
	}
	return Stats{
		Ticks:       ticks,
		Dispatched:  st.dispatches,
		Skipped:     skips,
		PlanSeconds: st.planTimes.Summarize(),
	}
}
