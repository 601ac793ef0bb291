// Package control runs the fixed-rate loop that turns the latest fleet state and target
// estimate into waypoint plans and hands them to the robots' trackers.
package control

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/fimnav/estimation"
	"go.viam.com/fimnav/fim"
	"go.viam.com/fimnav/fleet"
	"go.viam.com/fimnav/logging"
	"go.viam.com/fimnav/motionplan"
	"go.viam.com/fimnav/utils"
)

const (
	defaultFrequency = 10.
	maxFrequency     = 200.
	// plan durations kept for Stats.
	statsWindow = 100
)

// Config holds the loop parameters.
type Config struct {
	// Frequency is the tick rate in Hz. The planning interval dt is its inverse.
	Frequency float64
	// Horizon is the number of waypoints planned per robot.
	Horizon int
	// MaxSpeed is the maximum linear speed of a robot, m/s.
	MaxSpeed float64
	// Epsilon is the convergence tolerance of the planner.
	Epsilon float64
	// StepGain scales the gradient into a displacement. Zero means 1.
	StepGain float64
}

// DefaultConfig returns the loop parameters for a TurtleBot3 Burger fleet at 10 Hz.
func DefaultConfig() Config {
	req := motionplan.NewRequest(nil, nil)
	return Config{
		Frequency: defaultFrequency,
		Horizon:   req.Horizon,
		MaxSpeed:  req.MaxSpeed,
		Epsilon:   req.Epsilon,
		StepGain:  req.StepGain,
	}
}

// Validate returns an error when the loop could not run with cfg.
func (cfg Config) Validate() error {
	switch {
	case !(cfg.Frequency > 0) || cfg.Frequency > maxFrequency:
		return errors.Errorf("loop frequency shouldn't be 0 or above %gHz, got %g", maxFrequency, cfg.Frequency)
	case cfg.Horizon < 1:
		return errors.Errorf("planning horizon must be at least 1, got %d", cfg.Horizon)
	case !(cfg.MaxSpeed > 0):
		return errors.Errorf("max linear speed must be positive, got %g", cfg.MaxSpeed)
	case !(cfg.Epsilon >= 0):
		return errors.Errorf("epsilon must be non-negative, got %g", cfg.Epsilon)
	case cfg.StepGain < 0:
		return errors.Errorf("step gain must be non-negative, got %g", cfg.StepGain)
	}
	return nil
}

// Dt is the time between ticks, and between consecutive planned waypoints, in seconds.
func (cfg Config) Dt() float64 {
	return 1 / cfg.Frequency
}

// Period is Dt as a duration.
func (cfg Config) Period() time.Duration {
	return time.Duration(float64(time.Second) * cfg.Dt())
}

func (cfg Config) request(targets, positions []r2.Point) motionplan.Request {
	req := motionplan.NewRequest(targets, positions)
	req.Horizon = cfg.Horizon
	req.MaxSpeed = cfg.MaxSpeed
	req.Dt = cfg.Dt()
	req.Epsilon = cfg.Epsilon
	req.StepGain = cfg.StepGain
	return req
}

// Option customizes a Loop.
type Option func(*Loop)

// WithClock sets the time source driving the ticks.
func WithClock(c clock.Clock) Option {
	return func(l *Loop) { l.clock = c }
}

// WithPlanner replaces the gradient-ascent planner.
func WithPlanner(planner motionplan.MotionPlanner) Option {
	return func(l *Loop) { l.planner = planner }
}

// WithGradientModel replaces the Fisher-information gradient model.
func WithGradientModel(model fim.GradientModel) Option {
	return func(l *Loop) { l.model = model }
}

// Loop is the fleet control loop. Inbound handlers may be called from any goroutine while
// the loop runs; each tick reads a snapshot of what they have delivered so far.
type Loop struct {
	cfg        Config
	logger     logging.Logger
	clock      clock.Clock
	fleet      *fleet.State
	estimates  *estimation.Aggregator
	planner    motionplan.MotionPlanner
	model      fim.GradientModel
	dispatcher Dispatcher

	ticks atomic.Uint64
	stats *statsTracker

	mu      sync.Mutex
	workers utils.StoppableWorkers
}

// NewLoop constructs a control loop for the robots of state. A nil dispatcher logs plans
// instead of sending them anywhere.
func NewLoop(
	logger logging.Logger,
	cfg Config,
	state *fleet.State,
	estimates *estimation.Aggregator,
	dispatcher Dispatcher,
	opts ...Option,
) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if state == nil || state.Len() == 0 {
		return nil, errors.New("control loop needs at least one robot")
	}
	if estimates == nil {
		return nil, errors.New("control loop needs an estimate aggregator")
	}
	l := &Loop{
		cfg:        cfg,
		logger:     logger,
		clock:      clock.New(),
		fleet:      state,
		estimates:  estimates,
		model:      fim.NewModel(),
		dispatcher: dispatcher,
		stats:      newStatsTracker(statsWindow),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.planner == nil {
		l.planner = motionplan.NewFIMAscentPlanner(logger.Sublogger("planner"))
	}
	if l.dispatcher == nil {
		l.dispatcher = NewLoggingDispatcher(logger.Sublogger("dispatch"))
	}
	return l, nil
}

// Config returns the loop parameters.
func (l *Loop) Config() Config {
	return l.cfg
}

// Fleet returns the robot state the loop plans for.
func (l *Loop) Fleet() *fleet.State {
	return l.fleet
}

// Estimates returns the estimate aggregator the loop plans against.
func (l *Loop) Estimates() *estimation.Aggregator {
	return l.estimates
}

// Start begins ticking at the configured frequency.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.workers != nil {
		return errors.New("control loop already started")
	}
	l.logger.Infow("starting control loop", "frequency", l.cfg.Frequency, "robots", l.fleet.Names())
	l.workers = utils.NewTickerWorker(l.clock, l.cfg.Period(), func(ctx context.Context) error {
		_, err := l.Tick(ctx)
		return err
	})
	return nil
}

// Close stops the loop and waits for an in-flight tick to finish.
func (l *Loop) Close(ctx context.Context) error {
	l.mu.Lock()
	workers := l.workers
	l.workers = nil
	l.mu.Unlock()
	if workers != nil {
		workers.Stop()
	}
	return nil
}

// Tick runs one control cycle: snapshot the fleet, resolve the target estimate, check
// coefficients, plan and dispatch. A cycle that cannot plan is skipped and counted; only a
// cancelled ctx is returned as an error.
func (l *Loop) Tick(ctx context.Context) (TickResult, error) {
	if err := ctx.Err(); err != nil {
		return TickResult{}, err
	}
	res := TickResult{Tick: l.ticks.Add(1), Reached: StateAwaitingPoses}
	ctx = logging.WithTick(ctx, res.Tick)

	located := fleet.Located(l.fleet.Snapshot())
	if len(located) == 0 {
		return l.skip(ctx, res, SkipNoPoses), nil
	}

	res.Reached = StateAwaitingEstimate
	est, err := l.estimates.Current()
	if err != nil {
		return l.skip(ctx, res, SkipNoEstimate), nil
	}

	res.Reached = StateAwaitingCoefficients
	if missing := fleet.NotReady(located); len(missing) > 0 {
		return l.skip(ctx, res, SkipCoefficientsIncomplete, "missing", missing), nil
	}

	res.Reached = StatePlanning
	res.Robots = lo.Map(located, func(s fleet.RobotSnapshot, _ int) string { return s.Name })
	res.Source = est.Source
	positions := lo.Map(located, func(s fleet.RobotSnapshot, _ int) r2.Point { return s.Position })
	coefs := lo.Map(located, func(s fleet.RobotSnapshot, _ int) fim.Coefficients { return s.Coefficients })

	start := l.clock.Now()
	stopSlowLog := utils.SlowLogger(ctx, l.clock, l.cfg.Period(), "planning is slower than the control rate",
		"robots", len(located), l.logger)
	plan, err := l.planner.Plan(ctx, fim.Bind(l.model, coefs), l.cfg.request(est.Targets, positions))
	stopSlowLog()
	elapsed := l.clock.Since(start)
	if err != nil {
		switch {
		case errors.Is(err, motionplan.ErrInvalidGeometry):
			return l.skip(ctx, res, SkipInvalidGeometry, "error", err), nil
		case ctx.Err() != nil:
			return res, ctx.Err()
		default:
			return l.skip(ctx, res, SkipPlanningFailed, "error", err), nil
		}
	}
	l.stats.planned(elapsed)
	res.Plan = plan

	res.Reached = StateDispatch
	if err := l.dispatcher.Dispatch(ctx, TickPlan{
		Tick:   res.Tick,
		Robots: res.Robots,
		Source: res.Source,
		Plan:   plan,
	}); err != nil {
		return l.skip(ctx, res, SkipDispatchFailed, "error", err), nil
	}
	l.stats.dispatched()

	steps, robots := plan.Shape()
	l.logger.CDebugw(ctx, "real_time_controlling",
		"estimate", est.Source.String(), "steps", steps, "robots", robots, "plan_time", elapsed)
	return res, nil
}

// skip records a skipped cycle. A reason is logged at warn level when it first appears and at
// debug level while it persists.
func (l *Loop) skip(ctx context.Context, res TickResult, reason SkipReason, keysAndValues ...interface{}) TickResult {
	res.Skipped = reason
	keysAndValues = append([]interface{}{"reason", string(reason), "state", res.Reached.String()}, keysAndValues...)
	if l.stats.skipped(reason) {
		l.logger.CWarnw(ctx, "skipping control cycle", keysAndValues...)
	} else {
		l.logger.CDebugw(ctx, "skipping control cycle", keysAndValues...)
	}
	return res
}

// Stats returns the loop counters so far.
func (l *Loop) Stats() Stats {
	return l.stats.snapshot(l.ticks.Load())
}
