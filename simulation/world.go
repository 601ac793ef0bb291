package simulation

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"

	"go.viam.com/fimnav/estimation"
	"go.viam.com/fimnav/fim"
	"go.viam.com/fimnav/logging"
	"go.viam.com/fimnav/ros"
	"go.viam.com/fimnav/spatialmath"
	"go.viam.com/fimnav/utils"
)

// RobotSpec is a simulated robot's identity, start position and sensor.
type RobotSpec struct {
	Name         string
	Start        r2.Point
	Coefficients fim.Coefficients
}

// Setup is how the simulated world connects to the controller.
type Setup struct {
	Robots   []RobotSpec
	Bus      *ros.Bus
	Topics   ros.Topics
	PoseType ros.PoseType
	// MaxSpeed bounds how far a robot moves per step, m/s.
	MaxSpeed float64
	// Dt is the simulated time per step, s.
	Dt float64
}

type simRobot struct {
	spec     RobotSpec
	position r2.Point
	goal     r2.Point
}

// World is the simulated fleet, targets and estimators. Step advances it by one interval.
type World struct {
	cfg    Config
	setup  Setup
	logger logging.Logger

	noise distuv.Normal
	drops map[estimation.Algorithm]distuv.Bernoulli

	mu      sync.Mutex
	robots  []*simRobot
	byName  map[string]*simRobot
	steps   int
	elapsed float64
	trace   *Trace

	subs    []uuid.UUID
	workers utils.StoppableWorkers
}

// NewWorld places the robots at their start positions and listens for their waypoints.
func NewWorld(logger logging.Logger, cfg Config, setup Setup) (*World, error) {
	if err := cfg.Validate("simulation"); err != nil {
		return nil, err
	}
	if setup.Bus == nil {
		return nil, errors.New("simulation needs a bus")
	}
	if len(setup.Robots) == 0 {
		return nil, errors.New("simulation needs at least one robot")
	}
	if !(setup.MaxSpeed > 0) || !(setup.Dt > 0) {
		return nil, errors.Errorf("simulation needs positive speed and dt, got %g and %g", setup.MaxSpeed, setup.Dt)
	}

	src := rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)
	w := &World{
		cfg:    cfg,
		setup:  setup,
		logger: logger,
		noise:  distuv.Normal{Mu: 0, Sigma: cfg.EstimateNoise, Src: src},
		drops:  map[estimation.Algorithm]distuv.Bernoulli{},
		byName: map[string]*simRobot{},
		trace:  newTrace(),
	}
	for name, p := range cfg.DropProbability {
		alg, err := estimation.ParseAlgorithm(name)
		if err != nil {
			return nil, err
		}
		w.drops[alg] = distuv.Bernoulli{P: p, Src: src}
	}
	for _, spec := range setup.Robots {
		if _, ok := w.byName[spec.Name]; ok {
			return nil, errors.Errorf("duplicate simulated robot %q", spec.Name)
		}
		r := &simRobot{spec: spec, position: spec.Start, goal: spec.Start}
		w.robots = append(w.robots, r)
		w.byName[spec.Name] = r
	}

	for _, r := range w.robots {
		name := r.spec.Name
		id, err := setup.Bus.Subscribe(setup.Topics.WaypointsTopic(name), func(msg interface{}) {
			w.receiveWaypoints(name, msg)
		})
		if err != nil {
			w.unsubscribe()
			return nil, err
		}
		w.subs = append(w.subs, id)
	}
	return w, nil
}

func (w *World) receiveWaypoints(name string, msg interface{}) {
	path, err := utils.AssertType[ros.Path](msg)
	if err != nil {
		w.logger.Warnw("ignoring waypoints", "robot", name, "error", err)
		return
	}
	pts := path.Points()
	if len(pts) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	r := w.byName[name]
	// waypoint 0 is where the robot was when planning started
	r.goal = pts[0]
	if len(pts) > 1 {
		r.goal = pts[1]
	}
	w.trace.Waypoints[name] = append(w.trace.Waypoints[name], pointsToPairs(pts))
}

// Step advances the world by Dt: targets and robots move, then poses, target estimates and,
// when due, sensor coefficients are published.
func (w *World) Step() error {
	w.mu.Lock()
	first := w.steps == 0
	w.steps++
	w.elapsed += w.setup.Dt
	step := w.steps
	stamp := w.stamp()

	targets := make([]r2.Point, len(w.cfg.Targets))
	for i, tc := range w.cfg.Targets {
		targets[i] = tc.PositionAt(w.elapsed)
		w.trace.TargetLocs[tc.Name] = append(w.trace.TargetLocs[tc.Name], pointToPair(targets[i]))
	}
	maxStep := w.setup.MaxSpeed * w.setup.Dt
	poses := make([]r2.Point, len(w.robots))
	for i, r := range w.robots {
		r.position = r.position.Add(spatialmath.ClipNorm(r.goal.Sub(r.position), maxStep))
		poses[i] = r.position
		w.trace.SensorLocs[r.spec.Name] = append(w.trace.SensorLocs[r.spec.Name], pointToPair(r.position))
	}
	estimates := w.estimate(targets)
	w.mu.Unlock()

	bus := w.setup.Bus
	topics := w.setup.Topics
	every := w.cfg.CoefficientsEvery
	if first || (every > 0 && step%every == 0) {
		if err := w.publishCoefficients(); err != nil {
			return err
		}
	}
	header := ros.Header{Seq: uint32(step), Stamp: stamp, FrameID: "map"}
	for i, r := range w.robots {
		msg, err := ros.NewPoseMessage(w.setup.PoseType, poses[i], header)
		if err != nil {
			return err
		}
		if _, err := bus.Publish(topics.PoseTopic(r.spec.Name), msg); err != nil {
			return err
		}
	}
	for _, alg := range estimation.Algorithms() {
		est, ok := estimates[alg]
		if !ok {
			continue
		}
		if _, err := bus.Publish(topics.EstimateTopic(alg.String()), est); err != nil {
			return err
		}
	}
	return nil
}

// estimate draws each algorithm's noisy estimate of targets, leaving out dropped ones.
func (w *World) estimate(targets []r2.Point) map[estimation.Algorithm]ros.Float32MultiArray {
	out := map[estimation.Algorithm]ros.Float32MultiArray{}
	for _, alg := range estimation.Algorithms() {
		if drop, ok := w.drops[alg]; ok && drop.Rand() == 1 {
			continue
		}
		data := make([]float32, 0, 2*len(targets))
		flat := make([]float64, 0, 2*len(targets))
		for _, q := range targets {
			x, y := q.X+w.noise.Rand(), q.Y+w.noise.Rand()
			data = append(data, float32(x), float32(y))
			flat = append(flat, x, y)
		}
		w.trace.EstLocsLog[alg.String()] = append(w.trace.EstLocsLog[alg.String()], flat)
		out[alg] = ros.Float32MultiArray{
			Layout: ros.MultiArrayLayout{Dim: []ros.MultiArrayDimension{
				{Label: "targets", Size: uint32(len(targets)), Stride: uint32(2 * len(targets))},
				{Label: "xy", Size: 2, Stride: 2},
			}},
			Data: data,
		}
	}
	return out
}

func (w *World) publishCoefficients() error {
	for _, r := range w.robots {
		c := r.spec.Coefficients
		msg := ros.SensorCoefficients{C1: &c.C1, C0: &c.C0, K: &c.K, B: &c.B}
		if _, err := w.setup.Bus.Publish(w.setup.Topics.CoefficientsTopic(r.spec.Name), msg); err != nil {
			return err
		}
	}
	return nil
}

func (w *World) stamp() ros.Time {
	d := time.Duration(w.elapsed * float64(time.Second))
	return ros.Time{Secs: int(d / time.Second), Nsecs: int(d % time.Second)}
}

// Positions returns the true robot positions, in configuration order.
func (w *World) Positions() []r2.Point {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]r2.Point, len(w.robots))
	for i, r := range w.robots {
		out[i] = r.position
	}
	return out
}

// TargetPositions returns the true target positions at the current simulated time.
func (w *World) TargetPositions() []r2.Point {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]r2.Point, len(w.cfg.Targets))
	for i, tc := range w.cfg.Targets {
		out[i] = tc.PositionAt(w.elapsed)
	}
	return out
}

// Steps is the number of steps taken so far.
func (w *World) Steps() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.steps
}

// Trace returns a copy of everything recorded so far.
func (w *World) Trace() Trace {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.trace.clone()
}

// Start steps the world every Dt of clk until Close.
func (w *World) Start(clk clock.Clock) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.workers != nil {
		return
	}
	period := time.Duration(w.setup.Dt * float64(time.Second))
	w.workers = utils.NewTickerWorker(clk, period, func(context.Context) error {
		if err := w.Step(); err != nil {
			w.logger.Errorw("simulation step failed", "error", err)
			return err
		}
		return nil
	})
}

// Close stops stepping and stops listening for waypoints.
func (w *World) Close() {
	w.mu.Lock()
	workers := w.workers
	w.workers = nil
	w.mu.Unlock()
	if workers != nil {
		workers.Stop()
	}
	w.unsubscribe()
}

func (w *World) unsubscribe() {
	for _, id := range w.subs {
		w.setup.Bus.Unsubscribe(id)
	}
	w.subs = nil
}
