package motionplan

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/google/go-cmp/cmp"
	"go.viam.com/test"

	"go.viam.com/fimnav/fim"
	"go.viam.com/fimnav/logging"
)

var lightSensor = fim.Coefficients{C1: -0.3, C0: 0.1, K: 1, B: -2}

func scenarioRequest() Request {
	req := NewRequest(
		[]r2.Point{{X: 5, Y: 5}},
		[]r2.Point{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 10, Y: 0}},
	)
	req.Horizon = 5
	req.MaxSpeed = 0.22
	req.Dt = 0.1
	req.Epsilon = 1e-3
	return req
}

func scenarioCoefficients() []fim.Coefficients {
	return []fim.Coefficients{lightSensor, lightSensor, lightSensor}
}

// constantGradient pushes every robot along dir.
func constantGradient(dir r2.Point) GradientFunc {
	return func(q, p []r2.Point) ([]r2.Point, error) {
		out := make([]r2.Point, len(p))
		for i := range out {
			out[i] = dir
		}
		return out, nil
	}
}

func assertStepBound(t *testing.T, plan *Plan, maxStep float64) {
	t.Helper()
	steps, robots := plan.Shape()
	for r := 0; r < robots; r++ {
		traj := plan.Trajectory(r)
		for s := 1; s < steps; s++ {
			test.That(t, traj[s].Sub(traj[s-1]).Norm(), test.ShouldBeLessThanOrEqualTo, maxStep)
		}
	}
}

func TestScenarioThreeRobots(t *testing.T) {
	logger := logging.NewTestLogger(t)
	model := fim.NewModel()
	req := scenarioRequest()
	coefs := scenarioCoefficients()

	plan, err := NewFIMAscentPlanner(logger).Plan(context.Background(), fim.Bind(model, coefs), req)
	test.That(t, err, test.ShouldBeNil)

	steps, robots := plan.Shape()
	test.That(t, steps, test.ShouldEqual, 5)
	test.That(t, robots, test.ShouldEqual, 3)
	test.That(t, plan.Flatten(), test.ShouldHaveLength, 5*3*2)
	test.That(t, plan.Step(0), test.ShouldResemble, req.Positions)
	assertStepBound(t, plan, 0.022)

	_, converged := plan.Converged()
	test.That(t, converged, test.ShouldBeFalse)

	prev := math.Inf(-1)
	for s := 0; s < steps; s++ {
		crit, err := model.Criterion(req.Targets, plan.Step(s), coefs)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, crit, test.ShouldBeGreaterThanOrEqualTo, prev)
		prev = crit
	}

	moved := 0.0
	for r := 0; r < robots; r++ {
		traj := plan.Trajectory(r)
		moved += traj[steps-1].Sub(traj[0]).Norm()
	}
	test.That(t, moved, test.ShouldBeGreaterThan, 0)
}

func TestPlanDeterministic(t *testing.T) {
	model := fim.NewModel()
	req := scenarioRequest()
	req.Horizon = 20
	grad := fim.Bind(model, scenarioCoefficients())

	first, err := PlanFIMAscent(context.Background(), nil, grad, req)
	test.That(t, err, test.ShouldBeNil)
	second, err := PlanFIMAscent(context.Background(), nil, grad, req)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cmp.Diff(first.Waypoints(), second.Waypoints()), test.ShouldBeEmpty)
}

func TestPlanStepBoundRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	model := fim.NewModel()
	for trial := 0; trial < 25; trial++ {
		robots := 1 + rng.Intn(5)
		positions := make([]r2.Point, robots)
		coefs := make([]fim.Coefficients, robots)
		for i := range positions {
			positions[i] = r2.Point{X: rng.Float64()*20 - 10, Y: rng.Float64()*20 - 10}
			coefs[i] = fim.Coefficients{C1: -rng.Float64(), C0: rng.Float64(), K: 0.5 + rng.Float64(), B: -1 - rng.Float64()*2}
		}
		req := NewRequest([]r2.Point{{X: rng.Float64() * 5, Y: rng.Float64() * 5}}, positions)
		req.Horizon = 2 + rng.Intn(30)
		req.MaxSpeed = 0.05 + rng.Float64()
		req.Dt = 0.05 + rng.Float64()*0.5
		req.StepGain = 0.1 + rng.Float64()*100
		req.Epsilon = 1e-6

		plan, err := PlanFIMAscent(context.Background(), nil, fim.Bind(model, coefs), req)
		test.That(t, err, test.ShouldBeNil)
		steps, got := plan.Shape()
		test.That(t, steps, test.ShouldEqual, req.Horizon)
		test.That(t, got, test.ShouldEqual, robots)
		assertStepBound(t, plan, req.MaxStep())
	}
}

func TestPlanConvergenceTruncation(t *testing.T) {
	const k = 3
	calls := 0
	grad := func(q, p []r2.Point) ([]r2.Point, error) {
		out := make([]r2.Point, len(p))
		if calls < k {
			for i := range out {
				out[i] = r2.Point{X: 1}
			}
		}
		calls++
		return out, nil
	}
	req := NewRequest([]r2.Point{{X: 5, Y: 5}}, []r2.Point{{X: 0, Y: 0}, {X: 1, Y: 0}})
	req.Horizon = 8
	req.Epsilon = 1e-3

	plan, err := PlanFIMAscent(context.Background(), nil, grad, req)
	test.That(t, err, test.ShouldBeNil)
	steps, _ := plan.Shape()
	test.That(t, steps, test.ShouldEqual, 8)

	at, converged := plan.Converged()
	test.That(t, converged, test.ShouldBeTrue)
	test.That(t, at, test.ShouldEqual, k)
	test.That(t, calls, test.ShouldEqual, k+1)

	settled := plan.Step(k)
	test.That(t, settled[0].X, test.ShouldAlmostEqual, k*req.MaxStep(), 1e-9)
	for s := k; s < steps; s++ {
		test.That(t, plan.Step(s), test.ShouldResemble, settled)
	}
	test.That(t, plan.Step(k-1), test.ShouldNotResemble, settled)
}

func TestPlanNoConvergenceUsesFullHorizon(t *testing.T) {
	req := NewRequest([]r2.Point{{X: 5, Y: 5}}, []r2.Point{{X: 0, Y: 0}})
	req.Horizon = 6
	plan, err := PlanFIMAscent(context.Background(), nil, constantGradient(r2.Point{Y: 10}), req)
	test.That(t, err, test.ShouldBeNil)
	_, converged := plan.Converged()
	test.That(t, converged, test.ShouldBeFalse)
	traj := plan.Trajectory(0)
	test.That(t, traj[5].Y, test.ShouldAlmostEqual, 5*req.MaxStep(), 1e-9)
	assertStepBound(t, plan, req.MaxStep())
}

func TestPlanSmallGradientNotClipped(t *testing.T) {
	req := NewRequest([]r2.Point{{X: 5, Y: 5}}, []r2.Point{{X: 0, Y: 0}})
	req.Horizon = 2
	req.Epsilon = 0
	req.StepGain = 0.5
	plan, err := PlanFIMAscent(context.Background(), nil, constantGradient(r2.Point{X: 0.01}), req)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, plan.Step(1)[0].X, test.ShouldAlmostEqual, 0.005)
}

func TestPlanHorizonOne(t *testing.T) {
	req := NewRequest([]r2.Point{{X: 5, Y: 5}}, []r2.Point{{X: 1, Y: 2}})
	req.Horizon = 1
	plan, err := PlanFIMAscent(context.Background(), nil, constantGradient(r2.Point{X: 1}), req)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, plan.Waypoints(), test.ShouldResemble, [][]r2.Point{{{X: 1, Y: 2}}})
}

func TestPlanInvalidGeometry(t *testing.T) {
	grad := constantGradient(r2.Point{X: 1})
	for _, tc := range []struct {
		name   string
		mutate func(*Request)
	}{
		{"no targets", func(r *Request) { r.Targets = nil }},
		{"nan target", func(r *Request) { r.Targets = []r2.Point{{X: math.NaN()}} }},
		{"robot count mismatch", func(r *Request) { r.NumRobots = 4 }},
		{"no robots", func(r *Request) { r.Positions = nil; r.NumRobots = 0 }},
		{"inf position", func(r *Request) { r.Positions[1] = r2.Point{Y: math.Inf(1)} }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := scenarioRequest()
			req.Positions = append([]r2.Point(nil), req.Positions...)
			tc.mutate(&req)
			plan, err := PlanFIMAscent(context.Background(), nil, grad, req)
			test.That(t, plan, test.ShouldBeNil)
			test.That(t, errors.Is(err, ErrInvalidGeometry), test.ShouldBeTrue)
		})
	}
}

func TestPlanInvalidRequest(t *testing.T) {
	grad := constantGradient(r2.Point{X: 1})
	for _, mutate := range []func(*Request){
		func(r *Request) { r.Horizon = 0 },
		func(r *Request) { r.MaxSpeed = 0 },
		func(r *Request) { r.MaxSpeed = math.NaN() },
		func(r *Request) { r.Dt = -1 },
		func(r *Request) { r.Epsilon = -1 },
		func(r *Request) { r.StepGain = -1 },
	} {
		req := scenarioRequest()
		mutate(&req)
		_, err := PlanFIMAscent(context.Background(), nil, grad, req)
		test.That(t, errors.Is(err, ErrInvalidRequest), test.ShouldBeTrue)
	}
	_, err := PlanFIMAscent(context.Background(), nil, nil, scenarioRequest())
	test.That(t, errors.Is(err, ErrInvalidRequest), test.ShouldBeTrue)
}

func TestPlanGradientProblems(t *testing.T) {
	req := scenarioRequest()

	// non-finite entries are zeroed, never fatal
	nanGrad := func(q, p []r2.Point) ([]r2.Point, error) {
		out := make([]r2.Point, len(p))
		out[0] = r2.Point{X: math.NaN()}
		out[1] = r2.Point{X: 1}
		out[2] = r2.Point{Y: math.Inf(1)}
		return out, nil
	}
	plan, err := PlanFIMAscent(context.Background(), logging.NewTestLogger(t), nanGrad, req)
	test.That(t, err, test.ShouldBeNil)
	traj0 := plan.Trajectory(0)
	test.That(t, traj0[4], test.ShouldResemble, traj0[0])
	traj1 := plan.Trajectory(1)
	test.That(t, traj1[4].X-traj1[0].X, test.ShouldAlmostEqual, 4*req.MaxStep(), 1e-9)

	// wrong shapes and model errors abort without a partial plan
	short := func(q, p []r2.Point) ([]r2.Point, error) { return make([]r2.Point, 1), nil }
	plan, err = PlanFIMAscent(context.Background(), nil, short, req)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, plan, test.ShouldBeNil)

	failing := func(q, p []r2.Point) ([]r2.Point, error) { return nil, errors.New("boom") }
	plan, err = PlanFIMAscent(context.Background(), nil, failing, req)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "boom")
	test.That(t, plan, test.ShouldBeNil)
}

func TestPlanContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := PlanFIMAscent(ctx, nil, constantGradient(r2.Point{X: 1}), scenarioRequest())
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}

func TestPlanDoesNotAliasInputs(t *testing.T) {
	req := scenarioRequest()
	positions := append([]r2.Point(nil), req.Positions...)
	req.Positions = positions
	mutating := func(q, p []r2.Point) ([]r2.Point, error) {
		p[0] = r2.Point{X: 100}
		q[0] = r2.Point{X: 100}
		return make([]r2.Point, len(p)), nil
	}
	plan, err := PlanFIMAscent(context.Background(), nil, mutating, req)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, positions[0], test.ShouldResemble, r2.Point{X: 0, Y: 0})
	test.That(t, plan.Step(0)[0], test.ShouldResemble, r2.Point{X: 0, Y: 0})
}
