package motionplan

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// Plan is the output of one planning call: Horizon waypoints for each of NumRobots robots.
// Waypoint 0 is the robots' positions when planning started.
type Plan struct {
	waypoints   [][]r2.Point // [step][robot]
	convergedAt int
}

// NewPlan wraps a T×R waypoint grid. Every step must hold the same number of robots.
func NewPlan(waypoints [][]r2.Point, convergedAt int) (*Plan, error) {
	if len(waypoints) == 0 {
		return nil, errors.New("plan needs at least one step")
	}
	for t, step := range waypoints {
		if len(step) != len(waypoints[0]) {
			return nil, errors.Errorf("step %d has %d robots, step 0 has %d", t, len(step), len(waypoints[0]))
		}
	}
	return &Plan{waypoints: waypoints, convergedAt: convergedAt}, nil
}

// Shape returns the horizon T and the robot count R.
func (p *Plan) Shape() (int, int) {
	return len(p.waypoints), len(p.waypoints[0])
}

// Waypoints returns a copy of the full T×R grid.
func (p *Plan) Waypoints() [][]r2.Point {
	out := make([][]r2.Point, len(p.waypoints))
	for t, step := range p.waypoints {
		out[t] = append([]r2.Point(nil), step...)
	}
	return out
}

// Step returns every robot's waypoint at step t.
func (p *Plan) Step(t int) []r2.Point {
	return append([]r2.Point(nil), p.waypoints[t]...)
}

// Trajectory returns the T waypoints of one robot.
func (p *Plan) Trajectory(robot int) []r2.Point {
	traj := make([]r2.Point, 0, len(p.waypoints))
	for _, step := range p.waypoints {
		traj = append(traj, step[robot])
	}
	return traj
}

// Converged reports whether ascent stopped early and, if so, the last step at which robots
// moved. Waypoints after that step repeat it.
func (p *Plan) Converged() (int, bool) {
	return p.convergedAt, p.convergedAt >= 0
}

// Flatten lays the plan out as a T*R*2 array in step, robot, axis order.
func (p *Plan) Flatten() []float64 {
	steps, robots := p.Shape()
	flat := make([]float64, 0, steps*robots*2)
	for _, step := range p.waypoints {
		for _, pt := range step {
			flat = append(flat, pt.X, pt.Y)
		}
	}
	return flat
}
