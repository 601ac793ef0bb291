package fleet

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/fimnav/fim"
)

// ErrUnknownRobot is returned by updates naming a robot outside the configured fleet.
var ErrUnknownRobot = errors.New("unknown robot")

// Updater is the write side of the fleet state used by transport handlers. Every method
// replaces a single field and returns immediately.
type Updater interface {
	DeliverPose(name string, pt r2.Point) error
	SetCoefficient(name string, field CoefficientField, value float64) error
	SetCoefficients(name string, c fim.Coefficients) error
}

// State is the fleet, fixed at startup.
type State struct {
	names  []string
	robots map[string]*Robot
}

var _ Updater = (*State)(nil)

// NewState creates the state for the named robots in the given order. Names must be
// unique and non-empty.
func NewState(names []string, historyLimit int) (*State, error) {
	if len(names) == 0 {
		return nil, errors.New("fleet needs at least one robot")
	}
	if dups := lo.FindDuplicates(names); len(dups) > 0 {
		return nil, errors.Errorf("duplicate robot names %v", dups)
	}
	if lo.Contains(names, "") {
		return nil, errors.New("robot names must be non-empty")
	}
	s := &State{names: append([]string(nil), names...), robots: make(map[string]*Robot, len(names))}
	for _, name := range names {
		s.robots[name] = NewRobot(name, historyLimit)
	}
	return s, nil
}

// Names returns the robot names in configuration order.
func (s *State) Names() []string {
	return append([]string(nil), s.names...)
}

// Len is the configured fleet size.
func (s *State) Len() int {
	return len(s.names)
}

// Robot looks up a robot by name.
func (s *State) Robot(name string) (*Robot, bool) {
	r, ok := s.robots[name]
	return r, ok
}

func (s *State) robot(name string) (*Robot, error) {
	r, ok := s.robots[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownRobot, "%q", name)
	}
	return r, nil
}

// DeliverPose records the latest pose delivered for a robot.
func (s *State) DeliverPose(name string, pt r2.Point) error {
	r, err := s.robot(name)
	if err != nil {
		return err
	}
	r.DeliverPose(pt)
	return nil
}

// SetCoefficient replaces one coefficient of a robot.
func (s *State) SetCoefficient(name string, field CoefficientField, value float64) error {
	r, err := s.robot(name)
	if err != nil {
		return err
	}
	r.SetCoefficient(field, value)
	return nil
}

// SetCoefficients replaces all coefficients of a robot.
func (s *State) SetCoefficients(name string, c fim.Coefficients) error {
	r, err := s.robot(name)
	if err != nil {
		return err
	}
	r.SetCoefficients(c)
	return nil
}

// RobotSnapshot is what the control loop sees of one robot at the start of a tick.
type RobotSnapshot struct {
	Name              string
	Position          r2.Point
	HasPosition       bool
	Coefficients      fim.Coefficients
	CoefficientsReady bool
	// Missing lists the coefficients not yet received.
	Missing []CoefficientField
}

// Snapshot appends each robot's latest delivered pose to its history and then reads every
// robot once, in configuration order. Only the control loop should call it.
func (s *State) Snapshot() []RobotSnapshot {
	out := make([]RobotSnapshot, 0, len(s.names))
	for _, name := range s.names {
		r := s.robots[name]
		r.UpdatePose()
		snap := RobotSnapshot{Name: name}
		snap.Position, snap.HasPosition = r.CurrentPosition()
		snap.Coefficients, snap.CoefficientsReady = r.Coefficients()
		if !snap.CoefficientsReady {
			snap.Missing = r.MissingCoefficients()
		}
		out = append(out, snap)
	}
	return out
}

// Located filters a snapshot down to the robots that have reported a pose.
func Located(snaps []RobotSnapshot) []RobotSnapshot {
	return lo.Filter(snaps, func(s RobotSnapshot, _ int) bool { return s.HasPosition })
}

// NotReady maps the robots in snaps whose coefficients are incomplete to the names of the
// coefficients they still lack.
func NotReady(snaps []RobotSnapshot) map[string][]string {
	pending := lo.Filter(snaps, func(s RobotSnapshot, _ int) bool { return !s.CoefficientsReady })
	return lo.SliceToMap(pending, func(s RobotSnapshot) (string, []string) {
		return s.Name, lo.Map(s.Missing, func(f CoefficientField, _ int) string { return f.String() })
	})
}
