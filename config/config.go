// Package config defines the controller's configuration file.
package config

import (
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/fimnav/control"
	"go.viam.com/fimnav/fim"
	"go.viam.com/fimnav/fleet"
	"go.viam.com/fimnav/ros"
	"go.viam.com/fimnav/simulation"
	"go.viam.com/fimnav/utils"
)

const (
	defaultAwakeFreq         = 10.
	defaultPlanningTimesteps = 50
	defaultMaxLinearSpeed    = 0.22
	defaultEpsilon           = 0.1
	defaultStepGain          = 1.
	maxAwakeFreq             = 200.
)

// RobotConfig describes one robot of the fleet.
type RobotConfig struct {
	Name string `json:"name"`
	// Coefficients seeds the robot's sensor model. Robots without them wait for coefficients
	// to arrive on their topic.
	Coefficients *fim.Coefficients `json:"coefficients,omitempty"`
	// Position is where the robot starts; used by one-shot planning and simulation.
	Position *[2]float64 `json:"position,omitempty"`
}

// Config is the whole controller configuration.
type Config struct {
	Robots            []RobotConfig `json:"robots"`
	PoseType          string        `json:"pose_type"`
	AwakeFreq         float64       `json:"awake_freq"`
	PlanningTimesteps int           `json:"planning_timesteps"`
	MaxLinearSpeed    float64       `json:"max_linear_speed"`
	// Epsilon is the planner's convergence tolerance. Nil means the default.
	Epsilon          *float64   `json:"epsilon,omitempty"`
	StepGain         float64    `json:"step_gain"`
	PoseHistoryLimit int        `json:"pose_history_limit"`
	Topics           ros.Topics `json:"topics"`
	// Targets are initial target positions, used by one-shot planning.
	Targets    [][2]float64       `json:"targets,omitempty"`
	Simulation *simulation.Config `json:"simulation,omitempty"`

	ConfigFilePath string `json:"-"`
}

// Default is a configuration with every scalar setting at its default and no robots.
// Decoding a file on top of it keeps the keys the file sets, explicit zeros included.
func Default() Config {
	eps := defaultEpsilon
	return Config{
		PoseType:          string(ros.PoseTypePoseStamped),
		AwakeFreq:         defaultAwakeFreq,
		PlanningTimesteps: defaultPlanningTimesteps,
		MaxLinearSpeed:    defaultMaxLinearSpeed,
		Epsilon:           &eps,
		StepGain:          defaultStepGain,
	}
}

// ApplyDefaults fills the fields whose zero value cannot be a setting: an empty pose type,
// a nil epsilon and a missing simulation block. Numeric zeros are left for Validate.
func (cfg *Config) ApplyDefaults() {
	if cfg.PoseType == "" {
		cfg.PoseType = string(ros.PoseTypePoseStamped)
	}
	if cfg.Epsilon == nil {
		eps := defaultEpsilon
		cfg.Epsilon = &eps
	}
	if cfg.Simulation == nil {
		sim := simulation.DefaultConfig()
		cfg.Simulation = &sim
	}
}

// Validate returns every problem with the configuration, each located by its path.
func (cfg *Config) Validate(path string) error {
	var errs error
	invalid := func(format string, args ...interface{}) {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path, errors.Errorf(format, args...)))
	}

	if len(cfg.Robots) == 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationFieldRequiredError(path, "robots"))
	}
	for i, robot := range cfg.Robots {
		robotPath := fmt.Sprintf("%s.robots.%d", path, i)
		if robot.Name == "" {
			errs = multierr.Append(errs, goutils.NewConfigValidationFieldRequiredError(robotPath, "name"))
		}
		if c := robot.Coefficients; c != nil && !utils.IsFinite(c.C1, c.C0, c.K, c.B) {
			errs = multierr.Append(errs, goutils.NewConfigValidationError(robotPath,
				errors.New("coefficients must be finite")))
		}
		if p := robot.Position; p != nil && !utils.IsFinite(p[0], p[1]) {
			errs = multierr.Append(errs, goutils.NewConfigValidationError(robotPath,
				errors.New("position must be finite")))
		}
	}
	for _, name := range lo.FindDuplicates(cfg.RobotNames()) {
		invalid("duplicate robot name %q", name)
	}
	if _, err := ros.ParsePoseType(cfg.PoseType); err != nil {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path, err))
	}
	if !(cfg.AwakeFreq > 0) || cfg.AwakeFreq > maxAwakeFreq {
		invalid("awake_freq must be in (0, %g], got %g", maxAwakeFreq, cfg.AwakeFreq)
	}
	if cfg.PlanningTimesteps < 1 {
		invalid("planning_timesteps must be at least 1, got %d", cfg.PlanningTimesteps)
	}
	if !(cfg.MaxLinearSpeed > 0) {
		invalid("max_linear_speed must be positive, got %g", cfg.MaxLinearSpeed)
	}
	if cfg.Epsilon != nil && !(*cfg.Epsilon >= 0) {
		invalid("epsilon must be non-negative, got %g", *cfg.Epsilon)
	}
	if cfg.StepGain < 0 {
		invalid("step_gain must be non-negative, got %g", cfg.StepGain)
	}
	if cfg.PoseHistoryLimit < 0 {
		invalid("pose_history_limit must be non-negative, got %d", cfg.PoseHistoryLimit)
	}
	for i, target := range cfg.Targets {
		if !utils.IsFinite(target[0], target[1]) {
			invalid("target %d must be finite", i)
		}
	}
	if cfg.Simulation != nil {
		errs = multierr.Append(errs, cfg.Simulation.Validate(path+".simulation"))
	}
	return errs
}

// RobotNames lists the robots in configuration order.
func (cfg *Config) RobotNames() []string {
	return lo.Map(cfg.Robots, func(r RobotConfig, _ int) string { return r.Name })
}

// PoseKind is the parsed pose representation.
func (cfg *Config) PoseKind() ros.PoseType {
	kind, err := ros.ParsePoseType(cfg.PoseType)
	if err != nil {
		return ros.PoseTypePoseStamped
	}
	return kind
}

// PlanningDt is the time between waypoints, the inverse of the control rate.
func (cfg *Config) PlanningDt() float64 {
	return 1 / cfg.AwakeFreq
}

// TopicLayout is the configured topic templates with defaults for the pose representation.
func (cfg *Config) TopicLayout() ros.Topics {
	return cfg.Topics.Merge(ros.DefaultTopics(cfg.PoseKind()))
}

// LoopConfig is the control loop's share of the configuration.
func (cfg *Config) LoopConfig() control.Config {
	lc := control.Config{
		Frequency: cfg.AwakeFreq,
		Horizon:   cfg.PlanningTimesteps,
		MaxSpeed:  cfg.MaxLinearSpeed,
		Epsilon:   defaultEpsilon,
		StepGain:  cfg.StepGain,
	}
	if cfg.Epsilon != nil {
		lc.Epsilon = *cfg.Epsilon
	}
	return lc
}

// NewFleet builds the shared fleet state, seeding any configured coefficients.
func (cfg *Config) NewFleet() (*fleet.State, error) {
	state, err := fleet.NewState(cfg.RobotNames(), cfg.PoseHistoryLimit)
	if err != nil {
		return nil, err
	}
	for _, robot := range cfg.Robots {
		if robot.Coefficients == nil {
			continue
		}
		if err := state.SetCoefficients(robot.Name, *robot.Coefficients); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// StartPositions returns each robot's configured position. Robots without one are spaced
// along the x axis.
func (cfg *Config) StartPositions() []r2.Point {
	return lo.Map(cfg.Robots, func(r RobotConfig, i int) r2.Point {
		if r.Position == nil {
			return r2.Point{X: 5 * float64(i)}
		}
		return r2.Point{X: r.Position[0], Y: r.Position[1]}
	})
}

// TargetPoints returns the configured initial targets.
func (cfg *Config) TargetPoints() []r2.Point {
	return lo.Map(cfg.Targets, func(t [2]float64, _ int) r2.Point { return r2.Point{X: t[0], Y: t[1]} })
}

// RobotSpecs describes the fleet for simulation. Robots without configured coefficients get
// defaultCoefs.
func (cfg *Config) RobotSpecs(defaultCoefs fim.Coefficients) []simulation.RobotSpec {
	starts := cfg.StartPositions()
	return lo.Map(cfg.Robots, func(r RobotConfig, i int) simulation.RobotSpec {
		coefs := defaultCoefs
		if r.Coefficients != nil {
			coefs = *r.Coefficients
		}
		return simulation.RobotSpec{Name: r.Name, Start: starts[i], Coefficients: coefs}
	})
}
