package config

import (
	"strings"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"go.viam.com/fimnav/fim"
	"go.viam.com/fimnav/logging"
	"go.viam.com/fimnav/ros"
)

func TestRead(t *testing.T) {
	t.Setenv("FIMNAV_TEST_ROBOT", "mobile_2")
	logger := logging.NewTestLogger(t)

	cfg, err := Read("testdata/fleet.json", logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, "testdata/fleet.json")
	test.That(t, cfg.RobotNames(), test.ShouldResemble, []string{"mobile_0", "mobile_1", "mobile_2"})
	test.That(t, cfg.PoseKind(), test.ShouldEqual, ros.PoseTypeOdom)
	test.That(t, cfg.PlanningDt(), test.ShouldAlmostEqual, 0.2)
	test.That(t, cfg.MaxLinearSpeed, test.ShouldEqual, 0.22)
	test.That(t, cfg.StepGain, test.ShouldEqual, 1.0)
	test.That(t, cfg.Simulation, test.ShouldNotBeNil)

	loop := cfg.LoopConfig()
	test.That(t, loop.Frequency, test.ShouldEqual, 5.0)
	test.That(t, loop.Horizon, test.ShouldEqual, 20)
	test.That(t, loop.Epsilon, test.ShouldEqual, 0.001)
	test.That(t, loop.Dt(), test.ShouldAlmostEqual, cfg.PlanningDt())
	test.That(t, loop.Validate(), test.ShouldBeNil)

	topics := cfg.TopicLayout()
	test.That(t, topics.WaypointsTopic("mobile_1"), test.ShouldEqual, "/fleet/mobile_1/plan")
	test.That(t, topics.PoseTopic("mobile_1"), test.ShouldEqual, "/mobile_1/odom")

	test.That(t, cfg.StartPositions(), test.ShouldResemble, []r2.Point{{X: 0}, {X: 5}, {X: 10}})
	test.That(t, cfg.TargetPoints(), test.ShouldResemble, []r2.Point{{X: 5, Y: 5}})

	state, err := cfg.NewFleet()
	test.That(t, err, test.ShouldBeNil)
	seeded, ok := state.Robot("mobile_0")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, seeded.CoefficientsReady(), test.ShouldBeTrue)
	unseeded, ok := state.Robot("mobile_1")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, unseeded.CoefficientsReady(), test.ShouldBeFalse)

	fallback := fim.Coefficients{C1: -1, C0: 0, K: 2, B: -1}
	specs := cfg.RobotSpecs(fallback)
	test.That(t, specs[0].Coefficients, test.ShouldResemble, fim.Coefficients{C1: -0.3, C0: 0.1, K: 1, B: -2})
	test.That(t, specs[1].Coefficients, test.ShouldResemble, fallback)
	test.That(t, specs[2].Start, test.ShouldResemble, r2.Point{X: 10})
}

func TestReadErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	_, err := Read("testdata/missing.json", logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = FromReader("", strings.NewReader(`{"robots": [`), logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = FromReader("", strings.NewReader(`{"robots": [{"name": "a"}], "unknown_field": 1}`), logger)
	test.That(t, err, test.ShouldNotBeNil)

	for _, tc := range []struct {
		field string
		want  string
	}{
		{`"awake_freq": 0`, "awake_freq"},
		{`"planning_timesteps": 0`, "planning_timesteps"},
		{`"max_linear_speed": 0`, "max_linear_speed"},
		{`"max_linear_speed": -0.1`, "max_linear_speed"},
	} {
		t.Run(tc.field, func(t *testing.T) {
			cfg, err := FromReader("", strings.NewReader(`{"robots": [{"name": "a"}], `+tc.field+`}`), logger)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.want)
			test.That(t, cfg, test.ShouldBeNil)
		})
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := FromReader("", strings.NewReader(`{"robots": [{"name": "a"}]}`), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.PoseKind(), test.ShouldEqual, ros.PoseTypePoseStamped)
	test.That(t, cfg.AwakeFreq, test.ShouldEqual, 10.0)
	test.That(t, cfg.PlanningTimesteps, test.ShouldEqual, 50)
	test.That(t, cfg.MaxLinearSpeed, test.ShouldEqual, 0.22)
	test.That(t, *cfg.Epsilon, test.ShouldEqual, 0.1)
	test.That(t, cfg.PlanningDt(), test.ShouldAlmostEqual, 0.1)
	test.That(t, cfg.PoseHistoryLimit, test.ShouldEqual, 0)

	// an explicit zero tolerance is kept
	cfg, err = FromReader("", strings.NewReader(`{"robots": [{"name": "a"}], "epsilon": 0}`), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.LoopConfig().Epsilon, test.ShouldEqual, 0.0)

	// so is an explicit zero step gain
	cfg, err = FromReader("", strings.NewReader(`{"robots": [{"name": "a"}], "step_gain": 0}`), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.StepGain, test.ShouldEqual, 0.0)
}

func TestValidate(t *testing.T) {
	eps := -1.0
	cfg := Config{
		Robots:            []RobotConfig{{Name: "a"}, {Name: "a"}, {}},
		PoseType:          "gps",
		AwakeFreq:         -1,
		PlanningTimesteps: -3,
		MaxLinearSpeed:    -0.2,
		Epsilon:           &eps,
		StepGain:          -1,
		PoseHistoryLimit:  -1,
	}
	err := cfg.Validate("config")
	test.That(t, err, test.ShouldNotBeNil)
	for _, want := range []string{
		"duplicate robot name", "name", "gps", "awake_freq", "planning_timesteps",
		"max_linear_speed", "epsilon", "step_gain", "pose_history_limit",
	} {
		test.That(t, err.Error(), test.ShouldContainSubstring, want)
	}

	empty := Config{}
	empty.ApplyDefaults()
	err = empty.Validate("config")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "robots")

	tooFast := Default()
	tooFast.Robots = []RobotConfig{{Name: "a"}}
	tooFast.AwakeFreq = 1000
	tooFast.ApplyDefaults()
	test.That(t, tooFast.Validate("config"), test.ShouldNotBeNil)

	ok := Default()
	ok.Robots = []RobotConfig{{Name: "a"}}
	ok.ApplyDefaults()
	test.That(t, ok.Validate("config"), test.ShouldBeNil)
}
