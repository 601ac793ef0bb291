package cli

import (
	"fmt"
	"os"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/fimnav/config"
	"go.viam.com/fimnav/control"
	"go.viam.com/fimnav/estimation"
	"go.viam.com/fimnav/fim"
	"go.viam.com/fimnav/logging"
	"go.viam.com/fimnav/motionplan"
	"go.viam.com/fimnav/ros"
	"go.viam.com/fimnav/simulation"
)

func newLogger(c *cli.Context) logging.Logger {
	if c.Bool(flagDebug) {
		return logging.NewDebugLogger("fimnav")
	}
	return logging.NewBlankLogger("fimnav")
}

func readConfig(c *cli.Context, logger logging.Logger) (*config.Config, error) {
	cfg, err := config.Read(c.String(flagConfig), logger)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", c.String(flagConfig))
	}
	return cfg, nil
}

// ValidateAction is the corresponding Action for 'validate'.
func ValidateAction(c *cli.Context) error {
	logger := newLogger(c)
	cfg, err := readConfig(c, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s is valid: %d robots, pose type %s, %g Hz, horizon %d\n",
		cfg.ConfigFilePath, len(cfg.Robots), cfg.PoseKind(), cfg.AwakeFreq, cfg.PlanningTimesteps)
	fmt.Fprintln(c.App.Writer, fleetTable(cfg))
	return nil
}

// PlanAction is the corresponding Action for 'plan'.
func PlanAction(c *cli.Context) error {
	logger := newLogger(c)
	cfg, err := readConfig(c, logger)
	if err != nil {
		return err
	}
	if len(cfg.Targets) == 0 {
		return errors.New("plan needs initial targets in the config")
	}
	coefs := make([]fim.Coefficients, 0, len(cfg.Robots))
	for _, robot := range cfg.Robots {
		if robot.Coefficients == nil {
			return errors.Errorf("plan needs coefficients for robot %q in the config", robot.Name)
		}
		coefs = append(coefs, *robot.Coefficients)
	}

	lc := cfg.LoopConfig()
	req := motionplan.NewRequest(cfg.TargetPoints(), cfg.StartPositions())
	req.Horizon = lc.Horizon
	req.MaxSpeed = lc.MaxSpeed
	req.Dt = lc.Dt()
	req.Epsilon = lc.Epsilon
	req.StepGain = lc.StepGain

	model := fim.NewModel()
	planner := motionplan.NewFIMAscentPlanner(logger.Sublogger("planner"))
	plan, err := planner.Plan(c.Context, fim.Bind(model, coefs), req)
	if err != nil {
		return err
	}
	steps, robots := plan.Shape()
	fmt.Fprintf(c.App.Writer, "planned %d steps for %d robots (%s)\n", steps, robots, req)
	if at, ok := plan.Converged(); ok {
		fmt.Fprintf(c.App.Writer, "converged at step %d\n", at)
	}
	out, err := planTable(plan, cfg.RobotNames(), req.Targets, coefs, model, c.Int(flagRows))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, out)
	return nil
}

// SimulateAction is the corresponding Action for 'simulate'.
func SimulateAction(c *cli.Context) error {
	logger := newLogger(c)
	cfg, err := readConfig(c, logger)
	if err != nil {
		return err
	}

	bus := ros.NewBus(logger.Sublogger("bus"))
	defer bus.Close()
	topics := cfg.TopicLayout()

	state, err := cfg.NewFleet()
	if err != nil {
		return err
	}
	loop, err := control.NewLoop(
		logger.Sublogger("control"),
		cfg.LoopConfig(),
		state,
		estimation.NewAggregator(nil),
		control.NewBusDispatcher(bus, topics),
	)
	if err != nil {
		return err
	}
	unsubscribe, err := loop.Subscribe(bus, topics, cfg.PoseKind())
	if err != nil {
		return err
	}
	defer unsubscribe()

	world, err := simulation.NewWorld(logger.Sublogger("simulation"), *cfg.Simulation, simulation.Setup{
		Robots:   cfg.RobotSpecs(simulation.DefaultCoefficients),
		Bus:      bus,
		Topics:   topics,
		PoseType: cfg.PoseKind(),
		MaxSpeed: cfg.MaxLinearSpeed,
		Dt:       cfg.PlanningDt(),
	})
	if err != nil {
		return err
	}
	defer world.Close()
	logger.Debugw("simulation wired", "topics", bus.Topics())

	if d := c.Duration(flagRealtime); d > 0 {
		if err := loop.Start(); err != nil {
			return err
		}
		world.Start(clock.New())
		goutils.SelectContextOrWait(c.Context, d)
		world.Close()
		if err := loop.Close(c.Context); err != nil {
			return err
		}
	} else {
		steps := c.Int(flagSteps)
		if steps < 1 {
			return errors.Errorf("--%s must be at least 1", flagSteps)
		}
		for i := 0; i < steps; i++ {
			if err := world.Step(); err != nil {
				return err
			}
			if _, err := loop.Tick(c.Context); err != nil {
				return err
			}
		}
	}

	fmt.Fprintf(c.App.Writer, "simulated %d steps\n", world.Steps())
	fmt.Fprintln(c.App.Writer, statsTable(loop.Stats()))
	fmt.Fprintln(c.App.Writer, positionsTable(cfg.RobotNames(), world.Positions(), world.TargetPositions()))

	if path := c.String(flagTrace); path != "" {
		if err := writeTrace(path, world.Trace()); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "wrote trace to %s\n", path)
	}
	return nil
}

// writeTrace writes trace to a new file at path. A failed close is reported since it may
// have lost buffered data.
func writeTrace(path string, trace simulation.Trace) error {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := multierr.Combine(trace.WriteJSON(f), f.Close()); err != nil {
		return errors.Wrapf(err, "writing trace to %s", path)
	}
	return nil
}
