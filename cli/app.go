// Package cli contains the fimnav command line: validating a fleet configuration, planning
// once from it, and running the controller against a simulated fleet.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	flagConfig   = "config"
	flagDebug    = "debug"
	flagSteps    = "steps"
	flagTrace    = "trace"
	flagRealtime = "realtime"
	flagRows     = "rows"
)

var app = &cli.App{
	Name:            "fimnav",
	Usage:           "plan sensor fleet motion that maximizes target localization information",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     flagConfig,
			Aliases:  []string{"c"},
			Usage:    "load configuration from `FILE`",
			Required: true,
		},
		&cli.BoolFlag{
			Name:    flagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:   "validate",
			Usage:  "check a configuration file and print the fleet",
			Action: ValidateAction,
		},
		{
			Name:  "plan",
			Usage: "plan once from the configured robot positions and targets",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  flagRows,
					Usage: "print at most `N` waypoint steps",
					Value: 10,
				},
			},
			Action: PlanAction,
		},
		{
			Name:  "simulate",
			Usage: "run the controller against a simulated fleet, target and estimators",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  flagSteps,
					Usage: "number of lockstep simulation steps",
					Value: 100,
				},
				&cli.DurationFlag{
					Name:  flagRealtime,
					Usage: "instead of lockstep, run on the wall clock for `DURATION`",
				},
				&cli.StringFlag{
					Name:  flagTrace,
					Usage: "write the visualization trace to `FILE` as JSON",
				},
			},
			Action: SimulateAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
