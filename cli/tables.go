package cli

import (
	"fmt"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/jedib0t/go-pretty/v6/table"

	"go.viam.com/fimnav/config"
	"go.viam.com/fimnav/control"
	"go.viam.com/fimnav/fim"
	"go.viam.com/fimnav/motionplan"
)

func formatPoint(pt r2.Point) string {
	return fmt.Sprintf("(%.3f, %.3f)", pt.X, pt.Y)
}

// fleetTable prints one row per configured robot.
func fleetTable(cfg *config.Config) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Robot", "Start", "C1", "C0", "k", "b"})
	starts := cfg.StartPositions()
	for i, robot := range cfg.Robots {
		row := table.Row{i, robot.Name, formatPoint(starts[i])}
		if c := robot.Coefficients; c != nil {
			row = append(row, c.C1, c.C0, c.K, c.B)
		} else {
			row = append(row, "-", "-", "-", "-")
		}
		t.AppendRow(row)
	}
	return t.Render()
}

// planTable prints one row per waypoint step, with each robot's waypoint and the criterion
// value there.
func planTable(
	plan *motionplan.Plan,
	names []string,
	targets []r2.Point,
	coefs []fim.Coefficients,
	model *fim.Model,
	maxRows int,
) (string, error) {
	t := table.NewWriter()
	header := table.Row{"Step"}
	for _, name := range names {
		header = append(header, name)
	}
	header = append(header, "log det FIM")
	t.AppendHeader(header)

	steps, _ := plan.Shape()
	for s := 0; s < steps && (maxRows <= 0 || s < maxRows); s++ {
		positions := plan.Step(s)
		row := table.Row{s}
		for _, pt := range positions {
			row = append(row, formatPoint(pt))
		}
		criterion, err := model.Criterion(targets, positions, coefs)
		if err != nil {
			return "", err
		}
		row = append(row, fmt.Sprintf("%.4f", criterion))
		t.AppendRow(row)
	}
	return t.Render(), nil
}

// statsTable prints the control loop counters.
func statsTable(stats control.Stats) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRow(table.Row{"ticks", stats.Ticks})
	t.AppendRow(table.Row{"dispatched", stats.Dispatched})
	reasons := make([]string, 0, len(stats.Skipped))
	for reason := range stats.Skipped {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		t.AppendRow(table.Row{"skipped " + reason, stats.Skipped[control.SkipReason(reason)]})
	}
	t.AppendRow(table.Row{"plan time mean (ms)", fmt.Sprintf("%.3f", stats.PlanSeconds.Mean*1000)})
	t.AppendRow(table.Row{"plan time p95 (ms)", fmt.Sprintf("%.3f", stats.PlanSeconds.P95*1000)})
	return t.Render()
}

// positionsTable prints where the robots and targets ended up.
func positionsTable(names []string, robots, targets []r2.Point) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Name", "Position", "Distance to target 0"})
	for i, name := range names {
		dist := "-"
		if len(targets) > 0 {
			dist = fmt.Sprintf("%.3f", robots[i].Sub(targets[0]).Norm())
		}
		t.AppendRow(table.Row{name, formatPoint(robots[i]), dist})
	}
	for i, target := range targets {
		t.AppendRow(table.Row{fmt.Sprintf("target_%d", i), formatPoint(target), ""})
	}
	return t.Render()
}
