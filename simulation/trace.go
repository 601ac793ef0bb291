package simulation

import (
	"encoding/json"
	"io"

	"github.com/golang/geo/r2"
)

// Trace is the offline visualization log of a simulation run. Keys are names; entries are in
// step order.
type Trace struct {
	// EstLocsLog holds each algorithm's published estimates as flat [x0, y0, ...] arrays.
	EstLocsLog map[string][][]float64 `json:"est_locs_log"`
	// TargetLocs holds each target's true position.
	TargetLocs map[string][][2]float64 `json:"target_locs"`
	// SensorLocs holds each robot's true position.
	SensorLocs map[string][][2]float64 `json:"sensor_locs"`
	// Waypoints holds every trajectory dispatched to each robot.
	Waypoints map[string][][][2]float64 `json:"waypoints"`
}

func newTrace() *Trace {
	return &Trace{
		EstLocsLog: map[string][][]float64{},
		TargetLocs: map[string][][2]float64{},
		SensorLocs: map[string][][2]float64{},
		Waypoints:  map[string][][][2]float64{},
	}
}

func (tr *Trace) clone() Trace {
	out := newTrace()
	for k, v := range tr.EstLocsLog {
		out.EstLocsLog[k] = append([][]float64(nil), v...)
	}
	for k, v := range tr.TargetLocs {
		out.TargetLocs[k] = append([][2]float64(nil), v...)
	}
	for k, v := range tr.SensorLocs {
		out.SensorLocs[k] = append([][2]float64(nil), v...)
	}
	for k, v := range tr.Waypoints {
		out.Waypoints[k] = append([][][2]float64(nil), v...)
	}
	return *out
}

// WriteJSON writes the trace as one JSON object.
func (tr Trace) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(tr)
}

func pointToPair(pt r2.Point) [2]float64 {
	return [2]float64{pt.X, pt.Y}
}

func pointsToPairs(pts []r2.Point) [][2]float64 {
	out := make([][2]float64, len(pts))
	for i, pt := range pts {
		out[i] = pointToPair(pt)
	}
	return out
}
