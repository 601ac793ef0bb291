package control

import (
	"context"

	"go.uber.org/multierr"

	"go.viam.com/fimnav/estimation"
	"go.viam.com/fimnav/logging"
	"go.viam.com/fimnav/motionplan"
	"go.viam.com/fimnav/ros"
)

// waypointFrame is the frame planned waypoints are expressed in.
const waypointFrame = "map"

// TickPlan is the output of a control cycle that planned successfully.
type TickPlan struct {
	Tick uint64
	// Robots names the plan's columns.
	Robots []string
	Source estimation.Algorithm
	Plan   *motionplan.Plan
}

// A Dispatcher hands a plan to the robots' waypoint trackers. It is called from the
// control loop and should not block for long.
type Dispatcher interface {
	Dispatch(ctx context.Context, plan TickPlan) error
}

// LoggingDispatcher only logs the plans it receives.
type LoggingDispatcher struct {
	logger logging.Logger
}

// NewLoggingDispatcher returns a Dispatcher that logs each robot's next waypoint.
func NewLoggingDispatcher(logger logging.Logger) *LoggingDispatcher {
	return &LoggingDispatcher{logger: logger}
}

// Dispatch implements Dispatcher.
func (d *LoggingDispatcher) Dispatch(ctx context.Context, plan TickPlan) error {
	steps, _ := plan.Plan.Shape()
	for i, name := range plan.Robots {
		traj := plan.Plan.Trajectory(i)
		next := traj[0]
		if steps > 1 {
			next = traj[1]
		}
		d.logger.CDebugw(ctx, "waypoints", "robot", name, "next_x", next.X, "next_y", next.Y, "steps", steps)
	}
	return nil
}

// BusDispatcher publishes each robot's trajectory as a ros.Path on its waypoints topic.
type BusDispatcher struct {
	bus    *ros.Bus
	topics ros.Topics
}

// NewBusDispatcher returns a Dispatcher publishing on bus.
func NewBusDispatcher(bus *ros.Bus, topics ros.Topics) *BusDispatcher {
	return &BusDispatcher{bus: bus, topics: topics}
}

// Dispatch implements Dispatcher. Every robot is attempted even when publishing to one fails.
func (d *BusDispatcher) Dispatch(ctx context.Context, plan TickPlan) error {
	// ROS sequence numbers are 32 bits and wrap; the tick count does not.
	header := ros.Header{Seq: uint32(plan.Tick), FrameID: waypointFrame}
	var errs error
	for i, name := range plan.Robots {
		path := ros.NewPath(header, plan.Plan.Trajectory(i))
		if _, err := d.bus.Publish(d.topics.WaypointsTopic(name), path); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
