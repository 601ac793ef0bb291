package control

import (
	"github.com/golang/geo/r2"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"go.viam.com/fimnav/estimation"
	"go.viam.com/fimnav/fleet"
	"go.viam.com/fimnav/ros"
	"go.viam.com/fimnav/utils"
)

// HandlePose delivers a robot's latest position. The next tick appends it to the robot's
// pose history.
func (l *Loop) HandlePose(name string, pt r2.Point) error {
	return l.fleet.DeliverPose(name, pt)
}

// HandleEstimate records a flat [x0, y0, x1, y1, ...] target estimate. Malformed vectors
// are dropped and the algorithm's previous estimate is kept.
func (l *Loop) HandleEstimate(alg estimation.Algorithm, flat []float32) error {
	if err := l.estimates.Record32(alg, flat); err != nil {
		l.logger.Warnw("dropping target estimate", "algorithm", alg.String(), "error", err)
		return err
	}
	return nil
}

// HandleCoefficients sets every coefficient present in msg.
func (l *Loop) HandleCoefficients(name string, msg ros.SensorCoefficients) error {
	var errs error
	set := func(field fleet.CoefficientField, v *float64) {
		if v != nil {
			errs = multierr.Append(errs, l.fleet.SetCoefficient(name, field, *v))
		}
	}
	set(fleet.CoefficientC1, msg.C1)
	set(fleet.CoefficientC0, msg.C0)
	set(fleet.CoefficientK, msg.K)
	set(fleet.CoefficientB, msg.B)
	return errs
}

// Subscribe wires the loop's handlers to bus: one pose and one coefficient subscription per
// robot and one estimate subscription per algorithm. Messages may be typed or JSON-shaped.
// The returned function unsubscribes all of them.
func (l *Loop) Subscribe(bus *ros.Bus, topics ros.Topics, kind ros.PoseType) (func(), error) {
	var ids []uuid.UUID
	unsubscribe := func() {
		for _, id := range ids {
			bus.Unsubscribe(id)
		}
	}
	add := func(topic string, handler ros.Handler) error {
		id, err := bus.Subscribe(topic, handler)
		if err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	}

	for _, name := range l.fleet.Names() {
		if err := add(topics.PoseTopic(name), l.poseHandler(name, kind)); err != nil {
			unsubscribe()
			return nil, err
		}
		if err := add(topics.CoefficientsTopic(name), l.coefficientsHandler(name)); err != nil {
			unsubscribe()
			return nil, err
		}
	}
	for _, alg := range estimation.Algorithms() {
		if err := add(topics.EstimateTopic(alg.String()), l.estimateHandler(alg)); err != nil {
			unsubscribe()
			return nil, err
		}
	}
	return unsubscribe, nil
}

func (l *Loop) poseHandler(name string, kind ros.PoseType) ros.Handler {
	return func(msg interface{}) {
		pt, err := ros.PoseXY(kind, msg)
		if err != nil {
			l.logger.Warnw("dropping pose", "robot", name, "error", err)
			return
		}
		if err := l.HandlePose(name, pt); err != nil {
			l.logger.Warnw("dropping pose", "robot", name, "error", err)
		}
	}
}

func (l *Loop) coefficientsHandler(name string) ros.Handler {
	return func(msg interface{}) {
		coefs, err := toCoefficients(msg)
		if err == nil {
			err = l.HandleCoefficients(name, coefs)
		}
		if err != nil {
			l.logger.Warnw("dropping sensor coefficients", "robot", name, "error", err)
		}
	}
}

func (l *Loop) estimateHandler(alg estimation.Algorithm) ros.Handler {
	return func(msg interface{}) {
		data, err := toFloat32s(msg)
		if err != nil {
			l.logger.Warnw("dropping target estimate", "algorithm", alg.String(), "error", err)
			return
		}
		//nolint:errcheck
		l.HandleEstimate(alg, data)
	}
}

func toCoefficients(msg interface{}) (ros.SensorCoefficients, error) {
	switch m := msg.(type) {
	case ros.SensorCoefficients:
		return m, nil
	case *ros.SensorCoefficients:
		return *m, nil
	case map[string]interface{}:
		var coefs ros.SensorCoefficients
		err := ros.Decode(m, &coefs)
		return coefs, err
	default:
		return ros.SensorCoefficients{}, utils.NewUnexpectedTypeError[ros.SensorCoefficients](msg)
	}
}

func toFloat32s(msg interface{}) ([]float32, error) {
	switch m := msg.(type) {
	case ros.Float32MultiArray:
		return m.Data, nil
	case *ros.Float32MultiArray:
		return m.Data, nil
	case []float32:
		return m, nil
	case map[string]interface{}:
		var arr ros.Float32MultiArray
		if err := ros.Decode(m, &arr); err != nil {
			return nil, err
		}
		return arr.Data, nil
	default:
		return nil, utils.NewUnexpectedTypeError[ros.Float32MultiArray](msg)
	}
}
