package ros

import (
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// PoseType selects which message a robot's pose arrives as.
type PoseType string

// The supported pose representations.
const (
	// PoseTypePose is a bare geometry_msgs/Pose.
	PoseTypePose = PoseType("pose")
	// PoseTypePoseStamped is geometry_msgs/PoseStamped, e.g. from motion capture.
	PoseTypePoseStamped = PoseType("pose_stamped")
	// PoseTypeOdom is nav_msgs/Odometry, e.g. from wheel odometry.
	PoseTypeOdom = PoseType("odom")
)

// PoseTypes lists the supported pose representations.
func PoseTypes() []PoseType {
	return []PoseType{PoseTypePose, PoseTypePoseStamped, PoseTypeOdom}
}

// ParsePoseType parses a pose representation name, ignoring case and surrounding space.
func ParsePoseType(s string) (PoseType, error) {
	kind := PoseType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range PoseTypes() {
		if kind == known {
			return kind, nil
		}
	}
	return "", errors.Errorf("unknown pose type %q, expected one of %v", s, PoseTypes())
}

// ToXY extracts the planar position from any pose message.
func ToXY(msg interface{}) (r2.Point, error) {
	switch m := msg.(type) {
	case Pose:
		return r2.Point{X: m.Position.X, Y: m.Position.Y}, nil
	case *Pose:
		return ToXY(*m)
	case PoseStamped:
		return ToXY(m.Pose)
	case *PoseStamped:
		return ToXY(m.Pose)
	case Odometry:
		return ToXY(m.Pose.Pose)
	case *Odometry:
		return ToXY(m.Pose.Pose)
	default:
		return r2.Point{}, errors.Errorf("%T is not a pose message", msg)
	}
}

// NewPoseMessage builds the message of the given representation holding pt.
func NewPoseMessage(kind PoseType, pt r2.Point, header Header) (interface{}, error) {
	pose := Pose{Position: Point{X: pt.X, Y: pt.Y}, Orientation: Quaternion{W: 1}}
	switch kind {
	case PoseTypePose:
		return pose, nil
	case PoseTypePoseStamped:
		return PoseStamped{Header: header, Pose: pose}, nil
	case PoseTypeOdom:
		return Odometry{Header: header, Pose: PoseWithCovariance{Pose: pose}}, nil
	default:
		return nil, errors.Errorf("unknown pose type %q", kind)
	}
}

// Decode fills out from a JSON-shaped message such as those relayed by rosbridge.
func Decode(raw map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

// DecodePose decodes a JSON-shaped message of the given representation.
func DecodePose(kind PoseType, raw map[string]interface{}) (interface{}, error) {
	var err error
	var msg interface{}
	switch kind {
	case PoseTypePose:
		var m Pose
		err = Decode(raw, &m)
		msg = m
	case PoseTypePoseStamped:
		var m PoseStamped
		err = Decode(raw, &m)
		msg = m
	case PoseTypeOdom:
		var m Odometry
		err = Decode(raw, &m)
		msg = m
	default:
		return nil, errors.Errorf("unknown pose type %q", kind)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s message", kind)
	}
	return msg, nil
}

// PoseXY accepts a typed pose message or its JSON-shaped form and returns the planar position.
func PoseXY(kind PoseType, msg interface{}) (r2.Point, error) {
	if raw, ok := msg.(map[string]interface{}); ok {
		decoded, err := DecodePose(kind, raw)
		if err != nil {
			return r2.Point{}, err
		}
		msg = decoded
	}
	return ToXY(msg)
}

// String implements fmt.Stringer.
func (kind PoseType) String() string {
	return string(kind)
}

// NewPath builds a Path through pts, every pose stamped with header.
func NewPath(header Header, pts []r2.Point) Path {
	path := Path{Header: header, Poses: make([]PoseStamped, 0, len(pts))}
	for _, pt := range pts {
		path.Poses = append(path.Poses, PoseStamped{
			Header: header,
			Pose:   Pose{Position: Point{X: pt.X, Y: pt.Y}, Orientation: Quaternion{W: 1}},
		})
	}
	return path
}

// Points returns the planar positions along the path.
func (p Path) Points() []r2.Point {
	pts := make([]r2.Point, 0, len(p.Poses))
	for _, pose := range p.Poses {
		pts = append(pts, r2.Point{X: pose.Pose.Position.X, Y: pose.Pose.Position.Y})
	}
	return pts
}
