package ros

import "strings"

const (
	robotPlaceholder     = "{robot}"
	algorithmPlaceholder = "{alg}"
)

// Topics holds the topic name templates of the system. "{robot}" and "{alg}" are replaced
// by the robot name and estimation algorithm.
type Topics struct {
	Estimate     string `json:"estimate,omitempty"`
	Pose         string `json:"pose,omitempty"`
	Coefficients string `json:"coefficients,omitempty"`
	Waypoints    string `json:"waypoints,omitempty"`
}

// DefaultTopics returns the standard topic layout. The pose topic depends on where poses of
// the given representation usually come from.
func DefaultTopics(kind PoseType) Topics {
	pose := "/{robot}/pose"
	switch kind {
	case PoseTypePoseStamped:
		pose = "/vrpn_client_node/{robot}/pose"
	case PoseTypeOdom:
		pose = "/{robot}/odom"
	case PoseTypePose:
	}
	return Topics{
		Estimate:     "/location_estimation/{alg}",
		Pose:         pose,
		Coefficients: "/{robot}/sensor_coefs",
		Waypoints:    "/{robot}/waypoints",
	}
}

// Merge returns t with every empty template filled from defaults.
func (t Topics) Merge(defaults Topics) Topics {
	if t.Estimate == "" {
		t.Estimate = defaults.Estimate
	}
	if t.Pose == "" {
		t.Pose = defaults.Pose
	}
	if t.Coefficients == "" {
		t.Coefficients = defaults.Coefficients
	}
	if t.Waypoints == "" {
		t.Waypoints = defaults.Waypoints
	}
	return t
}

// EstimateTopic is where the named algorithm publishes target estimates.
func (t Topics) EstimateTopic(alg string) string {
	return strings.ReplaceAll(t.Estimate, algorithmPlaceholder, alg)
}

// PoseTopic is where a robot's pose arrives.
func (t Topics) PoseTopic(robot string) string {
	return strings.ReplaceAll(t.Pose, robotPlaceholder, robot)
}

// CoefficientsTopic is where a robot's sensor coefficients arrive.
func (t Topics) CoefficientsTopic(robot string) string {
	return strings.ReplaceAll(t.Coefficients, robotPlaceholder, robot)
}

// WaypointsTopic is where a robot's planned waypoints are published.
func (t Topics) WaypointsTopic(robot string) string {
	return strings.ReplaceAll(t.Waypoints, robotPlaceholder, robot)
}
