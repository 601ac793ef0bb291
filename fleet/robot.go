// Package fleet holds the shared per-robot state written by transport handlers and read by
// the control loop.
package fleet

import (
	"sync"
	"sync/atomic"

	"github.com/golang/geo/r2"

	"go.viam.com/fimnav/fim"
)

// CoefficientField names one of the four sensor-response coefficients. They can arrive in
// separate messages.
type CoefficientField int

// The sensor-response coefficients.
const (
	CoefficientC1 CoefficientField = iota
	CoefficientC0
	CoefficientK
	CoefficientB
	numCoefficientFields
)

func (f CoefficientField) String() string {
	switch f {
	case CoefficientC1:
		return "C1"
	case CoefficientC0:
		return "C0"
	case CoefficientK:
		return "k"
	case CoefficientB:
		return "b"
	default:
		return "unknown"
	}
}

// Robot is the state of one mobile sensor. Every field is replaced atomically; nothing is
// atomic across fields, which is why Coefficients reports readiness.
type Robot struct {
	name         string
	historyLimit int

	latestPose atomic.Pointer[r2.Point]
	coefs      [numCoefficientFields]atomic.Pointer[float64]

	mu      sync.RWMutex
	history []r2.Point
}

// NewRobot returns a robot with no pose and no coefficients. historyLimit bounds the pose
// history; zero or less keeps every pose.
func NewRobot(name string, historyLimit int) *Robot {
	return &Robot{name: name, historyLimit: historyLimit}
}

// Name is the robot's unique identifier.
func (r *Robot) Name() string {
	return r.name
}

// DeliverPose replaces the most recent transport-delivered pose. It never blocks on readers.
func (r *Robot) DeliverPose(pt r2.Point) {
	r.latestPose.Store(&pt)
}

// LatestPose is the most recent delivered pose, if any.
func (r *Robot) LatestPose() (r2.Point, bool) {
	pt := r.latestPose.Load()
	if pt == nil {
		return r2.Point{}, false
	}
	return *pt, true
}

// UpdatePose appends the latest delivered pose to the history. It reports false and leaves the
// history alone when no pose was ever delivered.
func (r *Robot) UpdatePose() bool {
	pt, ok := r.LatestPose()
	if !ok {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, pt)
	if r.historyLimit > 0 && len(r.history) > r.historyLimit {
		// copy so the backing array does not grow without bound
		r.history = append([]r2.Point(nil), r.history[len(r.history)-r.historyLimit:]...)
	}
	return true
}

// CurrentPosition is the last entry of the pose history.
func (r *Robot) CurrentPosition() (r2.Point, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.history) == 0 {
		return r2.Point{}, false
	}
	return r.history[len(r.history)-1], true
}

// PoseHistory returns a copy of the pose history, oldest first.
func (r *Robot) PoseHistory() []r2.Point {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]r2.Point(nil), r.history...)
}

// SetCoefficient replaces a single coefficient.
func (r *Robot) SetCoefficient(field CoefficientField, value float64) {
	if field < 0 || field >= numCoefficientFields {
		return
	}
	r.coefs[field].Store(&value)
}

// SetCoefficients replaces all four coefficients, one field at a time.
func (r *Robot) SetCoefficients(c fim.Coefficients) {
	r.SetCoefficient(CoefficientC1, c.C1)
	r.SetCoefficient(CoefficientC0, c.C0)
	r.SetCoefficient(CoefficientK, c.K)
	r.SetCoefficient(CoefficientB, c.B)
}

// Coefficients returns the current coefficients and whether all four have been received.
func (r *Robot) Coefficients() (fim.Coefficients, bool) {
	var vals [numCoefficientFields]float64
	for i := range r.coefs {
		v := r.coefs[i].Load()
		if v == nil {
			return fim.Coefficients{}, false
		}
		vals[i] = *v
	}
	return fim.Coefficients{
		C1: vals[CoefficientC1],
		C0: vals[CoefficientC0],
		K:  vals[CoefficientK],
		B:  vals[CoefficientB],
	}, true
}

// CoefficientsReady reports whether all four coefficients have been received.
func (r *Robot) CoefficientsReady() bool {
	_, ok := r.Coefficients()
	return ok
}

// MissingCoefficients lists the coefficients not yet received.
func (r *Robot) MissingCoefficients() []CoefficientField {
	var missing []CoefficientField
	for i := range r.coefs {
		if r.coefs[i].Load() == nil {
			missing = append(missing, CoefficientField(i))
		}
	}
	return missing
}
