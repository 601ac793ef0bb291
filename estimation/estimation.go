// Package estimation keeps the latest target-location estimate from each estimation
// algorithm and resolves them to the single estimate the planner uses.
package estimation

import (
	"strings"
	"sync/atomic"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/fimnav/spatialmath"
)

// ErrUnavailable means no algorithm has reported an estimate yet. Planning waits for one.
var ErrUnavailable = errors.New("no target estimate available")

// Algorithm identifies a location estimation algorithm.
type Algorithm int

// The known estimation algorithms.
const (
	AlgorithmMultiLateration Algorithm = iota
	AlgorithmIntersection
	AlgorithmEKF
	numAlgorithms
)

// Algorithms lists every known algorithm.
func Algorithms() []Algorithm {
	return []Algorithm{AlgorithmMultiLateration, AlgorithmIntersection, AlgorithmEKF}
}

func (a Algorithm) String() string {
	switch a {
	case AlgorithmMultiLateration:
		return "multi_lateration"
	case AlgorithmIntersection:
		return "intersection"
	case AlgorithmEKF:
		return "ekf"
	default:
		return "unknown"
	}
}

// ParseAlgorithm reads an algorithm name as used in topic names.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "multi_lateration":
		return AlgorithmMultiLateration, nil
	case "intersection":
		return AlgorithmIntersection, nil
	case "ekf":
		return AlgorithmEKF, nil
	default:
		return 0, errors.Errorf("unknown estimation algorithm %q", name)
	}
}

func (a Algorithm) valid() bool {
	return a >= 0 && a < numAlgorithms
}

// Estimate is one algorithm's latest estimate of the N target locations.
type Estimate struct {
	Source  Algorithm
	Targets []r2.Point
}

// Records is the latest estimate per algorithm that has reported.
type Records map[Algorithm]Estimate

// A Policy picks the estimate to plan against. It must be a pure function of its input.
type Policy interface {
	Resolve(records Records) (Estimate, bool)
}

// Precedence is a Policy returning the estimate of the first algorithm in the list that
// has reported. No fusion is performed.
type Precedence []Algorithm

// DefaultPrecedence prefers the EKF, then intersection, then multi-lateration.
var DefaultPrecedence = Precedence{AlgorithmEKF, AlgorithmIntersection, AlgorithmMultiLateration}

// Resolve implements Policy.
func (p Precedence) Resolve(records Records) (Estimate, bool) {
	for _, alg := range p {
		if est, ok := records[alg]; ok {
			return est, true
		}
	}
	return Estimate{}, false
}

// Aggregator stores the latest estimate per algorithm. Record may be called from any
// goroutine; each arrival replaces the previous estimate of that algorithm atomically.
type Aggregator struct {
	latest [numAlgorithms]atomic.Pointer[Estimate]
	policy Policy
}

// NewAggregator returns an empty aggregator resolving with policy, or DefaultPrecedence
// when policy is nil.
func NewAggregator(policy Policy) *Aggregator {
	if policy == nil {
		policy = DefaultPrecedence
	}
	return &Aggregator{policy: policy}
}

// Record stores a flat [x0, y0, x1, y1, ...] estimate for alg. A malformed vector is
// rejected and the previous estimate is kept.
func (agg *Aggregator) Record(alg Algorithm, flat []float64) error {
	return record(agg, alg, flat, spatialmath.PointsFromFlat)
}

// Record32 is Record for the float32 arrays estimators publish.
func (agg *Aggregator) Record32(alg Algorithm, flat []float32) error {
	return record(agg, alg, flat, spatialmath.PointsFromFlat32)
}

func record[T float32 | float64](agg *Aggregator, alg Algorithm, flat []T, reshape func([]T) ([]r2.Point, error)) error {
	if !alg.valid() {
		return errors.Errorf("unknown estimation algorithm %d", int(alg))
	}
	targets, err := reshape(flat)
	if err != nil {
		return errors.Wrapf(err, "estimate from %s", alg)
	}
	agg.latest[alg].Store(&Estimate{Source: alg, Targets: targets})
	return nil
}

// Latest returns the current estimate of one algorithm.
func (agg *Aggregator) Latest(alg Algorithm) (Estimate, bool) {
	if !alg.valid() {
		return Estimate{}, false
	}
	est := agg.latest[alg].Load()
	if est == nil {
		return Estimate{}, false
	}
	return *est, true
}

// Records snapshots every algorithm that has reported.
func (agg *Aggregator) Records() Records {
	records := make(Records, numAlgorithms)
	for _, alg := range Algorithms() {
		if est, ok := agg.Latest(alg); ok {
			records[alg] = est
		}
	}
	return records
}

// Resolve returns the estimate to use this cycle, or false when no algorithm has reported.
func (agg *Aggregator) Resolve() (Estimate, bool) {
	return agg.policy.Resolve(agg.Records())
}

// Current is Resolve reporting an unavailable estimate as ErrUnavailable.
func (agg *Aggregator) Current() (Estimate, error) {
	est, ok := agg.Resolve()
	if !ok {
		return Estimate{}, ErrUnavailable
	}
	return est, nil
}
