package estimation

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"go.viam.com/fimnav/spatialmath"
)

func TestAlgorithmNames(t *testing.T) {
	for _, alg := range Algorithms() {
		parsed, err := ParseAlgorithm(alg.String())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, parsed, test.ShouldEqual, alg)
	}
	parsed, err := ParseAlgorithm(" EKF ")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, parsed, test.ShouldEqual, AlgorithmEKF)

	_, err = ParseAlgorithm("pf")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, Algorithm(9).String(), test.ShouldEqual, "unknown")
}

func TestResolvePrecedence(t *testing.T) {
	ml := []float64{1, 1}
	inter := []float64{2, 2}
	ekf := []float64{3, 3}

	for _, tc := range []struct {
		name     string
		record   map[Algorithm][]float64
		expected Algorithm
		ok       bool
	}{
		{"none", nil, 0, false},
		{"multi-lateration only", map[Algorithm][]float64{AlgorithmMultiLateration: ml}, AlgorithmMultiLateration, true},
		{"intersection beats multi-lateration", map[Algorithm][]float64{
			AlgorithmMultiLateration: ml, AlgorithmIntersection: inter,
		}, AlgorithmIntersection, true},
		{"ekf beats all", map[Algorithm][]float64{
			AlgorithmMultiLateration: ml, AlgorithmIntersection: inter, AlgorithmEKF: ekf,
		}, AlgorithmEKF, true},
		{"ekf alone", map[Algorithm][]float64{AlgorithmEKF: ekf}, AlgorithmEKF, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			agg := NewAggregator(nil)
			for alg, flat := range tc.record {
				test.That(t, agg.Record(alg, flat), test.ShouldBeNil)
			}
			est, ok := agg.Resolve()
			test.That(t, ok, test.ShouldEqual, tc.ok)
			if !tc.ok {
				return
			}
			test.That(t, est.Source, test.ShouldEqual, tc.expected)
			expected, err := spatialmath.PointsFromFlat(tc.record[tc.expected])
			test.That(t, err, test.ShouldBeNil)
			test.That(t, est.Targets, test.ShouldResemble, expected)
		})
	}
}

func TestRecordOverwritesAndReshapes(t *testing.T) {
	agg := NewAggregator(nil)
	test.That(t, agg.Record(AlgorithmIntersection, []float64{1, 2, 3, 4}), test.ShouldBeNil)
	est, ok := agg.Latest(AlgorithmIntersection)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, est.Targets, test.ShouldResemble, []r2.Point{{X: 1, Y: 2}, {X: 3, Y: 4}})

	test.That(t, agg.Record32(AlgorithmIntersection, []float32{5, 6}), test.ShouldBeNil)
	est, _ = agg.Latest(AlgorithmIntersection)
	test.That(t, est.Targets, test.ShouldResemble, []r2.Point{{X: 5, Y: 6}})

	// malformed arrivals are rejected without clobbering the last good estimate
	err := agg.Record(AlgorithmIntersection, []float64{1, 2, 3})
	test.That(t, errors.Is(err, spatialmath.ErrMalformedVector), test.ShouldBeTrue)
	est, _ = agg.Latest(AlgorithmIntersection)
	test.That(t, est.Targets, test.ShouldResemble, []r2.Point{{X: 5, Y: 6}})

	err = agg.Record32(AlgorithmIntersection, []float32{float32(math.NaN()), 1})
	test.That(t, errors.Is(err, spatialmath.ErrMalformedVector), test.ShouldBeTrue)
	test.That(t, agg.Record32(Algorithm(12), []float32{1, 2}), test.ShouldNotBeNil)
	est, _ = agg.Latest(AlgorithmIntersection)
	test.That(t, est.Targets, test.ShouldResemble, []r2.Point{{X: 5, Y: 6}})

	test.That(t, agg.Record(Algorithm(12), []float64{1, 2}), test.ShouldNotBeNil)
	_, ok = agg.Latest(Algorithm(-1))
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, agg.Records(), test.ShouldHaveLength, 1)
}

func TestCustomPolicy(t *testing.T) {
	agg := NewAggregator(Precedence{AlgorithmMultiLateration})
	test.That(t, agg.Record(AlgorithmEKF, []float64{3, 3}), test.ShouldBeNil)
	_, ok := agg.Resolve()
	test.That(t, ok, test.ShouldBeFalse)

	test.That(t, agg.Record(AlgorithmMultiLateration, []float64{1, 1}), test.ShouldBeNil)
	est, ok := agg.Resolve()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, est.Source, test.ShouldEqual, AlgorithmMultiLateration)
}

func TestCurrentUnavailable(t *testing.T) {
	agg := NewAggregator(nil)
	_, err := agg.Current()
	test.That(t, errors.Is(err, ErrUnavailable), test.ShouldBeTrue)

	test.That(t, agg.Record(AlgorithmMultiLateration, []float64{2, 4}), test.ShouldBeNil)
	est, err := agg.Current()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, est.Source, test.ShouldEqual, AlgorithmMultiLateration)
}
