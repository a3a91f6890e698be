package rag

import (
	"fmt"
	"math"
	"strings"
)

// Metric names the distance function a store ranks by. It is fixed when a
// store is constructed and never changes over the store's lifetime.
type Metric string

const (
	// MetricCosine ranks by cosine distance: 1 - cosine similarity, in [0, 2].
	// A zero-magnitude vector has similarity 0 (distance 1) to everything.
	MetricCosine Metric = "cosine"
	// MetricL2 ranks by Euclidean distance.
	MetricL2 Metric = "l2"
)

// ParseMetric converts a config string into a Metric. Empty selects cosine.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cosine":
		return MetricCosine, nil
	case "l2", "euclidean", "euclid":
		return MetricL2, nil
	default:
		return "", unknownMetric(s)
	}
}

func unknownMetric(s string) error {
	return fmt.Errorf("rag: unknown distance metric %q (valid values: cosine, l2)", s)
}

// DistanceFunc returns the distance function for m. Only the canonical
// MetricCosine and MetricL2 values are accepted; run config strings through
// ParseMetric first.
func (m Metric) DistanceFunc() (func(a, b []float32) float64, error) {
	switch m {
	case MetricCosine:
		return cosineDistance, nil
	case MetricL2:
		return l2, nil
	default:
		return nil, unknownMetric(string(m))
	}
}

// Distance returns the distance between a and b under m. Lower is closer.
// Callers must ensure len(a) == len(b). An unknown metric yields NaN.
func (m Metric) Distance(a, b []float32) float64 {
	f, err := m.DistanceFunc()
	if err != nil {
		return math.NaN()
	}
	return f(a, b)
}

func cosineDistance(a, b []float32) float64 {
	return 1 - cosine(a, b)
}

// cosine returns the cosine similarity of a and b, or 0 when either vector
// has zero magnitude.
func cosine(a, b []float32) float64 {
	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 0
	}
	return dot / (math.Sqrt(na2) * math.Sqrt(nb2))
}

// l2 returns the Euclidean distance between a and b.
func l2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
