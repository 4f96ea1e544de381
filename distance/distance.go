package distance

import (
	"fmt"
	"math"
	"strings"

	"github.com/hupe1980/nearlsh/vector"
)

// Metric represents the distance metric used for candidate scoring.
type Metric int

const (
	MetricEuclidean Metric = iota
	MetricCosine
	MetricAngular
	MetricManhattan
)

func (m Metric) String() string {
	switch m {
	case MetricEuclidean:
		return "Euclidean"
	case MetricCosine:
		return "Cosine"
	case MetricAngular:
		return "Angular"
	case MetricManhattan:
		return "Manhattan"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// RequiresNormalization reports whether stored and query vectors should be
// scaled to unit length before scoring with m.
func (m Metric) RequiresNormalization() bool {
	return m == MetricCosine || m == MetricAngular
}

// ParseMetric resolves a metric by its case-insensitive name.
func ParseMetric(name string) (Metric, error) {
	switch strings.ToLower(name) {
	case "euclidean", "l2":
		return MetricEuclidean, nil
	case "cosine":
		return MetricCosine, nil
	case "angular":
		return MetricAngular, nil
	case "manhattan", "l1":
		return MetricManhattan, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", name)
	}
}

// Func is a function type for distance calculation.
type Func func(a, b vector.Vector) float64

// Provider returns the distance function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricEuclidean:
		return Euclidean, nil
	case MetricCosine:
		return Cosine, nil
	case MetricAngular:
		return Angular, nil
	case MetricManhattan:
		return Manhattan, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}

// Euclidean returns the L2 norm of a-b.
// Assumes vectors have the same dimension (caller's responsibility).
func Euclidean(a, b vector.Vector) float64 {
	x, y := a.Dense(), b.Dense()
	var sum float64
	for i := range x {
		d := x[i] - y[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Manhattan returns the L1 norm of a-b.
func Manhattan(a, b vector.Vector) float64 {
	x, y := a.Dense(), b.Dense()
	var sum float64
	for i := range x {
		sum += math.Abs(x[i] - y[i])
	}
	return sum
}

// Cosine returns 1 - cos(a, b). If either vector has zero norm the
// similarity is taken as 0 and the distance is 1.
func Cosine(a, b vector.Vector) float64 {
	return 1 - cosineSimilarity(a, b)
}

// Angular returns the angle between a and b divided by pi. A zero-norm
// vector is treated as orthogonal to everything.
//
// The angle is 2*atan2(|u-v|, |u+v|) over the unit vectors u and v, which
// stays exact near parallel and antiparallel pairs where acos of the
// cosine loses about half of the significant digits.
func Angular(a, b vector.Vector) float64 {
	x, y := a.Dense(), b.Dense()
	nx, ny := a.Norm(), b.Norm()
	if nx == 0 || ny == 0 {
		return 0.5
	}
	var diff, sum float64
	for i := range x {
		u, v := x[i]/nx, y[i]/ny
		diff += (u - v) * (u - v)
		sum += (u + v) * (u + v)
	}
	return 2 * math.Atan2(math.Sqrt(diff), math.Sqrt(sum)) / math.Pi
}

func cosineSimilarity(a, b vector.Vector) float64 {
	x, y := a.Dense(), b.Dense()
	var dot, na, nb float64
	for i := range x {
		dot += x[i] * y[i]
		na += x[i] * x[i]
		nb += y[i] * y[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	cos := dot / math.Sqrt(na*nb)
	// Rounding can push |cos| slightly above 1.
	return max(-1, min(1, cos))
}
