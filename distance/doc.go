// Package distance provides the dissimilarity functions used to score
// candidates.
//
// # Supported Metrics
//
//   - MetricEuclidean: L2 norm of the difference (default)
//   - MetricCosine: 1 - cos(angle); zero-norm inputs score 1
//   - MetricAngular: angle / pi, in [0, 1]
//   - MetricManhattan: L1 norm of the difference
//
// All functions accept dense and sparse vectors; sparse inputs are
// densified transparently.
//
// # Usage
//
//	fn, err := distance.Provider(distance.MetricCosine)
//	d := fn(a, b)
package distance
