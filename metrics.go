package nearlsh

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    queryHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordQuery(candidates, results int, d time.Duration, err error) {
//	    p.queryHistogram.Observe(d.Seconds())
//	}
type MetricsCollector interface {
	// RecordStore is called after each store operation with the number of
	// vectors written.
	RecordStore(count int, duration time.Duration, err error)

	// RecordQuery is called after each query with the number of collected
	// candidates and returned results.
	RecordQuery(candidates, results int, duration time.Duration, err error)

	// RecordDelete is called after each delete operation.
	RecordDelete(removed int, duration time.Duration, err error)

	// RecordIndexBuild is called after the permuted index of a hash has
	// been rebuilt.
	RecordIndexBuild(hash string, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordStore(int, time.Duration, error)         {}
func (NoopMetricsCollector) RecordQuery(int, int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordDelete(int, time.Duration, error)        {}
func (NoopMetricsCollector) RecordIndexBuild(string, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	StoreCount       atomic.Int64
	StoreVectors     atomic.Int64
	StoreErrors      atomic.Int64
	QueryCount       atomic.Int64
	QueryErrors      atomic.Int64
	QueryCandidates  atomic.Int64
	QueryTotalNanos  atomic.Int64
	DeleteCount      atomic.Int64
	DeleteRemoved    atomic.Int64
	DeleteErrors     atomic.Int64
	IndexBuildCount  atomic.Int64
	IndexBuildErrors atomic.Int64
}

// RecordStore implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStore(count int, _ time.Duration, err error) {
	b.StoreCount.Add(1)
	if err != nil {
		b.StoreErrors.Add(1)
		return
	}
	b.StoreVectors.Add(int64(count))
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(candidates, _ int, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	b.QueryCandidates.Add(int64(candidates))
	if err != nil {
		b.QueryErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(removed int, _ time.Duration, err error) {
	b.DeleteCount.Add(1)
	b.DeleteRemoved.Add(int64(removed))
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordIndexBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIndexBuild(_ string, _ time.Duration, err error) {
	b.IndexBuildCount.Add(1)
	if err != nil {
		b.IndexBuildErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	s := BasicMetricsStats{
		StoreCount:       b.StoreCount.Load(),
		StoreVectors:     b.StoreVectors.Load(),
		StoreErrors:      b.StoreErrors.Load(),
		QueryCount:       b.QueryCount.Load(),
		QueryErrors:      b.QueryErrors.Load(),
		DeleteCount:      b.DeleteCount.Load(),
		DeleteRemoved:    b.DeleteRemoved.Load(),
		DeleteErrors:     b.DeleteErrors.Load(),
		IndexBuildCount:  b.IndexBuildCount.Load(),
		IndexBuildErrors: b.IndexBuildErrors.Load(),
	}
	if s.QueryCount > 0 {
		s.QueryAvgNanos = b.QueryTotalNanos.Load() / s.QueryCount
		s.QueryAvgCandidates = b.QueryCandidates.Load() / s.QueryCount
	}
	return s
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	StoreCount         int64
	StoreVectors       int64
	StoreErrors        int64
	QueryCount         int64
	QueryErrors        int64
	QueryAvgNanos      int64
	QueryAvgCandidates int64
	DeleteCount        int64
	DeleteRemoved      int64
	DeleteErrors       int64
	IndexBuildCount    int64
	IndexBuildErrors   int64
}
