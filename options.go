package nearlsh

import (
	"log/slog"

	"github.com/hupe1980/nearlsh/codec"
	"github.com/hupe1980/nearlsh/distance"
	"github.com/hupe1980/nearlsh/filter"
	"github.com/hupe1980/nearlsh/resource"
	"github.com/hupe1980/nearlsh/storage"
)

// DefaultNearest is the result size of the default filter chain.
const DefaultNearest = 10

type options struct {
	metric           distance.Metric
	useDistance      bool
	filters          []filter.Filter
	fetchFilters     []filter.Filter
	storage          storage.Storage
	normalize        bool
	maxCandidates    int
	codec            codec.Codec
	resource         *resource.Controller
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures an Engine.
type Option func(*options)

// WithDistance sets the metric used to score candidates. Cosine and
// Angular imply unit normalization of stored and query vectors.
//
// The default is Euclidean.
func WithDistance(m distance.Metric) Option {
	return func(o *options) {
		o.metric = m
		o.useDistance = true
	}
}

// WithoutDistance disables scoring. Results then carry no distance and
// have no ranking guarantee; distance-based filters fail. Unless
// WithFilters is also given, the filter chain is empty and Neighbours
// returns every candidate.
func WithoutDistance() Option {
	return func(o *options) {
		o.useDistance = false
	}
}

// WithFilters sets the filter chain applied after scoring, left to right.
// Calling it without filters returns the raw candidate list.
//
// The default chain is filter.NewNearest(DefaultNearest), or no filter
// at all when scoring is disabled with WithoutDistance.
func WithFilters(fs ...filter.Filter) Option {
	return func(o *options) {
		o.filters = fs
		if o.filters == nil {
			o.filters = []filter.Filter{}
		}
	}
}

// WithFetchFilters sets filters applied to the raw candidates before
// scoring, e.g. filter.NewUnique() to avoid scoring duplicates.
func WithFetchFilters(fs ...filter.Filter) Option {
	return func(o *options) {
		o.fetchFilters = fs
	}
}

// WithStorage sets the bucket store. The engine does not close stores
// passed here.
//
// The default is a private storage/memory store closed with the engine.
func WithStorage(s storage.Storage) Option {
	return func(o *options) {
		o.storage = s
	}
}

// WithNormalization forces unit normalization of stored and query vectors
// regardless of the metric.
func WithNormalization(enabled bool) Option {
	return func(o *options) {
		o.normalize = enabled
	}
}

// WithMaxCandidates caps the number of candidates collected per query.
// Excess candidates are dropped in collection order and a warning is
// logged. 0 means unlimited.
func WithMaxCandidates(n int) Option {
	return func(o *options) {
		o.maxCandidates = n
	}
}

// WithCodec configures the codec used for persisted hash configurations.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithResourceController bounds concurrent permuted index builds with the
// controller's background slots.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resource = rc
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &nearlsh.BasicMetricsCollector{}
//	eng, _ := nearlsh.New(100, hashes, nearlsh.WithMetricsCollector(metrics))
//	// ... use eng ...
//	stats := metrics.GetStats()
//	fmt.Printf("Queries: %d, Avg latency: %dns\n", stats.QueryCount, stats.QueryAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := nearlsh.NewJSONLogger(slog.LevelInfo)
//	eng, _ := nearlsh.New(100, hashes, nearlsh.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metric:           distance.MetricEuclidean,
		useDistance:      true,
		codec:            codec.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	switch {
	case o.filters != nil:
	case o.useDistance:
		o.filters = []filter.Filter{filter.NewNearest(DefaultNearest)}
	default:
		o.filters = []filter.Filter{}
	}
	return o
}
