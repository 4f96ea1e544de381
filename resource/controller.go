package resource

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxBackgroundWorkers is the number of index builds that may run at
	// once. Values below one mean one.
	MaxBackgroundWorkers int64 `yaml:"max_background_workers" json:"max_background_workers"`

	// IOLimitBytesPerSec caps snapshot throughput. 0 disables the cap.
	IOLimitBytesPerSec int64 `yaml:"io_limit_bytes_per_sec" json:"io_limit_bytes_per_sec"`
}

// Controller enforces a Config. The zero Config yields one background
// slot and unthrottled IO; a nil *Controller enforces nothing.
type Controller struct {
	limits  Config
	workers *semaphore.Weighted
	io      *rate.Limiter
}

// NewController returns a Controller enforcing cfg.
func NewController(cfg Config) *Controller {
	cfg.MaxBackgroundWorkers = max(cfg.MaxBackgroundWorkers, 1)
	c := &Controller{limits: cfg, workers: semaphore.NewWeighted(cfg.MaxBackgroundWorkers)}
	if cfg.IOLimitBytesPerSec > 0 {
		burst := int(cfg.IOLimitBytesPerSec)
		c.io = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), burst)
	}
	return c
}

// Limits returns the effective configuration.
func (c *Controller) Limits() Config {
	if c == nil {
		return Config{}
	}
	return c.limits
}

// RunBackground runs job once a background slot is free and frees the
// slot when job returns.
func (c *Controller) RunBackground(ctx context.Context, job func(context.Context) error) error {
	if c == nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		return job(ctx)
	}
	if err := c.workers.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.workers.Release(1)
	return job(ctx)
}

// Throttle blocks until n bytes of snapshot IO fit the rate limit.
func (c *Controller) Throttle(ctx context.Context, n int) error {
	if c == nil || c.io == nil {
		return ctx.Err()
	}
	for burst := c.io.Burst(); n > 0; n -= burst {
		if err := c.io.WaitN(ctx, min(n, burst)); err != nil {
			return err
		}
	}
	return nil
}
