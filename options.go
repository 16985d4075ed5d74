package voxfuse

import "github.com/hupe1980/voxfuse/resource"

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	controller       *resource.Controller
	workers          int
}

// Option configures ambient behaviour of a Volume. Geometry and fusion
// parameters live in Config.
type Option func(*options)

// WithLogger sets the logger. Defaults to NoopLogger.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetricsCollector sets the metrics sink. Defaults to NoopMetricsCollector.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithResourceController charges the block arena and checkpoint IO against
// a shared controller. Several volumes may share one controller.
//
// When unset, a controller is built from Config.MemoryLimitBytes and
// Config.SnapshotIOBytesPerSec.
func WithResourceController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}

// WithWorkers overrides Config.Workers.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}
