package voxfuse

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
//	    frames        prometheus.Counter
//	    frameDuration prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordFrame(stats voxfuse.FrameStats, d time.Duration, err error) {
//	    p.frames.Inc()
//	    p.frameDuration.Observe(d.Seconds())
//	}
type MetricsCollector interface {
	// RecordFrame is called after each ProcessFrame.
	RecordFrame(stats FrameStats, duration time.Duration, err error)

	// RecordRaycast is called after each successful Raycast with the number
	// of pixels that hit a surface.
	RecordRaycast(valid, total int, duration time.Duration)

	// RecordSnapshot is called after each save or load. op is "save" or "load".
	RecordSnapshot(op string, bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordFrame(FrameStats, time.Duration, error)       {}
func (NoopMetricsCollector) RecordRaycast(int, int, time.Duration)              {}
func (NoopMetricsCollector) RecordSnapshot(string, int64, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	FrameCount         atomic.Int64
	FrameErrors        atomic.Int64
	FrameTotalNanos    atomic.Int64
	AllocatedBlocks    atomic.Int64
	AllocationFailures atomic.Int64
	IntegratedVoxels   atomic.Int64
	RaycastCount       atomic.Int64
	RaycastValidPixels atomic.Int64
	RaycastTotalPixels atomic.Int64
	RaycastTotalNanos  atomic.Int64
	SnapshotSaves      atomic.Int64
	SnapshotLoads      atomic.Int64
	SnapshotErrors     atomic.Int64
	SnapshotBytes      atomic.Int64
}

// RecordFrame implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFrame(stats FrameStats, duration time.Duration, err error) {
	b.FrameCount.Add(1)
	b.FrameTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FrameErrors.Add(1)
	}
	b.AllocatedBlocks.Add(int64(stats.Allocated))
	b.AllocationFailures.Add(int64(stats.Failed()))
	b.IntegratedVoxels.Add(int64(stats.IntegratedVoxels))
}

// RecordRaycast implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRaycast(valid, total int, duration time.Duration) {
	b.RaycastCount.Add(1)
	b.RaycastValidPixels.Add(int64(valid))
	b.RaycastTotalPixels.Add(int64(total))
	b.RaycastTotalNanos.Add(duration.Nanoseconds())
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(op string, bytes int64, _ time.Duration, err error) {
	if op == "load" {
		b.SnapshotLoads.Add(1)
	} else {
		b.SnapshotSaves.Add(1)
	}
	if err != nil {
		b.SnapshotErrors.Add(1)
		return
	}
	b.SnapshotBytes.Add(bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		FrameCount:         b.FrameCount.Load(),
		FrameErrors:        b.FrameErrors.Load(),
		FrameAvgNanos:      avg(b.FrameTotalNanos.Load(), b.FrameCount.Load()),
		AllocatedBlocks:    b.AllocatedBlocks.Load(),
		AllocationFailures: b.AllocationFailures.Load(),
		IntegratedVoxels:   b.IntegratedVoxels.Load(),
		RaycastCount:       b.RaycastCount.Load(),
		RaycastAvgNanos:    avg(b.RaycastTotalNanos.Load(), b.RaycastCount.Load()),
		RaycastHitRate:     rate(b.RaycastValidPixels.Load(), b.RaycastTotalPixels.Load()),
		SnapshotSaves:      b.SnapshotSaves.Load(),
		SnapshotLoads:      b.SnapshotLoads.Load(),
		SnapshotErrors:     b.SnapshotErrors.Load(),
		SnapshotBytes:      b.SnapshotBytes.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

func rate(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector.
type BasicMetricsStats struct {
	FrameCount         int64
	FrameErrors        int64
	FrameAvgNanos      int64
	AllocatedBlocks    int64
	AllocationFailures int64
	IntegratedVoxels   int64
	RaycastCount       int64
	RaycastAvgNanos    int64
	RaycastHitRate     float64
	SnapshotSaves      int64
	SnapshotLoads      int64
	SnapshotErrors     int64
	SnapshotBytes      int64
}
