package ztask

import (
	"sync/atomic"
	"time"
)

type metrics struct {
	classifySelect    int64
	classifyNotSelect int64

	resolveSuccess       int64
	resolveFailed        int64
	resolveDurationNanos int64

	definitions int64

	submitEnqueued  int64
	submitDuplicate int64
	submitSpooled   int64
	submitFailed    int64

	// Prometheus Exporter
	exporter *MetricsExporter
}

func newMetrics(cfg MetricsConfig) *metrics {
	m := &metrics{}
	if cfg.Enabled {
		m.exporter = NewMetricsExporter(cfg.Namespace)
	}
	return m
}

func (m *metrics) recordClassification(t SQLType) {
	if t == SQLTypeSelect {
		atomic.AddInt64(&m.classifySelect, 1)
	} else {
		atomic.AddInt64(&m.classifyNotSelect, 1)
	}
	if m.exporter != nil {
		m.exporter.classifications.WithLabelValues(t.String()).Inc()
	}
}

func (m *metrics) recordResolve(d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failed"
		atomic.AddInt64(&m.resolveFailed, 1)
	} else {
		atomic.AddInt64(&m.resolveSuccess, 1)
	}
	atomic.AddInt64(&m.resolveDurationNanos, d.Nanoseconds())
	if m.exporter != nil {
		m.exporter.resolutions.WithLabelValues(status).Inc()
		m.exporter.resolveLatency.Observe(d.Seconds())
	}
}

func (m *metrics) recordDefinition() {
	atomic.AddInt64(&m.definitions, 1)
	if m.exporter != nil {
		m.exporter.definitions.Inc()
	}
}

func (m *metrics) recordSubmit(outcome string) {
	switch outcome {
	case outcomeEnqueued:
		atomic.AddInt64(&m.submitEnqueued, 1)
	case outcomeDuplicate:
		atomic.AddInt64(&m.submitDuplicate, 1)
	case outcomeSpooled:
		atomic.AddInt64(&m.submitSpooled, 1)
	default:
		atomic.AddInt64(&m.submitFailed, 1)
	}
	if m.exporter != nil {
		m.exporter.submissions.WithLabelValues(outcome).Inc()
	}
}

func (m *metrics) setSpoolPending(n int) {
	if m.exporter != nil {
		m.exporter.spoolPending.Set(float64(n))
	}
}

// StatsSnapshot 运行时统计快照（非接口方法，按需断言使用）
type StatsSnapshot struct {
	Classify ClassifyStats
	Resolve  ResolveStats
	Submit   SubmitStats

	Definitions int64
}

type ClassifyStats struct {
	Select    int64
	NotSelect int64
}

type ResolveStats struct {
	Success int64
	Failed  int64
	Avg     time.Duration
}

type SubmitStats struct {
	Enqueued  int64
	Duplicate int64
	Spooled   int64
	Failed    int64
}

func (m *metrics) snapshot() StatsSnapshot {
	success := atomic.LoadInt64(&m.resolveSuccess)
	failed := atomic.LoadInt64(&m.resolveFailed)
	total := time.Duration(atomic.LoadInt64(&m.resolveDurationNanos))

	return StatsSnapshot{
		Classify: ClassifyStats{
			Select:    atomic.LoadInt64(&m.classifySelect),
			NotSelect: atomic.LoadInt64(&m.classifyNotSelect),
		},
		Resolve: ResolveStats{
			Success: success,
			Failed:  failed,
			Avg:     avgDuration(success+failed, total),
		},
		Submit: SubmitStats{
			Enqueued:  atomic.LoadInt64(&m.submitEnqueued),
			Duplicate: atomic.LoadInt64(&m.submitDuplicate),
			Spooled:   atomic.LoadInt64(&m.submitSpooled),
			Failed:    atomic.LoadInt64(&m.submitFailed),
		},
		Definitions: atomic.LoadInt64(&m.definitions),
	}
}

func avgDuration(count int64, total time.Duration) time.Duration {
	if count <= 0 {
		return 0
	}
	return time.Duration(int64(total) / count)
}
