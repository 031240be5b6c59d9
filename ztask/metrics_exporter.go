package ztask

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsExporter Prometheus 指标导出器
type MetricsExporter struct {
	classifications *prometheus.CounterVec
	resolutions     *prometheus.CounterVec
	resolveLatency  prometheus.Histogram
	definitions     prometheus.Counter
	submissions     *prometheus.CounterVec
	spoolPending    prometheus.Gauge
}

var (
	// globalExporter 全局导出器单例
	globalExporter *MetricsExporter
	exporterOnce   sync.Once

	// defaultBuckets 数据源解析延迟分布桶 (秒)
	defaultBuckets = []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
)

// NewMetricsExporter 获取或创建全局单例导出器
func NewMetricsExporter(namespace string) *MetricsExporter {
	exporterOnce.Do(func() {
		if namespace == "" {
			namespace = "ztask"
		}

		m := &MetricsExporter{
			classifications: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "sql_classifications_total",
					Help:      "Total number of SQL classifications by sql type.",
				},
				[]string{"sql_type"},
			),
			resolutions: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "datasource_resolutions_total",
					Help:      "Total number of datasource resolutions by status.",
				},
				[]string{"status"}, // success, failed
			),
			resolveLatency: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "datasource_resolve_latency_seconds",
					Help:      "Histogram of datasource resolution latency.",
					Buckets:   defaultBuckets,
				},
			),
			definitions: prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "task_definitions_total",
					Help:      "Total number of task definitions built.",
				},
			),
			submissions: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "task_submissions_total",
					Help:      "Total number of task definition submissions by outcome.",
				},
				[]string{"outcome"}, // enqueued, duplicate, spooled, failed
			),
			spoolPending: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Name:      "spool_pending",
					Help:      "Number of task definitions waiting in the local spool.",
				},
			),
		}

		// 注册指标
		prometheus.MustRegister(m.classifications)
		prometheus.MustRegister(m.resolutions)
		prometheus.MustRegister(m.resolveLatency)
		prometheus.MustRegister(m.definitions)
		prometheus.MustRegister(m.submissions)
		prometheus.MustRegister(m.spoolPending)

		globalExporter = m
	})

	return globalExporter
}

// Handler 返回 HTTP 处理器
func (m *MetricsExporter) Handler() http.Handler {
	return promhttp.Handler()
}
