// Package metrics provides internal metrics collection.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器。所有 Record* 方法对 nil 接收者安全。
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 厂商调用指标
	vendorCallsTotal   *prometheus.CounterVec
	vendorCallDuration *prometheus.HistogramVec
	promptTokens       *prometheus.CounterVec

	// 流水线指标
	stageDuration  *prometheus.HistogramVec
	artifactsTotal *prometheus.CounterVec

	// 归档指标
	archiveBytes   prometheus.Histogram
	archiveEntries *prometheus.CounterVec

	// 异步任务指标
	jobsTotal    *prometheus.CounterVec
	jobsInFlight prometheus.Gauge

	// 归档缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// 渲染指标
	rendersTotal   *prometheus.CounterVec
	renderDuration prometheus.Histogram

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 在默认 Registry 上创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWithRegistry(namespace, prometheus.DefaultRegisterer, logger)
}

// NewCollectorWithRegistry 在指定 Registry 上创建指标收集器
func NewCollectorWithRegistry(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := promauto.With(reg)
	c := &Collector{logger: logger.With(zap.String("component", "metrics"))}

	c.httpRequestsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	c.httpRequestDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
	}, []string{"method", "path"})

	c.httpResponseSize = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
	}, []string{"method", "path"})

	c.vendorCallsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "vendor_calls_total",
		Help:      "Total number of generative vendor calls",
	}, []string{"modality", "provider", "model", "status"})

	c.vendorCallDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "vendor_call_duration_seconds",
		Help:      "Generative vendor call duration in seconds, including async polling",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"modality", "provider"})

	c.promptTokens = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prompt_tokens_total",
		Help:      "Prompt tokens sent to chat vendors",
	}, []string{"provider", "model"})

	c.stageDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pipeline_stage_duration_seconds",
		Help:      "Plan orchestrator stage duration in seconds",
		Buckets:   []float64{0.1, 1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	c.artifactsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_artifacts_total",
		Help:      "Artifacts produced per slot and kind",
	}, []string{"slot", "kind"})

	c.archiveBytes = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "archive_size_bytes",
		Help:      "Size of assembled zip archives",
		Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
	})

	c.archiveEntries = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "archive_entries_total",
		Help:      "Archive entries written, by outcome",
	}, []string{"outcome"})

	c.jobsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_total",
		Help:      "Asynchronous plan jobs by terminal status",
	}, []string{"status"})

	c.jobsInFlight = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "jobs_in_flight",
		Help:      "Asynchronous plan jobs currently running",
	})

	c.cacheHits = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_hits_total",
		Help:      "Total number of archive store hits",
	}, []string{"cache_type"})

	c.cacheMisses = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_misses_total",
		Help:      "Total number of archive store misses",
	}, []string{"cache_type"})

	c.rendersTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "renders_total",
		Help:      "Blender render requests by status",
	}, []string{"status"})

	c.renderDuration = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "render_duration_seconds",
		Help:      "Blender render duration in seconds",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	c.dbConnectionsOpen = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_connections_open",
		Help:      "Number of open database connections",
	}, []string{"database"})

	c.dbConnectionsIdle = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_connections_idle",
		Help:      "Number of idle database connections",
	}, []string{"database"})

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// =============================================================================
// 🎯 HTTP
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, responseSize int64) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🤖 厂商调用
// =============================================================================

// RecordVendorCall 记录一次厂商调用
func (c *Collector) RecordVendorCall(modality, provider, model, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.vendorCallsTotal.WithLabelValues(modality, provider, model, status).Inc()
	c.vendorCallDuration.WithLabelValues(modality, provider).Observe(duration.Seconds())
}

// RecordPromptTokens 记录 prompt token 数
func (c *Collector) RecordPromptTokens(provider, model string, tokens int) {
	if c == nil || tokens <= 0 {
		return
	}
	c.promptTokens.WithLabelValues(provider, model).Add(float64(tokens))
}

// =============================================================================
// 🧩 流水线
// =============================================================================

// RecordStage 记录阶段耗时
func (c *Collector) RecordStage(stage string, duration time.Duration) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordArtifact 记录一个产物
func (c *Collector) RecordArtifact(slot, kind string) {
	if c == nil {
		return
	}
	c.artifactsTotal.WithLabelValues(slot, kind).Inc()
}

// RecordArchive 记录一次归档
func (c *Collector) RecordArchive(sizeBytes int, written, placeholders int) {
	if c == nil {
		return
	}
	c.archiveBytes.Observe(float64(sizeBytes))
	c.archiveEntries.WithLabelValues("written").Add(float64(written))
	c.archiveEntries.WithLabelValues("placeholder").Add(float64(placeholders))
}

// =============================================================================
// 📮 异步任务 / 缓存 / 渲染
// =============================================================================

// RecordJobStarted 任务开始执行
func (c *Collector) RecordJobStarted() {
	if c == nil {
		return
	}
	c.jobsInFlight.Inc()
}

// RecordJobFinished 任务结束
func (c *Collector) RecordJobFinished(status string) {
	if c == nil {
		return
	}
	c.jobsInFlight.Dec()
	c.jobsTotal.WithLabelValues(status).Inc()
}

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cacheType string) {
	if c == nil {
		return
	}
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordRender 记录一次渲染
func (c *Collector) RecordRender(status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.rendersTotal.WithLabelValues(status).Inc()
	c.renderDuration.Observe(duration.Seconds())
}

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	if c == nil {
		return
	}
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// statusClass 将 HTTP 状态码归类为 2xx/3xx/4xx/5xx
func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
