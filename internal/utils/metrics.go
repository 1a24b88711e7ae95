// internal/utils/metrics.go
package utils

import (
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Metric names recorded by the pipeline.
const (
	MetricGenerationRequests   = "generation_requests"
	MetricGenerationFallbacks  = "generation_fallbacks"
	MetricRegenerationFailures = "regeneration_failures"
	MetricEditCommits          = "edit_commits"
	MetricStaleCommits         = "edit_commits_stale"
	MetricExports              = "exports"
	MetricExportFailures       = "export_failures"
	MetricActiveSessions       = "active_sessions"
	MetricGenerationLatency    = "generation_latency_ms"
	MetricAPIRequests          = "api_requests_total"
	MetricAPILatency           = "api_response_time_ms"
)

// MetricsCollector keeps in-process counters, gauges and histograms.
type MetricsCollector struct {
	counters   sync.Map // name -> *int64
	gauges     sync.Map // name -> *int64
	histograms sync.Map // name -> *Histogram
}

// Histogram tracks count, sum, min and max of observed values.
type Histogram struct {
	mu    sync.Mutex
	count int64
	sum   int64
	min   int64
	max   int64
}

var (
	globalMetrics *MetricsCollector
	metricsOnce   sync.Once
)

// GetMetricsCollector returns the process-wide collector.
func GetMetricsCollector() *MetricsCollector {
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsCollector()
	})
	return globalMetrics
}

// NewMetricsCollector creates an isolated collector, mostly for tests.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

func int64Slot(m *sync.Map, name string) *int64 {
	if v, ok := m.Load(name); ok {
		return v.(*int64)
	}
	v, _ := m.LoadOrStore(name, new(int64))
	return v.(*int64)
}

// IncrementCounter adds one to a counter.
func (m *MetricsCollector) IncrementCounter(name string) {
	m.AddCounter(name, 1)
}

// AddCounter adds value to a counter.
func (m *MetricsCollector) AddCounter(name string, value int64) {
	atomic.AddInt64(int64Slot(&m.counters, name), value)
}

// GetCounterValue returns the current value of a counter.
func (m *MetricsCollector) GetCounterValue(name string) int64 {
	if v, ok := m.counters.Load(name); ok {
		return atomic.LoadInt64(v.(*int64))
	}
	return 0
}

// SetGauge sets a gauge.
func (m *MetricsCollector) SetGauge(name string, value int64) {
	atomic.StoreInt64(int64Slot(&m.gauges, name), value)
}

// IncGauge increments a gauge.
func (m *MetricsCollector) IncGauge(name string) {
	atomic.AddInt64(int64Slot(&m.gauges, name), 1)
}

// DecGauge decrements a gauge.
func (m *MetricsCollector) DecGauge(name string) {
	atomic.AddInt64(int64Slot(&m.gauges, name), -1)
}

// GetGauge returns the current value of a gauge.
func (m *MetricsCollector) GetGauge(name string) int64 {
	if v, ok := m.gauges.Load(name); ok {
		return atomic.LoadInt64(v.(*int64))
	}
	return 0
}

// RecordHistogram observes value in a histogram.
func (m *MetricsCollector) RecordHistogram(name string, value int64) {
	v, _ := m.histograms.LoadOrStore(name, &Histogram{min: value, max: value})
	h := v.(*Histogram)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 || value < h.min {
		h.min = value
	}
	if h.count == 0 || value > h.max {
		h.max = value
	}
	h.count++
	h.sum += value
}

// GetMetrics returns a snapshot of all metrics.
func (m *MetricsCollector) GetMetrics() map[string]interface{} {
	counters := make(map[string]int64)
	m.counters.Range(func(k, v any) bool {
		counters[k.(string)] = atomic.LoadInt64(v.(*int64))
		return true
	})

	gauges := make(map[string]int64)
	m.gauges.Range(func(k, v any) bool {
		gauges[k.(string)] = atomic.LoadInt64(v.(*int64))
		return true
	})

	histograms := make(map[string]map[string]int64)
	m.histograms.Range(func(k, v any) bool {
		h := v.(*Histogram)
		h.mu.Lock()
		histograms[k.(string)] = map[string]int64{
			"count": h.count,
			"sum":   h.sum,
			"min":   h.min,
			"max":   h.max,
		}
		h.mu.Unlock()
		return true
	})

	return map[string]interface{}{
		"counters":   counters,
		"gauges":     gauges,
		"histograms": histograms,
	}
}

// CounterNames lists known counters in sorted order.
func (m *MetricsCollector) CounterNames() []string {
	var names []string
	m.counters.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	sort.Strings(names)
	return names
}

// PipelineMetrics records domain events against a collector and logs them.
type PipelineMetrics struct {
	metrics *MetricsCollector
	logger  *Logger
}

// NewPipelineMetrics binds metrics to the given collector; nil means the global one.
func NewPipelineMetrics(collector *MetricsCollector) *PipelineMetrics {
	if collector == nil {
		collector = GetMetricsCollector()
	}
	return &PipelineMetrics{metrics: collector, logger: GetLogger()}
}

// Collector exposes the underlying collector.
func (pm *PipelineMetrics) Collector() *MetricsCollector {
	return pm.metrics
}

// RecordGeneration records one generation round trip.
func (pm *PipelineMetrics) RecordGeneration(target string, ok bool, duration time.Duration) {
	pm.metrics.IncrementCounter(MetricGenerationRequests)
	pm.metrics.IncrementCounter(MetricGenerationRequests + "_" + target)
	pm.metrics.RecordHistogram(MetricGenerationLatency, duration.Milliseconds())
	if !ok {
		pm.metrics.IncrementCounter(MetricGenerationRequests + "_" + target + "_failed")
	}
}

// RecordFallback counts a full generation replaced by the sample bundle.
func (pm *PipelineMetrics) RecordFallback(reason string) {
	pm.metrics.IncrementCounter(MetricGenerationFallbacks)
	pm.logger.Warn("generation fell back to sample bundle", map[string]interface{}{"reason": reason})
}

// RecordRegenerationFailure counts a failed single-artifact regeneration.
func (pm *PipelineMetrics) RecordRegenerationFailure(artifact string) {
	pm.metrics.IncrementCounter(MetricRegenerationFailures)
	pm.metrics.IncrementCounter(MetricRegenerationFailures + "_" + artifact)
}

// RecordCommit counts an edit commit.
func (pm *PipelineMetrics) RecordCommit(stale bool) {
	pm.metrics.IncrementCounter(MetricEditCommits)
	if stale {
		pm.metrics.IncrementCounter(MetricStaleCommits)
	}
}

// RecordExport counts an export attempt.
func (pm *PipelineMetrics) RecordExport(kind string, size int, err error) {
	if err != nil {
		pm.metrics.IncrementCounter(MetricExportFailures)
		return
	}
	pm.metrics.IncrementCounter(MetricExports)
	pm.metrics.IncrementCounter(MetricExports + "_" + kind)
	pm.metrics.AddCounter(MetricExports+"_bytes", int64(size))
}

// RecordAPIRequest records metrics for an HTTP request.
func (pm *PipelineMetrics) RecordAPIRequest(route, method string, statusCode int, duration time.Duration) {
	pm.metrics.IncrementCounter(MetricAPIRequests)
	pm.metrics.IncrementCounter("api_responses_" + strconv.Itoa(statusCode/100) + "xx")
	pm.metrics.RecordHistogram(MetricAPILatency, duration.Milliseconds())

	pm.logger.Debug("API request completed", map[string]interface{}{
		"route":    route,
		"method":   method,
		"status":   statusCode,
		"duration": duration.Milliseconds(),
	})
}

// SessionOpened and SessionClosed track the active session gauge.
func (pm *PipelineMetrics) SessionOpened() { pm.metrics.IncGauge(MetricActiveSessions) }
func (pm *PipelineMetrics) SessionClosed() { pm.metrics.DecGauge(MetricActiveSessions) }
