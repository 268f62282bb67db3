package monitoring

import (
	"fmt"
	"io"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// PrometheusHandler serves the counters in Prometheus text exposition format.
func (m *Monitor) PrometheusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		m.WritePrometheus(w)
	})
}

// WritePrometheus writes all metrics to w.
func (m *Monitor) WritePrometheus(w io.Writer) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	writeMetric(w, "sitebot_messages_total", "Messages processed by the chat pipeline", "counter", atomic.LoadUint64(&m.metrics.MessagesTotal))

	fmt.Fprintf(w, "# HELP sitebot_replies_total Bot replies by source\n")
	fmt.Fprintf(w, "# TYPE sitebot_replies_total counter\n")
	fmt.Fprintf(w, "sitebot_replies_total{source=%q} %d\n", "knowledge_base", atomic.LoadUint64(&m.metrics.KnowledgeReplies))
	fmt.Fprintf(w, "sitebot_replies_total{source=%q} %d\n", "ai_generated", atomic.LoadUint64(&m.metrics.GeneratedReplies))
	fmt.Fprintf(w, "sitebot_replies_total{source=%q} %d\n\n", "fallback", atomic.LoadUint64(&m.metrics.FallbackReplies))

	writeMetric(w, "sitebot_degraded_total", "Messages answered on a degraded path", "counter", atomic.LoadUint64(&m.metrics.DegradedTotal))

	fmt.Fprintf(w, "# HELP sitebot_persistence_failures_total Failed store operations by pipeline step\n")
	fmt.Fprintf(w, "# TYPE sitebot_persistence_failures_total counter\n")
	for _, sc := range m.PersistenceFailures() {
		fmt.Fprintf(w, "sitebot_persistence_failures_total{step=%q} %d\n", sc.Step, sc.Count)
	}
	fmt.Fprintln(w)

	writeMetric(w, "sitebot_model_calls_total", "LLM calls issued", "counter", atomic.LoadUint64(&m.metrics.ModelCallsTotal))
	writeMetric(w, "sitebot_model_calls_failed_total", "LLM calls that failed", "counter", atomic.LoadUint64(&m.metrics.ModelCallsFailed))
	writeMetric(w, "sitebot_model_tokens_used_total", "Tokens consumed", "counter", atomic.LoadUint64(&m.metrics.ModelTokensUsed))

	writeMetric(w, "sitebot_latency_avg_ms", "Average pipeline latency in milliseconds", "gauge", m.avgLatencyMs())
	writeMetric(w, "sitebot_uptime_seconds", "Process uptime in seconds", "gauge", time.Since(m.metrics.StartTime).Seconds())
	writeMetric(w, "sitebot_memory_alloc_bytes", "Current memory allocation in bytes", "gauge", memStats.Alloc)
	writeMetric(w, "sitebot_goroutines", "Number of goroutines", "gauge", runtime.NumGoroutine())
}

func writeMetric(w io.Writer, name, help, typ string, val interface{}) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, typ)
	switch v := val.(type) {
	case uint64:
		fmt.Fprintf(w, "%s %d\n\n", name, v)
	case int:
		fmt.Fprintf(w, "%s %d\n\n", name, v)
	case float64:
		fmt.Fprintf(w, "%s %f\n\n", name, v)
	}
}
