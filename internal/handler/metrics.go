package handler

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/aitools/platform/internal/metrics"
)

// MetricsHandler exposes in-memory metrics. The Prometheus backend serves
// its own registry instead.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "aitools_http_requests_total %d\n", snap.HTTPRequests)

	writeLabeled(w, "aitools_session_resolutions_total", "state", snap.SessionResolutions)
	writeLabeled(w, "aitools_gate_redirects_total", "target", snap.GateRedirects)
	writeLabeled(w, "aitools_rate_limited_total", "scope", snap.RateLimited)
	writeLabeled(w, "aitools_credits_debited_total", "pool", snap.CreditsDebited)

	for _, key := range sortedKeys(snap.Generations) {
		feature, outcome, _ := strings.Cut(key, "|")
		writeMetric(w, "aitools_generations_total{feature=%q,outcome=%q} %d\n", feature, outcome, snap.Generations[key])
	}
	writeMetric(w, "aitools_generation_duration_seconds_count %d\n", snap.GenerationCount)
	writeMetric(w, "aitools_generation_duration_seconds_sum %.6f\n", float64(snap.GenerationTotalNs)/1e9)

	writeMetric(w, "aitools_usage_events_published_total{status=\"success\"} %d\n", snap.UsagePublished)
	writeMetric(w, "aitools_usage_events_published_total{status=\"dropped\"} %d\n", snap.UsageDropped)

	writeMetric(w, "aitools_usage_events_processed_total{status=\"success\"} %d\n", snap.UsageProcessed)
	writeMetric(w, "aitools_usage_events_processed_total{status=\"failed\"} %d\n", snap.UsageFailed)
	writeMetric(w, "aitools_usage_events_processed_total{status=\"skipped\"} %d\n", snap.UsageSkipped)

	writeMetric(w, "aitools_usage_batches_total %d\n", snap.UsageBatches)
	writeMetric(w, "aitools_usage_queue_depth %d\n", snap.UsageQueueDepth)
	writeMetric(w, "aitools_usage_batch_duration_seconds_sum %.6f\n", float64(snap.UsageBatchTotalNs)/1e9)
	writeMetric(w, "aitools_usage_ingest_lag_seconds_count %d\n", snap.UsageIngestLagCount)
	writeMetric(w, "aitools_usage_ingest_lag_seconds_sum %.6f\n", float64(snap.UsageIngestLagNs)/1e9)
}

func writeLabeled(w http.ResponseWriter, name, label string, values map[string]uint64) {
	for _, key := range sortedKeys(values) {
		writeMetric(w, "%s{%s=%q} %d\n", name, label, key, values[key])
	}
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
