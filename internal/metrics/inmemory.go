package metrics

import (
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters. Labeled counters are keyed
// by "label" or "label1|label2".
type Snapshot struct {
	HTTPRequests        uint64
	SessionResolutions  map[string]uint64
	GateRedirects       map[string]uint64
	RateLimited         map[string]uint64
	Generations         map[string]uint64
	GenerationCount     uint64
	GenerationTotalNs   int64
	CreditsDebited      map[string]uint64
	UsagePublished      uint64
	UsageDropped        uint64
	UsageProcessed      uint64
	UsageFailed         uint64
	UsageSkipped        uint64
	UsageBatches        uint64
	UsageBatchTotalNs   int64
	UsageQueueDepth     int64
	UsageIngestLagCount uint64
	UsageIngestLagNs    int64
}

// InMemoryRecorder stores metrics in memory for tests and the text exporter.
type InMemoryRecorder struct {
	httpRequests      uint64
	generationCount   uint64
	generationTotalNs int64
	usagePublished    uint64
	usageDropped      uint64
	usageProcessed    uint64
	usageFailed       uint64
	usageSkipped      uint64
	usageBatches      uint64
	usageBatchTotalNs int64
	usageQueueDepth   int64
	ingestLagCount    uint64
	ingestLagNs       int64

	mu      sync.Mutex
	labeled map[string]map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{labeled: make(map[string]map[string]uint64)}
}

func (m *InMemoryRecorder) addLabeled(family, key string, n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.labeled[family] == nil {
		m.labeled[family] = make(map[string]uint64)
	}
	m.labeled[family][key] += n
}

func (m *InMemoryRecorder) copyLabeled(family string) map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.labeled[family]))
	maps.Copy(out, m.labeled[family])
	return out
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		HTTPRequests:        atomic.LoadUint64(&m.httpRequests),
		SessionResolutions:  m.copyLabeled("session"),
		GateRedirects:       m.copyLabeled("redirect"),
		RateLimited:         m.copyLabeled("ratelimit"),
		Generations:         m.copyLabeled("generation"),
		GenerationCount:     atomic.LoadUint64(&m.generationCount),
		GenerationTotalNs:   atomic.LoadInt64(&m.generationTotalNs),
		CreditsDebited:      m.copyLabeled("credits"),
		UsagePublished:      atomic.LoadUint64(&m.usagePublished),
		UsageDropped:        atomic.LoadUint64(&m.usageDropped),
		UsageProcessed:      atomic.LoadUint64(&m.usageProcessed),
		UsageFailed:         atomic.LoadUint64(&m.usageFailed),
		UsageSkipped:        atomic.LoadUint64(&m.usageSkipped),
		UsageBatches:        atomic.LoadUint64(&m.usageBatches),
		UsageBatchTotalNs:   atomic.LoadInt64(&m.usageBatchTotalNs),
		UsageQueueDepth:     atomic.LoadInt64(&m.usageQueueDepth),
		UsageIngestLagCount: atomic.LoadUint64(&m.ingestLagCount),
		UsageIngestLagNs:    atomic.LoadInt64(&m.ingestLagNs),
	}
}

// ObserveHTTPRequest counts a served request.
func (m *InMemoryRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	atomic.AddUint64(&m.httpRequests, 1)
}

// IncSessionResolution counts a session resolution by state.
func (m *InMemoryRecorder) IncSessionResolution(state string) {
	m.addLabeled("session", state, 1)
}

// IncGateRedirect counts a gate redirect by target.
func (m *InMemoryRecorder) IncGateRedirect(target string) {
	m.addLabeled("redirect", target, 1)
}

// IncRateLimited counts a throttled request by scope.
func (m *InMemoryRecorder) IncRateLimited(scope string) {
	m.addLabeled("ratelimit", scope, 1)
}

// IncGeneration counts a generation attempt by feature and outcome.
func (m *InMemoryRecorder) IncGeneration(feature, outcome string) {
	m.addLabeled("generation", feature+"|"+outcome, 1)
}

// ObserveGenerationDuration records backend latency.
func (m *InMemoryRecorder) ObserveGenerationDuration(feature string, duration time.Duration) {
	atomic.AddUint64(&m.generationCount, 1)
	atomic.AddInt64(&m.generationTotalNs, duration.Nanoseconds())
}

// AddCreditsDebited adds debited credits for a pool.
func (m *InMemoryRecorder) AddCreditsDebited(pool string, amount int) {
	if amount > 0 {
		m.addLabeled("credits", pool, uint64(amount))
	}
}

// IncUsageEventPublished counts published or dropped usage events.
func (m *InMemoryRecorder) IncUsageEventPublished(status string) {
	if status == "dropped" {
		atomic.AddUint64(&m.usageDropped, 1)
		return
	}
	atomic.AddUint64(&m.usagePublished, 1)
}

// IncUsageEventProcessed counts worker outcomes.
func (m *InMemoryRecorder) IncUsageEventProcessed(status string) {
	switch status {
	case "failed":
		atomic.AddUint64(&m.usageFailed, 1)
	case "skipped":
		atomic.AddUint64(&m.usageSkipped, 1)
	default:
		atomic.AddUint64(&m.usageProcessed, 1)
	}
}

// ObserveUsageBatchSize counts a processed batch.
func (m *InMemoryRecorder) ObserveUsageBatchSize(size int) {
	atomic.AddUint64(&m.usageBatches, 1)
}

// ObserveUsageBatchDuration records batch processing time.
func (m *InMemoryRecorder) ObserveUsageBatchDuration(duration time.Duration) {
	atomic.AddInt64(&m.usageBatchTotalNs, duration.Nanoseconds())
}

// SetUsageQueueDepth stores the pending stream length.
func (m *InMemoryRecorder) SetUsageQueueDepth(depth int64) {
	atomic.StoreInt64(&m.usageQueueDepth, depth)
}

// ObserveUsageIngestLag records the publish-to-insert lag.
func (m *InMemoryRecorder) ObserveUsageIngestLag(lag time.Duration) {
	atomic.AddUint64(&m.ingestLagCount, 1)
	atomic.AddInt64(&m.ingestLagNs, lag.Nanoseconds())
}
