// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Generation outcomes.
const (
	OutcomeSuccess      = "success"
	OutcomeFailed       = "failed"
	OutcomeInsufficient = "insufficient_credits"
	OutcomeRejected     = "rejected"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus or keep them in memory.
type Recorder interface {
	// HTTP
	ObserveHTTPRequest(method, route string, status int, duration time.Duration)

	// Session gate
	IncSessionResolution(state string)
	IncGateRedirect(target string)
	IncRateLimited(scope string)

	// Generation dispatcher
	IncGeneration(feature, outcome string)
	ObserveGenerationDuration(feature string, duration time.Duration)
	AddCreditsDebited(pool string, amount int)

	// Usage pipeline
	IncUsageEventPublished(status string) // status: "success" or "dropped"
	IncUsageEventProcessed(status string) // status: "success", "failed", "skipped"
	ObserveUsageBatchSize(size int)
	ObserveUsageBatchDuration(duration time.Duration)
	SetUsageQueueDepth(depth int64)
	ObserveUsageIngestLag(lag time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
