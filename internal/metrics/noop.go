package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {}
func (n *NoopRecorder) IncSessionResolution(state string)                                            {}
func (n *NoopRecorder) IncGateRedirect(target string)                                                {}
func (n *NoopRecorder) IncRateLimited(scope string)                                                  {}
func (n *NoopRecorder) IncGeneration(feature, outcome string)                                        {}
func (n *NoopRecorder) ObserveGenerationDuration(feature string, duration time.Duration)             {}
func (n *NoopRecorder) AddCreditsDebited(pool string, amount int)                                    {}
func (n *NoopRecorder) IncUsageEventPublished(status string)                                         {}
func (n *NoopRecorder) IncUsageEventProcessed(status string)                                         {}
func (n *NoopRecorder) ObserveUsageBatchSize(size int)                                               {}
func (n *NoopRecorder) ObserveUsageBatchDuration(duration time.Duration)                             {}
func (n *NoopRecorder) SetUsageQueueDepth(depth int64)                                               {}
func (n *NoopRecorder) ObserveUsageIngestLag(lag time.Duration)                                      {}
