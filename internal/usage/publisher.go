// Package usage moves usage events from the generation path into the
// usage_logs table through a Redis stream.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aitools/platform/internal/metrics"
	"github.com/aitools/platform/internal/model"
)

const (
	// StreamKey is the Redis stream for usage events.
	StreamKey = "stream:usage_events"

	// DeadLetterStreamKey holds payloads that could not be decoded.
	DeadLetterStreamKey = "stream:usage_events:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout bounds a fire-and-forget publish.
	PublishTimeout = 100 * time.Millisecond
)

// Payload is the compact stream encoding of a usage event.
type Payload struct {
	UserID      string `json:"u"`
	Feature     string `json:"f"`
	CreditsUsed int    `json:"c"`
	TokensIn    int    `json:"ti,omitempty"`
	TokensOut   int    `json:"to,omitempty"`
	OccurredAt  int64  `json:"t"` // Unix milliseconds
}

// NewPayload encodes an event for the stream.
func NewPayload(e model.UsageEvent) Payload {
	at := e.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}
	return Payload{
		UserID:      e.UserID,
		Feature:     string(e.Feature),
		CreditsUsed: e.CreditsUsed,
		TokensIn:    e.TokensIn,
		TokensOut:   e.TokensOut,
		OccurredAt:  at.UnixMilli(),
	}
}

// Event converts the payload back into a usage event keyed by eventID.
func (p Payload) Event(eventID string) *model.UsageEvent {
	return &model.UsageEvent{
		EventID:     eventID,
		UserID:      p.UserID,
		Feature:     model.Feature(p.Feature),
		CreditsUsed: p.CreditsUsed,
		TokensIn:    p.TokensIn,
		TokensOut:   p.TokensOut,
		OccurredAt:  time.UnixMilli(p.OccurredAt).UTC(),
	}
}

// Publisher enqueues usage events to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new usage event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "usage.publisher"),
		metrics: recorder,
	}
}

// Publish adds an event to the stream synchronously and returns its stream id.
func (p *Publisher) Publish(ctx context.Context, event model.UsageEvent) (string, error) {
	data, err := json.Marshal(NewPayload(event))
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	id, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}
	return id, nil
}

// PublishAsync publishes without blocking the caller. Failures are logged
// and counted as dropped.
func (p *Publisher) PublishAsync(event model.UsageEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish usage event",
				"user_id", event.UserID,
				"feature", event.Feature,
				"error", err,
			)
			p.metrics.IncUsageEventPublished("dropped")
			return
		}

		p.logger.Debug("usage event published",
			"feature", event.Feature,
			"stream_id", streamID,
		)
		p.metrics.IncUsageEventPublished("success")
	}()
}
