package usage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aitools/platform/internal/metrics"
	"github.com/aitools/platform/internal/model"
)

func TestPayload_Event(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	p := NewPayload(model.UsageEvent{
		UserID:      "u-1",
		Feature:     model.FeatureVideo,
		CreditsUsed: 2,
		OccurredAt:  at,
	})

	e := p.Event("1700000000000-0")
	if e.EventID != "1700000000000-0" || e.Feature != model.FeatureVideo || e.CreditsUsed != 2 {
		t.Errorf("event = %+v", e)
	}
	if !e.OccurredAt.Equal(at) {
		t.Errorf("OccurredAt = %v, want %v", e.OccurredAt, at)
	}
}

func TestValidatePayload(t *testing.T) {
	t.Parallel()

	valid := Payload{UserID: "u-1", Feature: "chat", CreditsUsed: 1, OccurredAt: 1}

	tests := []struct {
		name    string
		mutate  func(p *Payload)
		wantErr bool
	}{
		{"valid", func(p *Payload) {}, false},
		{"missing user", func(p *Payload) { p.UserID = "" }, true},
		{"unknown feature", func(p *Payload) { p.Feature = "music" }, true},
		{"zero credits", func(p *Payload) { p.CreditsUsed = 0 }, true},
		{"negative tokens", func(p *Payload) { p.TokensIn = -1 }, true},
		{"missing time", func(p *Payload) { p.OccurredAt = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := valid
			tt.mutate(&p)
			if err := ValidatePayload(p); (err != nil) != tt.wantErr {
				t.Errorf("ValidatePayload() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		values     map[string]interface{}
		wantReason string
	}{
		{"valid", map[string]interface{}{"payload": `{"u":"u-1","f":"image","c":1,"t":1700000000000}`}, ""},
		{"missing payload", map[string]interface{}{"other": "x"}, "invalid_format"},
		{"bad json", map[string]interface{}{"payload": "{nope"}, "unmarshal_error"},
		{"invalid fields", map[string]interface{}{"payload": `{"u":"","f":"chat","c":1,"t":1}`}, "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			event, reason, _ := decodeMessage(redis.XMessage{ID: "1-0", Values: tt.values})
			if reason != tt.wantReason {
				t.Fatalf("reason = %q, want %q", reason, tt.wantReason)
			}
			if tt.wantReason == "" && (event == nil || event.EventID != "1-0") {
				t.Errorf("event = %+v", event)
			}
		})
	}
}

type flakyRepo struct {
	mu       sync.Mutex
	failures int
	calls    int
	inserted []*model.UsageEvent
}

func (r *flakyRepo) BulkInsert(ctx context.Context, events []*model.UsageEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.calls <= r.failures {
		return errors.New("db unavailable")
	}
	r.inserted = append(r.inserted, events...)
	return nil
}

func newTestWorker(repo Repository, rec metrics.Recorder) *Worker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := NewWorker(nil, repo, logger, "test-consumer", rec)
	w.SetRetryBackoff(time.Millisecond)
	return w
}

func TestProcessBatchWithRetry(t *testing.T) {
	t.Parallel()

	events := []*model.UsageEvent{
		{EventID: "1-0", UserID: "u-1", Feature: model.FeatureChat, CreditsUsed: 1, OccurredAt: time.Now()},
		{EventID: "2-0", UserID: "u-2", Feature: model.FeatureImage, CreditsUsed: 1, OccurredAt: time.Now()},
	}

	t.Run("recovers after transient failures", func(t *testing.T) {
		t.Parallel()

		repo := &flakyRepo{failures: 2}
		rec := metrics.NewInMemory()
		if err := newTestWorker(repo, rec).processBatchWithRetry(context.Background(), events); err != nil {
			t.Fatalf("processBatchWithRetry: %v", err)
		}
		if repo.calls != 3 || len(repo.inserted) != 2 {
			t.Errorf("calls=%d inserted=%d", repo.calls, len(repo.inserted))
		}
		if got := rec.Snapshot().UsageProcessed; got != 2 {
			t.Errorf("UsageProcessed = %d, want 2", got)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		t.Parallel()

		repo := &flakyRepo{failures: 10}
		rec := metrics.NewInMemory()
		err := newTestWorker(repo, rec).processBatchWithRetry(context.Background(), events)
		if err == nil {
			t.Fatal("expected error")
		}
		if repo.calls != DefaultMaxRetries {
			t.Errorf("calls = %d, want %d", repo.calls, DefaultMaxRetries)
		}
		if got := rec.Snapshot().UsageFailed; got != 2 {
			t.Errorf("UsageFailed = %d, want 2", got)
		}
	})
}

func TestIsConsumerGroupExistsError(t *testing.T) {
	t.Parallel()

	if !isConsumerGroupExistsError(errors.New("BUSYGROUP Consumer Group name already exists")) {
		t.Error("BUSYGROUP should be recognised")
	}
	if isConsumerGroupExistsError(errors.New("ERR no such key")) || isConsumerGroupExistsError(nil) {
		t.Error("other errors should not match")
	}
}
