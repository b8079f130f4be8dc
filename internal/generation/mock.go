package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aitools/platform/internal/model"
)

const mockModel = "mock-1"

// MockBackend returns canned content after a fixed delay. It is the
// default backend until a real provider is configured.
type MockBackend struct {
	delay     time.Duration
	assetBase string
}

// NewMockBackend creates a mock backend. Asset URLs are rooted at assetBase.
func NewMockBackend(delay time.Duration, assetBase string) *MockBackend {
	if assetBase == "" {
		assetBase = "https://assets.example.invalid/mock"
	}
	return &MockBackend{delay: delay, assetBase: assetBase}
}

// Generate waits for the configured delay, honoring ctx, then answers.
func (m *MockBackend) Generate(ctx context.Context, req Request) (*Result, error) {
	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if req.Feature == model.FeatureChat {
		return &Result{Content: cannedReply(req.SystemPromptType, req.Prompt), Model: mockModel}, nil
	}

	ext, ok := assetExtensions[req.Feature]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported feature %q", ErrBackend, req.Feature)
	}
	return &Result{
		AssetURL: fmt.Sprintf("%s/%s/%s.%s", m.assetBase, req.Feature, ulid.Make().String(), ext),
		Model:    mockModel,
	}, nil
}

var assetExtensions = map[model.Feature]string{
	model.FeatureImage: "png",
	model.FeatureVideo: "mp4",
	model.FeatureAudio: "mp3",
}

func cannedReply(kind model.SystemPromptType, prompt string) string {
	switch kind {
	case model.PromptMarketing:
		return fmt.Sprintf("For the marketing question %q I would suggest:\n\n"+
			"1. Define the target audience\n"+
			"2. Create content that speaks to them\n"+
			"3. Use social channels with a clear plan\n\n"+
			"Would you like a detailed plan?", prompt)
	case model.PromptAnalysis:
		return fmt.Sprintf("Looking at %q, here is a first pass:\n\n"+
			"**Insights:**\n- Patterns: ...\n- Trends: ...\n- Recommendations: ...\n\n"+
			"Which angle should I dig into next?", prompt)
	default:
		return fmt.Sprintf("Got it: %q\n\nI can help with this. What would you like me to expand on?", prompt)
	}
}
