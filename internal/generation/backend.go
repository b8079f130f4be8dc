// Package generation defines the contract with the content generation
// backend and ships a mock backend, an HTTP backend and a timeout wrapper.
package generation

import (
	"context"
	"errors"

	"github.com/aitools/platform/internal/model"
)

var (
	// ErrBackend is returned when the backend fails to produce content.
	ErrBackend = errors.New("generation backend failed")
	// ErrTimeout is returned when the backend exceeds its time budget.
	ErrTimeout = errors.New("generation timed out")
)

// Request describes one generation call.
type Request struct {
	RequestID        string                 `json:"request_id,omitempty"`
	UserID           string                 `json:"user_id"`
	Feature          model.Feature          `json:"feature"`
	Prompt           string                 `json:"prompt"`
	SystemPromptType model.SystemPromptType `json:"system_prompt_type,omitempty"`
	SourceURL        string                 `json:"source_url,omitempty"`
	Model            string                 `json:"model,omitempty"`
	Attachments      []model.Attachment     `json:"attachments,omitempty"`
}

// Result is the backend's answer. Chat sets Content, graphic features set
// AssetURL.
type Result struct {
	Content  string `json:"content,omitempty"`
	AssetURL string `json:"asset_url,omitempty"`
	Model    string `json:"model,omitempty"`
}

// Backend produces content for a request.
type Backend interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, req Request) (*Result, error)

// Generate calls f.
func (f BackendFunc) Generate(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}
