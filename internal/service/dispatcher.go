package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aitools/platform/internal/generation"
	"github.com/aitools/platform/internal/metrics"
	"github.com/aitools/platform/internal/model"
)

const (
	maxMessageRunes = 10000
	maxPromptRunes  = 4000
	maxAttachments  = 10
)

// Dispatcher runs a generation request through its fixed sequence of steps:
// validate, onboarding, credit check, conversation, user turn, generate,
// assistant turn, debit and finally usage publication.
type Dispatcher struct {
	ledger        *Ledger
	conversations *ConversationStore
	onboarding    *Onboarding
	backend       generation.Backend
	publisher     UsagePublisher
	logger        *slog.Logger
	metrics       metrics.Recorder
	now           func() time.Time
}

// NewDispatcher creates a new Dispatcher. publisher and recorder may be nil.
func NewDispatcher(
	ledger *Ledger,
	conversations *ConversationStore,
	onboarding *Onboarding,
	backend generation.Backend,
	publisher UsagePublisher,
	logger *slog.Logger,
	recorder metrics.Recorder,
) *Dispatcher {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Dispatcher{
		ledger:        ledger,
		conversations: conversations,
		onboarding:    onboarding,
		backend:       backend,
		publisher:     publisher,
		logger:        logger.With("component", "dispatcher"),
		metrics:       recorder,
		now:           time.Now,
	}
}

// ChatInput is one chat turn.
type ChatInput struct {
	UserID         string
	ConversationID string
	ProjectID      string
	Message        string
	Attachments    []model.Attachment
	RequestID      string
}

// ChatResult is the response to a chat turn.
type ChatResult struct {
	ConversationID   string `json:"conversation_id"`
	Message          string `json:"message"`
	CreditsRemaining int    `json:"credits_remaining"`
}

// Chat handles one chat turn. An unaffordable turn writes nothing. Once the
// conversation is resolved the user turn is kept even when generation fails,
// and a failed generation is never debited.
func (d *Dispatcher) Chat(ctx context.Context, in ChatInput) (*ChatResult, error) {
	if in.UserID == "" {
		return nil, ErrUnauthorized
	}

	message := strings.TrimSpace(in.Message)
	if message == "" {
		return nil, NewValidationError("Message is required", nil)
	}
	if utf8.RuneCountInString(message) > maxMessageRunes {
		return nil, NewValidationError(fmt.Sprintf("Message must be at most %d characters", maxMessageRunes), nil)
	}
	if err := validateAttachments(in.Attachments); err != nil {
		return nil, err
	}

	if err := d.onboarding.RequireCompleted(ctx, in.UserID); err != nil {
		return nil, err
	}

	feature := model.FeatureChat
	if err := d.checkCredits(ctx, in.UserID, feature); err != nil {
		return nil, err
	}

	conv, created, err := d.conversations.EnsureConversation(ctx, in.UserID, in.ProjectID, in.ConversationID, message)
	if err != nil {
		return nil, err
	}
	if created {
		d.logger.Debug("conversation created", "conversation_id", conv.ID, "user_id", in.UserID)
	}

	if _, err := d.conversations.AppendMessage(ctx, conv.ID, model.RoleUser, message, in.Attachments); err != nil {
		d.logger.Error("failed to store user message",
			"error", err,
			"conversation_id", conv.ID,
			"request_id", in.RequestID,
		)
	}

	promptType, err := d.conversations.PromptTypeFor(ctx, conv)
	if err != nil {
		d.logger.Warn("prompt type lookup failed, using general", "error", err, "conversation_id", conv.ID)
	}

	result, err := d.generate(ctx, generation.Request{
		RequestID:        in.RequestID,
		UserID:           in.UserID,
		Feature:          feature,
		Prompt:           message,
		SystemPromptType: promptType,
		Attachments:      in.Attachments,
	})
	if err != nil {
		return nil, &GenerationFailedError{ConversationID: conv.ID, Cause: err}
	}

	if _, err := d.conversations.AppendMessage(ctx, conv.ID, model.RoleAssistant, result.Content, nil); err != nil {
		d.logger.Error("failed to store assistant message",
			"error", err,
			"conversation_id", conv.ID,
			"request_id", in.RequestID,
		)
	}

	remaining, err := d.debit(ctx, in.UserID, feature)
	if err != nil {
		return nil, err
	}

	d.publish(in.UserID, feature, generation.CountTokens(message), generation.CountTokens(result.Content))

	return &ChatResult{
		ConversationID:   conv.ID,
		Message:          result.Content,
		CreditsRemaining: remaining,
	}, nil
}

// GraphicInput is one image, video or audio generation.
type GraphicInput struct {
	UserID    string
	Type      string
	Prompt    string
	SourceURL string
	Model     string
	RequestID string
}

// GraphicResult is the response to a graphic generation.
type GraphicResult struct {
	Type             model.Feature `json:"type"`
	AssetURL         string        `json:"asset_url"`
	CreditsRemaining int           `json:"credits_remaining"`
}

// Generate handles a graphic generation. It follows the chat sequence
// without the conversation steps.
func (d *Dispatcher) Generate(ctx context.Context, in GraphicInput) (*GraphicResult, error) {
	if in.UserID == "" {
		return nil, ErrUnauthorized
	}

	feature, err := model.ParseFeature(in.Type)
	if err != nil || feature == model.FeatureChat {
		return nil, NewValidationError("Invalid type", map[string]any{
			"allowed": []model.Feature{model.FeatureImage, model.FeatureVideo, model.FeatureAudio},
		})
	}
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return nil, NewValidationError("Prompt is required", nil)
	}
	if utf8.RuneCountInString(prompt) > maxPromptRunes {
		return nil, NewValidationError(fmt.Sprintf("Prompt must be at most %d characters", maxPromptRunes), nil)
	}
	if in.SourceURL != "" && !isHTTPURL(in.SourceURL) {
		return nil, NewValidationError("source_url must be an http(s) URL", nil)
	}

	if err := d.onboarding.RequireCompleted(ctx, in.UserID); err != nil {
		return nil, err
	}
	if err := d.checkCredits(ctx, in.UserID, feature); err != nil {
		return nil, err
	}

	result, err := d.generate(ctx, generation.Request{
		RequestID: in.RequestID,
		UserID:    in.UserID,
		Feature:   feature,
		Prompt:    prompt,
		SourceURL: in.SourceURL,
		Model:     in.Model,
	})
	if err != nil {
		return nil, &GenerationFailedError{Cause: err}
	}

	remaining, err := d.debit(ctx, in.UserID, feature)
	if err != nil {
		return nil, err
	}

	d.publish(in.UserID, feature, generation.CountTokens(prompt), 0)

	return &GraphicResult{
		Type:             feature,
		AssetURL:         result.AssetURL,
		CreditsRemaining: remaining,
	}, nil
}

func (d *Dispatcher) checkCredits(ctx context.Context, userID string, feature model.Feature) error {
	balance, err := d.ledger.Available(ctx, userID, feature.Pool())
	if err != nil {
		return err
	}
	if balance.Total < feature.Cost() {
		d.metrics.IncGeneration(string(feature), metrics.OutcomeInsufficient)
		return ErrInsufficientCredits
	}
	return nil
}

func (d *Dispatcher) generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	start := time.Now()
	result, err := d.backend.Generate(ctx, req)
	d.metrics.ObserveGenerationDuration(string(req.Feature), time.Since(start))
	if err != nil {
		d.metrics.IncGeneration(string(req.Feature), metrics.OutcomeFailed)
		d.logger.Error("generation failed",
			"error", err,
			"feature", req.Feature,
			"user_id", req.UserID,
			"request_id", req.RequestID,
			"timeout", errors.Is(err, generation.ErrTimeout),
		)
		return nil, err
	}
	return result, nil
}

// debit charges a successful generation. Losing a race with a concurrent
// debit after the backend already answered surfaces as insufficient credits.
func (d *Dispatcher) debit(ctx context.Context, userID string, feature model.Feature) (int, error) {
	remaining, err := d.ledger.Debit(ctx, userID, feature.Pool(), feature.Cost())
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			d.metrics.IncGeneration(string(feature), metrics.OutcomeInsufficient)
			d.logger.Warn("debit rejected after generation", "user_id", userID, "feature", feature)
		}
		return 0, err
	}
	d.metrics.IncGeneration(string(feature), metrics.OutcomeSuccess)
	return remaining, nil
}

func (d *Dispatcher) publish(userID string, feature model.Feature, tokensIn, tokensOut int) {
	d.publisher.PublishAsync(model.UsageEvent{
		UserID:      userID,
		Feature:     feature,
		CreditsUsed: feature.Cost(),
		TokensIn:    tokensIn,
		TokensOut:   tokensOut,
		OccurredAt:  d.now().UTC(),
	})
}

func validateAttachments(attachments []model.Attachment) error {
	if len(attachments) > maxAttachments {
		return NewValidationError(fmt.Sprintf("At most %d attachments are allowed", maxAttachments), nil)
	}
	for i, a := range attachments {
		if a.Type != model.AttachmentFile && a.Type != model.AttachmentImage {
			return NewValidationError("Invalid attachment type", map[string]any{"index": i})
		}
		if !isHTTPURL(a.URL) {
			return NewValidationError("Invalid attachment url", map[string]any{"index": i})
		}
		if a.Size < 0 {
			return NewValidationError("Invalid attachment size", map[string]any{"index": i})
		}
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
