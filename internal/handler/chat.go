package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aitools/platform/internal/handler/dto"
	"github.com/aitools/platform/internal/middleware"
	"github.com/aitools/platform/internal/model"
	"github.com/aitools/platform/internal/service"
)

// ChatHandler handles chat turns and graphic generations.
type ChatHandler struct {
	responder
	svc *service.Dispatcher
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(svc *service.Dispatcher, logger *slog.Logger, development bool) *ChatHandler {
	return &ChatHandler{
		responder: responder{logger: logger.With("component", "handler.chat"), development: development},
		svc:       svc,
	}
}

// Send handles POST /api/chat.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req dto.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.Chat(r.Context(), service.ChatInput{
		UserID:         user.ID,
		ConversationID: req.ConversationID,
		ProjectID:      req.ProjectID,
		Message:        req.Message,
		Attachments:    req.Attachments,
		RequestID:      middleware.GetRequestID(r.Context()),
	})
	if err != nil {
		h.handleDispatchError(w, r, "send_chat", model.PoolChat, err)
		return
	}

	dto.WriteSuccess(w, http.StatusOK, result, nil)
}

// Generate handles POST /api/generate.
func (h *ChatHandler) Generate(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req dto.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.Generate(r.Context(), service.GraphicInput{
		UserID:    user.ID,
		Type:      req.Type,
		Prompt:    req.Prompt,
		SourceURL: req.SourceURL,
		Model:     req.Model,
		RequestID: middleware.GetRequestID(r.Context()),
	})
	if err != nil {
		h.handleDispatchError(w, r, "generate", model.PoolGraphic, err)
		return
	}

	dto.WriteSuccess(w, http.StatusOK, result, nil)
}

func (h *ChatHandler) handleDispatchError(w http.ResponseWriter, r *http.Request, op string, pool model.Pool, err error) {
	var genErr *service.GenerationFailedError
	switch {
	case errors.Is(err, service.ErrInsufficientCredits):
		dto.WriteError(w, dto.CodeInsufficientCredits, insufficientCreditsMessage(pool), map[string]any{"pool": pool})
	case errors.As(err, &genErr):
		details := h.detail(genErr.Cause)
		if genErr.ConversationID != "" {
			if details == nil {
				details = map[string]any{}
			}
			details["conversation_id"] = genErr.ConversationID
		}
		dto.WriteError(w, dto.CodeGenerationFailed, "Generation failed, please try again", details)
	case errors.Is(err, service.ErrCreateConversation):
		h.handleServiceError(w, r, op, err, dto.CodeCreate, "Failed to create conversation")
	default:
		h.handleServiceError(w, r, op, err, dto.CodeInternal, "An error occurred")
	}
}
