package handler

import (
	"log/slog"
	"net/http"

	"github.com/aitools/platform/internal/handler/dto"
	"github.com/aitools/platform/internal/model"
	"github.com/aitools/platform/internal/service"
)

// ConversationHandler serves conversation history.
type ConversationHandler struct {
	responder
	svc *service.ConversationStore
}

// NewConversationHandler creates a new ConversationHandler.
func NewConversationHandler(svc *service.ConversationStore, logger *slog.Logger, development bool) *ConversationHandler {
	return &ConversationHandler{
		responder: responder{logger: logger.With("component", "handler.conversations"), development: development},
		svc:       svc,
	}
}

// List handles GET /api/conversations?project_id=.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	conversations, err := h.svc.ListConversations(r.Context(), user.ID, r.URL.Query().Get("project_id"))
	if err != nil {
		h.handleServiceError(w, r, "list_conversations", err, dto.CodeQuery, "Failed to fetch conversations")
		return
	}
	if conversations == nil {
		conversations = []*model.Conversation{}
	}

	dto.WriteSuccess(w, http.StatusOK, conversations, nil)
}

// Messages handles GET /api/messages?conversation_id=.
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	messages, err := h.svc.ListMessages(r.Context(), user.ID, r.URL.Query().Get("conversation_id"))
	if err != nil {
		h.handleServiceError(w, r, "list_messages", err, dto.CodeQuery, "Failed to fetch messages")
		return
	}
	if messages == nil {
		messages = []*model.Message{}
	}

	dto.WriteSuccess(w, http.StatusOK, messages, nil)
}

// ProjectHandler serves the user's projects.
type ProjectHandler struct {
	responder
	svc *service.ConversationStore
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(svc *service.ConversationStore, logger *slog.Logger, development bool) *ProjectHandler {
	return &ProjectHandler{
		responder: responder{logger: logger.With("component", "handler.projects"), development: development},
		svc:       svc,
	}
}

// List handles GET /api/projects.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	projects, err := h.svc.ListProjects(r.Context(), user.ID)
	if err != nil {
		h.handleServiceError(w, r, "list_projects", err, dto.CodeQuery, "Failed to fetch projects")
		return
	}
	if projects == nil {
		projects = []*model.Project{}
	}

	dto.WriteSuccess(w, http.StatusOK, dto.ProjectsResponse{Projects: projects}, nil)
}

// Create handles POST /api/projects.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req dto.CreateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	project, err := h.svc.CreateProject(r.Context(), user.ID, service.CreateProjectInput{
		Name:             req.Name,
		Description:      req.Description,
		SystemPromptType: req.SystemPromptType,
	})
	if err != nil {
		h.handleServiceError(w, r, "create_project", err, dto.CodeCreate, "Failed to create project")
		return
	}

	h.logger.Info("project_created", "project_id", project.ID, "user_id", user.ID)
	dto.WriteSuccess(w, http.StatusOK, dto.ProjectResponse{Project: project}, nil)
}
