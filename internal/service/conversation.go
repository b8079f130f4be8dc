package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/aitools/platform/internal/model"
	"github.com/aitools/platform/internal/repository"
)

const (
	maxProjectNameRunes        = 100
	maxProjectDescriptionRunes = 1000
)

// ConversationStore manages projects, conversations and their messages,
// enforcing that only the owner can read or write them.
type ConversationStore struct {
	repo   ConversationRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewConversationStore creates a new ConversationStore.
func NewConversationStore(repo ConversationRepository, logger *slog.Logger) *ConversationStore {
	return &ConversationStore{
		repo:   repo,
		logger: logger.With("component", "conversations"),
		now:    time.Now,
	}
}

// CreateProjectInput defines input for creating a project.
type CreateProjectInput struct {
	Name             string
	Description      string
	SystemPromptType string
}

// CreateProject creates a project owned by userID.
func (s *ConversationStore) CreateProject(ctx context.Context, userID string, input CreateProjectInput) (*model.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || input.SystemPromptType == "" {
		return nil, NewValidationError("Missing required fields", map[string]any{
			"required": []string{"name", "system_prompt_type"},
		})
	}
	if utf8.RuneCountInString(name) > maxProjectNameRunes {
		return nil, NewValidationError(fmt.Sprintf("name must be at most %d characters", maxProjectNameRunes), nil)
	}

	kind := model.SystemPromptType(input.SystemPromptType)
	if !kind.IsValid() {
		return nil, NewValidationError("Invalid system_prompt_type", map[string]any{
			"allowed": []model.SystemPromptType{model.PromptGeneral, model.PromptMarketing, model.PromptAnalysis},
		})
	}

	var description *string
	if d := strings.TrimSpace(input.Description); d != "" {
		if utf8.RuneCountInString(d) > maxProjectDescriptionRunes {
			return nil, NewValidationError(fmt.Sprintf("description must be at most %d characters", maxProjectDescriptionRunes), nil)
		}
		description = &d
	}

	now := s.now().UTC()
	project := &model.Project{
		ID:               ulid.Make().String(),
		UserID:           userID,
		Name:             name,
		Description:      description,
		SystemPromptType: kind,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.CreateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return project, nil
}

// ListProjects returns the user's non-archived projects, newest first.
func (s *ConversationStore) ListProjects(ctx context.Context, userID string) ([]*model.Project, error) {
	projects, err := s.repo.ListProjects(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// ListConversations returns the user's conversations in a project, most
// recently updated first.
func (s *ConversationStore) ListConversations(ctx context.Context, userID, projectID string) ([]*model.Conversation, error) {
	if projectID == "" {
		return nil, NewValidationError("project_id is required", nil)
	}

	conversations, err := s.repo.ListConversations(ctx, userID, projectID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return conversations, nil
}

// ListMessages returns a conversation's messages in order. A conversation
// owned by someone else yields ErrForbidden; a missing one ErrNotFound.
func (s *ConversationStore) ListMessages(ctx context.Context, userID, conversationID string) ([]*model.Message, error) {
	if conversationID == "" {
		return nil, NewValidationError("conversation_id is required", nil)
	}

	if _, err := s.ownedConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	messages, err := s.repo.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// AppendMessage appends a message and bumps the conversation's updated_at.
// The timestamp is assigned by the store.
func (s *ConversationStore) AppendMessage(ctx context.Context, conversationID string, role model.Role, content string, attachments []model.Attachment) (*model.Message, error) {
	if attachments == nil {
		attachments = []model.Attachment{}
	}
	msg := &model.Message{
		ID:             ulid.Make().String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Attachments:    attachments,
	}

	if err := s.repo.AppendMessage(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// EnsureConversation returns the conversation a chat turn belongs to. A
// supplied conversationID must be owned by userID. Otherwise a new
// conversation is created, titled from seed, inside projectID if given.
func (s *ConversationStore) EnsureConversation(ctx context.Context, userID, projectID, conversationID, seed string) (*model.Conversation, bool, error) {
	if conversationID != "" {
		conv, err := s.ownedConversation(ctx, userID, conversationID)
		return conv, false, err
	}

	var projectRef *string
	if projectID != "" {
		if _, err := s.ownedProject(ctx, userID, projectID); err != nil {
			return nil, false, err
		}
		projectRef = &projectID
	}

	now := s.now().UTC()
	conv := &model.Conversation{
		ID:        ulid.Make().String(),
		ProjectID: projectRef,
		UserID:    userID,
		Title:     model.TitleFrom(strings.TrimSpace(seed)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateConversation(ctx, conv); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, false, ErrNotFound
		}
		return nil, false, fmt.Errorf("%w: %w", ErrCreateConversation, err)
	}
	return conv, true, nil
}

// PromptTypeFor returns the system prompt type steering a conversation.
// Conversations outside a project use the general framing.
func (s *ConversationStore) PromptTypeFor(ctx context.Context, conv *model.Conversation) (model.SystemPromptType, error) {
	if conv.ProjectID == nil {
		return model.PromptGeneral, nil
	}
	project, err := s.repo.GetProject(ctx, *conv.ProjectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return model.PromptGeneral, nil
		}
		return model.PromptGeneral, fmt.Errorf("get project: %w", err)
	}
	return project.SystemPromptType, nil
}

func (s *ConversationStore) ownedConversation(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			s.logger.Info("not_found", "resource", "conversation", "id", conversationID, "user_id", userID)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv.UserID != userID {
		s.logger.Warn("access_denied",
			"resource", "conversation",
			"id", conversationID,
			"user_id", userID,
		)
		return nil, ErrForbidden
	}
	return conv, nil
}

func (s *ConversationStore) ownedProject(ctx context.Context, userID, projectID string) (*model.Project, error) {
	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			s.logger.Info("not_found", "resource", "project", "id", projectID, "user_id", userID)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	if project.UserID != userID {
		s.logger.Warn("access_denied",
			"resource", "project",
			"id", projectID,
			"user_id", userID,
		)
		return nil, ErrForbidden
	}
	return project, nil
}
