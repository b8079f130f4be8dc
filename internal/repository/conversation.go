package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aitools/platform/internal/model"
	"github.com/jackc/pgx/v5"
)

// Common errors for conversation repository operations.
var (
	ErrConversationNotFound = errors.New("conversation not found")
)

const conversationColumns = `id, project_id, user_id, title, created_at, updated_at`

// CreateConversation inserts a new conversation.
func (r *Repository) CreateConversation(ctx context.Context, c *model.Conversation) error {
	query := `
		INSERT INTO conversations (` + conversationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		c.ID,
		c.ProjectID,
		c.UserID,
		c.Title,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	return nil
}

// GetConversation retrieves a conversation by ID regardless of owner.
func (r *Repository) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`

	var c model.Conversation
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.ProjectID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &c, nil
}

// ListConversations returns a user's conversations in a project, most
// recently updated first.
func (r *Repository) ListConversations(ctx context.Context, userID, projectID string) ([]*model.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE user_id = $1 AND project_id = $2
		ORDER BY updated_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, userID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []*model.Conversation{}
	for rows.Next() {
		var c model.Conversation
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}

	return conversations, nil
}

// AppendMessage inserts a message with a server-assigned timestamp and bumps
// the parent conversation's updated_at. msg.CreatedAt is filled from the row.
func (r *Repository) AppendMessage(ctx context.Context, msg *model.Message) error {
	attachments := msg.Attachments
	if attachments == nil {
		attachments = []model.Attachment{}
	}
	raw, err := json.Marshal(attachments)
	if err != nil {
		return fmt.Errorf("failed to encode attachments: %w", err)
	}

	return r.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO messages (id, conversation_id, role, content, attachments)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at
		`, msg.ID, msg.ConversationID, msg.Role, msg.Content, raw).Scan(&msg.CreatedAt)
		if err != nil {
			if isForeignKeyViolation(err) {
				return ErrConversationNotFound
			}
			return fmt.Errorf("failed to append message: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE conversations SET updated_at = GREATEST(updated_at, $2) WHERE id = $1`,
			msg.ConversationID, msg.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to touch conversation: %w", err)
		}
		return nil
	})
}

// ListMessages returns a conversation's messages in append order.
func (r *Repository) ListMessages(ctx context.Context, conversationID string) ([]*model.Message, error) {
	query := `
		SELECT id, conversation_id, role, content, attachments, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []*model.Message{}
	for rows.Next() {
		var m model.Message
		var raw []byte
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &raw, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &m.Attachments); err != nil {
				return nil, fmt.Errorf("failed to decode attachments: %w", err)
			}
		}
		if m.Attachments == nil {
			m.Attachments = []model.Attachment{}
		}
		messages = append(messages, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}
