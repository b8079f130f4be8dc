package model

import "time"

// TitleMaxRunes bounds a conversation title derived from its first message.
const TitleMaxRunes = 50

// Role identifies the author of a message.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// AttachmentType is the kind of an attached object.
type AttachmentType string

// Attachment types.
const (
	AttachmentFile  AttachmentType = "file"
	AttachmentImage AttachmentType = "image"
)

// Attachment references an uploaded object.
type Attachment struct {
	Type AttachmentType `json:"type"`
	URL  string         `json:"url"`
	Name string         `json:"name"`
	Size int64          `json:"size"`
}

// Conversation is an ordered message log owned by one user.
type Conversation struct {
	ID        string    `json:"id"`
	ProjectID *string   `json:"project_id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one append-only turn in a conversation.
type Message struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id"`
	Role           Role         `json:"role"`
	Content        string       `json:"content"`
	Attachments    []Attachment `json:"attachments"`
	CreatedAt      time.Time    `json:"created_at"`
}

// TitleFrom derives a conversation title from a seed message.
func TitleFrom(seed string) string {
	r := []rune(seed)
	if len(r) <= TitleMaxRunes {
		return seed
	}
	return string(r[:TitleMaxRunes])
}
