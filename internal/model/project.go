package model

import "time"

// SystemPromptType selects the behavioral framing of generated replies.
type SystemPromptType string

// System prompt types.
const (
	PromptGeneral   SystemPromptType = "general"
	PromptMarketing SystemPromptType = "marketing"
	PromptAnalysis  SystemPromptType = "analysis"
)

// IsValid reports whether t is a known system prompt type.
func (t SystemPromptType) IsValid() bool {
	switch t {
	case PromptGeneral, PromptMarketing, PromptAnalysis:
		return true
	}
	return false
}

// Project groups conversations sharing a system prompt type.
type Project struct {
	ID               string           `json:"id"`
	UserID           string           `json:"user_id"`
	Name             string           `json:"name"`
	Description      *string          `json:"description"`
	SystemPromptType SystemPromptType `json:"system_prompt_type"`
	IsArchived       bool             `json:"is_archived"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
