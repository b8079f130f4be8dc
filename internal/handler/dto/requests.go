package dto

import "github.com/aitools/platform/internal/model"

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message        string             `json:"message"`
	ProjectID      string             `json:"project_id,omitempty"`
	ConversationID string             `json:"conversation_id,omitempty"`
	Attachments    []model.Attachment `json:"attachments,omitempty"`
}

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Type      string `json:"type"`
	Prompt    string `json:"prompt"`
	SourceURL string `json:"source_url,omitempty"`
	Model     string `json:"model,omitempty"`
}

// CreateProjectRequest is the body of POST /api/projects.
type CreateProjectRequest struct {
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	SystemPromptType string `json:"system_prompt_type"`
}

// OnboardingRequest is the body of POST /api/onboarding.
type OnboardingRequest struct {
	Phone       string `json:"phone"`
	CompanyName string `json:"company_name"`
	JobTitle    string `json:"job_title"`
	Industry    string `json:"industry"`
	Locale      string `json:"locale,omitempty"`
}

// GrantBonusRequest is the body of POST /admin/v1/credits/{user_id}/bonus.
type GrantBonusRequest struct {
	Pool   string `json:"pool"`
	Amount int    `json:"amount"`
}

// ProjectsResponse wraps the project list.
type ProjectsResponse struct {
	Projects []*model.Project `json:"projects"`
}

// ProjectResponse wraps a created project.
type ProjectResponse struct {
	Project *model.Project `json:"project"`
}

// ProfileResponse wraps a profile after onboarding.
type ProfileResponse struct {
	Profile *model.Profile `json:"profile"`
}

// PageResponse describes a page that passed the gate when no frontend is
// configured to render it.
type PageResponse struct {
	Page          string `json:"page"`
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
}

// CreateServiceKeyRequest is the body of POST /admin/v1/keys.
type CreateServiceKeyRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
	Env    string   `json:"env,omitempty"`
}

// ServiceKeyCreated carries the plaintext key. It is shown once.
type ServiceKeyCreated struct {
	*model.ServiceKey
	Key string `json:"key"`
}

// ServiceKeysResponse wraps the key list.
type ServiceKeysResponse struct {
	Keys []*model.ServiceKey `json:"keys"`
}
