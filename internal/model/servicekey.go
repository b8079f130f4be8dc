package model

import (
	"slices"
	"time"
)

// Scope constants for service key authorization.
const (
	ScopeCreditsRead  = "credits:read"
	ScopeCreditsWrite = "credits:write"
	ScopeAdmin        = "admin"
)

// ValidScopes contains all valid scope values.
var ValidScopes = []string{ScopeCreditsRead, ScopeCreditsWrite, ScopeAdmin}

// ServiceKey is a back-office credential. Only its Argon2id hash is stored.
type ServiceKey struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`
	KeyPrefix  string     `json:"key_prefix"`
	Scopes     []string   `json:"scopes"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsRevoked returns true if the key has been revoked.
func (k *ServiceKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// HasScope checks if the key has a specific scope.
// Admin scope implies all other scopes.
func (k *ServiceKey) HasScope(scope string) bool {
	if slices.Contains(k.Scopes, ScopeAdmin) {
		return true
	}
	return slices.Contains(k.Scopes, scope)
}

// ServiceContext holds the authenticated service principal.
// It is injected into the request context by the service-key middleware.
type ServiceContext struct {
	KeyID     string
	KeyPrefix string
	Name      string
	Scopes    []string
}

// HasScope checks if the context has a specific scope.
func (c *ServiceContext) HasScope(scope string) bool {
	if slices.Contains(c.Scopes, ScopeAdmin) {
		return true
	}
	return slices.Contains(c.Scopes, scope)
}
