// Package model defines domain entities for the application.
package model

import "strings"

// User is the identity resolved from a session token. It is owned by the
// identity provider and never mutated here.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// DisplayName picks the best available name: metadata full_name, then name,
// then the local part of the email address.
func (u *User) DisplayName() string {
	for _, key := range []string{"full_name", "name"} {
		if v, ok := u.UserMetadata[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if at := strings.Index(u.Email, "@"); at > 0 {
		return u.Email[:at]
	}
	return u.Email
}

// AvatarURL returns the avatar_url metadata value, if any.
func (u *User) AvatarURL() string {
	v, _ := u.UserMetadata["avatar_url"].(string)
	return v
}
