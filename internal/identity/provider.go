// Package identity resolves opaque session tokens against the hosted
// identity provider. Tokens are forwarded as-is and never parsed.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aitools/platform/internal/model"
)

var (
	// ErrInvalidSession is returned when the provider rejects the token.
	ErrInvalidSession = errors.New("invalid session")
	// ErrProviderUnavailable wraps transport failures and 5xx answers.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
)

// Provider resolves a session token to the user it belongs to.
type Provider interface {
	ResolveUser(ctx context.Context, token string) (*model.User, error)
}

// NewHTTPClient creates an HTTP client for provider calls. It does not
// follow redirects.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   20,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// SupabaseProvider talks to a Supabase-compatible auth endpoint.
type SupabaseProvider struct {
	baseURL string
	anonKey string
	client  *http.Client
}

// NewSupabaseProvider creates a provider rooted at baseURL.
func NewSupabaseProvider(baseURL, anonKey string, client *http.Client) *SupabaseProvider {
	return &SupabaseProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		client:  client,
	}
}

type userResponse struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// ResolveUser calls GET /auth/v1/user with the token as bearer credential.
func (p *SupabaseProvider) ResolveUser(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("build identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if p.anonKey != "" {
		req.Header.Set("apikey", p.anonKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, ErrInvalidSession
	case resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected identity status %d", resp.StatusCode)
	}

	var body userResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode identity response: %w", err)
	}
	if body.ID == "" {
		return nil, ErrInvalidSession
	}

	return &model.User{
		ID:           body.ID,
		Email:        body.Email,
		UserMetadata: body.UserMetadata,
	}, nil
}

// StaticProvider resolves tokens from a fixed table. Unknown tokens are
// invalid sessions. Useful for local development and tests.
type StaticProvider struct {
	Users map[string]*model.User
	Err   error
}

// ResolveUser returns the user registered for token.
func (p *StaticProvider) ResolveUser(_ context.Context, token string) (*model.User, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	if u, ok := p.Users[token]; ok {
		return u, nil
	}
	return nil, ErrInvalidSession
}
