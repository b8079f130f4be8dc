package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aitools/platform/internal/auth"
	"github.com/aitools/platform/internal/model"
	"github.com/aitools/platform/internal/repository"
)

// Reasons a service key is rejected. Callers log them; clients only ever see
// a uniform 401.
var (
	ErrKeyMissing = errors.New("missing_key")
	ErrKeyFormat  = errors.New("invalid_format")
	ErrKeyInvalid = errors.New("invalid_key")
	ErrKeyRevoked = errors.New("revoked_key")
)

const lastUsedTimeout = 5 * time.Second

// ServiceKeys authenticates and mints back-office service keys.
type ServiceKeys struct {
	store  ServiceKeyStore
	logger *slog.Logger
}

// NewServiceKeys creates a new ServiceKeys service.
func NewServiceKeys(store ServiceKeyStore, logger *slog.Logger) *ServiceKeys {
	return &ServiceKeys{
		store:  store,
		logger: logger.With("component", "service_keys"),
	}
}

// Authenticate resolves a raw key to its principal. Candidates sharing the
// prefix are each verified so that prefix collisions cannot grant access.
func (s *ServiceKeys) Authenticate(ctx context.Context, rawKey string) (*model.ServiceContext, error) {
	if rawKey == "" {
		return nil, ErrKeyMissing
	}

	parsed, err := auth.ParseServiceKey(rawKey)
	if err != nil {
		return nil, ErrKeyFormat
	}

	keys, err := s.store.GetServiceKeysByPrefix(ctx, parsed.Prefix)
	if err != nil {
		return nil, fmt.Errorf("lookup service keys: %w", err)
	}

	var matched *model.ServiceKey
	for _, k := range keys {
		ok, err := auth.VerifySecret(rawKey, k.KeyHash)
		if err != nil {
			continue
		}
		if ok {
			matched = k
			break
		}
	}
	if matched == nil {
		return nil, ErrKeyInvalid
	}
	if matched.IsRevoked() {
		return nil, ErrKeyRevoked
	}
	if auth.NeedsRehash(matched.KeyHash, auth.DefaultHashParams) {
		s.logger.Warn("service key hashed below current cost, rotate it", "key_id", matched.ID)
	}

	go s.touch(matched.ID)

	return &model.ServiceContext{
		KeyID:     matched.ID,
		KeyPrefix: matched.KeyPrefix,
		Name:      matched.Name,
		Scopes:    matched.Scopes,
	}, nil
}

// touch records key usage outside the request lifetime.
func (s *ServiceKeys) touch(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), lastUsedTimeout)
	defer cancel()
	if err := s.store.UpdateServiceKeyLastUsed(ctx, id); err != nil {
		s.logger.Warn("failed to update key last_used_at", "key_id", id, "error", err)
	}
}

// Create mints a key and stores its hash. The plaintext is returned once and
// never persisted.
func (s *ServiceKeys) Create(ctx context.Context, name string, scopes []string, env string) (*model.ServiceKey, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", NewValidationError("name is required", nil)
	}
	if len(scopes) == 0 {
		return nil, "", NewValidationError("at least one scope is required", map[string]any{"allowed": model.ValidScopes})
	}
	for _, sc := range scopes {
		if !slices.Contains(model.ValidScopes, sc) {
			return nil, "", NewValidationError(fmt.Sprintf("invalid scope %q", sc), map[string]any{"allowed": model.ValidScopes})
		}
	}

	generated, err := auth.GenerateServiceKey(env)
	if err != nil {
		return nil, "", fmt.Errorf("generate key: %w", err)
	}

	key := &model.ServiceKey{
		ID:        uuid.NewString(),
		Name:      name,
		KeyHash:   generated.Hash,
		KeyPrefix: generated.Prefix,
		Scopes:    scopes,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateServiceKey(ctx, key); err != nil {
		return nil, "", fmt.Errorf("create service key: %w", err)
	}

	s.logger.Info("service key created", "key_id", key.ID, "key_prefix", key.KeyPrefix, "scopes", scopes)
	return key, generated.Plaintext, nil
}

// List returns all keys without their hashes.
func (s *ServiceKeys) List(ctx context.Context) ([]*model.ServiceKey, error) {
	keys, err := s.store.ListServiceKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list service keys: %w", err)
	}
	return keys, nil
}

// Revoke disables a key. Revoking an unknown or already revoked key yields
// ErrNotFound. A key cannot revoke itself.
func (s *ServiceKeys) Revoke(ctx context.Context, id, callerKeyID string) error {
	if id == callerKeyID {
		return NewValidationError("a key cannot revoke itself", nil)
	}
	if err := s.store.RevokeServiceKey(ctx, id); err != nil {
		if errors.Is(err, repository.ErrServiceKeyNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("revoke service key: %w", err)
	}
	s.logger.Info("service key revoked", "key_id", id, "revoked_by", callerKeyID)
	return nil
}
