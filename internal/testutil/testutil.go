package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/aitools/platform/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// RequireEnv returns an environment variable or skips the test if missing.
// A .env file at the project root is loaded first when present.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	loadDotEnv()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

func loadDotEnv() {
	root, err := ProjectRoot()
	if err != nil {
		return
	}
	// Missing file is fine; existing variables win.
	_ = godotenv.Load(filepath.Join(root, ".env"))
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema drops and recreates every table by applying all down
// migrations in reverse order, then all up migrations in order.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	dir := filepath.Join(root, "migrations")
	ups, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("list up migrations: %w", err)
	}
	downs, err := filepath.Glob(filepath.Join(dir, "*.down.sql"))
	if err != nil {
		return fmt.Errorf("list down migrations: %w", err)
	}
	sort.Strings(ups)
	sort.Sort(sort.Reverse(sort.StringSlice(downs)))

	for _, path := range append(downs, ups...) {
		sql, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", filepath.Base(path), err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply migration %s: %w", filepath.Base(path), err)
		}
	}

	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser creates an identity-provider user with sensible defaults.
func NewTestUser(t testing.TB, name string) *model.User {
	t.Helper()
	id := UniqueID("user")
	return &model.User{
		ID:    id,
		Email: strings.ToLower(name) + "-" + id + "@example.com",
		UserMetadata: map[string]any{
			"full_name": name,
		},
	}
}

// NewTestProfile creates a profile that has completed onboarding.
func NewTestProfile(t testing.TB, userID string) *model.Profile {
	t.Helper()
	now := time.Now().UTC()
	return &model.Profile{
		ID:                  userID,
		Email:               userID + "@example.com",
		FullName:            "Test User",
		Locale:              model.DefaultLocale,
		OnboardingCompleted: true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// NewTestCredits creates a credits row with the given chat and image balances.
func NewTestCredits(t testing.TB, userID string, chat, bonusChat, image, bonusImage int) *model.Credits {
	t.Helper()
	now := time.Now().UTC()
	return &model.Credits{
		UserID:            userID,
		ChatCredits:       chat,
		BonusChatCredits:  bonusChat,
		ImageCredits:      image,
		BonusImageCredits: bonusImage,
		CreditsResetAt:    model.NextResetAt(now),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// NewTestProject creates a general-purpose project owned by userID.
func NewTestProject(t testing.TB, userID, name string) *model.Project {
	t.Helper()
	now := time.Now().UTC()
	return &model.Project{
		ID:               UniqueID("proj"),
		UserID:           userID,
		Name:             name,
		SystemPromptType: model.PromptGeneral,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
