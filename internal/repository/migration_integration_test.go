//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/aitools/platform/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ============================================================================
// Migration Integration Tests
// ============================================================================

func TestIntegrationMigration_ApplyAllTables(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	tables := []string{
		"profiles",
		"plans",
		"subscriptions",
		"credits",
		"projects",
		"conversations",
		"messages",
		"usage_logs",
		"service_keys",
	}

	for _, table := range tables {
		t.Run(table, func(t *testing.T) {
			exists, err := tableExists(ctx, pool, table)
			if err != nil {
				t.Fatalf("tableExists failed: %v", err)
			}
			if !exists {
				t.Errorf("Table %q should exist after migrations", table)
			}
		})
	}
}

func TestIntegrationMigration_CreditsConstraints(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	if _, err := pool.Exec(ctx, `INSERT INTO profiles (id, email) VALUES ('u1', 'u1@example.com')`); err != nil {
		t.Fatalf("insert profile: %v", err)
	}

	for _, col := range []string{"chat_credits", "bonus_chat_credits", "image_credits", "bonus_image_credits"} {
		t.Run(col, func(t *testing.T) {
			_, err := pool.Exec(ctx,
				`INSERT INTO credits (user_id, `+col+`, credits_reset_at) VALUES ('u1', -1, NOW())`)
			if err == nil {
				t.Errorf("expected check constraint violation for negative %s", col)
			}
		})
	}
}

func TestIntegrationMigration_ProjectConstraints(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	if _, err := pool.Exec(ctx, `INSERT INTO profiles (id, email) VALUES ('u1', 'u1@example.com')`); err != nil {
		t.Fatalf("insert profile: %v", err)
	}

	_, err := pool.Exec(ctx, `
		INSERT INTO projects (id, user_id, name, system_prompt_type)
		VALUES ('p1', 'u1', 'Bad', 'poetry')
	`)
	if err == nil {
		t.Error("Expected check constraint violation for unknown system_prompt_type")
	}
}

func TestIntegrationMigration_FreePlanSeeded(t *testing.T) {
	ctx, pool := newMigrationTestEnv(t)

	var chat, image int
	err := pool.QueryRow(ctx, `SELECT chat_credits, image_credits FROM plans WHERE name = 'free'`).Scan(&chat, &image)
	if err != nil {
		t.Fatalf("free plan lookup: %v", err)
	}
	if chat != 50 || image != 3 {
		t.Errorf("free plan = %d/%d, want 50/3", chat, image)
	}
}

func TestIntegrationMigration_MigrateRunner(t *testing.T) {
	_, _ = newMigrationTestEnv(t)

	dbURL := testutil.RequireEnv(t, "DATABASE_URL")
	root, err := testutil.ProjectRoot()
	if err != nil {
		t.Fatalf("ProjectRoot failed: %v", err)
	}

	// Tables already exist from ResetSchema; every statement is IF NOT EXISTS.
	version, err := Migrate(dbURL, root+"/migrations")
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if version < 5 {
		t.Errorf("expected schema version >= 5, got %d", version)
	}

	// Second run is a no-op.
	if _, err := Migrate(dbURL, root+"/migrations"); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

// ============================================================================
// Helper Functions
// ============================================================================

func tableExists(ctx context.Context, pool *pgxpool.Pool, tableName string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = $1
		)
	`, tableName).Scan(&exists)
	return exists, err
}

// ============================================================================
// Test Environment Setup
// ============================================================================

func newMigrationTestEnv(t *testing.T) (context.Context, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)

	unlock, err := testutil.AcquireDBLock(ctx, pool)
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetSchema(ctx, pool); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return ctx, pool
}
