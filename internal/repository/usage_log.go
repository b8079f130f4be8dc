package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aitools/platform/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"github.com/oklog/ulid/v2"
)

// UsageLogRepository provides database access for usage logs.
type UsageLogRepository struct {
	repo *Repository
}

// NewUsageLogRepository creates a new UsageLogRepository.
func NewUsageLogRepository(repo *Repository) *UsageLogRepository {
	return &UsageLogRepository{repo: repo}
}

// BulkInsert inserts usage events with idempotency via ON CONFLICT DO NOTHING.
func (r *UsageLogRepository) BulkInsert(ctx context.Context, events []*model.UsageEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	query := `
		INSERT INTO usage_logs (
			id, event_id, user_id, feature_type, credits_used, tokens_in, tokens_out, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO NOTHING
	`

	for _, event := range events {
		batch.Queue(query,
			ulid.Make().String(),
			event.EventID,
			event.UserID,
			string(event.Feature),
			event.CreditsUsed,
			event.TokensIn,
			event.TokensOut,
			event.OccurredAt,
		)
	}

	results := r.repo.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(events); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert usage event %d: %w", i, err)
		}
	}

	return nil
}

// Totals returns distinct users, credits spent and generation count in
// [from, to] for the given features.
func (r *UsageLogRepository) Totals(ctx context.Context, from, to time.Time, features []model.Feature) (users, credits, generations int64, err error) {
	query := `
		SELECT COUNT(DISTINCT user_id), COALESCE(SUM(credits_used), 0), COUNT(*)
		FROM usage_logs
		WHERE created_at >= $1 AND created_at <= $2 AND feature_type = ANY($3)
	`

	err = r.repo.pool.QueryRow(ctx, query, from, to, pq.Array(featureNames(features))).
		Scan(&users, &credits, &generations)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("query usage totals: %w", err)
	}
	return users, credits, generations, nil
}

// FeatureBreakdown counts generations per feature in [from, to].
func (r *UsageLogRepository) FeatureBreakdown(ctx context.Context, from, to time.Time, features []model.Feature) (map[model.Feature]int64, error) {
	query := `
		SELECT feature_type, COUNT(*)
		FROM usage_logs
		WHERE created_at >= $1 AND created_at <= $2 AND feature_type = ANY($3)
		GROUP BY feature_type
	`

	rows, err := r.repo.pool.Query(ctx, query, from, to, pq.Array(featureNames(features)))
	if err != nil {
		return nil, fmt.Errorf("query feature breakdown: %w", err)
	}
	defer rows.Close()

	breakdown := make(map[model.Feature]int64, len(features))
	for rows.Next() {
		var feature string
		var count int64
		if err := rows.Scan(&feature, &count); err != nil {
			return nil, fmt.Errorf("scan feature breakdown: %w", err)
		}
		breakdown[model.Feature(feature)] = count
	}

	return breakdown, rows.Err()
}

// DailyStats aggregates usage per UTC day in [from, to]. Days without usage
// are absent; callers zero-fill.
func (r *UsageLogRepository) DailyStats(ctx context.Context, from, to time.Time, features []model.Feature) ([]model.DailyUsage, error) {
	query := `
		SELECT to_char(date_trunc('day', created_at AT TIME ZONE 'UTC'), 'YYYY-MM-DD') AS day,
			COUNT(DISTINCT user_id), COALESCE(SUM(credits_used), 0), COUNT(*)
		FROM usage_logs
		WHERE created_at >= $1 AND created_at <= $2 AND feature_type = ANY($3)
		GROUP BY day
		ORDER BY day
	`

	rows, err := r.repo.pool.Query(ctx, query, from, to, pq.Array(featureNames(features)))
	if err != nil {
		return nil, fmt.Errorf("query daily usage: %w", err)
	}
	defer rows.Close()

	var stats []model.DailyUsage
	for rows.Next() {
		var d model.DailyUsage
		if err := rows.Scan(&d.Date, &d.Users, &d.Credits, &d.Generations); err != nil {
			return nil, fmt.Errorf("scan daily usage: %w", err)
		}
		stats = append(stats, d)
	}

	return stats, rows.Err()
}

func featureNames(features []model.Feature) []string {
	if len(features) == 0 {
		features = model.AllFeatures
	}
	names := make([]string, len(features))
	for i, f := range features {
		names[i] = string(f)
	}
	return names
}
