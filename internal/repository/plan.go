package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aitools/platform/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
)

// Common errors for plan and subscription repository operations.
var (
	ErrPlanNotFound         = errors.New("plan not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// GetPlanByName retrieves a plan by case-insensitive name.
func (r *Repository) GetPlanByName(ctx context.Context, name string) (*model.Plan, error) {
	return getPlanByName(ctx, r.pool, name)
}

// ListPlans returns the catalog ordered by price.
func (r *Repository) ListPlans(ctx context.Context) ([]*model.Plan, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, chat_credits, image_credits, price_cents, created_at
		FROM plans
		ORDER BY price_cents, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []*model.Plan
	for rows.Next() {
		var p model.Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.ChatCredits, &p.ImageCredits, &p.PriceCents, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plans: %w", err)
	}

	return plans, nil
}

// UpsertPlans inserts or updates catalog entries by name in one transaction.
func (r *Repository) UpsertPlans(ctx context.Context, plans []model.Plan) error {
	query := `
		INSERT INTO plans (id, name, chat_credits, image_credits, price_cents, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			chat_credits = EXCLUDED.chat_credits,
			image_credits = EXCLUDED.image_credits,
			price_cents = EXCLUDED.price_cents
	`

	return r.withTx(ctx, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		for _, p := range plans {
			if _, err := tx.Exec(ctx, query,
				"plan_"+ulid.Make().String(),
				p.Name,
				p.ChatCredits,
				p.ImageCredits,
				p.PriceCents,
				now,
			); err != nil {
				return fmt.Errorf("failed to upsert plan %q: %w", p.Name, err)
			}
		}
		return nil
	})
}

// GetActiveSubscription retrieves the user's active subscription with its plan.
func (r *Repository) GetActiveSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	query := `
		SELECT s.id, s.user_id, s.plan_id, s.status, s.current_period_start, s.current_period_end, s.created_at,
			p.id, p.name, p.chat_credits, p.image_credits, p.price_cents, p.created_at
		FROM subscriptions s
		JOIN plans p ON p.id = s.plan_id
		WHERE s.user_id = $1 AND s.status = 'active'
		ORDER BY s.created_at DESC
		LIMIT 1
	`

	var s model.Subscription
	var p model.Plan
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&s.ID,
		&s.UserID,
		&s.PlanID,
		&s.Status,
		&s.CurrentPeriodStart,
		&s.CurrentPeriodEnd,
		&s.CreatedAt,
		&p.ID,
		&p.Name,
		&p.ChatCredits,
		&p.ImageCredits,
		&p.PriceCents,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	s.Plan = &p
	return &s, nil
}

func getPlanByName(ctx context.Context, q rowQuerier, name string) (*model.Plan, error) {
	var p model.Plan
	err := q.QueryRow(ctx, `
		SELECT id, name, chat_credits, image_credits, price_cents, created_at
		FROM plans
		WHERE name ILIKE $1
		LIMIT 1
	`, name).Scan(&p.ID, &p.Name, &p.ChatCredits, &p.ImageCredits, &p.PriceCents, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return &p, nil
}
