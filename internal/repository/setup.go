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

// ErrFreePlanMissing is returned when the catalog has no free plan to
// bootstrap a new account with.
var ErrFreePlanMissing = errors.New("free plan not found")

// SetupProfile bootstraps profile, subscription and credits for user in one
// transaction. An existing profile is left untouched and created is false.
// Concurrent first calls converge through ON CONFLICT DO NOTHING.
func (r *Repository) SetupProfile(ctx context.Context, user *model.User, now time.Time) (details *model.ProfileDetails, created bool, err error) {
	now = now.UTC()

	err = r.withTx(ctx, func(tx pgx.Tx) error {
		var avatar *string
		if a := user.AvatarURL(); a != "" {
			avatar = &a
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO profiles (id, email, full_name, avatar_url, locale, onboarding_completed, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, FALSE, $6, $6)
			ON CONFLICT (id) DO NOTHING
		`, user.ID, user.Email, user.DisplayName(), avatar, model.DefaultLocale, now)
		if err != nil {
			return fmt.Errorf("failed to create profile: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		created = true

		plan, err := getPlanByName(ctx, tx, model.FreePlanName)
		if err != nil {
			if errors.Is(err, ErrPlanNotFound) {
				return ErrFreePlanMissing
			}
			return err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO subscriptions (id, user_id, plan_id, status, current_period_start, current_period_end, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $5)
			ON CONFLICT (user_id) WHERE status = 'active' DO NOTHING
		`, "sub_"+ulid.Make().String(), user.ID, plan.ID, model.SubscriptionActive, now, now.Add(model.SubscriptionPeriod)); err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}

		chat, image := plan.ChatCredits, plan.ImageCredits
		if chat == 0 {
			chat = model.DefaultFreeChatCredits
		}
		if image == 0 {
			image = model.DefaultFreeImageCredits
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO credits (user_id, chat_credits, bonus_chat_credits, image_credits, bonus_image_credits,
				credits_reset_at, created_at, updated_at)
			VALUES ($1, $2, 0, $3, 0, $4, $5, $5)
			ON CONFLICT (user_id) DO NOTHING
		`, user.ID, chat, image, model.NextResetAt(now), now); err != nil {
			return fmt.Errorf("failed to create credits: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, false, err
	}

	details, err = r.GetProfileDetails(ctx, user.ID)
	if err != nil {
		return nil, false, err
	}
	return details, created, nil
}
