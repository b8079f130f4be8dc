package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aitools/platform/internal/model"
	"github.com/jackc/pgx/v5"
)

// Common errors for profile repository operations.
var (
	ErrProfileNotFound = errors.New("profile not found")
)

const profileColumns = `id, email, full_name, avatar_url, phone, company_name, job_title, industry,
	locale, onboarding_completed, created_at, updated_at`

// GetProfile retrieves a profile by user ID.
func (r *Repository) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	return scanProfile(r.pool.QueryRow(ctx, query, userID))
}

// GetOnboardingStatus returns the onboarding flag of a profile.
func (r *Repository) GetOnboardingStatus(ctx context.Context, userID string) (bool, error) {
	var completed bool
	err := r.pool.QueryRow(ctx,
		`SELECT onboarding_completed FROM profiles WHERE id = $1`, userID,
	).Scan(&completed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrProfileNotFound
		}
		return false, fmt.Errorf("failed to get onboarding status: %w", err)
	}
	return completed, nil
}

// CompleteOnboarding writes every onboarding field and flips the flag in a
// single statement.
func (r *Repository) CompleteOnboarding(ctx context.Context, userID string, data model.OnboardingData) (*model.Profile, error) {
	query := `
		UPDATE profiles
		SET phone = $2, company_name = $3, job_title = $4, industry = $5, locale = $6,
			onboarding_completed = TRUE, updated_at = $7
		WHERE id = $1
		RETURNING ` + profileColumns

	return scanProfile(r.pool.QueryRow(ctx, query,
		userID,
		data.Phone,
		data.CompanyName,
		data.JobTitle,
		data.Industry,
		data.Locale,
		time.Now().UTC(),
	))
}

// GetProfileDetails loads a profile with its credits and active subscription.
// Missing credits or subscription rows are returned as nil.
func (r *Repository) GetProfileDetails(ctx context.Context, userID string) (*model.ProfileDetails, error) {
	profile, err := r.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	details := &model.ProfileDetails{Profile: profile}

	credits, err := r.GetCredits(ctx, userID)
	switch {
	case err == nil:
		details.Credits = credits
	case !errors.Is(err, ErrCreditsNotFound):
		return nil, err
	}

	sub, err := r.GetActiveSubscription(ctx, userID)
	switch {
	case err == nil:
		details.Subscription = sub
	case !errors.Is(err, ErrSubscriptionNotFound):
		return nil, err
	}

	return details, nil
}

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var p model.Profile
	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.FullName,
		&p.AvatarURL,
		&p.Phone,
		&p.CompanyName,
		&p.JobTitle,
		&p.Industry,
		&p.Locale,
		&p.OnboardingCompleted,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}
	return &p, nil
}
