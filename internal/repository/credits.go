package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aitools/platform/internal/model"
	"github.com/jackc/pgx/v5"
)

// Common errors for credits repository operations.
var (
	ErrCreditsNotFound     = errors.New("credits not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
)

const creditsColumns = `user_id, chat_credits, bonus_chat_credits, image_credits, bonus_image_credits,
	credits_reset_at, created_at, updated_at`

// poolColumns maps a pool to its (regular, bonus) column pair. Column names
// are never taken from input.
func poolColumns(pool model.Pool) (regular, bonus string, err error) {
	switch pool {
	case model.PoolChat:
		return "chat_credits", "bonus_chat_credits", nil
	case model.PoolGraphic:
		return "image_credits", "bonus_image_credits", nil
	default:
		return "", "", fmt.Errorf("unknown credit pool %q", pool)
	}
}

// GetCredits retrieves the credit balances of a user.
func (r *Repository) GetCredits(ctx context.Context, userID string) (*model.Credits, error) {
	query := `SELECT ` + creditsColumns + ` FROM credits WHERE user_id = $1`
	return scanCredits(r.pool.QueryRow(ctx, query, userID), ErrCreditsNotFound)
}

// DebitCredits deducts amount from a pool, consuming bonus credits first.
// The availability check and both column updates happen in one conditional
// UPDATE, so concurrent debits can never drive a balance below zero. SET
// expressions see the pre-update row, which keeps the bonus arithmetic exact.
// A missing row and an insufficient balance both yield ErrInsufficientCredits.
func (r *Repository) DebitCredits(ctx context.Context, userID string, pool model.Pool, amount int) (*model.Credits, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("debit amount must be positive, got %d", amount)
	}

	regular, bonus, err := poolColumns(pool)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		UPDATE credits SET
			%[2]s = GREATEST(0, %[2]s - $2),
			%[1]s = %[1]s - GREATEST(0, $2 - %[2]s),
			updated_at = NOW()
		WHERE user_id = $1 AND %[1]s + %[2]s >= $2
		RETURNING `+creditsColumns, regular, bonus)

	return scanCredits(r.pool.QueryRow(ctx, query, userID, amount), ErrInsufficientCredits)
}

// GrantBonusCredits adds promotional credits to a pool's bonus balance.
func (r *Repository) GrantBonusCredits(ctx context.Context, userID string, pool model.Pool, amount int) (*model.Credits, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("grant amount must be positive, got %d", amount)
	}

	_, bonus, err := poolColumns(pool)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		UPDATE credits SET %[1]s = %[1]s + $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING `+creditsColumns, bonus)

	return scanCredits(r.pool.QueryRow(ctx, query, userID, amount), ErrCreditsNotFound)
}

func scanCredits(row pgx.Row, notFound error) (*model.Credits, error) {
	var c model.Credits
	err := row.Scan(
		&c.UserID,
		&c.ChatCredits,
		&c.BonusChatCredits,
		&c.ImageCredits,
		&c.BonusImageCredits,
		&c.CreditsResetAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound
		}
		return nil, fmt.Errorf("failed to scan credits: %w", err)
	}
	return &c, nil
}
