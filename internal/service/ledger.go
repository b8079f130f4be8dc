package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aitools/platform/internal/metrics"
	"github.com/aitools/platform/internal/model"
	"github.com/aitools/platform/internal/repository"
)

// MaxBonusGrant caps a single back-office bonus grant.
const MaxBonusGrant = 100000

// Ledger owns credit balances. Every read goes to the store; nothing is
// cached between requests.
type Ledger struct {
	store   CreditStore
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewLedger creates a new Ledger.
func NewLedger(store CreditStore, logger *slog.Logger, recorder metrics.Recorder) *Ledger {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Ledger{
		store:   store,
		logger:  logger.With("component", "ledger"),
		metrics: recorder,
	}
}

// Debit removes amount from the pool, bonus credits first, and returns the
// pool total left afterwards. The store applies the check and the update
// in one conditional statement, so an insufficient balance is never touched.
func (l *Ledger) Debit(ctx context.Context, userID string, pool model.Pool, amount int) (int, error) {
	if amount < 1 {
		return 0, NewValidationError("amount must be positive", map[string]any{"amount": amount})
	}

	credits, err := l.store.DebitCredits(ctx, userID, pool, amount)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientCredits) {
			return 0, ErrInsufficientCredits
		}
		return 0, fmt.Errorf("debit %s credits: %w", pool, err)
	}

	l.metrics.AddCreditsDebited(string(pool), amount)
	return credits.Balance().Pool(pool).Total, nil
}

// Available returns the current balance of a pool. A user without a
// credits row has nothing available.
func (l *Ledger) Available(ctx context.Context, userID string, pool model.Pool) (model.PoolBalance, error) {
	credits, err := l.store.GetCredits(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrCreditsNotFound) {
			return model.PoolBalance{}, nil
		}
		return model.PoolBalance{}, fmt.Errorf("get credits: %w", err)
	}
	return credits.Balance().Pool(pool), nil
}

// Balance returns both pools for display.
func (l *Ledger) Balance(ctx context.Context, userID string) (*model.Balance, error) {
	credits, err := l.store.GetCredits(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrCreditsNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get credits: %w", err)
	}
	b := credits.Balance()
	return &b, nil
}

// GrantBonus tops up the bonus balance of a pool.
func (l *Ledger) GrantBonus(ctx context.Context, userID string, pool model.Pool, amount int) (*model.Balance, error) {
	if amount < 1 || amount > MaxBonusGrant {
		return nil, NewValidationError(
			fmt.Sprintf("amount must be between 1 and %d", MaxBonusGrant),
			map[string]any{"amount": amount},
		)
	}

	credits, err := l.store.GrantBonusCredits(ctx, userID, pool, amount)
	if err != nil {
		if errors.Is(err, repository.ErrCreditsNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("grant bonus credits: %w", err)
	}

	l.logger.Info("bonus credits granted",
		"user_id", userID,
		"pool", pool,
		"amount", amount,
	)

	b := credits.Balance()
	return &b, nil
}
