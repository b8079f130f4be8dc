package model

import (
	"fmt"
	"time"
)

// Pool is a credit category tracked independently.
type Pool string

// Credit pools.
const (
	PoolChat    Pool = "chat"
	PoolGraphic Pool = "graphic"
)

// ParsePool validates a pool name.
func ParsePool(s string) (Pool, error) {
	switch Pool(s) {
	case PoolChat, PoolGraphic:
		return Pool(s), nil
	default:
		return "", fmt.Errorf("unknown credit pool %q", s)
	}
}

// Credits holds the per-user balances. All fields are non-negative.
type Credits struct {
	UserID            string    `json:"user_id"`
	ChatCredits       int       `json:"chat_credits"`
	BonusChatCredits  int       `json:"bonus_chat_credits"`
	ImageCredits      int       `json:"image_credits"`
	BonusImageCredits int       `json:"bonus_image_credits"`
	CreditsResetAt    time.Time `json:"credits_reset_at"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// PoolBalance is the regular/bonus pair for one pool.
type PoolBalance struct {
	Regular int `json:"regular"`
	Bonus   int `json:"bonus"`
	Total   int `json:"total"`
}

// NewPoolBalance builds a PoolBalance with Total filled in.
func NewPoolBalance(regular, bonus int) PoolBalance {
	return PoolBalance{Regular: regular, Bonus: bonus, Total: regular + bonus}
}

// Balance is the read-only view of a user's credits.
type Balance struct {
	Chat           PoolBalance `json:"chat"`
	Graphic        PoolBalance `json:"graphic"`
	CreditsResetAt time.Time   `json:"credits_reset_at"`
}

// Balance converts stored credits into the display view.
func (c *Credits) Balance() Balance {
	return Balance{
		Chat:           NewPoolBalance(c.ChatCredits, c.BonusChatCredits),
		Graphic:        NewPoolBalance(c.ImageCredits, c.BonusImageCredits),
		CreditsResetAt: c.CreditsResetAt,
	}
}

// Pool returns the balance of the given pool.
func (b Balance) Pool(p Pool) PoolBalance {
	if p == PoolGraphic {
		return b.Graphic
	}
	return b.Chat
}

// ApplyDebit computes the post-debit balances of a pool, consuming bonus
// credits before regular ones. ok is false when the pool cannot cover amount,
// in which case the inputs are returned unchanged.
func ApplyDebit(regular, bonus, amount int) (newRegular, newBonus int, ok bool) {
	if amount < 0 || regular+bonus < amount {
		return regular, bonus, false
	}
	newBonus = max(0, bonus-amount)
	newRegular = regular - max(0, amount-bonus)
	return newRegular, newBonus, true
}

// NextResetAt returns the first day of the month following t, at 00:00 UTC.
func NextResetAt(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}
