package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aitools/platform/internal/metrics"
	"github.com/aitools/platform/internal/model"
)

func TestLedger_DebitBonusFirst(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                 string
		regular, bonus, cost int
		wantRegular          int
		wantBonus            int
		wantErr              error
	}{
		{"bonus covers all", 5, 3, 2, 5, 1, nil},
		{"bonus then regular", 5, 1, 2, 4, 0, nil},
		{"regular only", 5, 0, 2, 3, 0, nil},
		{"exact balance", 1, 1, 2, 0, 0, nil},
		{"insufficient", 1, 0, 2, 1, 0, ErrInsufficientCredits},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newMemStore()
			store.addUser("u-1", true, 0, 0, tt.regular, tt.bonus)
			ledger := NewLedger(store, discardLogger(), nil)

			remaining, err := ledger.Debit(context.Background(), "u-1", model.PoolGraphic, tt.cost)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Debit() err = %v, want %v", err, tt.wantErr)
			}

			c := store.creditsOf("u-1")
			if c.ImageCredits != tt.wantRegular || c.BonusImageCredits != tt.wantBonus {
				t.Errorf("balances = (%d, %d), want (%d, %d)", c.ImageCredits, c.BonusImageCredits, tt.wantRegular, tt.wantBonus)
			}
			if err == nil && remaining != tt.wantRegular+tt.wantBonus {
				t.Errorf("remaining = %d, want %d", remaining, tt.wantRegular+tt.wantBonus)
			}
		})
	}
}

func TestLedger_DebitRejectsNonPositive(t *testing.T) {
	t.Parallel()

	ledger := NewLedger(newMemStore(), discardLogger(), nil)
	if _, err := ledger.Debit(context.Background(), "u-1", model.PoolChat, 0); err == nil {
		t.Fatal("expected validation error")
	} else if _, ok := AsValidationError(err); !ok {
		t.Errorf("err = %v, want ValidationError", err)
	}
}

func TestLedger_DebitUnknownUser(t *testing.T) {
	t.Parallel()

	ledger := NewLedger(newMemStore(), discardLogger(), nil)
	_, err := ledger.Debit(context.Background(), "ghost", model.PoolChat, 1)
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Errorf("err = %v, want ErrInsufficientCredits", err)
	}
}

func TestLedger_ConcurrentDebits(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.addUser("u-1", true, 7, 3, 0, 0)
	rec := metrics.NewInMemory()
	ledger := NewLedger(store, discardLogger(), rec)

	var wg sync.WaitGroup
	var ok, rejected atomic.Int32
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Debit(context.Background(), "u-1", model.PoolChat, 1)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrInsufficientCredits):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 10 || rejected.Load() != 15 {
		t.Errorf("ok=%d rejected=%d, want 10/15", ok.Load(), rejected.Load())
	}
	c := store.creditsOf("u-1")
	if c.ChatCredits != 0 || c.BonusChatCredits != 0 {
		t.Errorf("balances = (%d, %d), want zero", c.ChatCredits, c.BonusChatCredits)
	}
	if got := rec.Snapshot().CreditsDebited["chat"]; got != 10 {
		t.Errorf("CreditsDebited[chat] = %d, want 10", got)
	}
}

func TestLedger_Balance(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.addUser("u-1", true, 40, 5, 2, 1)
	ledger := NewLedger(store, discardLogger(), nil)

	b, err := ledger.Balance(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if b.Chat != model.NewPoolBalance(40, 5) || b.Graphic != model.NewPoolBalance(2, 1) {
		t.Errorf("balance = %+v", b)
	}

	if _, err := ledger.Balance(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	avail, err := ledger.Available(context.Background(), "ghost", model.PoolChat)
	if err != nil || avail.Total != 0 {
		t.Errorf("Available(ghost) = %+v, %v", avail, err)
	}
}

func TestLedger_GrantBonus(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.addUser("u-1", true, 0, 0, 0, 0)
	ledger := NewLedger(store, discardLogger(), nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		user    string
		amount  int
		wantErr bool
	}{
		{"zero", "u-1", 0, true},
		{"above max", "u-1", MaxBonusGrant + 1, true},
		{"unknown user", "ghost", 10, true},
		{"valid", "u-1", 10, false},
	}

	for _, tt := range tests {
		_, err := ledger.GrantBonus(ctx, tt.user, model.PoolGraphic, tt.amount)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}

	if c := store.creditsOf("u-1"); c.BonusImageCredits != 10 {
		t.Errorf("BonusImageCredits = %d, want 10", c.BonusImageCredits)
	}
}
