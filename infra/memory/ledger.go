// Package memory provides in-memory implementations of the repository
// contracts. They back the test suites and the mock provider mode; the
// production deployment uses the gorm implementations instead.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tapyield/cashout/pkg/domain/payout"
	"github.com/tapyield/cashout/pkg/money"
	"github.com/tapyield/cashout/pkg/repository"
)

// AdjustmentEntry is the audit trail row written by Ledger.Adjust.
type AdjustmentEntry struct {
	DeltaCents int64
	Reason     string
	Timestamp  time.Time
}

// Ledger is a mutex-guarded in-memory ledger. The mutex is the single
// serialization point for all balance mutations, so check-and-subtract is
// one atomic operation.
type Ledger struct {
	mu          sync.Mutex
	cents       int64
	currency    string
	lastUpdated time.Time
	adjustments []AdjustmentEntry
}

var _ repository.Ledger = (*Ledger)(nil)

// NewLedger seeds a ledger with an opening balance.
func NewLedger(opening money.Money) *Ledger {
	return &Ledger{
		cents:       opening.Amount(),
		currency:    opening.Currency(),
		lastUpdated: time.Now(),
	}
}

func (l *Ledger) GetBalance(ctx context.Context) (money.Money, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return money.NewFromSmallestUnit(l.cents, l.currency)
}

func (l *Ledger) Debit(ctx context.Context, amount money.Money) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount.Amount() > l.cents {
		return payout.ErrInsufficientFunds
	}
	l.cents -= amount.Amount()
	l.lastUpdated = time.Now()
	return nil
}

func (l *Ledger) Credit(ctx context.Context, amount money.Money) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cents += amount.Amount()
	l.lastUpdated = time.Now()
	return nil
}

func (l *Ledger) Adjust(ctx context.Context, deltaCents int64, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cents+deltaCents < 0 {
		return payout.ErrInsufficientFunds
	}
	l.cents += deltaCents
	l.lastUpdated = time.Now()
	l.adjustments = append(l.adjustments, AdjustmentEntry{
		DeltaCents: deltaCents,
		Reason:     reason,
		Timestamp:  time.Now(),
	})
	return nil
}

// Adjustments returns a copy of the corrective-adjustment audit trail.
func (l *Ledger) Adjustments() []AdjustmentEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AdjustmentEntry, len(l.adjustments))
	copy(out, l.adjustments)
	return out
}
