// Package repository defines the persistence contracts of the payout core.
// Implementations live under infra: gorm-backed for production, in-memory
// for tests and mock mode.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tapyield/cashout/pkg/domain/payout"
	"github.com/tapyield/cashout/pkg/money"
)

// Ledger is the single authoritative available-balance store. Every method
// is atomic: Debit in particular is one check-and-subtract operation, never
// a read followed by a write.
type Ledger interface {
	// GetBalance returns the current available balance.
	GetBalance(ctx context.Context) (money.Money, error)

	// Debit atomically subtracts amount if the balance supports it.
	// Returns payout.ErrInsufficientFunds otherwise; the balance can never
	// go negative.
	Debit(ctx context.Context, amount money.Money) error

	// Credit atomically adds amount back (compensation path).
	Credit(ctx context.Context, amount money.Money) error

	// Adjust applies a signed corrective delta and records an audit entry
	// with the given reason. Used only by explicit reconciliation
	// correction commands, never by automatic logic.
	Adjust(ctx context.Context, deltaCents int64, reason string) error
}

// Transaction stores append-only transaction records. Status transitions
// are guarded: only pending -> completed and pending -> rolled_back are
// legal, and both are atomic.
type Transaction interface {
	Create(ctx context.Context, rec *payout.TransactionRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*payout.TransactionRecord, error)
	GetByRequestID(ctx context.Context, requestID string) (*payout.TransactionRecord, error)
	AppendAttempt(ctx context.Context, id uuid.UUID, attempt payout.Attempt) error
	MarkCompleted(ctx context.Context, id uuid.UUID, providerID string, at time.Time) error
	MarkRolledBack(ctx context.Context, id uuid.UUID, at time.Time) error

	// ListCompletedInWindow returns completed records with CompletedAt in
	// [from, to), oldest first.
	ListCompletedInWindow(ctx context.Context, from, to time.Time) ([]*payout.TransactionRecord, error)

	// ListAll returns the full history, oldest first. Used by deep audits.
	ListAll(ctx context.Context) ([]*payout.TransactionRecord, error)
}

// Review stores manual review items. Only pending items may transition, and
// only to approved or rejected.
type Review interface {
	Create(ctx context.Context, item *payout.ManualReviewItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*payout.ManualReviewItem, error)
	List(ctx context.Context, status payout.ReviewStatus) ([]*payout.ManualReviewItem, error)
	SetStatus(ctx context.Context, id uuid.UUID, status payout.ReviewStatus) error
}
