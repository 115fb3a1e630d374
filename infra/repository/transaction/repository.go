// Package transaction implements the transaction record store on postgres.
// Status transitions are compare-and-swap UPDATEs guarded on the pending
// status, so pending -> completed and pending -> rolled_back can never both
// win.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tapyield/cashout/pkg/domain/payout"
	"github.com/tapyield/cashout/pkg/money"
	"github.com/tapyield/cashout/pkg/repository"
)

type repo struct {
	db *gorm.DB
}

// New creates the gorm-backed transaction repository.
func New(db *gorm.DB) repository.Transaction {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, rec *payout.TransactionRecord) error {
	m := mapRecordToModel(rec)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (r *repo) GetByID(ctx context.Context, id uuid.UUID) (*payout.TransactionRecord, error) {
	var m Transaction
	err := r.db.WithContext(ctx).Preload("Attempts").First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, payout.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return mapModelToRecord(&m)
}

func (r *repo) GetByRequestID(ctx context.Context, requestID string) (*payout.TransactionRecord, error) {
	var m Transaction
	err := r.db.WithContext(ctx).Preload("Attempts").First(&m, "debit_request_id = ?", requestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, payout.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction by request id: %w", err)
	}
	return mapModelToRecord(&m)
}

func (r *repo) AppendAttempt(ctx context.Context, id uuid.UUID, attempt payout.Attempt) error {
	a := Attempt{
		TransactionID: id,
		ProviderID:    attempt.ProviderID,
		AttemptNumber: attempt.AttemptNumber,
		Outcome:       string(attempt.Outcome),
		Error:         attempt.Error,
		Timestamp:     attempt.Timestamp,
	}
	if err := r.db.WithContext(ctx).Create(&a).Error; err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	return nil
}

func (r *repo) MarkCompleted(ctx context.Context, id uuid.UUID, providerID string, at time.Time) error {
	return r.transition(ctx, id, payout.TransactionCompleted, map[string]any{
		"status":       string(payout.TransactionCompleted),
		"provider_id":  providerID,
		"completed_at": at,
	})
}

func (r *repo) MarkRolledBack(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.transition(ctx, id, payout.TransactionRolledBack, map[string]any{
		"status":       string(payout.TransactionRolledBack),
		"completed_at": at,
	})
}

func (r *repo) transition(ctx context.Context, id uuid.UUID, to payout.TransactionStatus, updates map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&Transaction{}).
		Where("id = ? AND status = ?", id, string(payout.TransactionPending)).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("transition to %s: %w", to, res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&Transaction{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("transition to %s: %w", to, err)
		}
		if count == 0 {
			return payout.ErrTransactionNotFound
		}
		return payout.ErrInvalidStatusTransition
	}
	return nil
}

func (r *repo) ListCompletedInWindow(ctx context.Context, from, to time.Time) ([]*payout.TransactionRecord, error) {
	var models []Transaction
	err := r.db.WithContext(ctx).
		Preload("Attempts").
		Where("status = ? AND completed_at >= ? AND completed_at < ?",
			string(payout.TransactionCompleted), from, to).
		Order("created_at asc").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list completed transactions: %w", err)
	}
	return mapModels(models)
}

func (r *repo) ListAll(ctx context.Context) ([]*payout.TransactionRecord, error) {
	var models []Transaction
	err := r.db.WithContext(ctx).
		Preload("Attempts").
		Order("created_at asc").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return mapModels(models)
}

func mapModels(models []Transaction) ([]*payout.TransactionRecord, error) {
	out := make([]*payout.TransactionRecord, 0, len(models))
	for i := range models {
		rec, err := mapModelToRecord(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func mapRecordToModel(rec *payout.TransactionRecord) Transaction {
	return Transaction{
		ID:             rec.ID,
		DebitRequestID: rec.DebitRequestID,
		ProviderID:     rec.ProviderID,
		AmountCents:    rec.Amount.Amount(),
		Currency:       rec.Amount.Currency(),
		Status:         string(rec.Status),
		CreatedAt:      rec.CreatedAt,
		CompletedAt:    rec.CompletedAt,
	}
}

func mapModelToRecord(m *Transaction) (*payout.TransactionRecord, error) {
	amount, err := money.NewFromSmallestUnit(m.AmountCents, m.Currency)
	if err != nil {
		return nil, fmt.Errorf("map transaction %s: %w", m.ID, err)
	}
	attempts := make([]payout.Attempt, 0, len(m.Attempts))
	for _, a := range m.Attempts {
		attempts = append(attempts, payout.Attempt{
			ProviderID:    a.ProviderID,
			AttemptNumber: a.AttemptNumber,
			Outcome:       payout.AttemptOutcome(a.Outcome),
			Error:         a.Error,
			Timestamp:     a.Timestamp,
		})
	}
	return &payout.TransactionRecord{
		ID:             m.ID,
		DebitRequestID: m.DebitRequestID,
		ProviderID:     m.ProviderID,
		Amount:         amount,
		Status:         payout.TransactionStatus(m.Status),
		Attempts:       attempts,
		CreatedAt:      m.CreatedAt,
		CompletedAt:    m.CompletedAt,
	}, nil
}
