// Package ledger implements the ledger store on postgres. Debit and credit
// are single guarded UPDATE statements, so check-and-subtract is atomic at
// the database and the balance can never race below zero.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tapyield/cashout/pkg/domain/payout"
	"github.com/tapyield/cashout/pkg/money"
	"github.com/tapyield/cashout/pkg/repository"
)

const balanceRowID = 1

type repo struct {
	db *gorm.DB
}

// New creates the gorm-backed ledger repository.
func New(db *gorm.DB) repository.Ledger {
	return &repo{db: db}
}

// Seed inserts the balance row if it does not exist yet.
func Seed(db *gorm.DB, opening money.Money) error {
	return db.Where(Balance{ID: balanceRowID}).
		Attrs(Balance{
			AvailableCents: opening.Amount(),
			Currency:       opening.Currency(),
			LastUpdated:    time.Now(),
		}).
		FirstOrCreate(&Balance{}).Error
}

func (r *repo) GetBalance(ctx context.Context) (money.Money, error) {
	var b Balance
	if err := r.db.WithContext(ctx).First(&b, "id = ?", balanceRowID).Error; err != nil {
		return money.Money{}, fmt.Errorf("read ledger balance: %w", err)
	}
	return money.NewFromSmallestUnit(b.AvailableCents, b.Currency)
}

// Debit subtracts amount in one guarded statement. Zero rows affected means
// the balance could not support the debit.
func (r *repo) Debit(ctx context.Context, amount money.Money) error {
	res := r.db.WithContext(ctx).
		Model(&Balance{}).
		Where("id = ? AND available_cents >= ?", balanceRowID, amount.Amount()).
		Updates(map[string]any{
			"available_cents": gorm.Expr("available_cents - ?", amount.Amount()),
			"last_updated":    time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("ledger debit: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return payout.ErrInsufficientFunds
	}
	return nil
}

func (r *repo) Credit(ctx context.Context, amount money.Money) error {
	res := r.db.WithContext(ctx).
		Model(&Balance{}).
		Where("id = ?", balanceRowID).
		Updates(map[string]any{
			"available_cents": gorm.Expr("available_cents + ?", amount.Amount()),
			"last_updated":    time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("ledger credit: %w", res.Error)
	}
	return nil
}

// Adjust applies a signed corrective delta and its audit row in one
// database transaction.
func (r *repo) Adjust(ctx context.Context, deltaCents int64, reason string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Balance{}).
			Where("id = ? AND available_cents + ? >= 0", balanceRowID, deltaCents).
			Updates(map[string]any{
				"available_cents": gorm.Expr("available_cents + ?", deltaCents),
				"last_updated":    time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("ledger adjust: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return payout.ErrInsufficientFunds
		}
		return tx.Create(&Adjustment{
			ID:         uuid.New(),
			DeltaCents: deltaCents,
			Reason:     reason,
			CreatedAt:  time.Now(),
		}).Error
	})
}
