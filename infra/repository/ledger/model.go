package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Balance is the single authoritative available-balance row. Exactly one
// row exists, keyed by balanceRowID.
type Balance struct {
	ID             int    `gorm:"primaryKey"`
	AvailableCents int64  `gorm:"not null;check:available_cents >= 0"`
	Currency       string `gorm:"type:varchar(3);not null;default:'USD'"`
	LastUpdated    time.Time
}

// TableName specifies the table name for the Balance model.
func (Balance) TableName() string {
	return "ledger_balances"
}

// Adjustment is the audit row written for every corrective adjustment.
type Adjustment struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	DeltaCents int64     `gorm:"not null"`
	Reason     string    `gorm:"type:varchar(256);not null"`
	CreatedAt  time.Time
}

// TableName specifies the table name for the Adjustment model.
func (Adjustment) TableName() string {
	return "ledger_adjustments"
}
