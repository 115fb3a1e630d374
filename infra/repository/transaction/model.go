package transaction

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is the persisted form of a payout transaction record.
type Transaction struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	DebitRequestID string    `gorm:"type:varchar(128);uniqueIndex;not null"`
	ProviderID     string    `gorm:"type:varchar(64)"`
	AmountCents    int64     `gorm:"not null"`
	Currency       string    `gorm:"type:varchar(3);not null;default:'USD'"`
	Status         string    `gorm:"type:varchar(32);not null;default:'pending';index"`
	CreatedAt      time.Time `gorm:"index"`
	CompletedAt    *time.Time
	Attempts       []Attempt `gorm:"foreignKey:TransactionID"`
}

// TableName specifies the table name for the Transaction model.
func (Transaction) TableName() string {
	return "payout_transactions"
}

// Attempt is one persisted provider attempt of a transaction.
type Attempt struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	TransactionID uuid.UUID `gorm:"type:uuid;index;not null"`
	ProviderID    string    `gorm:"type:varchar(64);not null"`
	AttemptNumber int       `gorm:"not null"`
	Outcome       string    `gorm:"type:varchar(16);not null"`
	Error         string    `gorm:"type:varchar(512)"`
	Timestamp     time.Time
}

// TableName specifies the table name for the Attempt model.
func (Attempt) TableName() string {
	return "payout_attempts"
}
