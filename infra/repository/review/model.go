package review

import (
	"time"

	"github.com/google/uuid"
)

// ReviewItem is the gorm model for a manual review queue entry.
type ReviewItem struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey"`
	TransactionRecordID uuid.UUID `gorm:"type:uuid;index"`
	Reason              string    `gorm:"not null"`
	Priority            string    `gorm:"not null"`
	Status              string    `gorm:"not null;index"`
	CreatedAt           time.Time `gorm:"index"`
}

// TableName overrides the default table name.
func (ReviewItem) TableName() string {
	return "manual_review_items"
}
