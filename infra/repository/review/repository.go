// Package review implements the manual review queue on postgres. Status
// transitions are guarded on the pending status so an item resolved by one
// reviewer cannot be re-resolved by another.
package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tapyield/cashout/pkg/domain/payout"
	"github.com/tapyield/cashout/pkg/repository"
)

type repo struct {
	db *gorm.DB
}

// New creates the gorm-backed review repository.
func New(db *gorm.DB) repository.Review {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, item *payout.ManualReviewItem) error {
	m := ReviewItem{
		ID:                  item.ID,
		TransactionRecordID: item.TransactionRecordID,
		Reason:              item.Reason,
		Priority:            string(item.Priority),
		Status:              string(item.Status),
		CreatedAt:           item.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("create review item: %w", err)
	}
	return nil
}

func (r *repo) GetByID(ctx context.Context, id uuid.UUID) (*payout.ManualReviewItem, error) {
	var m ReviewItem
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, payout.ErrReviewItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get review item: %w", err)
	}
	return mapModelToItem(&m), nil
}

func (r *repo) List(ctx context.Context, status payout.ReviewStatus) ([]*payout.ManualReviewItem, error) {
	q := r.db.WithContext(ctx).Model(&ReviewItem{}).Order("created_at asc")
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	var models []ReviewItem
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list review items: %w", err)
	}
	out := make([]*payout.ManualReviewItem, 0, len(models))
	for i := range models {
		out = append(out, mapModelToItem(&models[i]))
	}
	return out, nil
}

func (r *repo) SetStatus(ctx context.Context, id uuid.UUID, status payout.ReviewStatus) error {
	res := r.db.WithContext(ctx).
		Model(&ReviewItem{}).
		Where("id = ? AND status = ?", id, string(payout.ReviewPending)).
		Update("status", string(status))
	if res.Error != nil {
		return fmt.Errorf("set review status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&ReviewItem{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("set review status: %w", err)
		}
		if count == 0 {
			return payout.ErrReviewItemNotFound
		}
		return payout.ErrInvalidStatusTransition
	}
	return nil
}

func mapModelToItem(m *ReviewItem) *payout.ManualReviewItem {
	return &payout.ManualReviewItem{
		ID:                  m.ID,
		TransactionRecordID: m.TransactionRecordID,
		Reason:              m.Reason,
		Priority:            payout.ReviewPriority(m.Priority),
		Status:              payout.ReviewStatus(m.Status),
		CreatedAt:           m.CreatedAt,
	}
}
