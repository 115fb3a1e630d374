// Package review implements emergency escalation and the manual review
// queue. Escalation is the last stop of a failed dispatch: it must never
// itself become a point of failure.
package review

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tapyield/cashout/pkg/domain/payout"
	"github.com/tapyield/cashout/pkg/money"
	"github.com/tapyield/cashout/pkg/repository"
)

// Service manages the manual review queue.
type Service struct {
	reviews repository.Review
	logger  *slog.Logger
}

// New creates a review service.
func New(reviews repository.Review, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{reviews: reviews, logger: logger}
}

// Escalate records an incident as a pending review item, with priority
// derived from the amount. It never returns an error: if the queue write
// fails, a failed payout now has no recovery trail, which is logged as a
// fatal condition for external alerting, and the caller still reports
// failure-with-escalation-attempted.
func (s *Service) Escalate(
	ctx context.Context,
	transactionID uuid.UUID,
	amount money.Money,
	reason string,
) *payout.ManualReviewItem {
	item := &payout.ManualReviewItem{
		ID:                  uuid.New(),
		TransactionRecordID: transactionID,
		Reason:              reason,
		Priority:            payout.PriorityForAmount(amount),
		Status:              payout.ReviewPending,
		CreatedAt:           time.Now(),
	}
	if err := s.reviews.Create(ctx, item); err != nil {
		s.logger.Error("FATAL: escalation write failed, payout has no recovery trail",
			"transaction_id", transactionID,
			"amount", amount.String(),
			"reason", reason,
			"error", err,
		)
		return item
	}
	s.logger.Warn("payout escalated to manual review",
		"transaction_id", transactionID,
		"review_id", item.ID,
		"priority", item.Priority,
		"reason", reason,
	)
	return item
}

// List returns review items, optionally filtered by status.
func (s *Service) List(ctx context.Context, status payout.ReviewStatus) ([]*payout.ManualReviewItem, error) {
	return s.reviews.List(ctx, status)
}

// Approve marks a pending item approved. Reviewer actions are external to
// the core; this is just the surface they call.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) error {
	return s.reviews.SetStatus(ctx, id, payout.ReviewApproved)
}

// Reject marks a pending item rejected.
func (s *Service) Reject(ctx context.Context, id uuid.UUID) error {
	return s.reviews.SetStatus(ctx, id, payout.ReviewRejected)
}
