package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/tapyield/cashout/pkg/domain/payout"
	"github.com/tapyield/cashout/pkg/repository"
)

// ReviewQueue is a mutex-guarded in-memory manual review queue.
type ReviewQueue struct {
	mu    sync.Mutex
	items map[uuid.UUID]*payout.ManualReviewItem

	// failCreate makes Create fail; used to exercise the
	// escalation-write-failure path in tests.
	failCreate error
}

var _ repository.Review = (*ReviewQueue)(nil)

func NewReviewQueue() *ReviewQueue {
	return &ReviewQueue{items: make(map[uuid.UUID]*payout.ManualReviewItem)}
}

// FailCreateWith makes every subsequent Create return err.
func (q *ReviewQueue) FailCreateWith(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failCreate = err
}

func (q *ReviewQueue) Create(ctx context.Context, item *payout.ManualReviewItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failCreate != nil {
		return q.failCreate
	}
	cp := *item
	q.items[item.ID] = &cp
	return nil
}

func (q *ReviewQueue) GetByID(ctx context.Context, id uuid.UUID) (*payout.ManualReviewItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.items[id]
	if !ok {
		return nil, payout.ErrReviewItemNotFound
	}
	cp := *item
	return &cp, nil
}

func (q *ReviewQueue) List(ctx context.Context, status payout.ReviewStatus) ([]*payout.ManualReviewItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*payout.ManualReviewItem
	for _, item := range q.items {
		if status != "" && item.Status != status {
			continue
		}
		cp := *item
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (q *ReviewQueue) SetStatus(ctx context.Context, id uuid.UUID, status payout.ReviewStatus) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.items[id]
	if !ok {
		return payout.ErrReviewItemNotFound
	}
	if item.Status != payout.ReviewPending {
		return payout.ErrInvalidStatusTransition
	}
	if status != payout.ReviewApproved && status != payout.ReviewRejected {
		return payout.ErrInvalidStatusTransition
	}
	item.Status = status
	return nil
}
