package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tapyield/cashout/pkg/domain/payout"
	"github.com/tapyield/cashout/pkg/repository"
)

// TransactionStore is a mutex-guarded in-memory transaction record store.
type TransactionStore struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]*payout.TransactionRecord
	byRequest map[string]uuid.UUID
}

var _ repository.Transaction = (*TransactionStore)(nil)

func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		byID:      make(map[uuid.UUID]*payout.TransactionRecord),
		byRequest: make(map[string]uuid.UUID),
	}
}

func clone(rec *payout.TransactionRecord) *payout.TransactionRecord {
	out := *rec
	out.Attempts = make([]payout.Attempt, len(rec.Attempts))
	copy(out.Attempts, rec.Attempts)
	if rec.CompletedAt != nil {
		at := *rec.CompletedAt
		out.CompletedAt = &at
	}
	return &out
}

func (s *TransactionStore) Create(ctx context.Context, rec *payout.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byRequest[rec.DebitRequestID]; exists {
		return payout.ErrInvalidStatusTransition
	}
	s.byID[rec.ID] = clone(rec)
	s.byRequest[rec.DebitRequestID] = rec.ID
	return nil
}

func (s *TransactionStore) GetByID(ctx context.Context, id uuid.UUID) (*payout.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return nil, payout.ErrTransactionNotFound
	}
	return clone(rec), nil
}

func (s *TransactionStore) GetByRequestID(ctx context.Context, requestID string) (*payout.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byRequest[requestID]
	if !ok {
		return nil, payout.ErrTransactionNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *TransactionStore) AppendAttempt(ctx context.Context, id uuid.UUID, attempt payout.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return payout.ErrTransactionNotFound
	}
	rec.Attempts = append(rec.Attempts, attempt)
	return nil
}

func (s *TransactionStore) MarkCompleted(ctx context.Context, id uuid.UUID, providerID string, at time.Time) error {
	return s.transition(id, payout.TransactionCompleted, providerID, at)
}

func (s *TransactionStore) MarkRolledBack(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.transition(id, payout.TransactionRolledBack, "", at)
}

// transition enforces the pending-only state machine under the store mutex,
// the in-memory equivalent of a compare-and-swap on status.
func (s *TransactionStore) transition(id uuid.UUID, to payout.TransactionStatus, providerID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return payout.ErrTransactionNotFound
	}
	if rec.Status != payout.TransactionPending {
		return payout.ErrInvalidStatusTransition
	}
	rec.Status = to
	rec.ProviderID = providerID
	rec.CompletedAt = &at
	return nil
}

func (s *TransactionStore) ListCompletedInWindow(ctx context.Context, from, to time.Time) ([]*payout.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*payout.TransactionRecord
	for _, rec := range s.byID {
		if rec.Status != payout.TransactionCompleted || rec.CompletedAt == nil {
			continue
		}
		if rec.CompletedAt.Before(from) || !rec.CompletedAt.Before(to) {
			continue
		}
		out = append(out, clone(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *TransactionStore) ListAll(ctx context.Context) ([]*payout.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*payout.TransactionRecord, 0, len(s.byID))
	for _, rec := range s.byID {
		out = append(out, clone(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
