// Package dispatch implements the payout failover orchestrator. A debit
// request is tentatively debited from the ledger, then routed across the
// active providers in health-priority order with bounded retries and
// progressive backoff. Total exhaustion compensates the debit and escalates
// the request to manual review; the caller always learns that escalation
// happened.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tapyield/cashout/pkg/domain/payout"
	"github.com/tapyield/cashout/pkg/eventbus"
	"github.com/tapyield/cashout/pkg/money"
	"github.com/tapyield/cashout/pkg/provider/payment"
	"github.com/tapyield/cashout/pkg/registry"
	"github.com/tapyield/cashout/pkg/repository"
)

// Result is the single result type every dispatch returns, success or not.
type Result struct {
	Success       bool      `json:"success"`
	TransactionID uuid.UUID `json:"transaction_id"`
	ProviderUsed  string    `json:"provider_used,omitempty"`
	Escalated     bool      `json:"escalated"`
	ErrorMessage  string    `json:"error_message,omitempty"`
}

// Escalator is the emergency escalation hook. Implementations must not fail
// the dispatch path; see the review service.
type Escalator interface {
	Escalate(ctx context.Context, transactionID uuid.UUID, amount money.Money, reason string) *payout.ManualReviewItem
}

// Config bounds the failover loop.
type Config struct {
	// MaxRetries is the per-provider attempt budget.
	MaxRetries int
	// BackoffSchedule is indexed by retry number; attempts past the end of
	// the schedule reuse its last entry.
	BackoffSchedule []time.Duration
	// AttemptTimeout bounds a single provider call.
	AttemptTimeout time.Duration
	// JitterMax is the upper bound of the random jitter added to each
	// backoff sleep, desynchronizing concurrent dispatches.
	JitterMax time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 5,
		BackoffSchedule: []time.Duration{
			1 * time.Second,
			5 * time.Second,
			15 * time.Second,
			30 * time.Second,
			60 * time.Second,
		},
		AttemptTimeout: 30 * time.Second,
		JitterMax:      1 * time.Second,
	}
}

func (c Config) backoff(attempt int) time.Duration {
	// attempt is 2-based here: the first retry sleeps BackoffSchedule[0].
	idx := attempt - 2
	if idx < 0 || len(c.BackoffSchedule) == 0 {
		return 0
	}
	if idx >= len(c.BackoffSchedule) {
		idx = len(c.BackoffSchedule) - 1
	}
	return c.BackoffSchedule[idx]
}

// Deps holds the orchestrator's collaborators.
type Deps struct {
	Ledger       repository.Ledger
	Transactions repository.Transaction
	Registry     *registry.Registry
	Escalator    Escalator
	Bus          eventbus.Bus
	Logger       *slog.Logger
	Config       Config
}

type inflight struct {
	done   chan struct{}
	result *Result
	err    error
}

// Service is the failover orchestrator.
type Service struct {
	ledger       repository.Ledger
	transactions repository.Transaction
	registry     *registry.Registry
	escalator    Escalator
	bus          eventbus.Bus
	logger       *slog.Logger
	cfg          Config

	// sleep and jitter are injectable for deterministic tests.
	sleep  func(ctx context.Context, d time.Duration)
	jitter func() time.Duration

	mu       sync.Mutex
	inflight map[string]*inflight
}

// New creates the orchestrator.
func New(deps Deps) *Service {
	cfg := deps.Config
	if cfg.MaxRetries <= 0 {
		cfg = DefaultConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		ledger:       deps.Ledger,
		transactions: deps.Transactions,
		registry:     deps.Registry,
		escalator:    deps.Escalator,
		bus:          deps.Bus,
		logger:       logger,
		cfg:          cfg,
		inflight:     make(map[string]*inflight),
	}
	s.sleep = func(ctx context.Context, d time.Duration) {
		if d <= 0 {
			return
		}
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		}
	}
	s.jitter = func() time.Duration {
		if cfg.JitterMax <= 0 {
			return 0
		}
		return time.Duration(rand.Int63n(int64(cfg.JitterMax)))
	}
	return s
}

// Dispatch runs a debit request to completion: either a provider settles it,
// or the tentative debit is compensated and the request escalated. The same
// RequestID, dispatched twice (even concurrently), produces exactly one
// transaction record and one ledger mutation; duplicates receive the
// original result.
func (s *Service) Dispatch(ctx context.Context, req payout.DebitRequest) (*Result, error) {
	log := s.logger.With("request_id", req.RequestID, "amount", req.Amount.String())

	if !req.Amount.IsPositive() {
		return &Result{Success: false, ErrorMessage: payout.ErrAmountMustBePositive.Error()},
			payout.ErrAmountMustBePositive
	}

	// Idempotency gate. The first dispatch for a RequestID claims the slot;
	// concurrent duplicates wait for its outcome, later duplicates are
	// answered from the transaction store.
	s.mu.Lock()
	if f, ok := s.inflight[req.RequestID]; ok {
		s.mu.Unlock()
		select {
		case <-f.done:
			return f.result, f.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if res, err, found := s.replay(ctx, req.RequestID); found {
		s.mu.Unlock()
		return res, err
	}
	f := &inflight{done: make(chan struct{})}
	s.inflight[req.RequestID] = f
	s.mu.Unlock()

	res, err := s.run(ctx, req, log)

	s.mu.Lock()
	delete(s.inflight, req.RequestID)
	s.mu.Unlock()
	f.result, f.err = res, err
	close(f.done)
	return res, err
}

// replay answers a duplicate RequestID from the transaction store. Caller
// holds s.mu.
func (s *Service) replay(ctx context.Context, requestID string) (*Result, error, bool) {
	rec, err := s.transactions.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, nil, false
	}
	switch rec.Status {
	case payout.TransactionCompleted:
		return &Result{
			Success:       true,
			TransactionID: rec.ID,
			ProviderUsed:  rec.ProviderID,
		}, nil, true
	case payout.TransactionRolledBack:
		return &Result{
			Success:       false,
			TransactionID: rec.ID,
			Escalated:     true,
			ErrorMessage:  payout.ErrAllProvidersExhausted.Error(),
		}, payout.ErrAllProvidersExhausted, true
	default:
		// A pending record with no in-flight owner means a prior process
		// died mid-dispatch. Surface it rather than double-debit.
		return &Result{
			Success:       false,
			TransactionID: rec.ID,
			ErrorMessage:  "dispatch already in progress",
		}, nil, true
	}
}

func (s *Service) run(ctx context.Context, req payout.DebitRequest, log *slog.Logger) (*Result, error) {
	// Tentative debit: the one ledger mutation before any provider is
	// contacted. Funds are never reported available while a payout may
	// still be in flight.
	if err := s.ledger.Debit(ctx, req.Amount); err != nil {
		if errors.Is(err, payout.ErrInsufficientFunds) {
			log.Info("dispatch rejected: insufficient funds")
			return &Result{Success: false, ErrorMessage: payout.ErrInsufficientFunds.Error()},
				payout.ErrInsufficientFunds
		}
		return &Result{Success: false, ErrorMessage: err.Error()}, fmt.Errorf("ledger debit: %w", err)
	}

	rec := &payout.TransactionRecord{
		ID:             uuid.New(),
		DebitRequestID: req.RequestID,
		Amount:         req.Amount,
		Status:         payout.TransactionPending,
		CreatedAt:      time.Now(),
	}
	if err := s.transactions.Create(ctx, rec); err != nil {
		// Could not open an audit trail for the debit; put the money back.
		if cerr := s.ledger.Credit(ctx, req.Amount); cerr != nil {
			log.Error("compensation failed after record create error", "error", cerr)
		}
		return &Result{Success: false, ErrorMessage: err.Error()}, fmt.Errorf("create transaction record: %w", err)
	}
	log = log.With("transaction_id", rec.ID)

	conns := s.registry.ListActive()
	for _, conn := range conns {
		if res, ok := s.tryProvider(ctx, req, rec, conn.ProviderID, log); ok {
			return res, nil
		}
	}

	return s.exhausted(ctx, req, rec, len(conns), log)
}

// tryProvider burns the retry budget of one provider. Returns ok=true on
// settlement.
func (s *Service) tryProvider(
	ctx context.Context,
	req payout.DebitRequest,
	rec *payout.TransactionRecord,
	providerID string,
	log *slog.Logger,
) (*Result, bool) {
	p, err := s.registry.Provider(providerID)
	if err != nil {
		return nil, false
	}
	log = log.With("provider_id", providerID)

	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			s.sleep(ctx, s.cfg.backoff(attempt)+s.jitter())
		}

		outcome, attemptErr := s.attempt(ctx, p, req)
		at := payout.Attempt{
			ProviderID:    providerID,
			AttemptNumber: attempt,
			Timestamp:     time.Now(),
		}
		if attemptErr == nil {
			at.Outcome = payout.AttemptSucceeded
			if err := s.transactions.AppendAttempt(ctx, rec.ID, at); err != nil {
				log.Error("failed to append attempt", "error", err)
			}
			if err := s.registry.RecordOutcome(providerID, true); err != nil {
				log.Error("failed to record provider outcome", "error", err)
			}
			now := time.Now()
			if err := s.transactions.MarkCompleted(ctx, rec.ID, providerID, now); err != nil {
				log.Error("failed to mark transaction completed", "error", err)
			}
			log.Info("payout settled",
				"attempt", attempt,
				"provider_transaction_id", outcome.ProviderTransactionID,
			)
			if s.bus != nil {
				_ = s.bus.Publish(ctx, eventbus.PayoutCompleted{
					TransactionID: rec.ID,
					RequestID:     req.RequestID,
					ProviderID:    providerID,
					Amount:        req.Amount,
				})
			}
			return &Result{
				Success:       true,
				TransactionID: rec.ID,
				ProviderUsed:  providerID,
			}, true
		}

		at.Outcome = payout.AttemptFailed
		at.Error = attemptErr.Error()
		if err := s.transactions.AppendAttempt(ctx, rec.ID, at); err != nil {
			log.Error("failed to append attempt", "error", err)
		}
		if err := s.registry.RecordOutcome(providerID, false); err != nil {
			log.Error("failed to record provider outcome", "error", err)
		}
		log.Warn("payout attempt failed", "attempt", attempt, "error", attemptErr)
	}

	// Retry budget spent; advance to the next provider. The error count
	// persists so this provider self-demotes in future orderings.
	log.Warn("provider exhausted", "max_retries", s.cfg.MaxRetries)
	return nil, false
}

// attempt performs one provider call under the per-attempt timeout.
func (s *Service) attempt(ctx context.Context, p payment.Provider, req payout.DebitRequest) (*payment.SubmitResult, error) {
	actx := ctx
	if s.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, s.cfg.AttemptTimeout)
		defer cancel()
	}
	res, err := p.Submit(actx, &payment.SubmitParams{
		Amount:         req.Amount,
		Destination:    req.Destination,
		IdempotencyKey: req.RequestID,
		Metadata:       req.Metadata,
	})
	if err != nil {
		return nil, err
	}
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "provider rejected payout"
		}
		return nil, errors.New(msg)
	}
	return res, nil
}

// exhausted compensates the tentative debit and escalates. Also the
// short-circuit path when zero providers are active.
func (s *Service) exhausted(
	ctx context.Context,
	req payout.DebitRequest,
	rec *payout.TransactionRecord,
	providerCount int,
	log *slog.Logger,
) (*Result, error) {
	if err := s.ledger.Credit(ctx, req.Amount); err != nil {
		// The debit stands but the payout is dead; the escalation below is
		// the recovery trail.
		log.Error("compensation credit failed", "error", err)
	}
	if err := s.transactions.MarkRolledBack(ctx, rec.ID, time.Now()); err != nil {
		log.Error("failed to mark transaction rolled back", "error", err)
	}

	reason := fmt.Sprintf("all %d active providers exhausted after %d attempts each",
		providerCount, s.cfg.MaxRetries)
	if providerCount == 0 {
		reason = "no active payment providers"
	}
	s.escalator.Escalate(ctx, rec.ID, req.Amount, reason)
	log.Error("dispatch escalated to manual review", "reason", reason)

	if s.bus != nil {
		_ = s.bus.Publish(ctx, eventbus.PayoutRolledBack{
			TransactionID: rec.ID,
			RequestID:     req.RequestID,
			Amount:        req.Amount,
		})
		_ = s.bus.Publish(ctx, eventbus.PayoutEscalated{
			TransactionID: rec.ID,
			RequestID:     req.RequestID,
			Reason:        reason,
		})
	}

	return &Result{
		Success:       false,
		TransactionID: rec.ID,
		Escalated:     true,
		ErrorMessage:  reason,
	}, payout.ErrAllProvidersExhausted
}
