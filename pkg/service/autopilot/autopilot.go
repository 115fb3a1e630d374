// Package autopilot runs the cooperative cashout loop: it polls the ledger
// balance on an interval and, when the balance clears the configured
// threshold, issues a debit request through the failover orchestrator,
// bounded by a rolling 24h dispatch cap.
package autopilot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tapyield/cashout/pkg/domain/payout"
	"github.com/tapyield/cashout/pkg/money"
	"github.com/tapyield/cashout/pkg/repository"
	"github.com/tapyield/cashout/pkg/service/dispatch"
)

// Dispatcher is the slice of the orchestrator the autopilot needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, req payout.DebitRequest) (*dispatch.Result, error)
}

// Config tunes the loop.
type Config struct {
	// MinBalanceCents is the threshold at or above which a cashout fires.
	MinBalanceCents int64
	// CashoutFraction is the share of the balance cashed out per dispatch,
	// in (0, 1].
	CashoutFraction float64
	// MaxDailyCashouts caps dispatch attempts per rolling 24h window.
	// Attempts count whether they succeed or fail; both consume a slot.
	MaxDailyCashouts int
	// PollInterval is the wake cadence of the loop.
	PollInterval time.Duration
	// Destination receives autopilot payouts.
	Destination string
}

// Status is a snapshot of the loop state.
type Status struct {
	Running            bool      `json:"running"`
	DispatchesInWindow int       `json:"dispatches_in_window"`
	LastWake           time.Time `json:"last_wake,omitempty"`
}

// Service is the autopilot scheduler. Start/Stop are cooperative: a stop is
// observed on the next wake and never interrupts an in-flight dispatch.
type Service struct {
	ledger     repository.Ledger
	dispatcher Dispatcher
	logger     *slog.Logger
	cfg        Config

	now func() time.Time // injectable clock

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	history  []time.Time // dispatch attempt timestamps, rolling 24h
	lastWake time.Time
}

// New creates a stopped autopilot.
func New(ledger repository.Ledger, dispatcher Dispatcher, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		ledger:     ledger,
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Start moves stopped -> running and begins polling. No-op when already
// running.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.loop(s.stopCh, s.doneCh)
	s.logger.Info("autopilot started",
		"min_balance_cents", s.cfg.MinBalanceCents,
		"cashout_fraction", s.cfg.CashoutFraction,
		"max_daily_cashouts", s.cfg.MaxDailyCashouts,
		"poll_interval", s.cfg.PollInterval,
	)
}

// Stop moves running -> stopped. The loop observes the stop on its next
// wake; an in-flight dispatch always completes first.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
	s.logger.Info("autopilot stopped")
}

// Status reports the current loop state.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:            s.running,
		DispatchesInWindow: len(s.pruneLocked(s.now())),
		LastWake:           s.lastWake,
	}
}

func (s *Service) loop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			// Dispatches run against a background context: a stop request
			// waits for the next wake, it never cancels payment work.
			s.Tick(context.Background())
		}
	}
}

// Tick is one poll cycle. Exposed so a cron-style external trigger (or a
// test) can drive the scheduler without the internal ticker.
func (s *Service) Tick(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	s.lastWake = now
	s.pruneLocked(now)
	if len(s.history) >= s.cfg.MaxDailyCashouts {
		s.mu.Unlock()
		s.logger.Debug("autopilot cycle skipped: daily cap reached",
			"dispatches_in_window", len(s.history),
		)
		return
	}
	s.mu.Unlock()

	bal, err := s.ledger.GetBalance(ctx)
	if err != nil {
		s.logger.Error("autopilot could not read balance", "error", err)
		return
	}
	if bal.Amount() < s.cfg.MinBalanceCents {
		return
	}

	amountCents := decimal.New(bal.Amount(), 0).
		Mul(decimal.NewFromFloat(s.cfg.CashoutFraction)).
		Floor().
		IntPart()
	if amountCents <= 0 {
		return
	}
	amount, err := money.NewFromSmallestUnit(amountCents, bal.Currency())
	if err != nil {
		s.logger.Error("autopilot amount construction failed", "error", err)
		return
	}

	req := payout.DebitRequest{
		RequestID:   "autopilot-" + uuid.NewString(),
		Amount:      amount,
		Destination: s.cfg.Destination,
		Metadata: map[string]string{
			"source":       "autopilot",
			"balance_at":   bal.String(),
			"triggered_at": now.Format(time.RFC3339),
		},
	}

	// The attempt consumes a slot regardless of outcome.
	s.mu.Lock()
	s.history = append(s.history, now)
	s.mu.Unlock()

	res, err := s.dispatcher.Dispatch(ctx, req)
	if err != nil {
		s.logger.Warn("autopilot dispatch failed",
			"request_id", req.RequestID,
			"escalated", res != nil && res.Escalated,
			"error", err,
		)
		return
	}
	s.logger.Info("autopilot cashout dispatched",
		"request_id", req.RequestID,
		"amount", amount.String(),
		"provider", res.ProviderUsed,
	)
}

// pruneLocked drops attempts older than 24h and returns the surviving
// window. Caller holds s.mu.
func (s *Service) pruneLocked(now time.Time) []time.Time {
	cutoff := now.Add(-24 * time.Hour)
	kept := make([]time.Time, 0, len(s.history))
	for _, ts := range s.history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	s.history = kept
	return kept
}
