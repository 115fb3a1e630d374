// Package reconcile implements the audit engine: it compares the balance
// derivable from the transaction history against the balance the ledger
// reports and classifies the discrepancy. A failed report never corrects
// the ledger by itself; financial balances are only adjusted through the
// explicit correction command, which leaves its own audit entry.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tapyield/cashout/pkg/domain/payout"
	"github.com/tapyield/cashout/pkg/money"
	"github.com/tapyield/cashout/pkg/repository"
)

// Cadence names the supported audit schedules.
type Cadence string

const (
	CadenceDaily     Cadence = "daily"
	CadenceWeekly    Cadence = "weekly"
	CadenceMonthly   Cadence = "monthly"
	CadenceQuarterly Cadence = "quarterly"
	CadenceAnnual    Cadence = "annual"
)

// Window returns the look-back window for a cadence.
func (c Cadence) Window() time.Duration {
	switch c {
	case CadenceWeekly:
		return 7 * 24 * time.Hour
	case CadenceMonthly:
		return 30 * 24 * time.Hour
	case CadenceQuarterly:
		return 91 * 24 * time.Hour
	case CadenceAnnual:
		return 365 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Scope selects what an audit examines. The balance comparison always spans
// the full history (the ledger is cumulative); Window bounds the per-record
// scan of a regular audit, and Deep widens it to the whole history with
// invariant checks folded into the report.
type Scope struct {
	Window time.Duration
	Deep   bool
}

// ScopeFor builds the scope for a scheduled cadence.
func ScopeFor(c Cadence) Scope {
	return Scope{Window: c.Window(), Deep: c == CadenceQuarterly || c == CadenceAnnual}
}

// Config holds the audit thresholds.
type Config struct {
	// OpeningBalanceCents seeds the computed balance: the ledger value at
	// system initialization, before any tracked transfer.
	OpeningBalanceCents int64
	// ToleranceCents is the rounding slack below which a discrepancy passes.
	ToleranceCents int64
	// EscalationToleranceCents is the boundary between warning and failed.
	EscalationToleranceCents int64
	// MaxSaneAmountCents is the upper bound a single transfer may plausibly
	// have; deep audits flag records above it.
	MaxSaneAmountCents int64
	Currency           string
}

// DefaultConfig returns tolerances of $0.01 / $10.00 and a $10,000 sanity
// cap on single transfers.
func DefaultConfig(openingCents int64) Config {
	return Config{
		OpeningBalanceCents:      openingCents,
		ToleranceCents:           1,
		EscalationToleranceCents: 1000,
		MaxSaneAmountCents:       1_000_000,
		Currency:                 money.DefaultCurrency,
	}
}

// Service is the reconciliation/audit engine.
type Service struct {
	ledger       repository.Ledger
	transactions repository.Transaction
	cfg          Config
	logger       *slog.Logger
}

// New creates the engine.
func New(ledger repository.Ledger, transactions repository.Transaction, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Currency == "" {
		cfg.Currency = money.DefaultCurrency
	}
	return &Service{ledger: ledger, transactions: transactions, cfg: cfg, logger: logger}
}

// RunAudit produces a reconciliation report for the given scope.
func (s *Service) RunAudit(ctx context.Context, scope Scope) (*payout.ReconciliationReport, error) {
	now := time.Now()
	windowStart := now.Add(-scope.Window)
	if scope.Window <= 0 {
		windowStart = now.Add(-CadenceDaily.Window())
	}

	all, err := s.transactions.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	completedCents := int64(0)
	for _, rec := range all {
		if rec.Status == payout.TransactionCompleted {
			completedCents += rec.Amount.Amount()
		}
	}
	computedCents := s.cfg.OpeningBalanceCents - completedCents

	reported, err := s.ledger.GetBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger balance: %w", err)
	}

	discrepancyCents := computedCents - reported.Amount()
	if discrepancyCents < 0 {
		discrepancyCents = -discrepancyCents
	}

	status := s.classify(discrepancyCents)

	// Deep audits walk the full history; a regular audit scans only the
	// transfers settled inside its window.
	scan := all
	if !scope.Deep {
		scan, err = s.transactions.ListCompletedInWindow(ctx, windowStart, now)
		if err != nil {
			return nil, fmt.Errorf("list completed transactions: %w", err)
		}
	}
	var issues []payout.ReportIssue
	for _, rec := range scan {
		issues = append(issues, s.recordIssues(rec, scope.Deep)...)
	}
	if len(issues) > 0 && status == payout.ReportPassed {
		status = payout.ReportWarning
	}

	computed, err := money.NewFromSmallestUnit(computedCents, s.cfg.Currency)
	if err != nil {
		return nil, err
	}
	discrepancy, err := money.NewFromSmallestUnit(discrepancyCents, s.cfg.Currency)
	if err != nil {
		return nil, err
	}

	report := &payout.ReconciliationReport{
		ComputedBalance: computed,
		ReportedBalance: reported,
		Discrepancy:     discrepancy,
		Status:          status,
		Issues:          issues,
		WindowStart:     windowStart,
		WindowEnd:       now,
		Timestamp:       now,
	}

	s.logger.Info("reconciliation audit finished",
		"status", status,
		"computed", computed.String(),
		"reported", reported.String(),
		"discrepancy", discrepancy.String(),
		"issues", len(issues),
		"deep", scope.Deep,
	)
	if status == payout.ReportFailed {
		s.logger.Error("reconciliation discrepancy above escalation tolerance; manual correction required",
			"discrepancy", discrepancy.String(),
		)
	}
	return report, nil
}

func (s *Service) classify(discrepancyCents int64) payout.ReportStatus {
	switch {
	case discrepancyCents < s.cfg.ToleranceCents:
		return payout.ReportPassed
	case discrepancyCents < s.cfg.EscalationToleranceCents:
		return payout.ReportWarning
	default:
		return payout.ReportFailed
	}
}

func (s *Service) recordIssues(rec *payout.TransactionRecord, deep bool) []payout.ReportIssue {
	var issues []payout.ReportIssue
	add := func(format string, args ...any) {
		issues = append(issues, payout.ReportIssue{
			TransactionID: rec.ID,
			Description:   fmt.Sprintf(format, args...),
		})
	}

	if rec.Amount.Amount() <= 0 {
		add("non-positive amount %s", rec.Amount)
	}
	if !deep {
		return issues
	}
	if rec.Amount.Amount() > s.cfg.MaxSaneAmountCents {
		limit := decimal.New(s.cfg.MaxSaneAmountCents, -2)
		add("amount %s above sanity cap %s", rec.Amount, limit.StringFixed(2))
	}
	if rec.Status == payout.TransactionCompleted && rec.ProviderID == "" {
		add("completed without a settling provider")
	}
	if rec.Status.Terminal() && rec.Status != payout.TransactionFailed && rec.CompletedAt == nil {
		add("terminal status %s without completion timestamp", rec.Status)
	}
	return issues
}

// ApplyAdjustment applies an explicit corrective delta to the ledger. This
// is the only path by which reconciliation findings change a balance.
func (s *Service) ApplyAdjustment(ctx context.Context, deltaCents int64, reason string) error {
	if reason == "" {
		return fmt.Errorf("corrective adjustment requires a reason")
	}
	if err := s.ledger.Adjust(ctx, deltaCents, reason); err != nil {
		return fmt.Errorf("apply adjustment: %w", err)
	}
	s.logger.Warn("corrective ledger adjustment applied",
		"delta_cents", deltaCents,
		"reason", reason,
	)
	return nil
}
