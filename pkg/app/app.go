// Package app wires the payout services together from their infra
// dependencies.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/tapyield/cashout/config"
	"github.com/tapyield/cashout/pkg/eventbus"
	"github.com/tapyield/cashout/pkg/registry"
	"github.com/tapyield/cashout/pkg/repository"
	"github.com/tapyield/cashout/pkg/service/autopilot"
	"github.com/tapyield/cashout/pkg/service/dispatch"
	"github.com/tapyield/cashout/pkg/service/reconcile"
	"github.com/tapyield/cashout/pkg/service/review"
)

// Deps are the infrastructure dependencies produced by the initializer.
type Deps struct {
	Ledger       repository.Ledger
	Transactions repository.Transaction
	Reviews      repository.Review
	Registry     *registry.Registry
	Bus          eventbus.Bus
	Logger       *slog.Logger
}

// App holds the wired services.
type App struct {
	Deps
	Config *config.AppConfig

	Dispatch  *dispatch.Service
	Review    *review.Service
	Reconcile *reconcile.Service
	Autopilot *autopilot.Service
}

// New builds the service layer on top of deps.
func New(deps Deps, cfg *config.AppConfig) *App {
	reviewSvc := review.New(deps.Reviews, deps.Logger)

	dispatchSvc := dispatch.New(dispatch.Deps{
		Ledger:       deps.Ledger,
		Transactions: deps.Transactions,
		Registry:     deps.Registry,
		Escalator:    reviewSvc,
		Bus:          deps.Bus,
		Logger:       deps.Logger,
		Config: dispatch.Config{
			MaxRetries:      cfg.Failover.MaxRetries,
			BackoffSchedule: cfg.Failover.BackoffSchedule,
			AttemptTimeout:  cfg.Failover.AttemptTimeout,
			JitterMax:       cfg.Failover.JitterMax,
		},
	})

	reconcileSvc := reconcile.New(deps.Ledger, deps.Transactions, reconcile.Config{
		OpeningBalanceCents:      cfg.Reconcile.OpeningBalanceCents,
		ToleranceCents:           cfg.Reconcile.ToleranceCents,
		EscalationToleranceCents: cfg.Reconcile.EscalationToleranceCents,
		MaxSaneAmountCents:       cfg.Reconcile.MaxSaneAmountCents,
	}, deps.Logger)

	autopilotSvc := autopilot.New(deps.Ledger, dispatchSvc, autopilot.Config{
		MinBalanceCents:  cfg.Autopilot.MinBalanceCents,
		CashoutFraction:  cfg.Autopilot.CashoutFraction,
		MaxDailyCashouts: cfg.Autopilot.MaxDailyCashouts,
		PollInterval:     cfg.Autopilot.PollInterval,
		Destination:      cfg.Autopilot.Destination,
	}, deps.Logger)

	registerLifecycleAudit(deps.Bus, deps.Logger)

	return &App{
		Deps:      deps,
		Config:    cfg,
		Dispatch:  dispatchSvc,
		Review:    reviewSvc,
		Reconcile: reconcileSvc,
		Autopilot: autopilotSvc,
	}
}

// registerLifecycleAudit subscribes the audit-log consumers for payout
// lifecycle events. Rollbacks and escalations are warnings: money moved
// back, but a human has work to do.
func registerLifecycleAudit(bus eventbus.Bus, logger *slog.Logger) {
	bus.Subscribe(eventbus.EventPayoutCompleted, func(ctx context.Context, e eventbus.Event) {
		if ev, ok := e.(eventbus.PayoutCompleted); ok {
			logger.Info("payout completed",
				"transaction_id", ev.TransactionID,
				"request_id", ev.RequestID,
				"provider", ev.ProviderID,
				"amount", ev.Amount.String(),
			)
		}
	})
	bus.Subscribe(eventbus.EventPayoutRolledBack, func(ctx context.Context, e eventbus.Event) {
		if ev, ok := e.(eventbus.PayoutRolledBack); ok {
			logger.Warn("payout rolled back",
				"transaction_id", ev.TransactionID,
				"request_id", ev.RequestID,
				"amount", ev.Amount.String(),
			)
		}
	})
	bus.Subscribe(eventbus.EventPayoutEscalated, func(ctx context.Context, e eventbus.Event) {
		if ev, ok := e.(eventbus.PayoutEscalated); ok {
			logger.Warn("payout escalated to manual review",
				"transaction_id", ev.TransactionID,
				"request_id", ev.RequestID,
				"reason", ev.Reason,
			)
		}
	})
}

// StartHealthCheckLoop pings every registered provider on a fixed cadence
// until ctx is cancelled. Runs in its own goroutine.
func (a *App) StartHealthCheckLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.Registry.RunHealthCheck(ctx)
			}
		}
	}()
}
