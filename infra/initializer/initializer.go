// Package initializer builds the application dependencies from
// configuration: logger, persistence, payment providers, and the health
// registry.
package initializer

import (
	"fmt"
	"log/slog"

	"github.com/tapyield/cashout/config"
	"github.com/tapyield/cashout/infra"
	"github.com/tapyield/cashout/infra/memory"
	"github.com/tapyield/cashout/infra/provider/bankwire"
	"github.com/tapyield/cashout/infra/provider/mockpayment"
	"github.com/tapyield/cashout/infra/provider/stripepayment"
	ledgerrepo "github.com/tapyield/cashout/infra/repository/ledger"
	reviewrepo "github.com/tapyield/cashout/infra/repository/review"
	txrepo "github.com/tapyield/cashout/infra/repository/transaction"
	"github.com/tapyield/cashout/pkg/app"
	"github.com/tapyield/cashout/pkg/eventbus"
	"github.com/tapyield/cashout/pkg/money"
	"github.com/tapyield/cashout/pkg/registry"
)

// InitializeDependencies builds the infra dependency set. In mock mode the
// whole stack is in-memory with scriptable providers; otherwise postgres
// repositories back the stores and the enabled real adapters are registered.
func InitializeDependencies(cfg *config.AppConfig) (*app.Deps, error) {
	deps := &app.Deps{}
	logger := setupLogger(cfg.Log)
	deps.Logger = logger

	deps.Bus = eventbus.NewSimpleEventBus()
	deps.Registry = registry.New(cfg.Failover.ErrorThreshold, logger)

	opening, err := money.NewFromSmallestUnit(cfg.Reconcile.OpeningBalanceCents, money.DefaultCurrency)
	if err != nil {
		return nil, fmt.Errorf("opening balance: %w", err)
	}

	if cfg.Providers.MockMode {
		logger.Warn("mock mode enabled, using in-memory stores and mock providers")
		deps.Ledger = memory.NewLedger(opening)
		deps.Transactions = memory.NewTransactionStore()
		deps.Reviews = memory.NewReviewQueue()
		deps.Registry.Register(mockpayment.New("mock-primary"))
		deps.Registry.Register(mockpayment.New("mock-secondary"))
		return deps, nil
	}

	db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		return nil, err
	}
	if err := infra.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	if err := ledgerrepo.Seed(db, opening); err != nil {
		return nil, fmt.Errorf("seed ledger: %w", err)
	}

	deps.Ledger = ledgerrepo.New(db)
	deps.Transactions = txrepo.New(db)
	deps.Reviews = reviewrepo.New(db)

	if err := registerProviders(cfg, deps.Registry, logger); err != nil {
		return nil, err
	}

	return deps, nil
}

func registerProviders(cfg *config.AppConfig, reg *registry.Registry, logger *slog.Logger) error {
	registered := 0
	if cfg.Providers.Stripe.Enabled {
		reg.Register(stripepayment.New(&cfg.Providers.Stripe, logger))
		registered++
	}
	if cfg.Providers.BankWire.Enabled {
		reg.Register(bankwire.New(&cfg.Providers.BankWire, logger))
		registered++
	}
	if registered == 0 {
		return fmt.Errorf("no payment providers enabled")
	}
	logger.Info("payment providers registered", "count", registered)
	return nil
}
