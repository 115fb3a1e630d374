package app

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapyield/cashout/config"
	"github.com/tapyield/cashout/infra/memory"
	"github.com/tapyield/cashout/infra/provider/mockpayment"
	"github.com/tapyield/cashout/pkg/domain/payout"
	"github.com/tapyield/cashout/pkg/eventbus"
	"github.com/tapyield/cashout/pkg/money"
	"github.com/tapyield/cashout/pkg/registry"
)

func usd(t *testing.T, cents int64) money.Money {
	t.Helper()
	m, err := money.NewFromSmallestUnit(cents, "USD")
	require.NoError(t, err)
	return m
}

func newTestApp(t *testing.T, logger *slog.Logger, providers ...*mockpayment.Provider) *App {
	t.Helper()
	reg := registry.New(10, logger)
	for _, p := range providers {
		reg.Register(p)
	}
	cfg := &config.AppConfig{
		Failover: config.FailoverConfig{
			MaxRetries:      1,
			BackoffSchedule: []time.Duration{time.Millisecond},
			AttemptTimeout:  time.Second,
		},
		Reconcile: config.ReconcileConfig{
			OpeningBalanceCents:      100_00,
			ToleranceCents:           1,
			EscalationToleranceCents: 1000,
			MaxSaneAmountCents:       1_000_000,
		},
		Autopilot: config.AutopilotConfig{
			MinBalanceCents:  50_00,
			CashoutFraction:  0.5,
			MaxDailyCashouts: 3,
			PollInterval:     time.Hour,
		},
	}
	return New(Deps{
		Ledger:       memory.NewLedger(usd(t, 100_00)),
		Transactions: memory.NewTransactionStore(),
		Reviews:      memory.NewReviewQueue(),
		Registry:     reg,
		Bus:          eventbus.NewSimpleEventBus(),
		Logger:       logger,
	}, cfg)
}

// A settled dispatch reaches the completed-payout audit consumer.
func TestLifecycleAuditOnCompletion(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	a := newTestApp(t, logger, mockpayment.New("mock-primary"))
	result, err := a.Dispatch.Dispatch(context.Background(), payout.DebitRequest{
		RequestID:   "req-1",
		Amount:      usd(t, 10_00),
		Destination: "acct_123",
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	out := buf.String()
	assert.Contains(t, out, "payout completed")
	assert.Contains(t, out, result.TransactionID.String())
	assert.Contains(t, out, "mock-primary")
	assert.NotContains(t, out, "payout rolled back")
}

// An exhausted dispatch reaches both the rollback and the escalation audit
// consumers.
func TestLifecycleAuditOnExhaustion(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	failing := mockpayment.New("mock-primary")
	failing.AlwaysFail()
	a := newTestApp(t, logger, failing)

	result, err := a.Dispatch.Dispatch(context.Background(), payout.DebitRequest{
		RequestID:   "req-2",
		Amount:      usd(t, 10_00),
		Destination: "acct_123",
	})
	require.ErrorIs(t, err, payout.ErrAllProvidersExhausted)
	require.True(t, result.Escalated)

	out := buf.String()
	assert.Contains(t, out, "payout rolled back")
	assert.Contains(t, out, "payout escalated to manual review")
	assert.Contains(t, out, result.TransactionID.String())
	assert.NotContains(t, out, "payout completed")
}

func TestHealthCheckLoop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	p := mockpayment.New("mock-primary")
	a := newTestApp(t, logger, p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.StartHealthCheckLoop(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		snap := a.Registry.Snapshot()
		return len(snap) == 1 && !snap[0].LastChecked.IsZero()
	}, time.Second, 5*time.Millisecond)
}
