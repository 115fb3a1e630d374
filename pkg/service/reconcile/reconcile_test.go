package reconcile

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapyield/cashout/infra/memory"
	"github.com/tapyield/cashout/pkg/domain/payout"
	"github.com/tapyield/cashout/pkg/money"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func usd(t *testing.T, cents int64) money.Money {
	t.Helper()
	m, err := money.NewFromSmallestUnit(cents, "USD")
	require.NoError(t, err)
	return m
}

// completedRecord seeds a completed transfer into the store.
func completedRecord(t *testing.T, txs *memory.TransactionStore, cents int64) {
	t.Helper()
	rec := &payout.TransactionRecord{
		ID:             uuid.New(),
		DebitRequestID: uuid.NewString(),
		Amount:         usd(t, cents),
		Status:         payout.TransactionPending,
		CreatedAt:      time.Now(),
	}
	require.NoError(t, txs.Create(context.Background(), rec))
	require.NoError(t, txs.MarkCompleted(context.Background(), rec.ID, "stripe", time.Now()))
}

func newService(t *testing.T, openingCents, ledgerCents int64, txs *memory.TransactionStore) (*Service, *memory.Ledger) {
	t.Helper()
	ledger := memory.NewLedger(usd(t, ledgerCents))
	cfg := DefaultConfig(openingCents)
	return New(ledger, txs, cfg, testLogger()), ledger
}

func TestAuditBalancedLedgerPasses(t *testing.T) {
	txs := memory.NewTransactionStore()
	completedRecord(t, txs, 3000)
	completedRecord(t, txs, 2000)

	// opening $100, $50 transferred out, ledger reads $50: no drift.
	svc, _ := newService(t, 10000, 5000, txs)
	report, err := svc.RunAudit(context.Background(), Scope{Window: 24 * time.Hour})
	require.NoError(t, err)

	assert.Equal(t, payout.ReportPassed, report.Status)
	assert.Equal(t, int64(5000), report.ComputedBalance.Amount())
	assert.Equal(t, int64(5000), report.ReportedBalance.Amount())
	assert.Equal(t, int64(0), report.Discrepancy.Amount())
}

// Tolerance boundaries with tolerance=$0.01 and escalation tolerance=$10:
// below tolerance passes, $5.00 warns, $15.00 fails.
func TestAuditToleranceBoundaries(t *testing.T) {
	tests := []struct {
		name             string
		discrepancyCents int64
		want             payout.ReportStatus
	}{
		{"exact match", 0, payout.ReportPassed},
		{"one cent drift", 1, payout.ReportWarning},
		{"five dollars drift", 500, payout.ReportWarning},
		{"just under escalation", 999, payout.ReportWarning},
		{"fifteen dollars drift", 1500, payout.ReportFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs := memory.NewTransactionStore()
			completedRecord(t, txs, 3000)
			// opening $100 - $30 out = computed $70; ledger drifts by the
			// test's discrepancy.
			svc, _ := newService(t, 10000, 7000-tt.discrepancyCents, txs)
			report, err := svc.RunAudit(context.Background(), Scope{Window: 24 * time.Hour})
			require.NoError(t, err)
			assert.Equal(t, tt.want, report.Status)
			assert.Equal(t, tt.discrepancyCents, report.Discrepancy.Amount())
		})
	}
}

func TestFailedAuditDoesNotTouchLedger(t *testing.T) {
	txs := memory.NewTransactionStore()
	completedRecord(t, txs, 3000)
	svc, ledger := newService(t, 10000, 5000, txs) // $20 drift -> failed

	report, err := svc.RunAudit(context.Background(), Scope{Window: 24 * time.Hour})
	require.NoError(t, err)
	require.Equal(t, payout.ReportFailed, report.Status)

	bal, err := ledger.GetBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5000), bal.Amount(), "audit never auto-corrects the ledger")
	assert.Empty(t, ledger.Adjustments())
}

func TestDeepAuditFlagsInvariantViolations(t *testing.T) {
	txs := memory.NewTransactionStore()

	// A completed record above the sanity cap.
	huge := &payout.TransactionRecord{
		ID:             uuid.New(),
		DebitRequestID: "huge",
		Amount:         usd(t, 2_000_000),
		Status:         payout.TransactionPending,
		CreatedAt:      time.Now().Add(-48 * time.Hour),
	}
	require.NoError(t, txs.Create(context.Background(), huge))
	require.NoError(t, txs.MarkCompleted(context.Background(), huge.ID, "stripe", time.Now().Add(-48*time.Hour)))

	svc, _ := newService(t, 2_000_000, 0, txs)

	// A shallow daily audit does not scan records settled outside its window.
	shallow, err := svc.RunAudit(context.Background(), Scope{Window: 24 * time.Hour})
	require.NoError(t, err)
	assert.Empty(t, shallow.Issues)

	deep, err := svc.RunAudit(context.Background(), Scope{Window: 24 * time.Hour, Deep: true})
	require.NoError(t, err)
	require.Len(t, deep.Issues, 1)
	assert.Equal(t, huge.ID, deep.Issues[0].TransactionID)
	assert.Contains(t, deep.Issues[0].Description, "sanity cap")
}

// The regular per-record scan covers exactly the transfers settled inside
// the window, keyed on completion time, not creation time.
func TestShallowAuditScansSettledWindow(t *testing.T) {
	txs := memory.NewTransactionStore()

	seed := func(cents int64, settledAt time.Time) *payout.TransactionRecord {
		rec := &payout.TransactionRecord{
			ID:             uuid.New(),
			DebitRequestID: uuid.NewString(),
			Amount:         usd(t, cents),
			Status:         payout.TransactionPending,
			CreatedAt:      time.Now().Add(-72 * time.Hour),
		}
		require.NoError(t, txs.Create(context.Background(), rec))
		require.NoError(t, txs.MarkCompleted(context.Background(), rec.ID, "stripe", settledAt))
		return rec
	}

	// Both records were created long ago; only one settled recently.
	stale := seed(0, time.Now().Add(-48*time.Hour))
	fresh := seed(0, time.Now().Add(-time.Hour))

	svc, _ := newService(t, 10000, 10000, txs)
	report, err := svc.RunAudit(context.Background(), Scope{Window: 24 * time.Hour})
	require.NoError(t, err)

	require.Len(t, report.Issues, 1)
	assert.Equal(t, fresh.ID, report.Issues[0].TransactionID)
	assert.Contains(t, report.Issues[0].Description, "non-positive")

	// A deep audit flags both.
	deep, err := svc.RunAudit(context.Background(), Scope{Window: 24 * time.Hour, Deep: true})
	require.NoError(t, err)
	flagged := map[uuid.UUID]bool{}
	for _, issue := range deep.Issues {
		flagged[issue.TransactionID] = true
	}
	assert.True(t, flagged[stale.ID])
	assert.True(t, flagged[fresh.ID])
}

func TestApplyAdjustment(t *testing.T) {
	txs := memory.NewTransactionStore()
	svc, ledger := newService(t, 1000, 1000, txs)

	require.NoError(t, svc.ApplyAdjustment(context.Background(), -250, "audit finding #42"))
	bal, err := ledger.GetBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(750), bal.Amount())

	entries := ledger.Adjustments()
	require.Len(t, entries, 1)
	assert.Equal(t, "audit finding #42", entries[0].Reason)

	assert.Error(t, svc.ApplyAdjustment(context.Background(), -10, ""), "a reason is mandatory")
}

func TestScopeForCadence(t *testing.T) {
	assert.Equal(t, 24*time.Hour, ScopeFor(CadenceDaily).Window)
	assert.False(t, ScopeFor(CadenceDaily).Deep)
	assert.Equal(t, 7*24*time.Hour, ScopeFor(CadenceWeekly).Window)
	assert.True(t, ScopeFor(CadenceQuarterly).Deep)
	assert.True(t, ScopeFor(CadenceAnnual).Deep)
}
