package review

import (
	"context"
	"log/slog"
	"os"
	"testing"

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

func TestEscalateCreatesPendingItem(t *testing.T) {
	q := memory.NewReviewQueue()
	svc := New(q, testLogger())
	txID := uuid.New()

	item := svc.Escalate(context.Background(), txID, usd(t, 3000), "all providers exhausted")
	require.NotNil(t, item)
	assert.Equal(t, payout.ReviewPending, item.Status)
	assert.Equal(t, txID, item.TransactionRecordID)

	pending, err := svc.List(context.Background(), payout.ReviewPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestPriorityDerivedFromAmount(t *testing.T) {
	tests := []struct {
		name  string
		cents int64
		want  payout.ReviewPriority
	}{
		{"small payout", 500, payout.PriorityLow},
		{"medium payout", 2500, payout.PriorityMedium},
		{"large payout", 10000, payout.PriorityHigh},
		{"very large payout", 50000, payout.PriorityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := memory.NewReviewQueue()
			svc := New(q, testLogger())
			item := svc.Escalate(context.Background(), uuid.New(), usd(t, tt.cents), "test")
			assert.Equal(t, tt.want, item.Priority)
		})
	}
}

func TestEscalateNeverFails(t *testing.T) {
	q := memory.NewReviewQueue()
	q.FailCreateWith(assert.AnError)
	svc := New(q, testLogger())

	// The queue write fails, but Escalate still returns the item so the
	// dispatch result can report escalation was attempted.
	item := svc.Escalate(context.Background(), uuid.New(), usd(t, 1000), "exhausted")
	require.NotNil(t, item)

	pending, err := svc.List(context.Background(), payout.ReviewPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestApproveRejectTransitions(t *testing.T) {
	q := memory.NewReviewQueue()
	svc := New(q, testLogger())

	a := svc.Escalate(context.Background(), uuid.New(), usd(t, 1000), "x")
	b := svc.Escalate(context.Background(), uuid.New(), usd(t, 1000), "y")

	require.NoError(t, svc.Approve(context.Background(), a.ID))
	require.NoError(t, svc.Reject(context.Background(), b.ID))

	// Terminal items may not transition again.
	assert.ErrorIs(t, svc.Reject(context.Background(), a.ID), payout.ErrInvalidStatusTransition)
	assert.ErrorIs(t, svc.Approve(context.Background(), b.ID), payout.ErrInvalidStatusTransition)

	assert.ErrorIs(t, svc.Approve(context.Background(), uuid.New()), payout.ErrReviewItemNotFound)
}
