package eventbus

import (
	"github.com/google/uuid"

	"github.com/tapyield/cashout/pkg/money"
)

// Event type strings for subscriptions.
const (
	EventPayoutCompleted  = "payout.completed"
	EventPayoutRolledBack = "payout.rolled_back"
	EventPayoutEscalated  = "payout.escalated"
)

// PayoutCompleted is published when a provider settles a dispatch.
type PayoutCompleted struct {
	TransactionID uuid.UUID
	RequestID     string
	ProviderID    string
	Amount        money.Money
}

func (PayoutCompleted) Type() string { return EventPayoutCompleted }

// PayoutRolledBack is published after a tentative debit is compensated.
type PayoutRolledBack struct {
	TransactionID uuid.UUID
	RequestID     string
	Amount        money.Money
}

func (PayoutRolledBack) Type() string { return EventPayoutRolledBack }

// PayoutEscalated is published when a dispatch lands in the manual review
// queue.
type PayoutEscalated struct {
	TransactionID uuid.UUID
	RequestID     string
	Reason        string
}

func (PayoutEscalated) Type() string { return EventPayoutEscalated }
