// Package payout defines the domain types of the payout core: debit
// requests, transaction records with their attempt history, manual review
// items, and reconciliation reports.
package payout

import (
	"time"

	"github.com/google/uuid"

	"github.com/tapyield/cashout/pkg/money"
)

// TransactionStatus is the lifecycle state of a TransactionRecord.
type TransactionStatus string

const (
	// TransactionPending marks a record whose debit has been taken but whose
	// provider outcome is not yet known.
	TransactionPending TransactionStatus = "pending"
	// TransactionCompleted marks a record settled by a provider.
	TransactionCompleted TransactionStatus = "completed"
	// TransactionFailed marks a record that failed before any debit was taken.
	TransactionFailed TransactionStatus = "failed"
	// TransactionRolledBack marks a record whose tentative debit was
	// compensated after every provider was exhausted.
	TransactionRolledBack TransactionStatus = "rolled_back"
)

// Terminal reports whether the status permits no further transitions.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionCompleted || s == TransactionFailed || s == TransactionRolledBack
}

// DebitRequest is the value object submitted to the failover orchestrator.
// It is created by the caller (autopilot or a manual cashout), consumed once,
// and never mutated. RequestID doubles as the idempotency key.
type DebitRequest struct {
	RequestID   string
	Amount      money.Money
	Destination string
	Metadata    map[string]string
}

// AttemptOutcome is the result of a single provider attempt.
type AttemptOutcome string

const (
	AttemptSucceeded AttemptOutcome = "succeeded"
	AttemptFailed    AttemptOutcome = "failed"
)

// Attempt records one provider call made on behalf of a transaction.
type Attempt struct {
	ProviderID    string
	AttemptNumber int
	Outcome       AttemptOutcome
	Error         string
	Timestamp     time.Time
}

// TransactionRecord is the append-only audit record of a dispatch. Status
// transitions are pending -> completed or pending -> rolled_back only; a
// record is immutable once terminal.
type TransactionRecord struct {
	ID             uuid.UUID
	DebitRequestID string
	ProviderID     string // provider that ultimately succeeded, empty otherwise
	Amount         money.Money
	Status         TransactionStatus
	Attempts       []Attempt
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// ReviewStatus is the lifecycle state of a ManualReviewItem.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// ReviewPriority orders the manual review queue. Larger payout amounts map
// to higher priorities.
type ReviewPriority string

const (
	PriorityLow      ReviewPriority = "low"
	PriorityMedium   ReviewPriority = "medium"
	PriorityHigh     ReviewPriority = "high"
	PriorityCritical ReviewPriority = "critical"
)

// PriorityForAmount derives a review priority from the payout amount.
func PriorityForAmount(amount money.Money) ReviewPriority {
	switch cents := amount.Amount(); {
	case cents >= 50000:
		return PriorityCritical
	case cents >= 10000:
		return PriorityHigh
	case cents >= 2500:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// ManualReviewItem is created by emergency escalation when a dispatch
// exhausts every provider. Terminal states are set only by an external
// reviewer.
type ManualReviewItem struct {
	ID                  uuid.UUID
	TransactionRecordID uuid.UUID
	Reason              string
	Priority            ReviewPriority
	Status              ReviewStatus
	CreatedAt           time.Time
}

// ReportStatus classifies a reconciliation report by discrepancy size.
type ReportStatus string

const (
	ReportPassed  ReportStatus = "passed"
	ReportWarning ReportStatus = "warning"
	ReportFailed  ReportStatus = "failed"
)

// ReportIssue is a per-record invariant violation found by a deep audit.
type ReportIssue struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Description   string    `json:"description"`
}

// ReconciliationReport compares the balance derivable from the transaction
// history against the balance the ledger reports. Log-only; never mutated
// after creation.
type ReconciliationReport struct {
	ComputedBalance money.Money   `json:"computed_balance"`
	ReportedBalance money.Money   `json:"reported_balance"`
	Discrepancy     money.Money   `json:"discrepancy"`
	Status          ReportStatus  `json:"status"`
	Issues          []ReportIssue `json:"issues,omitempty"`
	WindowStart     time.Time     `json:"window_start"`
	WindowEnd       time.Time     `json:"window_end"`
	Timestamp       time.Time     `json:"timestamp"`
}
