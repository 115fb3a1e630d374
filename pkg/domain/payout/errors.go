package payout

import "errors"

var (
	// ErrInsufficientFunds is returned when the ledger cannot support the
	// requested debit. No provider is contacted and nothing is escalated.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAllProvidersExhausted is the terminal failure of a dispatch: every
	// active provider spent its retry budget. The tentative debit has been
	// compensated and the request escalated to manual review.
	ErrAllProvidersExhausted = errors.New("all payment providers exhausted")

	// ErrTransactionNotFound is returned when a transaction record cannot be
	// located.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrReviewItemNotFound is returned when a manual review item cannot be
	// located.
	ErrReviewItemNotFound = errors.New("review item not found")

	// ErrInvalidStatusTransition is returned when a status update would
	// violate the pending -> terminal state machine.
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	// ErrAmountMustBePositive is returned when a debit request carries a
	// zero or negative amount.
	ErrAmountMustBePositive = errors.New("debit amount must be positive")
)
