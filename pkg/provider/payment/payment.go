// Package payment defines the contract every payment backend adapter
// implements. Adapters submit payouts and answer lightweight liveness
// probes; everything else (ordering, retries, failover) lives in the
// dispatch service.
package payment

import (
	"context"

	"github.com/tapyield/cashout/pkg/money"
)

// SubmitParams carries one payout attempt to a provider. IdempotencyKey is
// stable across retries of the same debit request, so a provider may be
// called repeatedly without double-paying.
type SubmitParams struct {
	Amount         money.Money
	Destination    string
	IdempotencyKey string
	Metadata       map[string]string
}

// SubmitResult is the provider's answer to a single payout attempt.
type SubmitResult struct {
	Success               bool
	ProviderTransactionID string
	Error                 string
}

// Provider is the uniform adapter interface over a payment backend.
type Provider interface {
	// ID returns the stable provider identifier used by the health registry.
	ID() string

	// RealTime reports whether the backend settles in real time.
	// Informational only.
	RealTime() bool

	// Submit sends a payout. A transport or backend error is returned as a
	// non-nil error; a well-formed rejection comes back as a SubmitResult
	// with Success=false. The dispatch service treats both as attempt
	// failures.
	Submit(ctx context.Context, params *SubmitParams) (*SubmitResult, error)

	// Ping performs a liveness probe against the backend.
	Ping(ctx context.Context) error
}
