// Package stripepayment implements the payment provider adapter backed by
// Stripe transfers.
package stripepayment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stripe/stripe-go/v82"

	"github.com/tapyield/cashout/config"
	"github.com/tapyield/cashout/pkg/provider/payment"
)

// ProviderID is the identifier this adapter registers under.
const ProviderID = "stripe"

// Provider submits payouts as Stripe transfers to connected accounts.
type Provider struct {
	client *stripe.Client
	cfg    *config.Stripe
	logger *slog.Logger
}

var _ payment.Provider = (*Provider)(nil)

// New creates a Stripe-backed provider adapter.
func New(cfg *config.Stripe, logger *slog.Logger) *Provider {
	return &Provider{
		client: stripe.NewClient(cfg.APIKey),
		cfg:    cfg,
		logger: logger,
	}
}

func (p *Provider) ID() string     { return ProviderID }
func (p *Provider) RealTime() bool { return true }

// Submit creates a transfer to the destination connected account. The
// idempotency key rides on the Stripe request, so retries of the same debit
// request can never double-pay.
func (p *Provider) Submit(ctx context.Context, params *payment.SubmitParams) (*payment.SubmitResult, error) {
	log := p.logger.With(
		"handler", "stripe.Submit",
		"destination", params.Destination,
		"amount", params.Amount.String(),
	)

	transferParams := &stripe.TransferCreateParams{
		Params: stripe.Params{
			IdempotencyKey: stripe.String(params.IdempotencyKey),
		},
		Amount:      stripe.Int64(params.Amount.Amount()),
		Currency:    stripe.String(strings.ToLower(params.Amount.Currency())),
		Destination: stripe.String(params.Destination),
	}
	for k, v := range params.Metadata {
		transferParams.AddMetadata(k, v)
	}

	transfer, err := p.client.V1Transfers.Create(ctx, transferParams)
	if err != nil {
		if stripeErr, ok := err.(*stripe.Error); ok {
			log.Warn("stripe rejected transfer",
				"code", stripeErr.Code,
				"err", stripeErr.Msg,
			)
			return &payment.SubmitResult{
				Success: false,
				Error:   fmt.Sprintf("stripe: %s", stripeErr.Msg),
			}, nil
		}
		log.Error("stripe transfer failed", "err", err)
		return nil, fmt.Errorf("create transfer: %w", err)
	}

	log.Info("stripe transfer created", "transfer_id", transfer.ID)
	return &payment.SubmitResult{
		Success:               true,
		ProviderTransactionID: transfer.ID,
	}, nil
}

// Ping retrieves the account balance as a lightweight liveness probe.
func (p *Provider) Ping(ctx context.Context) error {
	if _, err := p.client.V1Balance.Retrieve(ctx, &stripe.BalanceRetrieveParams{}); err != nil {
		return fmt.Errorf("stripe balance probe: %w", err)
	}
	return nil
}
