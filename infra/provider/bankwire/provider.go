// Package bankwire implements a payment provider adapter over a bank's
// direct transfer REST API. Bank-direct transfers settle in batches, not in
// real time.
package bankwire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tapyield/cashout/config"
	"github.com/tapyield/cashout/pkg/provider/payment"
)

// ProviderID is the identifier this adapter registers under.
const ProviderID = "bankwire"

// Provider talks to the bank transfer gateway over HTTP.
type Provider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

var _ payment.Provider = (*Provider)(nil)

// New creates a bankwire adapter.
func New(cfg *config.BankWire, logger *slog.Logger) *Provider {
	timeout := cfg.HTTPTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Provider{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (p *Provider) ID() string     { return ProviderID }
func (p *Provider) RealTime() bool { return false }

type transferRequest struct {
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Destination    string            `json:"destination"`
	IdempotencyKey string            `json:"idempotency_key"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type transferResponse struct {
	TransferID string `json:"transfer_id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// Submit posts a transfer order. The gateway deduplicates on the
// idempotency key, so resubmission is safe.
func (p *Provider) Submit(ctx context.Context, params *payment.SubmitParams) (*payment.SubmitResult, error) {
	body, err := json.Marshal(transferRequest{
		Amount:         params.Amount.Amount(),
		Currency:       params.Amount.Currency(),
		Destination:    params.Destination,
		IdempotencyKey: params.IdempotencyKey,
		Metadata:       params.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("encode transfer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/transfers", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post transfer: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	var tr transferResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode transfer response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("bank gateway error: status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 || tr.Error != "" {
		p.logger.Warn("bankwire rejected transfer",
			"status", resp.StatusCode,
			"err", tr.Error,
			"destination", params.Destination,
		)
		return &payment.SubmitResult{
			Success: false,
			Error:   fmt.Sprintf("bankwire: %s", tr.Error),
		}, nil
	}

	p.logger.Info("bankwire transfer accepted",
		"transfer_id", tr.TransferID,
		"status", tr.Status,
	)
	return &payment.SubmitResult{
		Success:               true,
		ProviderTransactionID: tr.TransferID,
	}, nil
}

// Ping hits the gateway health endpoint.
func (p *Provider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("bankwire health probe: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bankwire health probe: status %d", resp.StatusCode)
	}
	return nil
}
