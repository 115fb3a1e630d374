package webapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/tapyield/cashout/pkg/app"
	"github.com/tapyield/cashout/pkg/domain/payout"
	"github.com/tapyield/cashout/pkg/money"
)

// PayoutRoutes registers HTTP routes for dispatching payouts and reading
// transaction history.
//
// Routes:
//   - POST /payouts      : Dispatch a payout through the failover orchestrator.
//   - GET  /payouts/:id  : Retrieve a transaction record with its attempt history.
//   - GET  /balance      : Retrieve the available ledger balance.
func PayoutRoutes(fiberApp *fiber.App, a *app.App) {
	fiberApp.Post("/payouts", DispatchPayout(a))
	fiberApp.Get("/payouts/:id", GetPayout(a))
	fiberApp.Get("/balance", GetBalance(a))
}

// PayoutRequest is the dispatch request body. Amount is in main units
// (dollars for USD). RequestID is the idempotency key; one is generated when
// the caller omits it, which opts the caller out of replay protection.
type PayoutRequest struct {
	RequestID   string            `json:"request_id"`
	Amount      float64           `json:"amount" validate:"required,gt=0"`
	Currency    string            `json:"currency" validate:"omitempty,len=3"`
	Destination string            `json:"destination" validate:"required"`
	Metadata    map[string]string `json:"metadata"`
}

// AttemptResponse mirrors one provider attempt.
type AttemptResponse struct {
	ProviderID    string    `json:"provider_id"`
	AttemptNumber int       `json:"attempt_number"`
	Outcome       string    `json:"outcome"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// TransactionResponse mirrors a transaction record.
type TransactionResponse struct {
	ID             uuid.UUID         `json:"id"`
	DebitRequestID string            `json:"debit_request_id"`
	ProviderID     string            `json:"provider_id,omitempty"`
	AmountCents    int64             `json:"amount_cents"`
	Currency       string            `json:"currency"`
	Status         string            `json:"status"`
	Attempts       []AttemptResponse `json:"attempts"`
	CreatedAt      time.Time         `json:"created_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}

// BalanceResponse mirrors the ledger balance.
type BalanceResponse struct {
	BalanceCents int64  `json:"balance_cents"`
	Currency     string `json:"currency"`
	Formatted    string `json:"formatted"`
}

// DispatchPayout returns a Fiber handler that runs a payout through the
// failover orchestrator. An exhausted dispatch still carries a result body:
// the caller learns the transaction ID and that escalation happened.
func DispatchPayout(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := BindAndValidate[PayoutRequest](c)
		if input == nil {
			return err // error response already written
		}

		currencyCode := money.DefaultCurrency
		if input.Currency != "" {
			currencyCode = input.Currency
		}
		amount, err := money.New(input.Amount, currencyCode)
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid amount", err.Error())
		}

		requestID := input.RequestID
		if requestID == "" {
			requestID = uuid.NewString()
		}

		result, err := a.Dispatch.Dispatch(c.UserContext(), payout.DebitRequest{
			RequestID:   requestID,
			Amount:      amount,
			Destination: input.Destination,
			Metadata:    input.Metadata,
		})
		if err != nil {
			a.Logger.Error("payout dispatch failed", "request_id", requestID, "error", err)
			if result != nil {
				// Exhaustion: the request was handled, the money is back, the
				// escalation is filed. Report the full outcome.
				return c.Status(ErrorToStatusCode(err)).JSON(Response{
					Status:  ErrorToStatusCode(err),
					Message: "Payout failed",
					Data:    result,
				})
			}
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Payout failed", err.Error())
		}
		return SuccessResponseJSON(c, fiber.StatusCreated, "Payout dispatched", result)
	}
}

// GetPayout returns a Fiber handler that retrieves a transaction record by
// ID, including its full attempt history.
func GetPayout(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid transaction ID", err.Error())
		}
		rec, err := a.Transactions.GetByID(c.UserContext(), id)
		if err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Failed to get transaction", err.Error())
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Transaction found", mapTransaction(rec))
	}
}

// GetBalance returns a Fiber handler that reads the ledger balance.
func GetBalance(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		balance, err := a.Ledger.GetBalance(c.UserContext())
		if err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Failed to get balance", err.Error())
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Balance retrieved", BalanceResponse{
			BalanceCents: balance.Amount(),
			Currency:     balance.Currency(),
			Formatted:    balance.String(),
		})
	}
}

func mapTransaction(rec *payout.TransactionRecord) TransactionResponse {
	attempts := make([]AttemptResponse, 0, len(rec.Attempts))
	for _, at := range rec.Attempts {
		attempts = append(attempts, AttemptResponse{
			ProviderID:    at.ProviderID,
			AttemptNumber: at.AttemptNumber,
			Outcome:       string(at.Outcome),
			Error:         at.Error,
			Timestamp:     at.Timestamp,
		})
	}
	return TransactionResponse{
		ID:             rec.ID,
		DebitRequestID: rec.DebitRequestID,
		ProviderID:     rec.ProviderID,
		AmountCents:    rec.Amount.Amount(),
		Currency:       rec.Amount.Currency(),
		Status:         string(rec.Status),
		Attempts:       attempts,
		CreatedAt:      rec.CreatedAt,
		CompletedAt:    rec.CompletedAt,
	}
}
