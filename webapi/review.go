package webapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/tapyield/cashout/pkg/app"
	"github.com/tapyield/cashout/pkg/domain/payout"
)

// ReviewRoutes registers HTTP routes for the manual review queue.
//
// Routes:
//   - GET  /reviews             : List review items, optionally filtered by status.
//   - GET  /reviews/:id         : Retrieve one review item.
//   - POST /reviews/:id/approve : Resolve a pending item as approved.
//   - POST /reviews/:id/reject  : Resolve a pending item as rejected.
func ReviewRoutes(fiberApp *fiber.App, a *app.App) {
	fiberApp.Get("/reviews", ListReviews(a))
	fiberApp.Get("/reviews/:id", GetReview(a))
	fiberApp.Post("/reviews/:id/approve", ApproveReview(a))
	fiberApp.Post("/reviews/:id/reject", RejectReview(a))
}

// ReviewItemResponse mirrors a manual review item.
type ReviewItemResponse struct {
	ID            uuid.UUID `json:"id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	Reason        string    `json:"reason"`
	Priority      string    `json:"priority"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListReviews returns a Fiber handler that lists review items. The status
// query parameter filters; empty means all.
func ListReviews(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := payout.ReviewStatus(c.Query("status"))
		switch status {
		case "", payout.ReviewPending, payout.ReviewApproved, payout.ReviewRejected:
		default:
			return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid status filter", string(status))
		}
		items, err := a.Review.List(c.UserContext(), status)
		if err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Failed to list reviews", err.Error())
		}
		out := make([]ReviewItemResponse, 0, len(items))
		for _, item := range items {
			out = append(out, mapReviewItem(item))
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Reviews listed", out)
	}
}

// GetReview returns a Fiber handler that retrieves one review item.
func GetReview(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid review ID", err.Error())
		}
		item, err := a.Reviews.GetByID(c.UserContext(), id)
		if err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Failed to get review", err.Error())
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Review found", mapReviewItem(item))
	}
}

// ApproveReview returns a Fiber handler that resolves a pending item as
// approved.
func ApproveReview(a *app.App) fiber.Handler {
	return resolveReview(a, "approved", func(c *fiber.Ctx, id uuid.UUID) error {
		return a.Review.Approve(c.UserContext(), id)
	})
}

// RejectReview returns a Fiber handler that resolves a pending item as
// rejected.
func RejectReview(a *app.App) fiber.Handler {
	return resolveReview(a, "rejected", func(c *fiber.Ctx, id uuid.UUID) error {
		return a.Review.Reject(c.UserContext(), id)
	})
}

func resolveReview(a *app.App, verb string, resolve func(c *fiber.Ctx, id uuid.UUID) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid review ID", err.Error())
		}
		if err := resolve(c, id); err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Failed to resolve review", err.Error())
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Review "+verb, nil)
	}
}

func mapReviewItem(item *payout.ManualReviewItem) ReviewItemResponse {
	return ReviewItemResponse{
		ID:            item.ID,
		TransactionID: item.TransactionRecordID,
		Reason:        item.Reason,
		Priority:      string(item.Priority),
		Status:        string(item.Status),
		CreatedAt:     item.CreatedAt,
	}
}
