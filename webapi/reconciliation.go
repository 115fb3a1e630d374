package webapi

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tapyield/cashout/pkg/app"
	"github.com/tapyield/cashout/pkg/service/reconcile"
)

// ReconciliationRoutes registers HTTP routes for running audits and applying
// corrective adjustments.
//
// Routes:
//   - POST /reconciliation/run    : Run an audit over a cadence or custom window.
//   - POST /reconciliation/adjust : Apply an explicit corrective adjustment.
func ReconciliationRoutes(fiberApp *fiber.App, a *app.App) {
	fiberApp.Post("/reconciliation/run", RunAudit(a))
	fiberApp.Post("/reconciliation/adjust", ApplyAdjustment(a))
}

// RunAuditRequest selects the audit scope. Cadence wins when both cadence
// and window_hours are set; quarterly and annual cadences run deep.
type RunAuditRequest struct {
	Cadence     string `json:"cadence" validate:"omitempty,oneof=daily weekly monthly quarterly annual"`
	WindowHours int    `json:"window_hours" validate:"omitempty,gt=0"`
	Deep        bool   `json:"deep"`
}

// AdjustmentRequest is an explicit ledger correction. Reason is mandatory;
// it ends up in the adjustment audit trail.
type AdjustmentRequest struct {
	DeltaCents int64  `json:"delta_cents" validate:"required"`
	Reason     string `json:"reason" validate:"required"`
}

// RunAudit returns a Fiber handler that runs a reconciliation audit and
// returns the report. Reports are log-only: a failed report never touches
// the ledger.
func RunAudit(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := BindAndValidate[RunAuditRequest](c)
		if input == nil {
			return err
		}

		var scope reconcile.Scope
		switch {
		case input.Cadence != "":
			scope = reconcile.ScopeFor(reconcile.Cadence(input.Cadence))
		case input.WindowHours > 0:
			scope = reconcile.Scope{Window: time.Duration(input.WindowHours) * time.Hour}
		default:
			scope = reconcile.ScopeFor(reconcile.CadenceDaily)
		}
		if input.Deep {
			scope.Deep = true
		}

		report, err := a.Reconcile.RunAudit(c.UserContext(), scope)
		if err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Audit failed", err.Error())
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Audit complete", report)
	}
}

// ApplyAdjustment returns a Fiber handler for the explicit correction
// command, the only path that may change the balance outside of dispatch.
func ApplyAdjustment(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := BindAndValidate[AdjustmentRequest](c)
		if input == nil {
			return err
		}
		if err := a.Reconcile.ApplyAdjustment(c.UserContext(), input.DeltaCents, input.Reason); err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Adjustment failed", err.Error())
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Adjustment applied", nil)
	}
}
