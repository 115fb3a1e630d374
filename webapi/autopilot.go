package webapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tapyield/cashout/pkg/app"
)

// AutopilotRoutes registers HTTP routes for the autopilot scheduler.
//
// Routes:
//   - POST /autopilot/start  : Move the scheduler to running.
//   - POST /autopilot/stop   : Request a cooperative stop.
//   - GET  /autopilot/status : Snapshot of the loop state.
func AutopilotRoutes(fiberApp *fiber.App, a *app.App) {
	fiberApp.Post("/autopilot/start", StartAutopilot(a))
	fiberApp.Post("/autopilot/stop", StopAutopilot(a))
	fiberApp.Get("/autopilot/status", AutopilotStatus(a))
}

// StartAutopilot returns a Fiber handler that starts the scheduler. Starting
// an already-running scheduler is a no-op.
func StartAutopilot(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		a.Autopilot.Start()
		return SuccessResponseJSON(c, fiber.StatusOK, "Autopilot started", a.Autopilot.Status())
	}
}

// StopAutopilot returns a Fiber handler that stops the scheduler. The stop
// is cooperative: an in-flight dispatch always completes first.
func StopAutopilot(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		a.Autopilot.Stop()
		return SuccessResponseJSON(c, fiber.StatusOK, "Autopilot stopped", a.Autopilot.Status())
	}
}

// AutopilotStatus returns a Fiber handler that reports the loop state.
func AutopilotStatus(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return SuccessResponseJSON(c, fiber.StatusOK, "Autopilot status", a.Autopilot.Status())
	}
}
