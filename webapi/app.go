// Package webapi provides the HTTP surface of the payout core: dispatching
// payouts, inspecting transaction history, running reconciliation audits,
// managing the provider registry and the manual review queue, and toggling
// the autopilot.
package webapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/tapyield/cashout/pkg/app"
)

// SetupApp initializes Fiber with the payout routes and middleware.
func SetupApp(a *app.App) *fiber.App {
	fiberApp := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			status := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			}
			return ErrorResponseJSON(c, status, "Internal Server Error", err.Error())
		},
	})

	maxRequests := a.Config.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 20
	}
	window := a.Config.RateLimit.Window
	if window <= 0 {
		window = 1 * time.Second
	}
	fiberApp.Use(limiter.New(limiter.Config{
		Max:        maxRequests,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return ErrorResponseJSON(c, fiber.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded")
		},
	}))
	fiberApp.Use(recover.New())

	fiberApp.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Cashout API is running! 🚀")
	})

	PayoutRoutes(fiberApp, a)
	ReconciliationRoutes(fiberApp, a)
	ProviderRoutes(fiberApp, a)
	ReviewRoutes(fiberApp, a)
	AutopilotRoutes(fiberApp, a)

	return fiberApp
}
