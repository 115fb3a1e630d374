package webapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tapyield/cashout/pkg/app"
)

// ProviderRoutes registers HTTP routes for the provider health registry.
//
// Routes:
//   - GET  /providers                : Health snapshot of every registered provider.
//   - POST /providers/:id/activate   : Administratively re-enable a provider.
//   - POST /providers/:id/deactivate : Administratively pull a provider out of rotation.
func ProviderRoutes(fiberApp *fiber.App, a *app.App) {
	fiberApp.Get("/providers", ListProviders(a))
	fiberApp.Post("/providers/:id/activate", ActivateProvider(a))
	fiberApp.Post("/providers/:id/deactivate", DeactivateProvider(a))
}

// ListProviders returns a Fiber handler that snapshots the registry.
func ListProviders(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return SuccessResponseJSON(c, fiber.StatusOK, "Providers listed", a.Registry.Snapshot())
	}
}

// ActivateProvider returns a Fiber handler for the administrative activate
// toggle.
func ActivateProvider(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if err := a.Registry.Activate(id); err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Failed to activate provider", err.Error())
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Provider activated", nil)
	}
}

// DeactivateProvider returns a Fiber handler for the administrative
// deactivate toggle.
func DeactivateProvider(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if err := a.Registry.Deactivate(id); err != nil {
			return ErrorResponseJSON(c, ErrorToStatusCode(err), "Failed to deactivate provider", err.Error())
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Provider deactivated", nil)
	}
}
