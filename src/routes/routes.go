package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"fix-match-engine/src/config"
	"fix-match-engine/src/handlers"
	"fix-match-engine/src/middleware"
)

// SetupRoutes registers the HTTP API. metrics may be nil.
func SetupRoutes(app *fiber.App, cfg *config.Config, orders *handlers.OrderHandler, ctl *handlers.ControlHandler, metrics http.Handler) {
	serviceAvailability := middleware.NewServiceAvailability(cfg.MaxConcurrentRequests)
	app.Use(serviceAvailability.Middleware())
	app.Use(middleware.RequestLogger(cfg.RequestLoggingDisabled))

	api := app.Group("/api/v1")

	if !cfg.RateLimitDisabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
		api.Use(rateLimiter.Middleware())
	}

	api.Post("/orders", orders.SubmitOrder)
	api.Delete("/orders/:id", orders.CancelOrder)
	api.Get("/orders/:id", orders.GetOrderStatus)
	api.Get("/orderbook/:symbol", orders.GetOrderBook)
	api.Get("/trades/:symbol", orders.GetTrades)
	api.Get("/execution-reports/:symbol", orders.GetExecutionReports)

	api.Get("/status", ctl.Status)
	api.Post("/exchange/halt", ctl.Halt)
	api.Post("/exchange/resume", ctl.Resume)
	api.Get("/strategies", ctl.ListStrategies)
	api.Post("/strategies/:source/toggle", ctl.ToggleStrategy)
	api.Post("/strategies/:source/cancel-all", ctl.CancelAll)

	app.Get("/health", orders.HealthCheck)
	if metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(metrics))
	}
}

// Endpoints lists what SetupRoutes registers, for the startup log.
func Endpoints() []string {
	return []string{
		"POST   /api/v1/orders",
		"DELETE /api/v1/orders/:id",
		"GET    /api/v1/orders/:id",
		"GET    /api/v1/orderbook/:symbol",
		"GET    /api/v1/trades/:symbol",
		"GET    /api/v1/execution-reports/:symbol",
		"GET    /api/v1/status",
		"POST   /api/v1/exchange/halt",
		"POST   /api/v1/exchange/resume",
		"GET    /api/v1/strategies",
		"POST   /api/v1/strategies/:source/toggle",
		"POST   /api/v1/strategies/:source/cancel-all",
		"GET    /health",
		"GET    /metrics",
	}
}
