package middleware

import (
	"strings"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"fix-match-engine/src/models"
)

// ServiceAvailability sheds load above a concurrent request ceiling and
// answers 503 in maintenance mode. Health, metrics and the exchange
// halt/resume controls stay reachable.
type ServiceAvailability struct {
	maintenance atomic.Bool
	maxInFlight int64
	inFlight    atomic.Int64
}

func NewServiceAvailability(maxInFlight int64) *ServiceAvailability {
	if maxInFlight > 0 {
		log.Info().
			Int64("max_concurrent_requests", maxInFlight).
			Msg("Server overload detection enabled")
	}
	return &ServiceAvailability{maxInFlight: maxInFlight}
}

func (sa *ServiceAvailability) SetMaintenanceMode(enabled bool) {
	sa.maintenance.Store(enabled)
	log.Warn().Bool("enabled", enabled).Msg("Maintenance mode changed")
}

func (sa *ServiceAvailability) IsMaintenanceMode() bool {
	return sa.maintenance.Load()
}

func (sa *ServiceAvailability) GetInFlightRequests() int64 {
	return sa.inFlight.Load()
}

func alwaysAvailable(path string) bool {
	return path == "/health" || path == "/metrics" || strings.HasPrefix(path, "/api/v1/exchange/")
}

func unavailable(c *fiber.Ctx, reason, msg string) error {
	log.Warn().
		Str("path", c.Path()).
		Str("method", c.Method()).
		Str("ip", c.IP()).
		Str("reason", reason).
		Msg("Request rejected: service unavailable")
	return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
		Error:  msg,
		Reason: reason,
	})
}

func (sa *ServiceAvailability) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if alwaysAvailable(c.Path()) {
			return c.Next()
		}
		if sa.maintenance.Load() {
			return unavailable(c, "maintenance", "Service unavailable: undergoing maintenance")
		}

		n := sa.inFlight.Add(1)
		defer sa.inFlight.Add(-1)
		// edge case: a zero ceiling disables overload detection
		if sa.maxInFlight > 0 && n > sa.maxInFlight {
			return unavailable(c, "overloaded", "Service unavailable: too many concurrent requests")
		}
		return c.Next()
	}
}
