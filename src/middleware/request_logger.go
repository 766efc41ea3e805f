package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func RequestLogger(disabled bool) fiber.Handler {
	shouldLog := !disabled && zerolog.GlobalLevel() <= zerolog.InfoLevel

	return func(c *fiber.Ctx) error {
		if !shouldLog {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		ev := log.Info().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("ip", c.IP()).
			Int("status", c.Response().StatusCode()).
			Int64("latency_ms", time.Since(start).Milliseconds()).
			Int("bytes_in", len(c.Body())).
			Int("bytes_out", len(c.Response().Body()))
		if source := c.Get(SourceHeader); source != "" {
			ev.Str("source", source)
		}
		ev.Msg("HTTP request")

		return err
	}
}
