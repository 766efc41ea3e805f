package handlers

import (
	"errors"
	"slices"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"fix-match-engine/src/control"
	"fix-match-engine/src/engine"
	"fix-match-engine/src/fix"
	"fix-match-engine/src/models"
	"fix-match-engine/src/strategy"
)

// ControlHandler serves the operator surface: exchange halt, strategy
// switches and the aggregated status view.
type ControlHandler struct {
	orders  *OrderHandler
	state   *control.TradingState
	runners []*strategy.Runner
}

func NewControlHandler(orders *OrderHandler, state *control.TradingState, runners []*strategy.Runner) *ControlHandler {
	return &ControlHandler{orders: orders, state: state, runners: runners}
}

func (h *ControlHandler) Status(c *fiber.Ctx) error {
	fe := h.orders.Engine

	quotes := make([]fix.Quote, 0)
	for _, s := range fe.Symbols() {
		if q, err := fe.Quote(s); err == nil {
			quotes = append(quotes, q)
		}
	}

	return c.Status(fiber.StatusOK).JSON(models.StatusResponse{
		ExchangeHalted:   h.state.IsHalted(),
		StrategyDisabled: h.state.DisabledStrategies(),
		UptimeSeconds:    int64(time.Since(h.orders.StartTime).Seconds()),
		Stats:            fe.Stats(),
		Quotes:           quotes,
		Strategies:       h.strategyStatus(c),
		OrderLatency:     h.orders.latencyPercentiles(),
		ThroughputPerSec: h.orders.throughput(),
	})
}

func (h *ControlHandler) Halt(c *fiber.Ctx) error {
	changed := h.state.SetHalted(true)
	log.Warn().Str("ip", c.IP()).Bool("changed", changed).Msg("Halt requested")
	return c.Status(fiber.StatusOK).JSON(models.ExchangeStateResponse{
		ExchangeHalted: true,
		Changed:        changed,
	})
}

func (h *ControlHandler) Resume(c *fiber.Ctx) error {
	changed := h.state.SetHalted(false)
	log.Info().Str("ip", c.IP()).Bool("changed", changed).Msg("Resume requested")
	return c.Status(fiber.StatusOK).JSON(models.ExchangeStateResponse{
		ExchangeHalted: false,
		Changed:        changed,
	})
}

func (h *ControlHandler) ToggleStrategy(c *fiber.Ctx) error {
	source := c.Params("source")
	if !slices.Contains(strategy.Sources(), source) {
		return unknownStrategy(c, source)
	}
	return c.Status(fiber.StatusOK).JSON(models.StrategyToggleResponse{
		Source:  source,
		Enabled: h.state.ToggleStrategy(source),
	})
}

// CancelAll pulls every resting order of a source, optionally limited to
// one symbol. Any participant source is accepted, not only strategies.
func (h *ControlHandler) CancelAll(c *fiber.Ctx) error {
	source := c.Params("source")
	symbol := c.Query("symbol")

	reports, err := h.orders.Engine.CancelAll(symbol, source)
	if err != nil {
		if errors.Is(err, engine.ErrUnknownSymbol) {
			return unknownSymbol(c, symbol, err)
		}
		return err
	}

	log.Info().
		Str("source", source).
		Str("symbol", symbol).
		Int("canceled", len(reports)).
		Msg("Cancel all processed")

	return c.Status(fiber.StatusOK).JSON(models.CancelAllResponse{
		Source:   source,
		Symbol:   symbol,
		Canceled: len(reports),
	})
}

func (h *ControlHandler) ListStrategies(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(models.StrategiesResponse{
		Strategies: h.strategyStatus(c),
	})
}

func (h *ControlHandler) strategyStatus(c *fiber.Ctx) []strategy.Status {
	out := make([]strategy.Status, 0)
	for _, r := range h.runners {
		out = append(out, r.Status(c.UserContext())...)
	}
	return out
}

func unknownStrategy(c *fiber.Ctx, source string) error {
	return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
		Error:  "Unknown strategy: " + source,
		Reason: string(fix.ReasonNotFound),
	})
}
