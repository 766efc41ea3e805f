package handlers

import (
	"errors"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"fix-match-engine/src/control"
	"fix-match-engine/src/engine"
	"fix-match-engine/src/fix"
	"fix-match-engine/src/middleware"
	"fix-match-engine/src/models"
)

const (
	SourceHeader  = middleware.SourceHeader
	DefaultSource = "api"
)

type Options struct {
	DefaultDepth int
	MaxDepth     int
	MaxLatencies int
}

type OrderHandler struct {
	Engine         *fix.FixEngine
	State          *control.TradingState
	StartTime      time.Time
	OrdersReceived atomic.Int64

	defaultDepth int
	maxDepth     int

	latencies    []time.Duration
	latenciesMu  sync.RWMutex
	maxLatencies int
}

func NewOrderHandler(fe *fix.FixEngine, state *control.TradingState, opts Options) *OrderHandler {
	if opts.DefaultDepth <= 0 {
		opts.DefaultDepth = 10
	}
	if opts.MaxDepth < opts.DefaultDepth {
		opts.MaxDepth = opts.DefaultDepth
	}
	if opts.MaxLatencies <= 0 {
		opts.MaxLatencies = 10000
	}
	return &OrderHandler{
		Engine:       fe,
		State:        state,
		StartTime:    time.Now(),
		defaultDepth: opts.DefaultDepth,
		maxDepth:     opts.MaxDepth,
		latencies:    make([]time.Duration, 0, opts.MaxLatencies),
		maxLatencies: opts.MaxLatencies,
	}
}

func sourceOf(c *fiber.Ctx, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	if h := c.Get(SourceHeader); h != "" {
		return h
	}
	return DefaultSource
}

// statusFor maps a rejection onto an HTTP status.
func statusFor(reason fix.RejectReason) int {
	switch reason {
	case fix.ReasonValidation:
		return fiber.StatusBadRequest
	case fix.ReasonNotFound:
		return fiber.StatusNotFound
	case fix.ReasonState:
		return fiber.StatusConflict
	case fix.ReasonHalted:
		return fiber.StatusServiceUnavailable
	case fix.ReasonStrategyDisabled:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *OrderHandler) SubmitOrder(c *fiber.Ctx) error {
	var req models.SubmitOrderRequest

	if err := c.BodyParser(&req); err != nil {
		log.Warn().
			Err(err).
			Str("ip", c.IP()).
			Str("path", c.Path()).
			Msg("Invalid request: malformed JSON")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:  "Invalid request: malformed JSON",
			Reason: string(fix.ReasonValidation),
		})
	}

	side, err := validateSubmitOrderRequest(&req)
	if err != nil {
		log.Warn().
			Err(err).
			Str("symbol", req.Symbol).
			Str("side", req.Side).
			Str("ip", c.IP()).
			Msg("Invalid order request")
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:  err.Error(),
			Reason: string(fix.ReasonValidation),
		})
	}

	source := sourceOf(c, req.Source)
	h.OrdersReceived.Add(1)

	start := time.Now()
	reports := h.Engine.SubmitOrder(fix.OrderRequest{
		Source:        source,
		Symbol:        req.Symbol,
		Side:          side,
		Price:         req.Price,
		Quantity:      req.Quantity,
		ClientOrderID: req.ClientOrderID,
	})
	h.recordLatency(time.Since(start))

	first := reports[0]
	resp := models.SubmitOrderResponse{
		OrderID: first.OrderID,
		Reports: reports,
	}

	if first.ExecType == fix.ExecTypeRejected {
		resp.Status = engine.StatusRejected.String()
		resp.Message = first.Text
		return c.Status(statusFor(first.RejectReason)).JSON(resp)
	}

	last := first
	for _, r := range reports {
		if r.OrderID == first.OrderID {
			last = r
		}
	}
	resp.Status = last.OrdStatus.OrderStatus().String()
	resp.FilledQuantity = last.CumQty
	resp.RemainingQuantity = last.LeavesQty

	log.Info().
		Str("order_id", first.OrderID).
		Str("source", source).
		Str("symbol", req.Symbol).
		Str("status", resp.Status).
		Int64("filled_quantity", last.CumQty).
		Int64("remaining_quantity", last.LeavesQty).
		Msg("Order processed")

	switch last.OrdStatus {
	case fix.OrdStatusNew:
		resp.Message = "Order added to book"
		return c.Status(fiber.StatusCreated).JSON(resp)
	case fix.OrdStatusPartiallyFilled:
		return c.Status(fiber.StatusAccepted).JSON(resp)
	default:
		return c.Status(fiber.StatusOK).JSON(resp)
	}
}

func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")

	r := h.Engine.CancelOrder(fix.CancelRequest{
		Source:  sourceOf(c, ""),
		OrderID: orderID,
	})
	if r.ExecType == fix.ExecTypeRejected {
		log.Warn().
			Str("order_id", orderID).
			Str("reason", string(r.RejectReason)).
			Str("ip", c.IP()).
			Msg("Cancel order rejected")
		return c.Status(statusFor(r.RejectReason)).JSON(models.ErrorResponse{
			Error:  r.Text,
			Reason: string(r.RejectReason),
		})
	}

	return c.Status(fiber.StatusOK).JSON(models.CancelOrderResponse{
		OrderID: orderID,
		Status:  engine.StatusCanceled.String(),
		Report:  r,
	})
}

func (h *OrderHandler) GetOrderStatus(c *fiber.Ctx) error {
	view, ok := h.Engine.Order(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error:  "Order not found",
			Reason: string(fix.ReasonNotFound),
		})
	}
	return c.Status(fiber.StatusOK).JSON(view)
}

func (h *OrderHandler) GetOrderBook(c *fiber.Ctx) error {
	symbol := c.Params("symbol")

	depth, err := strconv.Atoi(c.Query("depth", strconv.Itoa(h.defaultDepth)))
	if err != nil || depth <= 0 {
		depth = h.defaultDepth
	}
	// edge case: enforce maximum depth limit
	if depth > h.maxDepth {
		depth = h.maxDepth
	}

	book, err := h.Engine.Depth(symbol, depth)
	if err != nil {
		return unknownSymbol(c, symbol, err)
	}
	q, err := h.Engine.Quote(symbol)
	if err != nil {
		return unknownSymbol(c, symbol, err)
	}

	resp := models.OrderBookResponse{
		Symbol:    symbol,
		Timestamp: time.Now().UnixMilli(),
		Bids:      book.Bids,
		Asks:      book.Asks,
	}
	if q.HasBid {
		resp.BestBid = &q.BestBid
	}
	if q.HasAsk {
		resp.BestAsk = &q.BestAsk
	}
	if q.HasMid {
		spread := q.BestAsk.Sub(q.BestBid)
		resp.Mid = &q.Mid
		resp.Spread = &spread
	}
	if q.HasLast {
		resp.LastPrice = &q.LastPrice
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *OrderHandler) GetTrades(c *fiber.Ctx) error {
	symbol := c.Params("symbol")

	filter := fix.TradeFilter{
		Source: c.Query("source"),
		Limit:  c.QueryInt("limit", 0),
	}
	if v := c.Query("side"); v != "" {
		side, err := fix.ParseSide(v)
		if err != nil {
			return badQuery(c, err)
		}
		filter.Side = side
	}
	for key, dst := range map[string]*decimal.Decimal{"min_price": &filter.MinPrice, "max_price": &filter.MaxPrice} {
		if v := c.Query(key); v != "" {
			p, err := decimal.NewFromString(v)
			if err != nil {
				return badQuery(c, &fix.ValidationError{Field: key, Reason: "not a number"})
			}
			*dst = p
		}
	}

	trades, err := h.Engine.Trades(symbol, filter)
	if err != nil {
		return unknownSymbol(c, symbol, err)
	}
	return c.Status(fiber.StatusOK).JSON(models.TradesResponse{
		Symbol: symbol,
		Count:  len(trades),
		Trades: trades,
	})
}

func (h *OrderHandler) GetExecutionReports(c *fiber.Ctx) error {
	symbol := c.Params("symbol")
	if !h.knownSymbol(symbol) {
		return unknownSymbol(c, symbol, engine.ErrUnknownSymbol)
	}

	reports := h.Engine.Reports(fix.ReportFilter{
		Symbol:  symbol,
		Source:  c.Query("source"),
		OrderID: c.Query("order_id"),
		Limit:   c.QueryInt("limit", 0),
	})
	return c.Status(fiber.StatusOK).JSON(models.ReportsResponse{
		Symbol:  symbol,
		Count:   len(reports),
		Reports: reports,
	})
}

func (h *OrderHandler) HealthCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(models.HealthResponse{
		Status:          "healthy",
		UptimeSeconds:   int64(time.Since(h.StartTime).Seconds()),
		OrdersProcessed: h.Engine.Stats().Orders,
		ExchangeHalted:  h.State.IsHalted(),
	})
}

func (h *OrderHandler) knownSymbol(symbol string) bool {
	for _, s := range h.Engine.Symbols() {
		if s == symbol {
			return true
		}
	}
	return false
}

func unknownSymbol(c *fiber.Ctx, symbol string, err error) error {
	if errors.Is(err, engine.ErrUnknownSymbol) {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error:  "Unknown symbol: " + symbol,
			Reason: string(fix.ReasonNotFound),
		})
	}
	return err
}

func badQuery(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
		Error:  err.Error(),
		Reason: string(fix.ReasonValidation),
	})
}

func (h *OrderHandler) recordLatency(latency time.Duration) {
	h.latenciesMu.Lock()
	defer h.latenciesMu.Unlock()

	h.latencies = append(h.latencies, latency)

	// edge case: maintain rolling window by removing oldest measurements
	if len(h.latencies) > h.maxLatencies {
		h.latencies = h.latencies[len(h.latencies)-h.maxLatencies:]
	}
}

func (h *OrderHandler) latencyPercentiles() models.LatencyInfo {
	h.latenciesMu.RLock()
	sorted := make([]time.Duration, len(h.latencies))
	copy(sorted, h.latencies)
	h.latenciesMu.RUnlock()

	if len(sorted) == 0 {
		return models.LatencyInfo{}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	at := func(q float64) float64 {
		i := int(float64(len(sorted)) * q)
		if i >= len(sorted) {
			i = len(sorted) - 1
		}
		return float64(sorted[i].Nanoseconds()) / 1e6
	}
	return models.LatencyInfo{
		Samples: len(sorted),
		P50Ms:   at(0.50),
		P99Ms:   at(0.99),
		P999Ms:  at(0.999),
	}
}

func (h *OrderHandler) throughput() float64 {
	uptime := time.Since(h.StartTime).Seconds()
	if uptime <= 0 {
		return 0
	}
	return float64(h.OrdersReceived.Load()) / uptime
}

func validateSubmitOrderRequest(req *models.SubmitOrderRequest) (engine.Side, error) {
	if req.Symbol == "" {
		return 0, &ValidationError{Message: "Invalid order: symbol is required"}
	}
	side, err := fix.ParseSide(req.Side)
	if err != nil {
		return 0, &ValidationError{Message: "Invalid order: side must be BUY or SELL"}
	}
	return side, nil
}

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
