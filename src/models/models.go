package models

import (
	"github.com/shopspring/decimal"

	"fix-match-engine/src/fix"
	"fix-match-engine/src/strategy"
)

// SubmitOrderRequest is a limit order entered over HTTP. Source falls back
// to the X-Strategy-Source header, then to "api".
type SubmitOrderRequest struct {
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int64           `json:"quantity"`
	ClientOrderID string          `json:"client_order_id,omitempty"`
	Source        string          `json:"source,omitempty"`
}

type SubmitOrderResponse struct {
	OrderID           string                `json:"order_id"`
	Status            string                `json:"status"`
	Message           string                `json:"message,omitempty"`
	FilledQuantity    int64                 `json:"filled_quantity"`
	RemainingQuantity int64                 `json:"remaining_quantity"`
	Reports           []fix.ExecutionReport `json:"execution_reports"`
}

type CancelOrderResponse struct {
	OrderID string              `json:"order_id"`
	Status  string              `json:"status"`
	Report  fix.ExecutionReport `json:"execution_report"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type OrderBookResponse struct {
	Symbol    string           `json:"symbol"`
	Timestamp int64            `json:"timestamp"` // unix milliseconds
	BestBid   *decimal.Decimal `json:"best_bid"`
	BestAsk   *decimal.Decimal `json:"best_ask"`
	Mid       *decimal.Decimal `json:"mid"`
	Spread    *decimal.Decimal `json:"spread"`
	LastPrice *decimal.Decimal `json:"last_price"`
	Bids      []fix.DepthLevel `json:"bids"` // best first
	Asks      []fix.DepthLevel `json:"asks"` // best first
}

type TradesResponse struct {
	Symbol string      `json:"symbol"`
	Count  int         `json:"count"`
	Trades []fix.Trade `json:"trades"`
}

type ReportsResponse struct {
	Symbol  string                `json:"symbol"`
	Count   int                   `json:"count"`
	Reports []fix.ExecutionReport `json:"execution_reports"`
}

type LatencyInfo struct {
	Samples int     `json:"samples"`
	P50Ms   float64 `json:"p50_ms"`
	P99Ms   float64 `json:"p99_ms"`
	P999Ms  float64 `json:"p999_ms"`
}

type StatusResponse struct {
	ExchangeHalted   bool              `json:"exchange_halted"`
	StrategyDisabled []string          `json:"strategy_disabled"`
	UptimeSeconds    int64             `json:"uptime_seconds"`
	Stats            fix.Stats         `json:"stats"`
	Quotes           []fix.Quote       `json:"quotes"`
	Strategies       []strategy.Status `json:"strategies"`
	OrderLatency     LatencyInfo       `json:"order_latency"`
	ThroughputPerSec float64           `json:"throughput_orders_per_sec"`
}

type ExchangeStateResponse struct {
	ExchangeHalted bool `json:"exchange_halted"`
	Changed        bool `json:"changed"`
}

type StrategyToggleResponse struct {
	Source  string `json:"source"`
	Enabled bool   `json:"enabled"`
}

type CancelAllResponse struct {
	Source   string `json:"source"`
	Symbol   string `json:"symbol,omitempty"`
	Canceled int    `json:"canceled"`
}

type StrategiesResponse struct {
	Strategies []strategy.Status `json:"strategies"`
}

type HealthResponse struct {
	Status          string `json:"status"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
	OrdersProcessed int    `json:"orders_processed"`
	ExchangeHalted  bool   `json:"exchange_halted"`
}
