package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fix-match-engine/src/engine"
	"fix-match-engine/src/fix"
)

const (
	SourceMyStrategy = "my_strategy"
	SourcePassive    = "passive_liquidity_provider"
	SourceMarketMake = "market_maker"
	SourceMomentum   = "momentum"
)

var ErrOrderRejected = errors.New("order rejected")

// RejectedError is returned by a Gateway when the exchange answers with a
// Rejected execution report.
type RejectedError struct {
	OrderID string
	Reason  fix.RejectReason
	Text    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("order %s rejected (%s): %s", e.OrderID, e.Reason, e.Text)
}

func (e *RejectedError) Unwrap() error {
	return ErrOrderRejected
}

// Gateway is the order entry surface a strategy sees for a single symbol.
type Gateway interface {
	Submit(side engine.Side, price decimal.Decimal, qty int64) (string, error)
	Cancel(orderID string) error
}

// MarketView is the snapshot a strategy decides on. Reference is the
// external last price and is only used when the book has no prices.
type MarketView struct {
	Symbol       string
	Quote        fix.Quote
	RecentPrices []decimal.Decimal
	Reference    decimal.Decimal
	HasReference bool
	// Decimals is the price grid; quotes are rounded onto it.
	Decimals int32
	Now      time.Time
}

// Mark is the price positions are valued at: mid, then last trade, then the
// reference price.
func (v MarketView) Mark() (decimal.Decimal, bool) {
	switch {
	case v.Quote.HasMid:
		return v.Quote.Mid, true
	case v.Quote.HasLast:
		return v.Quote.LastPrice, true
	case v.HasReference:
		return v.Reference, true
	}
	return decimal.Zero, false
}

type Strategy interface {
	Source() string
	Tick(ctx context.Context, gw Gateway, view MarketView) error
	OnExecutionReport(r fix.ExecutionReport)
	Status(mark decimal.Decimal, hasMark bool) Status
}

type Status struct {
	Source        string          `json:"source"`
	Symbol        string          `json:"symbol"`
	Enabled       bool            `json:"enabled"`
	Inventory     int64           `json:"inventory"`
	AvgPrice      decimal.Decimal `json:"avg_entry_price"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	TotalPnL      decimal.Decimal `json:"total_pnl"`
	Trades        int             `json:"trades"`
	Wins          int             `json:"wins"`
	WinRate       float64         `json:"win_rate"`
	OpenOrders    int             `json:"open_orders"`
	LastError     string          `json:"last_error,omitempty"`
}

// ClientGateway routes orders for one symbol through a FIX client session.
type ClientGateway struct {
	client *fix.Client
	symbol string
}

func NewClientGateway(client *fix.Client, symbol string) *ClientGateway {
	return &ClientGateway{client: client, symbol: symbol}
}

func (g *ClientGateway) Submit(side engine.Side, price decimal.Decimal, qty int64) (string, error) {
	reports, err := g.client.NewOrder(g.symbol, side, price, qty)
	if err != nil {
		return "", err
	}
	if len(reports) == 0 {
		return "", fix.ErrNoReports
	}
	first := reports[0]
	if first.ExecType == fix.ExecTypeRejected {
		return first.OrderID, &RejectedError{OrderID: first.OrderID, Reason: first.RejectReason, Text: first.Text}
	}
	return first.OrderID, nil
}

func (g *ClientGateway) Cancel(orderID string) error {
	r, err := g.client.Cancel(orderID)
	if err != nil {
		return err
	}
	if r.ExecType == fix.ExecTypeRejected {
		return &RejectedError{OrderID: orderID, Reason: r.RejectReason, Text: r.Text}
	}
	return nil
}
