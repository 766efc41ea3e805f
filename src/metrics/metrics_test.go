package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fix-match-engine/src/control"
	"fix-match-engine/src/engine"
	"fix-match-engine/src/fix"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func order(source string, side engine.Side, price string, qty int64) fix.OrderRequest {
	return fix.OrderRequest{
		Source:   source,
		Symbol:   "AAPL",
		Side:     side,
		Price:    decimal.RequireFromString(price),
		Quantity: qty,
	}
}

func TestCollectorObservesEngine(t *testing.T) {
	c := New()
	state := control.NewTradingState(zerolog.Nop())
	c.Track(state)
	fe := fix.NewFixEngine(engine.NewMatcher([]string{"AAPL"}), state,
		fix.WithObserver(c),
		fix.WithLatencyHook(c.ObserveLatency))

	fe.SubmitOrder(order("alice", engine.SideBuy, "100", 10))
	fe.SubmitOrder(order("bob", engine.SideSell, "99", 4))

	state.SetHalted(true)
	fe.SubmitOrder(order("bob", engine.SideSell, "99", 4))
	state.SetStrategyEnabled("momentum", false)

	out := scrape(t, c)
	for _, line := range []string{
		`fixmatch_execution_reports_total{exec_type="NEW",symbol="AAPL"} 2`,
		`fixmatch_execution_reports_total{exec_type="TRADE",symbol="AAPL"} 2`,
		`fixmatch_execution_reports_total{exec_type="REJECTED",symbol="AAPL"} 1`,
		`fixmatch_rejects_total{reason="halted",symbol="AAPL"} 1`,
		`fixmatch_trades_total{symbol="AAPL"} 1`,
		`fixmatch_traded_quantity_total{symbol="AAPL"} 4`,
		`fixmatch_last_trade_price{symbol="AAPL"} 100`,
		`fixmatch_open_orders{symbol="AAPL"} 1`,
		`fixmatch_operation_duration_seconds_count{op="submit"} 3`,
		`fixmatch_exchange_halted 1`,
		`fixmatch_strategy_disabled{source="momentum"} 1`,
	} {
		assert.Contains(t, out, line)
	}
}

func TestCollectorCancelClosesOrder(t *testing.T) {
	c := New()
	fe := fix.NewFixEngine(engine.NewMatcher([]string{"AAPL"}), control.NewTradingState(zerolog.Nop()),
		fix.WithObserver(c),
		fix.WithLatencyHook(c.ObserveLatency))

	r := fe.SubmitOrder(order("alice", engine.SideBuy, "100", 10))[0]
	fe.CancelOrder(fix.CancelRequest{Source: "alice", OrderID: r.OrderID})
	fe.CancelOrder(fix.CancelRequest{Source: "alice", OrderID: "missing"})

	out := scrape(t, c)
	assert.Contains(t, out, `fixmatch_open_orders{symbol="AAPL"} 0`)
	assert.Contains(t, out, `fixmatch_operation_duration_seconds_count{op="cancel"} 2`)
	assert.Contains(t, out, `fixmatch_rejects_total{reason="not_found",symbol=""} 1`)
	assert.Contains(t, out, `fixmatch_exchange_halted 0`)
}
