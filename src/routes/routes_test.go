package routes

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fix-match-engine/src/config"
	"fix-match-engine/src/control"
	"fix-match-engine/src/engine"
	"fix-match-engine/src/fix"
	"fix-match-engine/src/handlers"
	"fix-match-engine/src/metrics"
)

func setupApp(t *testing.T, cfg *config.Config) *fiber.App {
	t.Helper()
	state := control.NewTradingState(zerolog.Nop())
	collector := metrics.New()
	collector.Track(state)
	fe := fix.NewFixEngine(engine.NewMatcher(cfg.SymbolNames()), state, fix.WithObserver(collector))

	orders := handlers.NewOrderHandler(fe, state, handlers.Options{
		DefaultDepth: cfg.OrderBookDefaultDepth,
		MaxDepth:     cfg.OrderBookMaxDepth,
	})
	app := fiber.New()
	SetupRoutes(app, cfg, orders, handlers.NewControlHandler(orders, state, nil), collector.Handler())
	return app
}

func call(t *testing.T, app *fiber.App, method, path, body string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func TestEveryEndpointIsRegistered(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimitDisabled = true
	cfg.RequestLoggingDisabled = true
	app := setupApp(t, cfg)

	registered := map[string]bool{}
	for _, r := range app.GetRoutes(true) {
		registered[r.Method+" "+r.Path] = true
	}
	for _, ep := range Endpoints() {
		fields := strings.Fields(ep)
		assert.True(t, registered[fields[0]+" "+fields[1]], ep)
	}
}

func TestOrderFlowThroughRoutes(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimitDisabled = true
	cfg.RequestLoggingDisabled = true
	app := setupApp(t, cfg)

	code, _ := call(t, app, http.MethodPost, "/api/v1/orders", `{"symbol":"AAPL","side":"SELL","price":"190.10","quantity":5}`)
	require.Equal(t, http.StatusCreated, code)
	code, _ = call(t, app, http.MethodPost, "/api/v1/orders", `{"symbol":"AAPL","side":"BUY","price":190.10,"quantity":5}`)
	require.Equal(t, http.StatusOK, code)

	code, body := call(t, app, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `fixmatch_trades_total{symbol="AAPL"} 1`)
	assert.Contains(t, body, `fixmatch_last_trade_price{symbol="AAPL"} 190.1`)

	code, _ = call(t, app, http.MethodPost, "/api/v1/exchange/halt", "")
	require.Equal(t, http.StatusOK, code)
	code, body = call(t, app, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "fixmatch_exchange_halted 1")

	code, _ = call(t, app, http.MethodPost, "/api/v1/orders", `{"symbol":"AAPL","side":"BUY","price":"190","quantity":1}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	code, _ = call(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestRateLimitFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimitMax = 2
	cfg.RateLimitWindow = time.Hour
	cfg.RequestLoggingDisabled = true
	app := setupApp(t, cfg)

	for i := 0; i < 2; i++ {
		code, _ := call(t, app, http.MethodGet, "/api/v1/orderbook/AAPL", "")
		require.Equal(t, http.StatusOK, code)
	}
	code, body := call(t, app, http.MethodGet, "/api/v1/orderbook/AAPL", "")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Contains(t, body, "Rate limit exceeded")

	code, _ = call(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code, "health is outside the limited group")
}
