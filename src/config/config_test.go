package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.SymbolNames())
	assert.Equal(t, int32(2), cfg.PriceDecimals)
	assert.True(t, cfg.StrategyEnabled("momentum"))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
port = "9000"
price_decimals = 3
strategies_disabled = ["market_maker"]

[[symbols]]
name = "TSLA"
reference_price = "250.125"

[[symbols]]
name = "NVDA"
reference_price = 880.5

[limits]
min_price = "0.001"
max_price = "5000"
min_quantity = 1
max_quantity = 500
max_symbol_length = 6

[circuit_breaker]
max_orders = 50
window = "500ms"

[runner]
interval = "250ms"
order_max_age = "2m"
reseed_levels = 3

[strategies.momentum]
lookback = 8
min_order_interval = "3s"
adaptive_size = true
drawdown_limit = "250"
cooldown = "30s"

[strategies.my_strategy]
enabled = false
spread = "0.02"
`), 0o600))

	cfg := Default()
	require.NoError(t, cfg.LoadFile(path))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, int32(3), cfg.PriceDecimals)
	assert.Equal(t, []string{"TSLA", "NVDA"}, cfg.SymbolNames())
	assert.Equal(t, "250.125", cfg.Symbols[0].ReferencePrice.String())
	assert.Equal(t, "880.5", cfg.Symbols[1].ReferencePrice.String())
	assert.Equal(t, "5000", cfg.Limits.MaxPrice.String())
	assert.Equal(t, int64(500), cfg.Limits.MaxQuantity)
	assert.Equal(t, 50, cfg.CircuitBreaker.MaxOrders)
	assert.Equal(t, 2000, cfg.CircuitBreaker.MaxTrades)
	assert.Equal(t, 500*time.Millisecond, cfg.CircuitBreaker.Window)
	assert.Equal(t, 250*time.Millisecond, cfg.Runner.Interval)
	assert.Equal(t, 2*time.Minute, cfg.Runner.OrderMaxAge)
	assert.Equal(t, 3, cfg.Runner.ReseedLevels)
	assert.Equal(t, int64(100), cfg.Runner.ReseedBaseQty, "untouched keys keep defaults")

	assert.Equal(t, 8, cfg.Strategies["momentum"].Lookback)
	assert.Equal(t, 3*time.Second, cfg.Strategies["momentum"].MinOrderInterval)
	assert.True(t, cfg.Strategies["momentum"].AdaptiveSize)
	assert.Equal(t, "250", cfg.Strategies["momentum"].DrawdownLimit.String())
	assert.Equal(t, 30*time.Second, cfg.Strategies["momentum"].Cooldown)
	assert.Equal(t, "0.02", cfg.Strategies["my_strategy"].Spread.String())
	assert.False(t, cfg.StrategyEnabled("my_strategy"))
	assert.False(t, cfg.StrategyEnabled("market_maker"))
	assert.True(t, cfg.StrategyEnabled("momentum"))
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("prot = \"9000\"\n"), 0o600))
	err := Default().LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prot")

	assert.Error(t, Default().LoadFile(filepath.Join(t.TempDir(), "missing.toml")))
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		"PORT":                       "3000",
		"STREAM_PORT":                "3001",
		"LOG_LEVEL":                  "debug",
		"LOG_FORMAT":                 "pretty",
		"SHUTDOWN_TIMEOUT":           "3s",
		"RATE_LIMIT_DISABLED":        "1",
		"RATE_LIMIT_MAX":             "5",
		"RATE_LIMIT_WINDOW":          "2s",
		"MAX_CONCURRENT_REQUESTS":    "50",
		"REQUEST_LOGGING_DISABLED":   "true",
		"ORDERBOOK_DEFAULT_DEPTH":    "5",
		"ORDERBOOK_MAX_DEPTH":        "20",
		"PRICE_DECIMALS":             "4",
		"SYMBOLS":                    "aapl, googl",
		"STRATEGY_INTERVAL":          "100ms",
		"CIRCUIT_BREAKER_MAX_ORDERS": "0",
		"CIRCUIT_BREAKER_MAX_TRADES": "7",
		"STRATEGIES_DISABLED":        "momentum,passive_liquidity_provider",
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "3001", cfg.StreamPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "pretty", cfg.LogFormat)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.RateLimitDisabled)
	assert.Equal(t, 5, cfg.RateLimitMax)
	assert.Equal(t, 2*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, int64(50), cfg.MaxConcurrentRequests)
	assert.True(t, cfg.RequestLoggingDisabled)
	assert.Equal(t, 5, cfg.OrderBookDefaultDepth)
	assert.Equal(t, 20, cfg.OrderBookMaxDepth)
	assert.Equal(t, int32(4), cfg.PriceDecimals)
	assert.Equal(t, 100*time.Millisecond, cfg.Runner.Interval)
	assert.Zero(t, cfg.CircuitBreaker.MaxOrders, "zero disables the order cap")
	assert.Equal(t, 7, cfg.CircuitBreaker.MaxTrades)

	require.Equal(t, []string{"AAPL", "GOOGL"}, cfg.SymbolNames())
	assert.Equal(t, "190", cfg.Symbols[0].ReferencePrice.String(), "known symbol keeps its reference")
	assert.True(t, cfg.Symbols[1].ReferencePrice.IsZero())

	assert.False(t, cfg.StrategyEnabled("momentum"))
	assert.False(t, cfg.StrategyEnabled("passive_liquidity_provider"))
	assert.True(t, cfg.StrategyEnabled("market_maker"))
}

func TestApplyEnvRejectsMalformedValues(t *testing.T) {
	err := Default().ApplyEnv(env(map[string]string{
		"RATE_LIMIT_MAX":   "lots",
		"SHUTDOWN_TIMEOUT": "-1s",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_MAX")
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Symbols = append(cfg.Symbols, Symbol{Name: "AAPL"}, Symbol{Name: "TOOLONGNAME"})
	cfg.PriceDecimals = 9
	cfg.OrderBookDefaultDepth = 200
	cfg.CircuitBreaker.MaxTrades = -1

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"AAPL listed twice", "TOOLONGNAME", "price_decimals", "orderbook depth", "circuit_breaker"} {
		assert.Contains(t, err.Error(), want)
	}

	empty := Default()
	empty.Symbols = nil
	assert.Error(t, empty.Validate())
}

func TestLoadUsesEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("port = \"7000\"\nstream_port = \"7001\"\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7100", cfg.Port, "environment wins over the file")
	assert.Equal(t, "7001", cfg.StreamPort)
}
