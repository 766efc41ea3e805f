package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

type Symbol struct {
	Name           string          `toml:"name"`
	ReferencePrice decimal.Decimal `toml:"reference_price"`
}

type Limits struct {
	MinPrice        decimal.Decimal `toml:"min_price"`
	MaxPrice        decimal.Decimal `toml:"max_price"`
	MinQuantity     int64           `toml:"min_quantity"`
	MaxQuantity     int64           `toml:"max_quantity"`
	MaxSymbolLength int             `toml:"max_symbol_length"`
}

type Runner struct {
	Interval       time.Duration `toml:"interval"`
	OrderMaxAge    time.Duration `toml:"order_max_age"`
	ReseedInterval time.Duration `toml:"reseed_interval"`
	ReseedLevels   int           `toml:"reseed_levels"`
	ReseedBaseQty  int64         `toml:"reseed_base_qty"`
	MinLevels      int           `toml:"min_levels"`
	MinQty         int64         `toml:"min_qty"`
	PriceWindow    int           `toml:"price_window"`
	// The reference feed is a random walk around each symbol's reference
	// price, cached for FeedCacheTTL.
	FeedStep     decimal.Decimal `toml:"feed_step"`
	FeedSeed     uint64          `toml:"feed_seed"`
	FeedCacheTTL time.Duration   `toml:"feed_cache_ttl"`
}

// CircuitBreaker halts the exchange when gated order or trade counts in one
// window pass their caps. Zero caps disable the check.
type CircuitBreaker struct {
	MaxOrders int           `toml:"max_orders"`
	MaxTrades int           `toml:"max_trades"`
	Window    time.Duration `toml:"window"`
}

// Strategy overrides one strategy's defaults. Zero fields keep the default.
type Strategy struct {
	Enabled          *bool           `toml:"enabled"`
	MaxOrderQty      int64           `toml:"max_order_qty"`
	MaxInventory     int64           `toml:"max_inventory"`
	MinOrderInterval time.Duration   `toml:"min_order_interval"`
	Spread           decimal.Decimal `toml:"spread"`
	Lookback         int             `toml:"lookback"`
	MinQty           int64           `toml:"min_qty"`
	MaxQty           int64           `toml:"max_qty"`
	AdaptiveSize     bool            `toml:"adaptive_size"`
	MaxVolatility    decimal.Decimal `toml:"max_volatility"`
	DrawdownLimit    decimal.Decimal `toml:"drawdown_limit"`
	Cooldown         time.Duration   `toml:"cooldown"`
}

type Config struct {
	Port                   string        `toml:"port"`
	StreamPort             string        `toml:"stream_port"`
	LogLevel               string        `toml:"log_level"`
	LogFile                string        `toml:"log_file"`
	LogFormat              string        `toml:"log_format"`
	ShutdownTimeout        time.Duration `toml:"shutdown_timeout"`
	RateLimitDisabled      bool          `toml:"rate_limit_disabled"`
	RateLimitMax           int           `toml:"rate_limit_max"`
	RateLimitWindow        time.Duration `toml:"rate_limit_window"`
	MaxConcurrentRequests  int64         `toml:"max_concurrent_requests"`
	RequestLoggingDisabled bool          `toml:"request_logging_disabled"`
	OrderBookDefaultDepth  int           `toml:"orderbook_default_depth"`
	OrderBookMaxDepth      int           `toml:"orderbook_max_depth"`
	PriceDecimals          int32         `toml:"price_decimals"`
	StrategiesDisabled     []string      `toml:"strategies_disabled"`

	Symbols        []Symbol            `toml:"symbols"`
	Limits         Limits              `toml:"limits"`
	CircuitBreaker CircuitBreaker      `toml:"circuit_breaker"`
	Runner         Runner              `toml:"runner"`
	Strategies     map[string]Strategy `toml:"strategies"`
}

func Default() *Config {
	return &Config{
		Port:                  "8080",
		StreamPort:            "8081",
		LogLevel:              "info",
		ShutdownTimeout:       10 * time.Second,
		RateLimitMax:          100,
		RateLimitWindow:       time.Second,
		OrderBookDefaultDepth: 10,
		OrderBookMaxDepth:     100,
		PriceDecimals:         2,
		Symbols: []Symbol{
			{Name: "AAPL", ReferencePrice: decimal.NewFromInt(190)},
			{Name: "MSFT", ReferencePrice: decimal.NewFromInt(420)},
		},
		Limits: Limits{
			MinPrice:        decimal.RequireFromString("0.01"),
			MaxPrice:        decimal.NewFromInt(1_000_000),
			MinQuantity:     1,
			MaxQuantity:     10_000,
			MaxSymbolLength: 8,
		},
		CircuitBreaker: CircuitBreaker{
			MaxOrders: 5000,
			MaxTrades: 2000,
			Window:    time.Second,
		},
		Runner: Runner{
			Interval:      time.Second,
			OrderMaxAge:   time.Minute,
			ReseedLevels:  5,
			ReseedBaseQty: 100,
			MinLevels:     2,
			MinQty:        10,
			PriceWindow:   50,
			FeedStep:      decimal.RequireFromString("0.002"),
			FeedSeed:      1,
			FeedCacheTTL:  5 * time.Second,
		},
		Strategies: map[string]Strategy{},
	}
}

// Load applies, in order: defaults, the TOML file named by CONFIG_FILE and
// environment overrides.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) LoadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config file %s: unknown keys %v", path, undecoded)
	}
	return nil
}

// ApplyEnv overrides fields from getenv. Unset variables are ignored;
// malformed ones are errors.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	flag := func(key string, dst *bool) {
		if v := getenv(key); v != "" {
			*dst = v == "1" || strings.EqualFold(v, "true")
		}
	}
	integer := func(key string, set func(int64)) {
		if v := getenv(key); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				errs = append(errs, fmt.Errorf("%s: invalid integer %q", key, v))
				return
			}
			set(n)
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, v))
				return
			}
			*dst = d
		}
	}

	str("PORT", &c.Port)
	str("STREAM_PORT", &c.StreamPort)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FILE", &c.LogFile)
	str("LOG_FORMAT", &c.LogFormat)
	duration("SHUTDOWN_TIMEOUT", &c.ShutdownTimeout)
	flag("RATE_LIMIT_DISABLED", &c.RateLimitDisabled)
	integer("RATE_LIMIT_MAX", func(n int64) { c.RateLimitMax = int(n) })
	duration("RATE_LIMIT_WINDOW", &c.RateLimitWindow)
	integer("MAX_CONCURRENT_REQUESTS", func(n int64) { c.MaxConcurrentRequests = n })
	flag("REQUEST_LOGGING_DISABLED", &c.RequestLoggingDisabled)
	integer("ORDERBOOK_DEFAULT_DEPTH", func(n int64) { c.OrderBookDefaultDepth = int(n) })
	integer("ORDERBOOK_MAX_DEPTH", func(n int64) { c.OrderBookMaxDepth = int(n) })
	integer("PRICE_DECIMALS", func(n int64) { c.PriceDecimals = int32(n) })
	duration("STRATEGY_INTERVAL", &c.Runner.Interval)
	integer("CIRCUIT_BREAKER_MAX_ORDERS", func(n int64) { c.CircuitBreaker.MaxOrders = int(n) })
	integer("CIRCUIT_BREAKER_MAX_TRADES", func(n int64) { c.CircuitBreaker.MaxTrades = int(n) })
	duration("CIRCUIT_BREAKER_WINDOW", &c.CircuitBreaker.Window)

	if v := getenv("SYMBOLS"); v != "" {
		c.Symbols = mergeSymbols(c.Symbols, splitList(v))
	}
	if v := getenv("STRATEGIES_DISABLED"); v != "" {
		c.StrategiesDisabled = splitList(v)
	}
	return errors.Join(errs...)
}

// mergeSymbols keeps the reference price of symbols already configured.
func mergeSymbols(current []Symbol, names []string) []Symbol {
	known := make(map[string]Symbol, len(current))
	for _, s := range current {
		known[s.Name] = s
	}
	out := make([]Symbol, 0, len(names))
	for _, n := range names {
		n = strings.ToUpper(n)
		if s, ok := known[n]; ok {
			out = append(out, s)
			continue
		}
		out = append(out, Symbol{Name: n})
	}
	return out
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) Validate() error {
	var errs []error
	if len(c.Symbols) == 0 {
		errs = append(errs, errors.New("at least one symbol is required"))
	}
	seen := make(map[string]bool, len(c.Symbols))
	for _, s := range c.Symbols {
		switch {
		case s.Name == "":
			errs = append(errs, errors.New("symbol name is empty"))
		case c.Limits.MaxSymbolLength > 0 && len(s.Name) > c.Limits.MaxSymbolLength:
			errs = append(errs, fmt.Errorf("symbol %s longer than %d", s.Name, c.Limits.MaxSymbolLength))
		case seen[s.Name]:
			errs = append(errs, fmt.Errorf("symbol %s listed twice", s.Name))
		case s.ReferencePrice.IsNegative():
			errs = append(errs, fmt.Errorf("symbol %s has a negative reference price", s.Name))
		}
		seen[s.Name] = true
	}
	if c.PriceDecimals < 0 || c.PriceDecimals > 8 {
		errs = append(errs, fmt.Errorf("price_decimals %d outside 0..8", c.PriceDecimals))
	}
	if c.Limits.MinPrice.GreaterThan(c.Limits.MaxPrice) {
		errs = append(errs, errors.New("limits.min_price above limits.max_price"))
	}
	if c.Limits.MinQuantity > c.Limits.MaxQuantity {
		errs = append(errs, errors.New("limits.min_quantity above limits.max_quantity"))
	}
	if cb := c.CircuitBreaker; cb.MaxOrders < 0 || cb.MaxTrades < 0 || cb.Window < 0 {
		errs = append(errs, errors.New("circuit_breaker caps and window must not be negative"))
	}
	if c.OrderBookDefaultDepth <= 0 || c.OrderBookMaxDepth < c.OrderBookDefaultDepth {
		errs = append(errs, fmt.Errorf("orderbook depth %d/%d invalid", c.OrderBookDefaultDepth, c.OrderBookMaxDepth))
	}
	return errors.Join(errs...)
}

func (c *Config) SymbolNames() []string {
	out := make([]string, 0, len(c.Symbols))
	for _, s := range c.Symbols {
		out = append(out, s.Name)
	}
	return out
}

// StrategyEnabled is false when the strategy is listed in
// StrategiesDisabled or its section sets enabled = false.
func (c *Config) StrategyEnabled(source string) bool {
	for _, s := range c.StrategiesDisabled {
		if s == source {
			return false
		}
	}
	if s, ok := c.Strategies[source]; ok && s.Enabled != nil {
		return *s.Enabled
	}
	return true
}
