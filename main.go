package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"fix-match-engine/src/config"
	"fix-match-engine/src/control"
	"fix-match-engine/src/engine"
	"fix-match-engine/src/fix"
	"fix-match-engine/src/handlers"
	"fix-match-engine/src/logger"
	"fix-match-engine/src/marketdata"
	"fix-match-engine/src/metrics"
	"fix-match-engine/src/models"
	"fix-match-engine/src/routes"
	"fix-match-engine/src/strategy"
	"fix-match-engine/src/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.InitLogger(logger.Options{})
		logger.Logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger.InitLogger(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile, Format: cfg.LogFormat})
	defer logger.CloseLogger()
	log := logger.GetLogger()

	log.Info().
		Strs("symbols", cfg.SymbolNames()).
		Int32("price_decimals", cfg.PriceDecimals).
		Msg("Initializing FIX matching exchange")

	state := control.NewTradingState(logger.Component("control"))
	for _, source := range strategy.Sources() {
		if !cfg.StrategyEnabled(source) {
			state.SetStrategyEnabled(source, false)
		}
	}

	collector := metrics.New()
	collector.Track(state)
	streamer := stream.NewServer(256, logger.Component("stream"))

	matcher := engine.NewMatcher(cfg.SymbolNames())
	opts := []fix.Option{
		fix.WithLimits(fix.Limits{
			MaxSymbolLength: cfg.Limits.MaxSymbolLength,
			MinPrice:        cfg.Limits.MinPrice,
			MaxPrice:        cfg.Limits.MaxPrice,
			MinQuantity:     cfg.Limits.MinQuantity,
			MaxQuantity:     cfg.Limits.MaxQuantity,
		}),
		fix.WithCodec(fix.PriceCodec{Decimals: cfg.PriceDecimals}),
		fix.WithLogger(logger.Component("fix")),
		fix.WithObserver(collector),
		fix.WithObserver(streamer),
		fix.WithLatencyHook(collector.ObserveLatency),
	}
	if cb := cfg.CircuitBreaker; cb.MaxOrders > 0 || cb.MaxTrades > 0 {
		breaker := control.NewCircuitBreaker(state, control.BreakerLimits{
			MaxOrders: cb.MaxOrders,
			MaxTrades: cb.MaxTrades,
			Window:    cb.Window,
		}, logger.Component("breaker"))
		opts = append(opts, fix.WithCircuitBreaker(breaker))
	}
	fe := fix.NewFixEngine(matcher, state, opts...)

	feed, err := referenceFeed(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build reference feed")
	}

	runners, err := buildRunners(cfg, fe, state, feed, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build strategies")
	}

	orderHandler := handlers.NewOrderHandler(fe, state, handlers.Options{
		DefaultDepth: cfg.OrderBookDefaultDepth,
		MaxDepth:     cfg.OrderBookMaxDepth,
	})
	controlHandler := handlers.NewControlHandler(orderHandler, state, runners)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				code = fiberErr.Code
			}

			log.Error().
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("status", code).
				Str("error", err.Error()).
				Msg("Request error")

			return c.Status(code).JSON(models.ErrorResponse{Error: err.Error()})
		},
	})

	app.Use(recover.New())
	routes.SetupRoutes(app, cfg, orderHandler, controlHandler, collector.Handler())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		port := ":" + cfg.Port
		log.Info().
			Str("port", port).
			Strs("endpoints", routes.Endpoints()).
			Msg("FIX matching exchange started")
		if err := app.Listen(port); err != nil {
			log.Error().
				Err(err).
				Str("port", port).
				Str("hint", "Port may be already in use. Try: PORT=3000 go run main.go").
				Msg("Server failed to start")
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Received shutdown signal, shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			// edge case: timeout during shutdown is acceptable
			if errors.Is(err, context.DeadlineExceeded) {
				log.Warn().
					Dur("timeout", cfg.ShutdownTimeout).
					Msg("Timeout exceeded, shutting down...")
				return nil
			}
			return err
		}
		return nil
	})

	g.Go(func() error {
		return streamer.ListenAndServe(ctx, ":"+cfg.StreamPort, cfg.ShutdownTimeout)
	})

	for _, r := range runners {
		g.Go(func() error {
			defer r.Close()
			return r.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Exchange stopped with error")
		logger.CloseLogger()
		os.Exit(1)
	}
	log.Info().Msg("Shutdown complete")
}

func referenceFeed(cfg *config.Config) (marketdata.Feed, error) {
	start := make(map[string]decimal.Decimal, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		if s.ReferencePrice.IsPositive() {
			start[s.Name] = s.ReferencePrice
		}
	}
	walk := marketdata.NewRandomWalkFeed(start, cfg.Runner.FeedStep, cfg.PriceDecimals, cfg.Runner.FeedSeed)
	if cfg.Runner.FeedCacheTTL <= 0 {
		return walk, nil
	}
	return marketdata.NewCachedFeed(walk, len(cfg.Symbols)*4, cfg.Runner.FeedCacheTTL, logger.Component("marketdata"))
}

func buildRunners(cfg *config.Config, fe *fix.FixEngine, state *control.TradingState, feed marketdata.Feed, log zerolog.Logger) ([]*strategy.Runner, error) {
	rc := strategy.DefaultRunnerConfig()
	rc.Interval = cfg.Runner.Interval
	rc.OrderMaxAge = cfg.Runner.OrderMaxAge
	rc.ReseedInterval = cfg.Runner.ReseedInterval
	rc.ReseedLevels = cfg.Runner.ReseedLevels
	rc.ReseedBaseQty = cfg.Runner.ReseedBaseQty
	rc.MinLevels = cfg.Runner.MinLevels
	rc.MinQty = cfg.Runner.MinQty
	rc.PriceWindow = cfg.Runner.PriceWindow

	runners := make([]*strategy.Runner, 0, len(cfg.Symbols))
	for i, sym := range cfg.Symbols {
		rng := rand.New(rand.NewPCG(cfg.Runner.FeedSeed, uint64(i+1)))
		var strategies []strategy.Strategy
		for _, source := range strategy.Sources() {
			s, err := strategy.New(source, strategyParams(source, cfg.Strategies[source]), rng, logger.Component("strategy").With().Str("source", source).Str("symbol", sym.Name).Logger())
			if err != nil {
				return nil, err
			}
			strategies = append(strategies, s)
		}
		runners = append(runners, strategy.NewRunner(sym.Name, fe, state, feed, rc, log, strategies,
			strategy.WithSessionLogger(logger.Session)))
	}
	return runners, nil
}

// strategyParams overlays the non-zero fields of a config section on the
// strategy's defaults.
func strategyParams(source string, o config.Strategy) strategy.Params {
	p := strategy.DefaultParams(source)
	if o.MaxOrderQty > 0 {
		p.Risk.MaxOrderQty = o.MaxOrderQty
	}
	if o.MaxInventory > 0 {
		p.Risk.MaxInventory = o.MaxInventory
	}
	if o.MinOrderInterval > 0 {
		p.Risk.MinOrderInterval = o.MinOrderInterval
	}
	if o.Spread.IsPositive() {
		p.Spread = o.Spread
	}
	if o.Lookback > 0 {
		p.Lookback = o.Lookback
	}
	if o.MinQty > 0 {
		p.MinQty = o.MinQty
	}
	if o.MaxQty > 0 {
		p.MaxQty = o.MaxQty
	}
	if o.MaxVolatility.IsPositive() {
		p.Risk.MaxVolatility = o.MaxVolatility
	}
	if o.DrawdownLimit.IsPositive() {
		p.Risk.DrawdownLimit = o.DrawdownLimit
	}
	if o.Cooldown > 0 {
		p.Risk.Cooldown = o.Cooldown
	}
	p.AdaptiveSize = o.AdaptiveSize
	return p
}
