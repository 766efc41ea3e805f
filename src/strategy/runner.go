package strategy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fix-match-engine/src/control"
	"fix-match-engine/src/fix"
	"fix-match-engine/src/marketdata"
)

type RunnerConfig struct {
	Interval          time.Duration
	HeartbeatInterval time.Duration
	// OrderMaxAge expires resting orders older than this. Zero keeps them.
	OrderMaxAge time.Duration
	// The book is reseeded around the reference price when either side has
	// fewer than MinLevels levels or MinQty quantity, and every
	// ReseedInterval when that is set.
	MinLevels      int
	MinQty         int64
	ReseedInterval time.Duration
	ReseedLevels   int
	ReseedBaseQty  int64
	PriceWindow    int
}

func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Interval:          time.Second,
		HeartbeatInterval: fix.DefaultHeartbeatInterval,
		OrderMaxAge:       time.Minute,
		MinLevels:         2,
		MinQty:            10,
		ReseedLevels:      5,
		ReseedBaseQty:     100,
		PriceWindow:       50,
	}
}

type RunnerOption func(*Runner)

func WithRunnerClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// WithSessionLogger sets the logger each strategy's FIX client writes to.
func WithSessionLogger(fn func(source string) zerolog.Logger) RunnerOption {
	return func(r *Runner) { r.sessionLog = fn }
}

type participant struct {
	strategy Strategy
	client   *fix.Client
	gateway  Gateway
	unsub    func()
}

// Runner drives the strategies trading one symbol. Each strategy has its
// own FIX client session and sees only the reports for this symbol.
type Runner struct {
	symbol     string
	fe         *fix.FixEngine
	state      *control.TradingState
	feed       marketdata.Feed
	cfg        RunnerConfig
	log        zerolog.Logger
	now        func() time.Time
	sessionLog func(string) zerolog.Logger

	participants []*participant

	mu       sync.Mutex
	lastSeed time.Time
}

func NewRunner(symbol string, fe *fix.FixEngine, state *control.TradingState, feed marketdata.Feed, cfg RunnerConfig, log zerolog.Logger, strategies []Strategy, opts ...RunnerOption) *Runner {
	r := &Runner{
		symbol: symbol,
		fe:     fe,
		state:  state,
		feed:   feed,
		cfg:    cfg,
		log:    log.With().Str("symbol", symbol).Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.sessionLog == nil {
		r.sessionLog = func(source string) zerolog.Logger {
			return r.log.With().Str("session", source).Logger()
		}
	}
	if r.cfg.Interval <= 0 {
		r.cfg.Interval = time.Second
	}
	if r.cfg.HeartbeatInterval <= 0 {
		r.cfg.HeartbeatInterval = fix.DefaultHeartbeatInterval
	}

	for _, s := range strategies {
		client := fix.NewClient(s.Source(), fe, r.cfg.HeartbeatInterval, r.sessionLog(s.Source()))
		p := &participant{
			strategy: s,
			client:   client,
			gateway:  NewClientGateway(client, symbol),
		}
		p.unsub = fe.Subscribe(s.Source(), func(rep fix.ExecutionReport) {
			if rep.Symbol == symbol {
				s.OnExecutionReport(rep)
			}
		})
		r.participants = append(r.participants, p)
	}
	return r
}

func (r *Runner) Symbol() string {
	return r.symbol
}

// Run steps on every interval until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	defer r.Close()

	r.log.Info().
		Int("strategies", len(r.participants)).
		Dur("interval", r.cfg.Interval).
		Msg("Strategy runner started")

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("Strategy runner stopped")
			return nil
		case <-ticker.C:
			r.Step(ctx)
		}
	}
}

// Close detaches the strategies from the report stream.
func (r *Runner) Close() {
	for _, p := range r.participants {
		if p.unsub != nil {
			p.unsub()
			p.unsub = nil
		}
	}
}

// Step runs one round: heartbeats, expiry, reseeding, then every enabled
// strategy in registration order. Nothing but heartbeats runs while the
// exchange is halted.
func (r *Runner) Step(ctx context.Context) {
	now := r.now()
	r.heartbeats(now)

	if r.state.IsHalted() {
		return
	}

	if r.cfg.OrderMaxAge > 0 {
		if _, err := r.fe.ExpireOrders(r.symbol, r.cfg.OrderMaxAge); err != nil {
			r.log.Error().Err(err).Msg("Failed to expire orders")
		}
	}

	ref, hasRef := r.reference(ctx)
	r.reseed(now, ref, hasRef)

	for _, p := range r.participants {
		if ctx.Err() != nil {
			return
		}
		source := p.strategy.Source()
		if !r.state.StrategyEnabled(source) {
			continue
		}
		view, err := r.view(now, ref, hasRef)
		if err != nil {
			r.log.Error().Err(err).Msg("Failed to read market")
			return
		}
		if err := p.strategy.Tick(ctx, p.gateway, view); err != nil {
			ev := r.log.Warn()
			if errors.Is(err, ErrRiskLimit) || errors.Is(err, ErrOrderRejected) {
				ev = r.log.Debug()
			}
			ev.Err(err).Str("strategy", source).Msg("Strategy step failed")
		}
	}
}

func (r *Runner) heartbeats(now time.Time) {
	for _, p := range r.participants {
		if !p.client.HeartbeatDue(now) {
			continue
		}
		if err := p.client.Heartbeat(); err != nil {
			r.log.Warn().Err(err).Str("strategy", p.strategy.Source()).Msg("Heartbeat failed")
		}
	}
}

func (r *Runner) reference(ctx context.Context) (decimal.Decimal, bool) {
	if r.feed == nil {
		return decimal.Zero, false
	}
	p, err := r.feed.LastPrice(ctx, r.symbol)
	if err != nil {
		r.log.Debug().Err(err).Msg("No reference price")
		return decimal.Zero, false
	}
	return p, true
}

func (r *Runner) view(now time.Time, ref decimal.Decimal, hasRef bool) (MarketView, error) {
	q, err := r.fe.Quote(r.symbol)
	if err != nil {
		return MarketView{}, err
	}
	prices, err := r.fe.RecentPrices(r.symbol, r.cfg.PriceWindow)
	if err != nil {
		return MarketView{}, err
	}
	return MarketView{
		Symbol:       r.symbol,
		Quote:        q,
		RecentPrices: prices,
		Reference:    ref,
		HasReference: hasRef,
		Decimals:     r.fe.Codec().Decimals,
		Now:          now,
	}, nil
}

// reseed replaces the synthetic depth when the book is thin or the reseed
// interval has passed. The reference price is preferred over the book's own
// mid so a one-sided book still recentres.
func (r *Runner) reseed(now time.Time, ref decimal.Decimal, hasRef bool) {
	if r.cfg.ReseedLevels <= 0 || r.cfg.ReseedBaseQty <= 0 {
		return
	}
	q, err := r.fe.Quote(r.symbol)
	if err != nil {
		return
	}

	r.mu.Lock()
	periodic := r.cfg.ReseedInterval > 0 && now.Sub(r.lastSeed) >= r.cfg.ReseedInterval
	r.mu.Unlock()
	thin := q.BidLevels < r.cfg.MinLevels || q.AskLevels < r.cfg.MinLevels ||
		q.BidDepth < r.cfg.MinQty || q.AskDepth < r.cfg.MinQty
	if !thin && !periodic {
		return
	}

	mid := ref
	switch {
	case hasRef:
	case q.HasMid:
		mid = q.Mid
	case q.HasLast:
		mid = q.LastPrice
	default:
		r.log.Debug().Msg("No price to seed from")
		return
	}

	if _, err := r.fe.CancelAll(r.symbol, fix.SeedSource); err != nil {
		r.log.Error().Err(err).Msg("Failed to clear seeded depth")
		return
	}
	reports, err := r.fe.SeedDepth(r.symbol, mid, r.cfg.ReseedLevels, r.cfg.ReseedBaseQty)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to seed depth")
		return
	}

	r.mu.Lock()
	r.lastSeed = now
	r.mu.Unlock()

	r.log.Info().
		Str("mid", mid.String()).
		Bool("thin", thin).
		Int("reports", len(reports)).
		Msg("Book reseeded")
}

// Status reports each strategy's position marked at the current mid, last
// trade or reference price in that order.
func (r *Runner) Status(ctx context.Context) []Status {
	q, _ := r.fe.Quote(r.symbol)
	view := MarketView{Symbol: r.symbol, Quote: q}
	if !q.HasMid && !q.HasLast {
		view.Reference, view.HasReference = r.reference(ctx)
	}
	mark, hasMark := view.Mark()

	out := make([]Status, 0, len(r.participants))
	for _, p := range r.participants {
		s := p.strategy.Status(mark, hasMark)
		s.Symbol = r.symbol
		s.Enabled = r.state.StrategyEnabled(s.Source)
		out = append(out, s)
	}
	return out
}

func (r *Runner) Strategies() []Strategy {
	out := make([]Strategy, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p.strategy)
	}
	return out
}
