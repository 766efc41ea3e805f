package strategy

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fix-match-engine/src/engine"
	"fix-match-engine/src/fix"
)

// Params configures a strategy. Spread and Lookback are only read by the
// variants that use them.
type Params struct {
	Risk     RiskLimits
	Spread   decimal.Decimal
	Lookback int
	MinQty   int64
	MaxQty   int64
	// AdaptiveSize shrinks orders as volatility rises instead of drawing a
	// random size.
	AdaptiveSize bool
}

// volatilityFloor is the volatility at which an adaptive order is MaxQty.
const volatilityFloor = 0.001

func DefaultParams(source string) Params {
	p := Params{Risk: DefaultRiskLimits(), MinQty: 1, MaxQty: 10}
	switch source {
	case SourceMyStrategy:
		p.Spread = decimal.RequireFromString("0.01")
		p.Risk.MaxOrderQty = 500
	case SourceMarketMake:
		p.Spread = decimal.RequireFromString("0.002")
	case SourceMomentum:
		p.Lookback = 5
	}
	return p
}

// New builds the strategy registered under source.
func New(source string, p Params, rng *rand.Rand, log zerolog.Logger) (Strategy, error) {
	switch source {
	case SourceMyStrategy:
		return NewMyStrategy(p, rng, log), nil
	case SourcePassive:
		return NewPassiveLiquidityProvider(p, rng, log), nil
	case SourceMarketMake:
		return NewMarketMaker(p, rng, log), nil
	case SourceMomentum:
		return NewMomentum(p, rng, log), nil
	}
	return nil, fmt.Errorf("unknown strategy %q", source)
}

func Sources() []string {
	return []string{SourceMyStrategy, SourcePassive, SourceMarketMake, SourceMomentum}
}

// base carries what every strategy shares: its portfolio, open orders and
// quoting cooldown. Its lock is never held across a Gateway call because
// reports for the call are delivered synchronously.
type base struct {
	source    string
	params    Params
	portfolio *Portfolio
	log       zerolog.Logger

	mu        sync.Mutex
	rng       *rand.Rand
	open      map[string]struct{}
	lastOrder time.Time
	lastErr   string

	peak          decimal.Decimal
	hasPeak       bool
	cooldownUntil time.Time
}

func (b *base) init(source string, p Params, rng *rand.Rand, log zerolog.Logger) {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	if p.MinQty <= 0 {
		p.MinQty = 1
	}
	if p.MaxQty < p.MinQty {
		p.MaxQty = p.MinQty
	}
	b.source = source
	b.params = p
	b.portfolio = NewPortfolio()
	b.log = log.With().Str("strategy", source).Logger()
	b.rng = rng
	b.open = make(map[string]struct{})
}

func (b *base) Source() string {
	return b.source
}

func (b *base) Portfolio() *Portfolio {
	return b.portfolio
}

func (b *base) OnExecutionReport(r fix.ExecutionReport) {
	if r.Source != b.source {
		return
	}
	if r.ExecType == fix.ExecTypeTrade {
		pnl := b.portfolio.Apply(r.Side, r.LastPx, r.LastQty)
		b.log.Debug().
			Str("order_id", r.OrderID).
			Str("side", r.Side.String()).
			Str("px", r.LastPx.String()).
			Int64("qty", r.LastQty).
			Str("pnl", pnl.String()).
			Msg("Fill")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case r.IsTerminal():
		delete(b.open, r.OrderID)
	case r.ExecType == fix.ExecTypeNew:
		b.open[r.OrderID] = struct{}{}
	}
}

func (b *base) Status(mark decimal.Decimal, hasMark bool) Status {
	s := Status{Source: b.source}
	b.portfolio.fill(&s, mark, hasMark)
	b.mu.Lock()
	s.OpenOrders = len(b.open)
	s.LastError = b.lastErr
	b.mu.Unlock()
	return s
}

// due reports whether the strategy may quote now: no drawdown cooldown is
// running and the order interval has passed.
func (b *base) due(view MarketView) bool {
	pnl := b.pnl(view)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cooling(view.Now, pnl) {
		return false
	}
	return b.params.Risk.due(b.lastOrder, view.Now)
}

// cooling requires b.mu held. It tracks the PnL peak and starts a cooldown
// once PnL falls DrawdownLimit below it; the peak then restarts from there.
func (b *base) cooling(now time.Time, pnl decimal.Decimal) bool {
	if now.Before(b.cooldownUntil) {
		return true
	}
	l := b.params.Risk
	if !l.DrawdownLimit.IsPositive() || l.Cooldown <= 0 {
		return false
	}
	if !b.hasPeak || pnl.GreaterThan(b.peak) {
		b.peak, b.hasPeak = pnl, true
		return false
	}
	drawdown := b.peak.Sub(pnl)
	if drawdown.LessThan(l.DrawdownLimit) {
		return false
	}
	b.cooldownUntil = now.Add(l.Cooldown)
	b.peak = pnl
	b.log.Warn().
		Str("drawdown", drawdown.String()).
		Time("until", b.cooldownUntil).
		Msg("Drawdown limit hit, cooling down")
	return true
}

// pnl is realized plus unrealized at the view's mark.
func (b *base) pnl(view MarketView) decimal.Decimal {
	pnl := b.portfolio.Realized()
	if mark, ok := view.Mark(); ok {
		pnl = pnl.Add(b.portfolio.Unrealized(mark))
	}
	return pnl
}

func (b *base) quantity() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.params.MinQty + b.rng.Int64N(b.params.MaxQty-b.params.MinQty+1)
}

// size is the order quantity for view. Adaptive sizing scales MaxQty by
// volatilityFloor over the recent volatility, within [MinQty, MaxQty].
func (b *base) size(view MarketView) int64 {
	if !b.params.AdaptiveSize {
		return b.quantity()
	}
	vol := max(Volatility(view.RecentPrices), volatilityFloor)
	qty := int64(float64(b.params.MaxQty) * volatilityFloor / vol)
	return min(max(qty, b.params.MinQty), b.params.MaxQty)
}

func (b *base) openOrders() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.open))
	for id := range b.open {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// cancelOpen pulls every resting quote. Orders that filled in the meantime
// come back as not_found or state rejects and are dropped.
func (b *base) cancelOpen(gw Gateway) error {
	var errs []error
	for _, id := range b.openOrders() {
		err := gw.Cancel(id)
		var rej *RejectedError
		if errors.As(err, &rej) && (rej.Reason == fix.ReasonNotFound || rej.Reason == fix.ReasonState) {
			b.mu.Lock()
			delete(b.open, id)
			b.mu.Unlock()
			continue
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// place runs the risk checks and submits. Buys round down and sells round
// up so a rounded quote never becomes more aggressive.
func (b *base) place(gw Gateway, view MarketView, side engine.Side, price decimal.Decimal, qty int64) error {
	if side == engine.SideBuy {
		price = price.RoundFloor(view.Decimals)
	} else {
		price = price.RoundCeil(view.Decimals)
	}

	pnl := b.pnl(view)
	err := b.params.Risk.check(riskInput{
		side:      side,
		price:     price,
		qty:       qty,
		inventory: b.portfolio.Inventory(),
		pnl:       pnl,
		view:      view,
	})
	if err != nil {
		b.log.Debug().Err(err).Str("side", side.String()).Str("px", price.String()).Int64("qty", qty).Msg("Order blocked")
		return err
	}

	id, err := gw.Submit(side, price, qty)

	b.mu.Lock()
	b.lastOrder = view.Now
	if err != nil {
		b.lastErr = err.Error()
	}
	b.mu.Unlock()

	if err != nil {
		return err
	}
	b.log.Debug().Str("order_id", id).Str("side", side.String()).Str("px", price.String()).Int64("qty", qty).Msg("Order sent")
	return nil
}

// quoteBoth requotes a two-sided market: pull old quotes, then bid and ask.
// A side blocked by risk does not stop the other.
func (b *base) quoteBoth(gw Gateway, view MarketView, bid, ask decimal.Decimal, qty int64) error {
	if err := b.cancelOpen(gw); err != nil {
		return err
	}
	return errors.Join(
		b.place(gw, view, engine.SideBuy, bid, qty),
		b.place(gw, view, engine.SideSell, ask, qty),
	)
}
