package strategy

import (
	"context"
	"math/rand/v2"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fix-match-engine/src/engine"
)

var (
	one = decimal.NewFromInt(1)
	two = decimal.NewFromInt(2)
)

// MyStrategy quotes both sides a spread factor outside the current best
// bid and ask.
type MyStrategy struct {
	base
}

func NewMyStrategy(p Params, rng *rand.Rand, log zerolog.Logger) *MyStrategy {
	s := &MyStrategy{}
	s.init(SourceMyStrategy, p, rng, log)
	return s
}

func (s *MyStrategy) Tick(_ context.Context, gw Gateway, view MarketView) error {
	q := view.Quote
	if !q.HasBid || !q.HasAsk || !s.due(view) {
		return nil
	}
	bid := q.BestBid.Mul(one.Sub(s.params.Spread))
	ask := q.BestAsk.Mul(one.Add(s.params.Spread))
	return s.quoteBoth(gw, view, bid, ask, s.size(view))
}

// PassiveLiquidityProvider joins the best bid and ask.
type PassiveLiquidityProvider struct {
	base
}

func NewPassiveLiquidityProvider(p Params, rng *rand.Rand, log zerolog.Logger) *PassiveLiquidityProvider {
	s := &PassiveLiquidityProvider{}
	s.init(SourcePassive, p, rng, log)
	return s
}

func (s *PassiveLiquidityProvider) Tick(_ context.Context, gw Gateway, view MarketView) error {
	q := view.Quote
	if !q.HasBid || !q.HasAsk || !s.due(view) {
		return nil
	}
	return s.quoteBoth(gw, view, q.BestBid, q.BestAsk, s.size(view))
}

// MarketMaker centres a fixed spread on the mid. It never sells more than
// it holds.
type MarketMaker struct {
	base
}

func NewMarketMaker(p Params, rng *rand.Rand, log zerolog.Logger) *MarketMaker {
	s := &MarketMaker{}
	s.init(SourceMarketMake, p, rng, log)
	return s
}

func (s *MarketMaker) Tick(_ context.Context, gw Gateway, view MarketView) error {
	mid, ok := view.Mark()
	if !ok || !s.due(view) {
		return nil
	}
	half := s.params.Spread.Div(two)
	bid := mid.Mul(one.Sub(half))
	ask := mid.Mul(one.Add(half))
	qty := s.size(view)

	if err := s.cancelOpen(gw); err != nil {
		return err
	}
	if err := s.place(gw, view, engine.SideBuy, bid, qty); err != nil {
		return err
	}
	if s.portfolio.Inventory()-qty < 0 {
		return nil
	}
	return s.place(gw, view, engine.SideSell, ask, qty)
}

// Momentum fits a line through the last Lookback trade prices and crosses
// the spread in the direction of the slope.
type Momentum struct {
	base
}

func NewMomentum(p Params, rng *rand.Rand, log zerolog.Logger) *Momentum {
	if p.Lookback < 2 {
		p.Lookback = 2
	}
	s := &Momentum{}
	s.init(SourceMomentum, p, rng, log)
	return s
}

func (s *Momentum) Tick(_ context.Context, gw Gateway, view MarketView) error {
	prices := view.RecentPrices
	if len(prices) < s.params.Lookback || !s.due(view) {
		return nil
	}
	slope := Slope(prices[len(prices)-s.params.Lookback:])
	q := view.Quote
	qty := s.size(view)

	switch {
	case slope.IsPositive() && q.HasAsk:
		return s.place(gw, view, engine.SideBuy, q.BestAsk, qty)
	case slope.IsNegative() && q.HasBid && s.portfolio.Inventory()-qty >= 0:
		return s.place(gw, view, engine.SideSell, q.BestBid, qty)
	}
	return nil
}

// Slope is the least-squares slope of ys against their index.
func Slope(ys []decimal.Decimal) decimal.Decimal {
	n := len(ys)
	if n < 2 {
		return decimal.Zero
	}
	xm := decimal.NewFromInt(int64(n - 1)).Div(two)
	ym := decimal.Sum(ys[0], ys[1:]...).Div(decimal.NewFromInt(int64(n)))

	var num, den decimal.Decimal
	for i, y := range ys {
		dx := decimal.NewFromInt(int64(i)).Sub(xm)
		num = num.Add(dx.Mul(y.Sub(ym)))
		den = den.Add(dx.Mul(dx))
	}
	return num.Div(den)
}
