package strategy

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"fix-match-engine/src/engine"
)

var ErrRiskLimit = errors.New("risk limit")

// RiskLimits are checked before an order leaves the strategy. Zero values
// disable the corresponding check.
type RiskLimits struct {
	MaxOrderQty      int64
	MaxInventory     int64
	MinOrderInterval time.Duration
	// MaxPriceDeviation bounds how far through the opposite best a price
	// may go, as a fraction of that price.
	MaxPriceDeviation decimal.Decimal
	// MaxLiquidityShare caps a marketable order at this fraction of the
	// opposite side's resting quantity.
	MaxLiquidityShare decimal.Decimal
	// MaxLoss stops new orders once total PnL falls below -MaxLoss.
	MaxLoss decimal.Decimal
	// MaxVolatility blocks orders while Volatility of the recent trade
	// prices is above it.
	MaxVolatility decimal.Decimal
	// A fall of DrawdownLimit from the PnL peak pauses quoting for Cooldown.
	DrawdownLimit decimal.Decimal
	Cooldown      time.Duration
}

func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxOrderQty:       1000,
		MaxInventory:      100,
		MinOrderInterval:  time.Second,
		MaxPriceDeviation: decimal.RequireFromString("0.02"),
		MaxLiquidityShare: decimal.RequireFromString("0.2"),
		MaxLoss:           decimal.NewFromInt(10000),
		MaxVolatility:     decimal.RequireFromString("0.1"),
		DrawdownLimit:     decimal.NewFromInt(500),
		Cooldown:          time.Minute,
	}
}

// due reports whether the cooldown since the last quote has passed.
func (l RiskLimits) due(last, now time.Time) bool {
	return l.MinOrderInterval <= 0 || last.IsZero() || now.Sub(last) >= l.MinOrderInterval
}

type riskInput struct {
	side      engine.Side
	price     decimal.Decimal
	qty       int64
	inventory int64
	pnl       decimal.Decimal
	view      MarketView
}

func (l RiskLimits) check(in riskInput) error {
	if in.qty <= 0 {
		return fmt.Errorf("%w: quantity %d", ErrRiskLimit, in.qty)
	}
	if l.MaxOrderQty > 0 && in.qty > l.MaxOrderQty {
		return fmt.Errorf("%w: quantity %d above %d", ErrRiskLimit, in.qty, l.MaxOrderQty)
	}
	if l.MaxInventory > 0 {
		next := in.inventory + in.qty
		if in.side == engine.SideSell {
			next = in.inventory - in.qty
		}
		if abs(next) > l.MaxInventory && abs(next) > abs(in.inventory) {
			return fmt.Errorf("%w: inventory would reach %d, limit %d", ErrRiskLimit, next, l.MaxInventory)
		}
	}
	if l.MaxLoss.IsPositive() && in.pnl.LessThan(l.MaxLoss.Neg()) {
		return fmt.Errorf("%w: pnl %s below -%s", ErrRiskLimit, in.pnl, l.MaxLoss)
	}
	if l.MaxVolatility.IsPositive() {
		if vol := Volatility(in.view.RecentPrices); vol > l.MaxVolatility.InexactFloat64() {
			return fmt.Errorf("%w: volatility %.4f above %s", ErrRiskLimit, vol, l.MaxVolatility)
		}
	}

	q := in.view.Quote
	opposite, oppositeQty, ok := q.BestAsk, q.AskDepth, q.HasAsk
	through := in.price.GreaterThanOrEqual(opposite)
	if in.side == engine.SideSell {
		opposite, oppositeQty, ok = q.BestBid, q.BidDepth, q.HasBid
		through = in.price.LessThanOrEqual(opposite)
	}
	if !ok || !through {
		return nil
	}
	if l.MaxPriceDeviation.IsPositive() {
		dev := in.price.Sub(opposite).Abs().Div(opposite)
		if dev.GreaterThan(l.MaxPriceDeviation) {
			return fmt.Errorf("%w: price %s is %s from %s", ErrRiskLimit, in.price, dev.StringFixed(4), opposite)
		}
	}
	if l.MaxLiquidityShare.IsPositive() {
		room := l.MaxLiquidityShare.Mul(decimal.NewFromInt(oppositeQty))
		if decimal.NewFromInt(in.qty).GreaterThan(room) {
			return fmt.Errorf("%w: quantity %d exceeds %s of %d resting", ErrRiskLimit, in.qty, l.MaxLiquidityShare, oppositeQty)
		}
	}
	return nil
}

// Volatility is the standard deviation of prices relative to their mean.
// Fewer than two prices give zero.
func Volatility(prices []decimal.Decimal) float64 {
	if len(prices) < 2 {
		return 0
	}
	xs := make([]float64, len(prices))
	var sum float64
	for i, p := range prices {
		xs[i] = p.InexactFloat64()
		sum += xs[i]
	}
	n := float64(len(xs))
	mean := sum / n
	if mean <= 0 {
		return 0
	}
	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return math.Sqrt(ss/n) / mean
}
