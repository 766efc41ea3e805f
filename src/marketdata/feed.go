package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/shopspring/decimal"
)

var ErrNoPrice = errors.New("no reference price")

// Feed supplies the reference (last trade) price for a symbol. It is used
// for marking positions and seeding depth, never for matching.
type Feed interface {
	LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// StaticFeed serves fixed prices that can be updated at runtime.
type StaticFeed struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

func NewStaticFeed(prices map[string]decimal.Decimal) *StaticFeed {
	f := &StaticFeed{prices: make(map[string]decimal.Decimal, len(prices))}
	for s, p := range prices {
		f.prices[s] = p
	}
	return f
}

func (f *StaticFeed) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", symbol, ErrNoPrice)
	}
	return p, nil
}

func (f *StaticFeed) Set(symbol string, price decimal.Decimal) {
	f.mu.Lock()
	f.prices[symbol] = price
	f.mu.Unlock()
}

// RandomWalkFeed moves each price by a bounded random fraction on every
// read. Prices are rounded to decimals and never drop below one tick.
type RandomWalkFeed struct {
	mu       sync.Mutex
	prices   map[string]decimal.Decimal
	maxStep  decimal.Decimal
	decimals int32
	rng      *rand.Rand
}

// NewRandomWalkFeed starts every symbol at its reference price. maxStep is
// the largest relative move per read, e.g. 0.002 for 20 basis points.
func NewRandomWalkFeed(start map[string]decimal.Decimal, maxStep decimal.Decimal, decimals int32, seed uint64) *RandomWalkFeed {
	f := &RandomWalkFeed{
		prices:   make(map[string]decimal.Decimal, len(start)),
		maxStep:  maxStep,
		decimals: decimals,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	for s, p := range start {
		f.prices[s] = p.Round(decimals)
	}
	return f
}

func (f *RandomWalkFeed) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", symbol, ErrNoPrice)
	}

	// uniform in [-maxStep, maxStep] at 1e-6 resolution
	u := decimal.New(f.rng.Int64N(2_000_001)-1_000_000, -6)
	next := p.Mul(decimal.NewFromInt(1).Add(u.Mul(f.maxStep))).Round(f.decimals)

	tick := decimal.New(1, -f.decimals)
	if next.LessThan(tick) {
		next = tick
	}
	f.prices[symbol] = next
	return next, nil
}
