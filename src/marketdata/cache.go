package marketdata

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	DefaultCacheSize = 256
	DefaultCacheTTL  = time.Hour
)

// CachedFeed fronts an upstream Feed. Fresh prices are served from an
// expiring cache; when upstream fails the last known price is returned.
type CachedFeed struct {
	upstream Feed
	fresh    *expirable.LRU[string, decimal.Decimal]
	stale    *lru.Cache[string, decimal.Decimal]
	log      zerolog.Logger
}

func NewCachedFeed(upstream Feed, size int, ttl time.Duration, log zerolog.Logger) (*CachedFeed, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	stale, err := lru.New[string, decimal.Decimal](size)
	if err != nil {
		return nil, fmt.Errorf("stale cache: %w", err)
	}
	return &CachedFeed{
		upstream: upstream,
		fresh:    expirable.NewLRU[string, decimal.Decimal](size, nil, ttl),
		stale:    stale,
		log:      log,
	}, nil
}

func (f *CachedFeed) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if p, ok := f.fresh.Get(symbol); ok {
		return p, nil
	}

	p, err := f.upstream.LastPrice(ctx, symbol)
	if err == nil {
		f.fresh.Add(symbol, p)
		f.stale.Add(symbol, p)
		return p, nil
	}

	if last, ok := f.stale.Get(symbol); ok {
		f.log.Warn().Err(err).
			Str("symbol", symbol).
			Str("price", last.String()).
			Msg("Upstream price unavailable, serving cached value")
		return last, nil
	}
	return decimal.Zero, err
}

// Invalidate drops the fresh entry so the next read goes upstream.
func (f *CachedFeed) Invalidate(symbol string) {
	f.fresh.Remove(symbol)
}
