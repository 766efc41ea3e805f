package engine

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// recentPriceWindow bounds the trade-price ring used for volatility and
// momentum signals.
const recentPriceWindow = 1000

// Fill pairs a trade with the maker's state right after it.
type Fill struct {
	Trade Trade
	Maker Order
}

type MatchResult struct {
	Order  Order // taker state after matching
	Fills  []Fill
	Rested bool
}

func (r MatchResult) FilledQuantity() int64 {
	var total int64
	for _, f := range r.Fills {
		total += f.Trade.Quantity
	}
	return total
}

func (r MatchResult) Trades() []Trade {
	trades := make([]Trade, 0, len(r.Fills))
	for _, f := range r.Fills {
		trades = append(trades, f.Trade)
	}
	return trades
}

// MatchingEngine runs price-time matching for a single symbol. Mutations hold
// the write lock for the whole match-and-rest step, so readers only ever see
// the book before or after an incoming order has been processed.
type MatchingEngine struct {
	symbol string

	mu        sync.RWMutex
	book      *OrderBook
	trades    []Trade
	recent    []int64
	lastPrice int64
	hasLast   bool
	tradeSeq  uint64

	arrivals *atomic.Uint64
	now      func() time.Time
}

func newMatchingEngine(symbol string, arrivals *atomic.Uint64, now func() time.Time) *MatchingEngine {
	return &MatchingEngine{
		symbol:   symbol,
		book:     NewOrderBook(symbol),
		arrivals: arrivals,
		now:      now,
	}
}

func (m *MatchingEngine) Symbol() string {
	return m.symbol
}

// Submit matches an incoming limit order against the opposite side and rests
// whatever is left at the order's limit price.
func (m *MatchingEngine) Submit(order *Order) (*MatchResult, error) {
	if order.Symbol != m.symbol {
		return nil, fmt.Errorf("order %s for %q on %q book: %w", order.ID, order.Symbol, m.symbol, ErrUnknownSymbol)
	}
	if err := order.validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.book.Order(order.ID); exists {
		return nil, fmt.Errorf("order %s: %w", order.ID, ErrDuplicateOrder)
	}

	order.Sequence = m.arrivals.Add(1)
	order.Timestamp = m.now()
	order.Status = StatusNew

	result := &MatchResult{}
	opposite := order.Side.Opposite()

	for order.Remaining > 0 && m.book.crosses(order.Side, order.Price) {
		resting, ok := m.book.frontOrder(opposite)
		if !ok {
			break
		}
		qty := min(order.Remaining, resting.Remaining)
		if err := checkFill(order, resting, qty); err != nil {
			return nil, err
		}

		maker, err := m.book.fillFront(opposite, qty)
		if err != nil {
			return nil, err
		}
		if err := order.fill(qty); err != nil {
			return nil, err
		}

		m.tradeSeq++
		trade := Trade{
			ID:           uuid.New().String(),
			Sequence:     m.tradeSeq,
			Symbol:       m.symbol,
			Price:        maker.Price, // maker price always wins
			Quantity:     qty,
			Timestamp:    m.now(),
			TakerOrderID: order.ID,
			MakerOrderID: maker.ID,
			TakerSource:  order.Source,
			MakerSource:  maker.Source,
			TakerSide:    order.Side,
		}
		m.recordTrade(trade)
		result.Fills = append(result.Fills, Fill{Trade: trade, Maker: maker})
	}

	if order.Remaining > 0 {
		if err := m.book.Insert(*order); err != nil {
			return result, err
		}
		result.Rested = true
	}

	result.Order = *order
	return result, nil
}

func (m *MatchingEngine) recordTrade(t Trade) {
	m.trades = append(m.trades, t)
	m.lastPrice = t.Price
	m.hasLast = true

	m.recent = append(m.recent, t.Price)
	// edge case: maintain rolling window by removing oldest prices
	if len(m.recent) > recentPriceWindow {
		m.recent = m.recent[len(m.recent)-recentPriceWindow:]
	}
}

// Cancel removes a resting order. Orders that already traded away or were
// canceled before are reported as ErrOrderNotFound.
func (m *MatchingEngine) Cancel(orderID string) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.book.Remove(orderID)
	if !ok {
		return Order{}, fmt.Errorf("cancel %s: %w", orderID, ErrOrderNotFound)
	}
	order.Status = StatusCanceled
	return order, nil
}

// CancelWhere removes every resting order matching keep in one atomic step.
func (m *MatchingEngine) CancelWhere(keep func(Order) bool) []Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	victims := m.book.Orders(keep)
	canceled := make([]Order, 0, len(victims))
	for _, v := range victims {
		if order, ok := m.book.Remove(v.ID); ok {
			order.Status = StatusCanceled
			canceled = append(canceled, order)
		}
	}
	return canceled
}

// Expire cancels resting orders older than maxAge.
func (m *MatchingEngine) Expire(maxAge time.Duration) []Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	stale := m.book.Expired(maxAge, m.now())
	expired := make([]Order, 0, len(stale))
	for _, s := range stale {
		if order, ok := m.book.Remove(s.ID); ok {
			order.Status = StatusCanceled
			expired = append(expired, order)
		}
	}
	return expired
}

func (m *MatchingEngine) BestBid() (Level, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.book.BestBid()
}

func (m *MatchingEngine) BestAsk() (Level, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.book.BestAsk()
}

func (m *MatchingEngine) MidPrice() (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.book.MidPrice()
}

func (m *MatchingEngine) Depth(levels int) Depth {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.book.DepthSnapshot(levels)
}

// TopOfBook is a consistent top-of-book and liquidity summary.
type TopOfBook struct {
	Bid       Level
	HasBid    bool
	Ask       Level
	HasAsk    bool
	Last      int64
	HasLast   bool
	BidLevels int
	AskLevels int
	BidQty    int64
	AskQty    int64
}

// Top reads the whole summary under one lock.
func (m *MatchingEngine) Top() TopOfBook {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t := TopOfBook{Last: m.lastPrice, HasLast: m.hasLast}
	t.Bid, t.HasBid = m.book.BestBid()
	t.Ask, t.HasAsk = m.book.BestAsk()
	t.BidLevels, t.BidQty = m.book.LevelCount(SideBuy), m.book.Quantity(SideBuy, 0)
	t.AskLevels, t.AskQty = m.book.LevelCount(SideSell), m.book.Quantity(SideSell, 0)
	return t
}

// checkFill rejects a fill either side cannot absorb. It runs before the
// book or the taker is touched so a bad fill leaves both unchanged.
func checkFill(taker *Order, maker Order, qty int64) error {
	if qty <= 0 || qty > taker.Remaining || qty > maker.Remaining {
		return fmt.Errorf("fill %d of taker %s (%d left) against maker %s (%d left): %w",
			qty, taker.ID, taker.Remaining, maker.ID, maker.Remaining, ErrInvariant)
	}
	return nil
}

// Liquidity returns the level count and total quantity per side.
func (m *MatchingEngine) Liquidity() (bidLevels int, bidQty int64, askLevels int, askQty int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.book.LevelCount(SideBuy), m.book.Quantity(SideBuy, 0),
		m.book.LevelCount(SideSell), m.book.Quantity(SideSell, 0)
}

func (m *MatchingEngine) Order(orderID string) (Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.book.Order(orderID)
}

func (m *MatchingEngine) RestingOrders(keep func(Order) bool) []Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.book.Orders(keep)
}

func (m *MatchingEngine) OrdersBySource(source string) []Order {
	return m.RestingOrders(func(o Order) bool { return o.Source == source })
}

func (m *MatchingEngine) RestingCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.book.Len()
}

// Trades returns a copy of the full trade history in match order.
func (m *MatchingEngine) Trades() []Trade {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Trade, len(m.trades))
	copy(out, m.trades)
	return out
}

func (m *MatchingEngine) LastPrice() (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastPrice, m.hasLast
}

// RecentPrices returns up to window of the latest trade prices, oldest first.
func (m *MatchingEngine) RecentPrices(window int) []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if window <= 0 || window > len(m.recent) {
		window = len(m.recent)
	}
	out := make([]int64, window)
	copy(out, m.recent[len(m.recent)-window:])
	return out
}

// Matcher is the registry of per-symbol matching engines. Symbols are fully
// independent: there is no cross-symbol locking on the matching path.
type Matcher struct {
	engines  map[string]*MatchingEngine
	mu       sync.RWMutex
	arrivals atomic.Uint64
	now      func() time.Time
}

type MatcherOption func(*Matcher)

// WithClock overrides the time source used for order and trade timestamps.
func WithClock(now func() time.Time) MatcherOption {
	return func(m *Matcher) {
		m.now = now
	}
}

func NewMatcher(symbols []string, opts ...MatcherOption) *Matcher {
	m := &Matcher{
		engines: make(map[string]*MatchingEngine, len(symbols)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, s := range symbols {
		m.Register(s)
	}
	return m
}

func (m *Matcher) Register(symbol string) *MatchingEngine {
	m.mu.RLock()
	if eng, exists := m.engines[symbol]; exists {
		m.mu.RUnlock()
		return eng
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// edge case: double-check after acquiring write lock
	if eng, exists := m.engines[symbol]; exists {
		return eng
	}
	eng := newMatchingEngine(symbol, &m.arrivals, m.now)
	m.engines[symbol] = eng
	return eng
}

func (m *Matcher) Engine(symbol string) (*MatchingEngine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	eng, exists := m.engines[symbol]
	if !exists {
		return nil, fmt.Errorf("symbol %q: %w", symbol, ErrUnknownSymbol)
	}
	return eng, nil
}

func (m *Matcher) Symbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.engines))
	for s := range m.engines {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// MatchOrder routes an order to its symbol's engine.
func (m *Matcher) MatchOrder(order *Order) (*MatchResult, error) {
	eng, err := m.Engine(order.Symbol)
	if err != nil {
		return nil, err
	}
	return eng.Submit(order)
}
