package engine

import (
	"fmt"
	"time"

	"github.com/google/btree"
)

// Level is a top-of-book summary.
type Level struct {
	Price    int64
	Quantity int64
	Orders   int
}

type SourceQuantity struct {
	Source   string
	Quantity int64
}

type DepthLevel struct {
	Price      int64
	Quantity   int64 // aggregated quantity at this price
	Cumulative int64 // running total from the top of book
	Orders     int
	Sources    []SourceQuantity // in order of first arrival at the level
}

type Depth struct {
	Symbol string
	Bids   []DepthLevel // sorted descending (highest first)
	Asks   []DepthLevel // sorted ascending (lowest first)
}

// OrderBook is the resting state of one symbol. It is not safe for
// concurrent use; MatchingEngine serializes access to it.
type OrderBook struct {
	Symbol string
	bids   *btree.BTreeG[*priceLevel] // sorted descending (highest first)
	asks   *btree.BTreeG[*priceLevel] // sorted ascending (lowest first)
	arena  arena
	index  map[string]handle
}

func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		Symbol: symbol,
		bids: btree.NewG(32, func(a, b *priceLevel) bool {
			return a.price > b.price
		}),
		asks: btree.NewG(32, func(a, b *priceLevel) bool {
			return a.price < b.price
		}),
		index: make(map[string]handle),
	}
}

func (ob *OrderBook) ladder(side Side) *btree.BTreeG[*priceLevel] {
	if side == SideBuy {
		return ob.bids
	}
	return ob.asks
}

func (ob *OrderBook) best(side Side) (*priceLevel, bool) {
	return ob.ladder(side).Min()
}

// crosses reports whether a price on side would trade against the opposite best.
func (ob *OrderBook) crosses(side Side, price int64) bool {
	opp, ok := ob.best(side.Opposite())
	if !ok {
		return false
	}
	if side == SideBuy {
		return opp.price <= price
	}
	return opp.price >= price
}

// Insert rests an order at the back of its price level's queue.
func (ob *OrderBook) Insert(o Order) error {
	if err := o.validate(); err != nil {
		return err
	}
	if _, exists := ob.index[o.ID]; exists {
		return fmt.Errorf("order %s: %w", o.ID, ErrDuplicateOrder)
	}
	// edge case: a crossing order has to go through the matcher first
	if ob.crosses(o.Side, o.Price) {
		return fmt.Errorf("order %s at %d: %w", o.ID, o.Price, ErrWouldCross)
	}

	tree := ob.ladder(o.Side)
	level, exists := tree.Get(&priceLevel{price: o.Price})
	if !exists {
		level = &priceLevel{price: o.Price}
		tree.ReplaceOrInsert(level)
	}

	h := ob.arena.alloc(o)
	level.push(h, o.Remaining)
	ob.index[o.ID] = h
	return nil
}

// Remove takes a resting order out of the book regardless of its side.
func (ob *OrderBook) Remove(orderID string) (Order, bool) {
	h, exists := ob.index[orderID]
	if !exists {
		return Order{}, false
	}
	order := *ob.arena.get(h)

	tree := ob.ladder(order.Side)
	if level, ok := tree.Get(&priceLevel{price: order.Price}); ok {
		if level.remove(h) {
			level.total -= order.Remaining
		}
		// edge case: remove empty price level
		if level.empty() {
			tree.Delete(level)
		}
	}

	delete(ob.index, orderID)
	ob.arena.release(h)
	return order, true
}

func (ob *OrderBook) BestBid() (Level, bool) {
	return ob.top(SideBuy)
}

func (ob *OrderBook) BestAsk() (Level, bool) {
	return ob.top(SideSell)
}

func (ob *OrderBook) top(side Side) (Level, bool) {
	level, ok := ob.best(side)
	if !ok {
		return Level{}, false
	}
	return Level{Price: level.price, Quantity: level.total, Orders: len(level.orders)}, true
}

// MidPrice is the integer midpoint of the touch, rounded down.
func (ob *OrderBook) MidPrice() (int64, bool) {
	bid, okBid := ob.best(SideBuy)
	ask, okAsk := ob.best(SideSell)
	if !okBid || !okAsk {
		return 0, false
	}
	return (bid.price + ask.price) / 2, true
}

func (ob *OrderBook) Order(orderID string) (Order, bool) {
	h, exists := ob.index[orderID]
	if !exists {
		return Order{}, false
	}
	return *ob.arena.get(h), true
}

func (ob *OrderBook) Len() int {
	return len(ob.index)
}

func (ob *OrderBook) LevelCount(side Side) int {
	return ob.ladder(side).Len()
}

// Quantity sums the remaining quantity over the first n levels of side
// (all levels when n <= 0).
func (ob *OrderBook) Quantity(side Side, n int) int64 {
	var total int64
	count := 0
	ob.ladder(side).Ascend(func(level *priceLevel) bool {
		if n > 0 && count >= n {
			return false
		}
		total += level.total
		count++
		return true
	})
	return total
}

func (ob *OrderBook) DepthSnapshot(levels int) Depth {
	return Depth{
		Symbol: ob.Symbol,
		Bids:   ob.depth(SideBuy, levels),
		Asks:   ob.depth(SideSell, levels),
	}
}

func (ob *OrderBook) depth(side Side, levels int) []DepthLevel {
	out := make([]DepthLevel, 0, max(levels, 0))
	if levels <= 0 {
		return out
	}
	var cumulative int64
	ob.ladder(side).Ascend(func(level *priceLevel) bool {
		if len(out) >= levels {
			return false
		}
		cumulative += level.total
		out = append(out, DepthLevel{
			Price:      level.price,
			Quantity:   level.total,
			Cumulative: cumulative,
			Orders:     len(level.orders),
			Sources:    ob.sources(level),
		})
		return true
	})
	return out
}

func (ob *OrderBook) sources(level *priceLevel) []SourceQuantity {
	out := make([]SourceQuantity, 0, 2)
	pos := make(map[string]int, 2)
	for _, h := range level.orders {
		o := ob.arena.get(h)
		if i, seen := pos[o.Source]; seen {
			out[i].Quantity += o.Remaining
			continue
		}
		pos[o.Source] = len(out)
		out = append(out, SourceQuantity{Source: o.Source, Quantity: o.Remaining})
	}
	return out
}

// Orders returns resting orders matching keep, bids before asks, each side in
// price-time priority.
func (ob *OrderBook) Orders(keep func(Order) bool) []Order {
	var out []Order
	for _, side := range []Side{SideBuy, SideSell} {
		ob.ladder(side).Ascend(func(level *priceLevel) bool {
			for _, h := range level.orders {
				o := ob.arena.get(h)
				if keep == nil || keep(*o) {
					out = append(out, *o)
				}
			}
			return true
		})
	}
	return out
}

// Expired lists orders resting for longer than maxAge at now.
func (ob *OrderBook) Expired(maxAge time.Duration, now time.Time) []Order {
	return ob.Orders(func(o Order) bool {
		return now.Sub(o.Timestamp) > maxAge
	})
}

// fillFront executes qty against the oldest order at the best level of side
// and returns the maker's post-fill state. Filled makers are retired and an
// emptied level is pruned immediately.
func (ob *OrderBook) fillFront(side Side, qty int64) (Order, error) {
	tree := ob.ladder(side)
	level, ok := tree.Min()
	if !ok || level.empty() {
		return Order{}, fmt.Errorf("fill on empty %s side: %w", side, ErrInvariant)
	}
	h := level.front()
	maker := ob.arena.get(h)
	if err := maker.fill(qty); err != nil {
		return Order{}, err
	}
	level.total -= qty
	snapshot := *maker

	if maker.IsFilled() {
		level.popFront()
		delete(ob.index, snapshot.ID)
		ob.arena.release(h)
		if level.empty() {
			tree.Delete(level)
		}
	}
	return snapshot, nil
}

// frontOrder peeks the oldest order at the best level of side.
func (ob *OrderBook) frontOrder(side Side) (Order, bool) {
	level, ok := ob.best(side)
	if !ok || level.empty() {
		return Order{}, false
	}
	return *ob.arena.get(level.front()), true
}
