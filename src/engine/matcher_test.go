package engine

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func newTestMatcher() (*Matcher, *MatchingEngine) {
	m := NewMatcher([]string{"AAPL"})
	eng, _ := m.Engine("AAPL")
	return m, eng
}

func submit(t *testing.T, eng *MatchingEngine, source string, side Side, price, qty int64) (*Order, *MatchResult) {
	t.Helper()
	o := NewOrder(uuid.New().String(), "", source, "AAPL", side, price, qty)
	result, err := eng.Submit(o)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	return o, result
}

// Buy 10@100 rests, Sell 5@99 trades 5 at the maker's 100.
func TestPartialFillAtMakerPrice(t *testing.T) {
	_, eng := newTestMatcher()

	_, first := submit(t, eng, "alice", SideBuy, 100, 10)
	if !first.Rested || len(first.Fills) != 0 {
		t.Fatalf("Expected first order to rest, got: %+v", first)
	}

	_, result := submit(t, eng, "bob", SideSell, 99, 5)
	if len(result.Fills) != 1 {
		t.Fatalf("Expected 1 trade, got: %d", len(result.Fills))
	}
	trade := result.Fills[0].Trade
	if trade.Price != 100 || trade.Quantity != 5 {
		t.Errorf("Expected Trade{100, 5}, got: {%d, %d}", trade.Price, trade.Quantity)
	}
	if result.Order.Status != StatusFilled || result.Rested {
		t.Errorf("Taker should be filled without resting, got: %+v", result.Order)
	}
	if result.Fills[0].Maker.Status != StatusPartiallyFilled || result.Fills[0].Maker.Remaining != 5 {
		t.Errorf("Maker should be partially filled with 5 left, got: %+v", result.Fills[0].Maker)
	}

	bid, ok := eng.BestBid()
	if !ok || bid.Price != 100 || bid.Quantity != 5 {
		t.Errorf("Expected Buy 5@100 remaining, got: %+v", bid)
	}
	if _, ok := eng.BestAsk(); ok {
		t.Error("Ask side should be empty")
	}
}

// Sell 10@101 rests, Buy 10@105 trades 10 at 101 and empties the book.
func TestAggressiveBuyGetsPriceImprovement(t *testing.T) {
	_, eng := newTestMatcher()

	submit(t, eng, "alice", SideSell, 101, 10)
	_, result := submit(t, eng, "bob", SideBuy, 105, 10)

	if len(result.Fills) != 1 {
		t.Fatalf("Expected 1 trade, got: %d", len(result.Fills))
	}
	trade := result.Fills[0].Trade
	if trade.Price != 101 || trade.Quantity != 10 {
		t.Errorf("Expected Trade{101, 10}, got: {%d, %d}", trade.Price, trade.Quantity)
	}
	if _, ok := eng.BestBid(); ok {
		t.Error("Bid side should be empty")
	}
	if _, ok := eng.BestAsk(); ok {
		t.Error("Ask side should be empty")
	}
	if eng.RestingCount() != 0 {
		t.Errorf("Expected empty book, have %d orders", eng.RestingCount())
	}
}

// Two buys at the same price: the earlier one fills first.
func TestFIFOTieBreak(t *testing.T) {
	_, eng := newTestMatcher()

	first, _ := submit(t, eng, "alice", SideBuy, 100, 5)
	second, _ := submit(t, eng, "bob", SideBuy, 100, 5)

	_, result := submit(t, eng, "carol", SideSell, 100, 5)
	if len(result.Fills) != 1 {
		t.Fatalf("Expected 1 trade, got: %d", len(result.Fills))
	}
	if result.Fills[0].Trade.MakerOrderID != first.ID {
		t.Errorf("Earliest order should be the maker, got: %s", result.Fills[0].Trade.MakerOrderID)
	}
	if _, ok := eng.Order(first.ID); ok {
		t.Error("First order should be fully filled and retired")
	}
	rest, ok := eng.Order(second.ID)
	if !ok || rest.Remaining != 5 {
		t.Errorf("Second order should be untouched, got: %+v", rest)
	}
}

func TestSweepAcrossLevels(t *testing.T) {
	_, eng := newTestMatcher()

	submit(t, eng, "a", SideSell, 101, 3)
	submit(t, eng, "b", SideSell, 102, 4)
	submit(t, eng, "c", SideSell, 103, 5)

	taker, result := submit(t, eng, "d", SideBuy, 102, 10)

	if len(result.Fills) != 2 {
		t.Fatalf("Expected 2 trades, got: %d", len(result.Fills))
	}
	if result.Fills[0].Trade.Price != 101 || result.Fills[1].Trade.Price != 102 {
		t.Errorf("Expected fills at 101 then 102, got: %d, %d", result.Fills[0].Trade.Price, result.Fills[1].Trade.Price)
	}
	if result.FilledQuantity() != 7 {
		t.Errorf("Expected 7 filled, got: %d", result.FilledQuantity())
	}
	if !result.Rested || taker.Remaining != 3 || taker.Status != StatusPartiallyFilled {
		t.Errorf("Remaining 3 should rest as partially filled, got: %+v", taker)
	}

	bid, _ := eng.BestBid()
	ask, _ := eng.BestAsk()
	if bid.Price != 102 || bid.Quantity != 3 {
		t.Errorf("Expected Buy 3@102 resting, got: %+v", bid)
	}
	if ask.Price != 103 {
		t.Errorf("Expected best ask 103, got: %d", ask.Price)
	}

	last, ok := eng.LastPrice()
	if !ok || last != 102 {
		t.Errorf("Last price should be the final trade price, got: %d", last)
	}
	prices := eng.RecentPrices(10)
	if len(prices) != 2 || prices[0] != 101 || prices[1] != 102 {
		t.Errorf("Unexpected recent prices: %v", prices)
	}
}

func TestFullConsumptionAcrossLevelsDoesNotRest(t *testing.T) {
	_, eng := newTestMatcher()

	submit(t, eng, "a", SideBuy, 100, 5)
	submit(t, eng, "a", SideBuy, 99, 5)
	_, result := submit(t, eng, "b", SideSell, 90, 10)

	if result.Rested {
		t.Error("Fully matched order must not rest")
	}
	if result.Order.Status != StatusFilled {
		t.Errorf("Expected FILLED, got: %s", result.Order.Status)
	}
	if eng.RestingCount() != 0 {
		t.Errorf("Expected empty book, have %d", eng.RestingCount())
	}
}

func TestSelfMatchIsAllowed(t *testing.T) {
	_, eng := newTestMatcher()

	submit(t, eng, "my_strategy", SideSell, 50, 2)
	_, result := submit(t, eng, "my_strategy", SideBuy, 50, 2)

	if len(result.Fills) != 1 {
		t.Fatalf("Self-match should trade, got %d fills", len(result.Fills))
	}
	trade := result.Fills[0].Trade
	if trade.MakerSource != "my_strategy" || trade.TakerSource != "my_strategy" {
		t.Errorf("Unexpected sources: %+v", trade)
	}
}

func TestTradeHistoryIsOrdered(t *testing.T) {
	_, eng := newTestMatcher()

	submit(t, eng, "a", SideSell, 10, 1)
	submit(t, eng, "a", SideSell, 11, 1)
	submit(t, eng, "b", SideBuy, 11, 2)
	submit(t, eng, "a", SideBuy, 9, 1)
	submit(t, eng, "b", SideSell, 9, 1)

	trades := eng.Trades()
	if len(trades) != 3 {
		t.Fatalf("Expected 3 trades, got: %d", len(trades))
	}
	for i, tr := range trades {
		if tr.Sequence != uint64(i+1) {
			t.Errorf("Trade %d has sequence %d", i, tr.Sequence)
		}
	}
	if trades[2].BuyOrderID() != trades[2].MakerOrderID || trades[2].SellOrderID() != trades[2].TakerOrderID {
		t.Errorf("Sell taker should map to sell order id: %+v", trades[2])
	}
}

func TestSubmitRejectsInvalidOrders(t *testing.T) {
	m, eng := newTestMatcher()

	bad := NewOrder(uuid.New().String(), "", "a", "AAPL", SideBuy, 0, 10)
	if _, err := eng.Submit(bad); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("Expected ErrInvalidPrice, got: %v", err)
	}

	bad = NewOrder(uuid.New().String(), "", "a", "AAPL", SideSell, 10, -1)
	if _, err := eng.Submit(bad); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("Expected ErrInvalidQuantity, got: %v", err)
	}

	unknown := NewOrder(uuid.New().String(), "", "a", "MSFT", SideSell, 10, 1)
	if _, err := m.MatchOrder(unknown); !errors.Is(err, ErrUnknownSymbol) {
		t.Errorf("Expected ErrUnknownSymbol, got: %v", err)
	}

	if eng.RestingCount() != 0 {
		t.Errorf("Rejected orders must not reach the book, have %d", eng.RestingCount())
	}
}

func TestCancel(t *testing.T) {
	_, eng := newTestMatcher()

	resting, _ := submit(t, eng, "a", SideBuy, 100, 10)
	canceled, err := eng.Cancel(resting.ID)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if canceled.Status != StatusCanceled || canceled.Remaining != 10 {
		t.Errorf("Unexpected canceled order: %+v", canceled)
	}

	if _, err := eng.Cancel(resting.ID); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("Second cancel should be not found, got: %v", err)
	}

	filled, _ := submit(t, eng, "a", SideSell, 100, 1)
	submit(t, eng, "b", SideBuy, 100, 1)
	if _, err := eng.Cancel(filled.ID); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("Cancel of filled order should be not found, got: %v", err)
	}
}

func TestCancelWhere(t *testing.T) {
	_, eng := newTestMatcher()

	submit(t, eng, "my_strategy", SideBuy, 99, 1)
	submit(t, eng, "other", SideBuy, 98, 1)
	submit(t, eng, "my_strategy", SideSell, 105, 1)

	canceled := eng.CancelWhere(func(o Order) bool { return o.Source == "my_strategy" })
	if len(canceled) != 2 {
		t.Fatalf("Expected 2 canceled, got: %d", len(canceled))
	}
	if eng.RestingCount() != 1 {
		t.Errorf("Expected 1 resting order left, got: %d", eng.RestingCount())
	}
}

func TestSequenceIsMonotonicAcrossSymbols(t *testing.T) {
	m := NewMatcher([]string{"AAPL", "MSFT"})
	a := NewOrder("a", "", "x", "AAPL", SideBuy, 10, 1)
	b := NewOrder("b", "", "x", "MSFT", SideBuy, 10, 1)

	if _, err := m.MatchOrder(a); err != nil {
		t.Fatal(err)
	}
	if _, err := m.MatchOrder(b); err != nil {
		t.Fatal(err)
	}
	if b.Sequence <= a.Sequence {
		t.Errorf("Sequence must increase: %d then %d", a.Sequence, b.Sequence)
	}
	if got := m.Symbols(); len(got) != 2 || got[0] != "AAPL" {
		t.Errorf("Unexpected symbols: %v", got)
	}
}

func TestOrdersBySource(t *testing.T) {
	_, eng := newTestMatcher()

	submit(t, eng, "my_strategy", SideBuy, 99, 1)
	submit(t, eng, "other", SideBuy, 98, 1)
	submit(t, eng, "my_strategy", SideSell, 105, 2)

	mine := eng.OrdersBySource("my_strategy")
	if len(mine) != 2 {
		t.Fatalf("Expected 2 orders for my_strategy, got: %d", len(mine))
	}
	for _, o := range mine {
		if o.Source != "my_strategy" {
			t.Errorf("Unexpected source %q", o.Source)
		}
	}
	if got := eng.OrdersBySource("nobody"); len(got) != 0 {
		t.Errorf("Expected no orders, got: %d", len(got))
	}
}

func TestCheckFillLeavesTakerUntouched(t *testing.T) {
	taker := NewOrder("t", "", "x", "AAPL", SideBuy, 100, 5)
	maker := *NewOrder("m", "", "y", "AAPL", SideSell, 100, 3)

	if err := checkFill(taker, maker, 3); err != nil {
		t.Fatalf("Valid fill refused: %v", err)
	}
	for _, qty := range []int64{0, -1, 4, 6} {
		if err := checkFill(taker, maker, qty); !errors.Is(err, ErrInvariant) {
			t.Errorf("Fill of %d should violate the invariant, got: %v", qty, err)
		}
	}
	if taker.Remaining != 5 || taker.Status != StatusNew {
		t.Errorf("Taker mutated by a refused fill: remaining %d status %s", taker.Remaining, taker.Status)
	}
}
