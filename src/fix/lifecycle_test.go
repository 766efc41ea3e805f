package fix

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"pgregory.net/rapid"

	"fix-match-engine/src/control"
	"fix-match-engine/src/engine"
)

var allowedNext = map[OrdStatus][]OrdStatus{
	OrdStatusNew:             {OrdStatusPartiallyFilled, OrdStatusFilled, OrdStatusCanceled},
	OrdStatusPartiallyFilled: {OrdStatusPartiallyFilled, OrdStatusFilled, OrdStatusCanceled},
}

func allowed(from, to OrdStatus) bool {
	for _, s := range allowedNext[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Every order walks New -> PartiallyFilled* -> Filled|Canceled, or is
// Rejected outright, and nothing follows a terminal state except rejected
// requests that leave it unchanged.
func TestProperty_OrderLifecycle(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		fe := NewFixEngine(engine.NewMatcher([]string{"AAPL"}), control.NewTradingState(zerolog.Nop()))
		var ids []string

		steps := rapid.IntRange(1, 80).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if len(ids) > 0 && rapid.Bool().Draw(t, fmt.Sprintf("cancel-%d", i)) {
				id := rapid.SampledFrom(ids).Draw(t, fmt.Sprintf("victim-%d", i))
				fe.CancelOrder(CancelRequest{OrderID: id})
				continue
			}
			side := rapid.SampledFrom([]engine.Side{engine.SideBuy, engine.SideSell}).Draw(t, fmt.Sprintf("side-%d", i))
			price := rapid.IntRange(95, 105).Draw(t, fmt.Sprintf("px-%d", i))
			qty := rapid.Int64Range(0, 12).Draw(t, fmt.Sprintf("qty-%d", i))
			reports := fe.SubmitOrder(limit("p", side, fmt.Sprint(price), qty))
			ids = append(ids, reports[0].OrderID)
		}

		last := make(map[string]ExecutionReport)
		for _, r := range fe.Reports(ReportFilter{}) {
			prev, seen := last[r.OrderID]
			if !seen {
				if r.ExecType != ExecTypeNew && r.ExecType != ExecTypeRejected {
					t.Fatalf("order %s starts with %s", r.OrderID, r.ExecType)
				}
				last[r.OrderID] = r
				continue
			}
			if r.ExecType == ExecTypeRejected {
				if r.OrdStatus != prev.OrdStatus {
					t.Fatalf("cancel reject for %s reports %s, order is %s", r.OrderID, r.OrdStatus, prev.OrdStatus)
				}
				continue
			}
			if !allowed(prev.OrdStatus, r.OrdStatus) {
				t.Fatalf("order %s moved %s -> %s", r.OrderID, prev.OrdStatus, r.OrdStatus)
			}
			if r.CumQty < prev.CumQty || r.LeavesQty > prev.LeavesQty {
				t.Fatalf("order %s quantities went backwards: %+v -> %+v", r.OrderID, prev, r)
			}
			if r.ExecType == ExecTypeTrade && r.CumQty+r.LeavesQty != r.Quantity {
				t.Fatalf("order %s cum %d + leaves %d != qty %d", r.OrderID, r.CumQty, r.LeavesQty, r.Quantity)
			}
			last[r.OrderID] = r
		}

		for id, r := range last {
			view, ok := fe.Order(id)
			if !ok {
				t.Fatalf("order %s has reports but no state", id)
			}
			if OrdStatusFor(view.Status) != r.OrdStatus {
				t.Fatalf("order %s state %s, last report %s", id, view.Status, r.OrdStatus)
			}
		}
	})
}
