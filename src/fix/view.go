package fix

import (
	"github.com/shopspring/decimal"

	"fix-match-engine/src/engine"
)

type SourceQuantity struct {
	Source   string `json:"source"`
	Quantity int64  `json:"qty"`
}

type DepthLevel struct {
	Price      decimal.Decimal  `json:"price"`
	Quantity   int64            `json:"qty"`
	Cumulative int64            `json:"cumulative_qty"`
	Orders     int              `json:"orders"`
	Sources    []SourceQuantity `json:"sources"`
}

type Depth struct {
	Symbol string       `json:"symbol"`
	Bids   []DepthLevel `json:"bids"`
	Asks   []DepthLevel `json:"asks"`
}

// Quote is a top-of-book summary. Prices are zero when the matching Has flag
// is false.
type Quote struct {
	Symbol    string          `json:"symbol"`
	BestBid   decimal.Decimal `json:"best_bid"`
	BidQty    int64           `json:"bid_qty"`
	HasBid    bool            `json:"has_bid"`
	BestAsk   decimal.Decimal `json:"best_ask"`
	AskQty    int64           `json:"ask_qty"`
	HasAsk    bool            `json:"has_ask"`
	Mid       decimal.Decimal `json:"mid"`
	HasMid    bool            `json:"has_mid"`
	LastPrice decimal.Decimal `json:"last_price"`
	HasLast   bool            `json:"has_last"`
	BidLevels int             `json:"bid_levels"`
	AskLevels int             `json:"ask_levels"`
	BidDepth  int64           `json:"bid_depth"`
	AskDepth  int64           `json:"ask_depth"`
}

func (e *FixEngine) Depth(symbol string, levels int) (Depth, error) {
	eng, err := e.matcher.Engine(symbol)
	if err != nil {
		return Depth{}, err
	}
	snap := eng.Depth(levels)
	return Depth{
		Symbol: symbol,
		Bids:   e.depthLevels(snap.Bids),
		Asks:   e.depthLevels(snap.Asks),
	}, nil
}

func (e *FixEngine) depthLevels(in []engine.DepthLevel) []DepthLevel {
	out := make([]DepthLevel, 0, len(in))
	for _, l := range in {
		sources := make([]SourceQuantity, 0, len(l.Sources))
		for _, s := range l.Sources {
			sources = append(sources, SourceQuantity{Source: s.Source, Quantity: s.Quantity})
		}
		out = append(out, DepthLevel{
			Price:      e.codec.FromTicks(l.Price),
			Quantity:   l.Quantity,
			Cumulative: l.Cumulative,
			Orders:     l.Orders,
			Sources:    sources,
		})
	}
	return out
}

func (e *FixEngine) Quote(symbol string) (Quote, error) {
	eng, err := e.matcher.Engine(symbol)
	if err != nil {
		return Quote{}, err
	}
	top := eng.Top()
	q := Quote{
		Symbol:    symbol,
		HasBid:    top.HasBid,
		BidQty:    top.Bid.Quantity,
		HasAsk:    top.HasAsk,
		AskQty:    top.Ask.Quantity,
		HasLast:   top.HasLast,
		BidLevels: top.BidLevels,
		AskLevels: top.AskLevels,
		BidDepth:  top.BidQty,
		AskDepth:  top.AskQty,
	}
	if top.HasBid {
		q.BestBid = e.codec.FromTicks(top.Bid.Price)
	}
	if top.HasAsk {
		q.BestAsk = e.codec.FromTicks(top.Ask.Price)
	}
	if top.HasBid && top.HasAsk {
		q.Mid = q.BestBid.Add(q.BestAsk).Div(decimal.NewFromInt(2))
		q.HasMid = true
	}
	if top.HasLast {
		q.LastPrice = e.codec.FromTicks(top.Last)
	}
	return q, nil
}

// RecentPrices returns up to window of the latest trade prices, oldest first.
func (e *FixEngine) RecentPrices(symbol string, window int) ([]decimal.Decimal, error) {
	eng, err := e.matcher.Engine(symbol)
	if err != nil {
		return nil, err
	}
	ticks := eng.RecentPrices(window)
	out := make([]decimal.Decimal, len(ticks))
	for i, t := range ticks {
		out[i] = e.codec.FromTicks(t)
	}
	return out, nil
}
