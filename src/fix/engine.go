package fix

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fix-match-engine/src/control"
	"fix-match-engine/src/engine"
)

// SeedSource owns the synthetic depth placed by SeedDepth.
const SeedSource = "system"

// Listener receives execution reports after the generating operation has
// released its locks. It runs on the caller's goroutine.
type Listener func(ExecutionReport)

// Observer sees every report and trade in sequence order. Calls are
// serialized; an observer must not submit or cancel orders.
type Observer interface {
	ObserveReport(ExecutionReport)
	ObserveTrade(Trade)
}

// OrderView is the lifecycle state the FixEngine tracks for one order.
type OrderView struct {
	OrderID       string             `json:"order_id"`
	ClientOrderID string             `json:"client_order_id"`
	Source        string             `json:"source"`
	Symbol        string             `json:"symbol"`
	Side          engine.Side        `json:"side"`
	Price         decimal.Decimal    `json:"price"`
	Quantity      int64              `json:"quantity"`
	CumQty        int64              `json:"cum_qty"`
	LeavesQty     int64              `json:"leaves_qty"`
	Status        engine.OrderStatus `json:"status"`
	Timestamp     time.Time          `json:"timestamp"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

type ReportFilter struct {
	Symbol  string
	Source  string
	OrderID string
	Limit   int // most recent N, 0 for all
}

func (f ReportFilter) match(r ExecutionReport) bool {
	return (f.Symbol == "" || r.Symbol == f.Symbol) &&
		(f.Source == "" || r.Source == f.Source) &&
		(f.OrderID == "" || r.OrderID == f.OrderID)
}

// TradeFilter narrows the trade history. Zero values match everything.
type TradeFilter struct {
	Side     engine.Side
	Source   string // taker or maker
	MinPrice decimal.Decimal
	MaxPrice decimal.Decimal
	Limit    int
}

func (f TradeFilter) match(t Trade) bool {
	if f.Side.Valid() && t.Side != f.Side {
		return false
	}
	if f.Source != "" && t.TakerSource != f.Source && t.MakerSource != f.Source {
		return false
	}
	if !f.MinPrice.IsZero() && t.Price.LessThan(f.MinPrice) {
		return false
	}
	if !f.MaxPrice.IsZero() && t.Price.GreaterThan(f.MaxPrice) {
		return false
	}
	return true
}

type Stats struct {
	Symbols    int    `json:"symbols"`
	Orders     int    `json:"orders"`
	OpenOrders int    `json:"open_orders"`
	Reports    int    `json:"execution_reports"`
	Rejects    uint64 `json:"rejects"`
	Trades     uint64 `json:"trades"`
	Sessions   int    `json:"sessions"`

	BreakerTrips uint64 `json:"circuit_breaker_trips"`
}

type Option func(*FixEngine)

func WithLimits(l Limits) Option {
	return func(e *FixEngine) { e.limits = l }
}

func WithCodec(c PriceCodec) Option {
	return func(e *FixEngine) { e.codec = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *FixEngine) { e.log = l }
}

func WithObserver(o Observer) Option {
	return func(e *FixEngine) { e.observers = append(e.observers, o) }
}

func WithClock(now func() time.Time) Option {
	return func(e *FixEngine) { e.now = now }
}

// WithLatencyHook is called with the wall time of each submit and cancel.
func WithLatencyHook(fn func(op string, d time.Duration)) Option {
	return func(e *FixEngine) { e.latency = fn }
}

func WithHeartbeatInterval(d time.Duration) Option {
	return func(e *FixEngine) { e.heartbeat = d }
}

// WithCircuitBreaker counts gated submissions and their trades against b.
func WithCircuitBreaker(b *control.CircuitBreaker) Option {
	return func(e *FixEngine) { e.breaker = b }
}

// FixEngine adapts order intents to the matcher and keeps the execution
// report audit trail. Match and report generation for one symbol happen
// under that symbol's lock so the trail is in generation order.
type FixEngine struct {
	matcher   *engine.Matcher
	state     *control.TradingState
	codec     PriceCodec
	limits    Limits
	log       zerolog.Logger
	now       func() time.Time
	latency   func(string, time.Duration)
	heartbeat time.Duration
	observers []Observer
	breaker   *control.CircuitBreaker

	// pubMu orders commit and observer delivery together.
	pubMu sync.Mutex

	symMu   sync.Mutex
	symbols map[string]*sync.Mutex

	mu          sync.RWMutex
	orders      map[string]*OrderView
	clientIDs   map[string]string
	reports     []ExecutionReport
	reportSeq   uint64
	rejects     uint64
	trades      uint64
	listeners   map[string]map[uint64]Listener
	listenerSeq uint64
	sessions    map[string]*Session
}

func NewFixEngine(matcher *engine.Matcher, state *control.TradingState, opts ...Option) *FixEngine {
	e := &FixEngine{
		matcher:   matcher,
		state:     state,
		codec:     PriceCodec{Decimals: 2},
		limits:    DefaultLimits(),
		log:       zerolog.Nop(),
		now:       time.Now,
		heartbeat: DefaultHeartbeatInterval,
		symbols:   make(map[string]*sync.Mutex),
		orders:    make(map[string]*OrderView),
		clientIDs: make(map[string]string),
		listeners: make(map[string]map[uint64]Listener),
		sessions:  make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *FixEngine) Codec() PriceCodec {
	return e.codec
}

func (e *FixEngine) Limits() Limits {
	return e.limits
}

func (e *FixEngine) Symbols() []string {
	return e.matcher.Symbols()
}

func (e *FixEngine) symbolLock(symbol string) *sync.Mutex {
	e.symMu.Lock()
	defer e.symMu.Unlock()
	l, ok := e.symbols[symbol]
	if !ok {
		l = &sync.Mutex{}
		e.symbols[symbol] = l
	}
	return l
}

func clientKey(source, clOrdID string) string {
	return source + "\x00" + clOrdID
}

// SubmitOrder validates and matches a new order. The returned reports cover
// every transition the submission caused, maker fills included; a request
// that fails any check yields a single Rejected report.
func (e *FixEngine) SubmitOrder(req OrderRequest) []ExecutionReport {
	start := time.Now()
	defer e.observeLatency("submit", start)
	return e.submit(req, true)
}

func (e *FixEngine) submit(req OrderRequest, gated bool) []ExecutionReport {
	orderID := uuid.New().String()
	if req.ClientOrderID == "" {
		req.ClientOrderID = orderID
	}

	if gated && e.state != nil {
		if e.state.IsHalted() {
			return e.reject(orderID, req, &HaltedError{Reason: "new orders are not accepted"})
		}
		if !e.state.StrategyEnabled(req.Source) {
			return e.reject(orderID, req, &DisabledError{Source: req.Source})
		}
	}
	if gated && e.breaker != nil && !e.breaker.AllowOrder() {
		return e.reject(orderID, req, &HaltedError{Reason: "circuit breaker tripped"})
	}
	if err := e.limits.Validate(req); err != nil {
		return e.reject(orderID, req, err)
	}
	ticks, err := e.codec.ToTicks(req.Price)
	if err != nil {
		return e.reject(orderID, req, err)
	}
	eng, err := e.matcher.Engine(req.Symbol)
	if err != nil {
		return e.reject(orderID, req, &ValidationError{Field: "symbol", Reason: fmt.Sprintf("%q is not traded", req.Symbol)})
	}
	if !e.reserveClientID(req.Source, req.ClientOrderID, orderID) {
		return e.reject(orderID, req, &ValidationError{Field: "client_order_id", Reason: fmt.Sprintf("%q is already live", req.ClientOrderID)})
	}

	order := engine.NewOrder(orderID, req.ClientOrderID, req.Source, req.Symbol, req.Side, ticks, req.Quantity)

	lock := e.symbolLock(req.Symbol)
	lock.Lock()
	result, err := eng.Submit(order)
	if err != nil {
		lock.Unlock()
		e.log.Error().Err(err).
			Str("order_id", orderID).
			Str("symbol", req.Symbol).
			Msg("Matching failed")
		return e.reject(orderID, req, err)
	}
	reports := e.matchReports(result)
	trades := make([]Trade, 0, len(result.Fills))
	for _, f := range result.Fills {
		trades = append(trades, e.codec.trade(f.Trade))
	}
	reports = e.publish(reports, trades, true)
	lock.Unlock()

	if len(trades) > 0 {
		e.log.Debug().
			Str("order_id", orderID).
			Str("symbol", req.Symbol).
			Int("trades", len(trades)).
			Int64("filled", result.FilledQuantity()).
			Msg("Order matched")
		if gated && e.breaker != nil {
			e.breaker.RecordTrades(len(trades))
		}
	}
	e.notify(reports)
	return reports
}

// matchReports builds the New report for the taker followed by a taker and
// maker Trade report per fill.
func (e *FixEngine) matchReports(result *engine.MatchResult) []ExecutionReport {
	taker := result.Order
	now := e.now()
	reports := make([]ExecutionReport, 0, 1+2*len(result.Fills))
	reports = append(reports, e.orderReport(taker, ExecTypeNew, engine.StatusNew, 0, taker.Quantity, now))

	var cum int64
	for _, f := range result.Fills {
		cum += f.Trade.Quantity
		status := engine.StatusPartiallyFilled
		if cum == taker.Quantity {
			status = engine.StatusFilled
		}
		tr := e.orderReport(taker, ExecTypeTrade, status, cum, taker.Quantity-cum, f.Trade.Timestamp)
		tr.LastQty = f.Trade.Quantity
		tr.LastPx = e.codec.FromTicks(f.Trade.Price)

		mk := e.orderReport(f.Maker, ExecTypeTrade, f.Maker.Status, f.Maker.Filled(), f.Maker.Remaining, f.Trade.Timestamp)
		mk.LastQty = f.Trade.Quantity
		mk.LastPx = tr.LastPx

		reports = append(reports, tr, mk)
	}
	return reports
}

func (e *FixEngine) orderReport(o engine.Order, execType ExecType, status engine.OrderStatus, cum, leaves int64, at time.Time) ExecutionReport {
	return ExecutionReport{
		ExecID:        uuid.New().String(),
		OrderID:       o.ID,
		ClientOrderID: o.ClientOrderID,
		Source:        o.Source,
		Symbol:        o.Symbol,
		Side:          o.Side,
		ExecType:      execType,
		OrdStatus:     OrdStatusFor(status),
		Price:         e.codec.FromTicks(o.Price),
		Quantity:      o.Quantity,
		CumQty:        cum,
		LeavesQty:     leaves,
		Timestamp:     at,
	}
}

func (e *FixEngine) reject(orderID string, req OrderRequest, cause error) []ExecutionReport {
	r := ExecutionReport{
		ExecID:        uuid.New().String(),
		OrderID:       orderID,
		ClientOrderID: req.ClientOrderID,
		Source:        req.Source,
		Symbol:        req.Symbol,
		Side:          req.Side,
		ExecType:      ExecTypeRejected,
		OrdStatus:     OrdStatusRejected,
		Price:         req.Price,
		Quantity:      req.Quantity,
		RejectReason:  ReasonFor(cause),
		Text:          cause.Error(),
		Timestamp:     e.now(),
	}
	e.log.Warn().
		Str("source", req.Source).
		Str("symbol", req.Symbol).
		Str("reason", string(r.RejectReason)).
		Err(cause).
		Msg("Order rejected")

	reports := e.publish([]ExecutionReport{r}, nil, true)
	e.notify(reports)
	return reports
}

// CancelOrder removes a resting order. Unknown and already terminal orders
// yield a Rejected report carrying the order's current status.
func (e *FixEngine) CancelOrder(req CancelRequest) ExecutionReport {
	start := time.Now()
	defer e.observeLatency("cancel", start)

	orderID := req.OrderID
	e.mu.RLock()
	if orderID == "" {
		orderID = e.clientIDs[clientKey(req.Source, req.OrigClientOrderID)]
	}
	view, known := e.lookup(orderID)
	e.mu.RUnlock()

	if !known {
		id := orderID
		if id == "" {
			id = req.OrigClientOrderID
		}
		return e.cancelReject(req, OrderView{OrderID: id, Symbol: req.Symbol, Source: req.Source, Status: engine.StatusRejected}, &NotFoundError{OrderID: id})
	}

	eng, err := e.matcher.Engine(view.Symbol)
	if err != nil {
		return e.cancelReject(req, view, err)
	}

	lock := e.symbolLock(view.Symbol)
	lock.Lock()
	canceled, err := eng.Cancel(orderID)
	if err != nil {
		lock.Unlock()
		e.mu.RLock()
		view, _ = e.lookup(orderID)
		e.mu.RUnlock()
		if view.Status.IsTerminal() {
			err = &StateError{OrderID: orderID, From: view.Status, To: engine.StatusCanceled}
		} else {
			err = &NotFoundError{OrderID: orderID}
		}
		return e.cancelReject(req, view, err)
	}
	r := e.orderReport(canceled, ExecTypeCanceled, engine.StatusCanceled, canceled.Filled(), 0, e.now())
	reports := e.publish([]ExecutionReport{r}, nil, true)
	lock.Unlock()

	e.log.Info().
		Str("order_id", orderID).
		Str("symbol", canceled.Symbol).
		Str("source", canceled.Source).
		Msg("Order canceled")
	e.notify(reports)
	return reports[0]
}

func (e *FixEngine) cancelReject(req CancelRequest, view OrderView, cause error) ExecutionReport {
	clOrdID := req.ClientOrderID
	if clOrdID == "" {
		clOrdID = view.ClientOrderID
	}
	source := view.Source
	if source == "" {
		source = req.Source
	}
	r := ExecutionReport{
		ExecID:        uuid.New().String(),
		OrderID:       view.OrderID,
		ClientOrderID: clOrdID,
		Source:        source,
		Symbol:        view.Symbol,
		Side:          view.Side,
		ExecType:      ExecTypeRejected,
		OrdStatus:     OrdStatusFor(view.Status),
		Price:         view.Price,
		Quantity:      view.Quantity,
		CumQty:        view.CumQty,
		LeavesQty:     view.LeavesQty,
		RejectReason:  ReasonFor(cause),
		Text:          cause.Error(),
		Timestamp:     e.now(),
	}
	e.log.Warn().
		Str("order_id", view.OrderID).
		Str("reason", string(r.RejectReason)).
		Err(cause).
		Msg("Cancel rejected")

	reports := e.publish([]ExecutionReport{r}, nil, false)
	e.notify(reports)
	return reports[0]
}

// CancelAll cancels every resting order of source on symbol. An empty symbol
// means every symbol; an empty source means every participant.
func (e *FixEngine) CancelAll(symbol, source string) ([]ExecutionReport, error) {
	return e.sweep(symbol, "cancel all", func(eng *engine.MatchingEngine) []engine.Order {
		return eng.CancelWhere(func(o engine.Order) bool {
			return source == "" || o.Source == source
		})
	})
}

// ExpireOrders cancels orders that have rested longer than maxAge.
func (e *FixEngine) ExpireOrders(symbol string, maxAge time.Duration) ([]ExecutionReport, error) {
	return e.sweep(symbol, "expired", func(eng *engine.MatchingEngine) []engine.Order {
		return eng.Expire(maxAge)
	})
}

func (e *FixEngine) sweep(symbol, text string, remove func(*engine.MatchingEngine) []engine.Order) ([]ExecutionReport, error) {
	symbols := []string{symbol}
	if symbol == "" {
		symbols = e.matcher.Symbols()
	}

	var all []ExecutionReport
	for _, s := range symbols {
		eng, err := e.matcher.Engine(s)
		if err != nil {
			return all, err
		}
		lock := e.symbolLock(s)
		lock.Lock()
		removed := remove(eng)
		reports := make([]ExecutionReport, 0, len(removed))
		now := e.now()
		for _, o := range removed {
			r := e.orderReport(o, ExecTypeCanceled, engine.StatusCanceled, o.Filled(), 0, now)
			r.Text = text
			reports = append(reports, r)
		}
		reports = e.publish(reports, nil, true)
		lock.Unlock()

		if len(reports) > 0 {
			e.log.Info().
				Str("symbol", s).
				Str("reason", text).
				Int("orders", len(reports)).
				Msg("Orders removed")
		}
		e.notify(reports)
		all = append(all, reports...)
	}
	return all, nil
}

// SeedDepth places synthetic resting liquidity on both sides of mid with
// geometrically decaying size. The first level sits one percent from mid.
func (e *FixEngine) SeedDepth(symbol string, mid decimal.Decimal, levels int, baseQty int64) ([]ExecutionReport, error) {
	if _, err := e.matcher.Engine(symbol); err != nil {
		return nil, err
	}
	if !mid.IsPositive() {
		return nil, &ValidationError{Field: "price", Reason: "seed mid must be positive"}
	}

	step := decimal.RequireFromString("0.005")
	decay := decimal.RequireFromString("0.8")
	one := decimal.NewFromInt(1)

	var all []ExecutionReport
	for i := 2; i < levels+2; i++ {
		n := decimal.NewFromInt(int64(i))
		qty := decay.Pow(n).Mul(decimal.NewFromInt(baseQty)).IntPart()
		if qty < 1 {
			break
		}
		offset := step.Mul(n)
		bid := e.codec.Round(mid.Mul(one.Sub(offset)))
		ask := e.codec.Round(mid.Mul(one.Add(offset)))

		all = append(all, e.submit(OrderRequest{
			Source:        SeedSource,
			Symbol:        symbol,
			Side:          engine.SideBuy,
			Price:         bid,
			Quantity:      qty,
			ClientOrderID: fmt.Sprintf("SEED-BID-%d-%s", i, uuid.NewString()[:8]),
		}, false)...)
		all = append(all, e.submit(OrderRequest{
			Source:        SeedSource,
			Symbol:        symbol,
			Side:          engine.SideSell,
			Price:         ask,
			Quantity:      qty,
			ClientOrderID: fmt.Sprintf("SEED-ASK-%d-%s", i, uuid.NewString()[:8]),
		}, false)...)
	}
	return all, nil
}

// publish commits reports and hands them with their trades to every
// observer before the next commit can take a sequence number.
func (e *FixEngine) publish(reports []ExecutionReport, trades []Trade, transitions bool) []ExecutionReport {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()
	reports = e.commit(reports, len(trades), transitions)
	if len(reports) == 0 {
		return reports
	}
	for _, o := range e.observers {
		for _, t := range trades {
			o.ObserveTrade(t)
		}
		for _, r := range reports {
			o.ObserveReport(r)
		}
	}
	return reports
}

// commit assigns sequence numbers and appends to the audit trail. With
// transitions set it also applies each report to the order's lifecycle;
// rejected cancels leave the order untouched.
func (e *FixEngine) commit(reports []ExecutionReport, trades int, transitions bool) []ExecutionReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.trades += uint64(trades)
	for i := range reports {
		e.reportSeq++
		reports[i].Sequence = e.reportSeq
		if reports[i].ExecType == ExecTypeRejected {
			e.rejects++
		}
		if transitions {
			if err := e.apply(reports[i]); err != nil {
				e.log.Error().Err(err).Msg("Lifecycle violation")
			}
		}
		e.reports = append(e.reports, reports[i])
	}
	return reports
}

func (e *FixEngine) apply(r ExecutionReport) error {
	next := r.OrdStatus.OrderStatus()
	view, ok := e.orders[r.OrderID]
	if !ok {
		if r.ExecType != ExecTypeNew && r.ExecType != ExecTypeRejected {
			return &NotFoundError{OrderID: r.OrderID}
		}
		e.orders[r.OrderID] = &OrderView{
			OrderID:       r.OrderID,
			ClientOrderID: r.ClientOrderID,
			Source:        r.Source,
			Symbol:        r.Symbol,
			Side:          r.Side,
			Price:         r.Price,
			Quantity:      r.Quantity,
			CumQty:        r.CumQty,
			LeavesQty:     r.LeavesQty,
			Status:        next,
			Timestamp:     r.Timestamp,
			UpdatedAt:     r.Timestamp,
		}
		if r.ExecType == ExecTypeNew && r.ClientOrderID != "" {
			e.clientIDs[clientKey(r.Source, r.ClientOrderID)] = r.OrderID
		}
		return nil
	}
	if view.Status.IsTerminal() {
		return &StateError{OrderID: r.OrderID, From: view.Status, To: next}
	}
	view.Status = next
	view.CumQty = r.CumQty
	view.LeavesQty = r.LeavesQty
	view.UpdatedAt = r.Timestamp
	return nil
}

// lookup requires e.mu held.
func (e *FixEngine) lookup(orderID string) (OrderView, bool) {
	if orderID == "" {
		return OrderView{}, false
	}
	v, ok := e.orders[orderID]
	if !ok {
		return OrderView{}, false
	}
	return *v, true
}

// reserveClientID claims (source, clOrdID) for orderID unless a live order
// holds it. A claim whose order has not been committed yet counts as live.
func (e *FixEngine) reserveClientID(source, clOrdID, orderID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := clientKey(source, clOrdID)
	if id, ok := e.clientIDs[key]; ok {
		v, known := e.orders[id]
		if !known || !v.Status.IsTerminal() {
			return false
		}
	}
	e.clientIDs[key] = orderID
	return true
}

// notify runs listeners outside every engine lock.
func (e *FixEngine) notify(reports []ExecutionReport) {
	if len(reports) == 0 {
		return
	}

	e.mu.RLock()
	if len(e.listeners) == 0 {
		e.mu.RUnlock()
		return
	}
	type delivery struct {
		fn Listener
		r  ExecutionReport
	}
	var out []delivery
	for _, r := range reports {
		for _, fn := range e.listeners[r.Source] {
			out = append(out, delivery{fn, r})
		}
		for _, fn := range e.listeners[""] {
			out = append(out, delivery{fn, r})
		}
	}
	e.mu.RUnlock()

	for _, d := range out {
		d.fn(d.r)
	}
}

// Subscribe registers fn for every report addressed to source, or for all
// reports when source is empty. The returned func unsubscribes.
func (e *FixEngine) Subscribe(source string, fn Listener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listenerSeq++
	id := e.listenerSeq
	if e.listeners[source] == nil {
		e.listeners[source] = make(map[uint64]Listener)
	}
	e.listeners[source][id] = fn

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners[source], id)
		if len(e.listeners[source]) == 0 {
			delete(e.listeners, source)
		}
	}
}

// Reports returns the audit trail in generation order.
func (e *FixEngine) Reports(filter ReportFilter) []ExecutionReport {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]ExecutionReport, 0)
	for _, r := range e.reports {
		if filter.match(r) {
			out = append(out, r)
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out
}

func (e *FixEngine) Trades(symbol string, filter TradeFilter) ([]Trade, error) {
	eng, err := e.matcher.Engine(symbol)
	if err != nil {
		return nil, err
	}
	raw := eng.Trades()
	out := make([]Trade, 0, len(raw))
	for _, t := range raw {
		tr := e.codec.trade(t)
		if filter.match(tr) {
			out = append(out, tr)
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out, nil
}

func (e *FixEngine) Order(orderID string) (OrderView, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lookup(orderID)
}

func (e *FixEngine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	open := 0
	for _, v := range e.orders {
		if !v.Status.IsTerminal() {
			open++
		}
	}
	stats := Stats{
		Symbols:    len(e.matcher.Symbols()),
		Orders:     len(e.orders),
		OpenOrders: open,
		Reports:    len(e.reports),
		Rejects:    e.rejects,
		Trades:     e.trades,
		Sessions:   len(e.sessions),
	}
	if e.breaker != nil {
		stats.BreakerTrips = e.breaker.Trips()
	}
	return stats
}

func (e *FixEngine) observeLatency(op string, start time.Time) {
	if e.latency != nil {
		e.latency(op, time.Since(start))
	}
}

// IsRejected reports whether r rejected a request for reason.
func IsRejected(r ExecutionReport, reason RejectReason) bool {
	return r.ExecType == ExecTypeRejected && r.RejectReason == reason
}
