package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fix-match-engine/src/control"
	"fix-match-engine/src/fix"
)

const namespace = "fixmatch"

// Collector exports exchange activity on its own registry. It is attached
// to the FixEngine as an Observer and latency hook.
type Collector struct {
	registry *prometheus.Registry

	reports     *prometheus.CounterVec
	rejects     *prometheus.CounterVec
	trades      *prometheus.CounterVec
	tradedQty   *prometheus.CounterVec
	lastPrice   *prometheus.GaugeVec
	openOrders  *prometheus.GaugeVec
	latency     *prometheus.HistogramVec
	halted      prometheus.Gauge
	disabledStr *prometheus.GaugeVec
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "execution_reports_total",
			Help:      "Execution reports generated, by symbol and exec type.",
		}, []string{"symbol", "exec_type"}),
		rejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejects_total",
			Help:      "Rejected requests by symbol and reason.",
		}, []string{"symbol", "reason"}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Trades executed.",
		}, []string{"symbol"}),
		tradedQty: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traded_quantity_total",
			Help:      "Quantity executed.",
		}, []string{"symbol"}),
		lastPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_trade_price",
			Help:      "Price of the most recent trade.",
		}, []string{"symbol"}),
		openOrders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_orders",
			Help:      "Orders accepted and not yet filled or canceled.",
		}, []string{"symbol"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Time spent in FixEngine operations.",
			Buckets:   prometheus.ExponentialBuckets(0.000005, 4, 10),
		}, []string{"op"}),
		halted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "exchange_halted",
			Help:      "1 while the exchange rejects new orders.",
		}),
		disabledStr: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "strategy_disabled",
			Help:      "1 for each strategy source currently disabled.",
		}, []string{"source"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.reports, c.rejects, c.trades, c.tradedQty, c.lastPrice,
		c.openOrders, c.latency, c.halted, c.disabledStr,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) ObserveReport(r fix.ExecutionReport) {
	c.reports.WithLabelValues(r.Symbol, r.ExecType.String()).Inc()

	switch r.ExecType {
	case fix.ExecTypeNew:
		c.openOrders.WithLabelValues(r.Symbol).Inc()
	case fix.ExecTypeTrade:
		if r.OrdStatus == fix.OrdStatusFilled {
			c.openOrders.WithLabelValues(r.Symbol).Dec()
		}
	case fix.ExecTypeCanceled:
		c.openOrders.WithLabelValues(r.Symbol).Dec()
	case fix.ExecTypeRejected:
		c.rejects.WithLabelValues(r.Symbol, string(r.RejectReason)).Inc()
	}
}

func (c *Collector) ObserveTrade(t fix.Trade) {
	c.trades.WithLabelValues(t.Symbol).Inc()
	c.tradedQty.WithLabelValues(t.Symbol).Add(float64(t.Quantity))
	c.lastPrice.WithLabelValues(t.Symbol).Set(t.Price.InexactFloat64())
}

// ObserveLatency matches fix.WithLatencyHook.
func (c *Collector) ObserveLatency(op string, d time.Duration) {
	c.latency.WithLabelValues(op).Observe(d.Seconds())
}

// Track mirrors the trading switches into gauges.
func (c *Collector) Track(state *control.TradingState) {
	apply := func(s control.Snapshot) {
		if s.ExchangeHalted {
			c.halted.Set(1)
		} else {
			c.halted.Set(0)
		}
		c.disabledStr.Reset()
		for source, off := range s.StrategyDisabled {
			if off {
				c.disabledStr.WithLabelValues(source).Set(1)
			}
		}
	}
	apply(state.Snapshot())
	state.OnChange(apply)
}
