package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the hub's Prometheus collectors.
type Metrics struct {
	Ticks         prometheus.Counter
	TickDuration  prometheus.Histogram
	Orders        *prometheus.CounterVec // side, result
	Exits         *prometheus.CounterVec // reason
	RiskDenials   *prometheus.CounterVec // policy reason
	ScoringErrors prometheus.Counter
	FillMismatch  prometheus.Counter
	Panics        prometheus.Counter
	Equity        prometheus.Gauge
	Cash          prometheus.Gauge
	Exposure      prometheus.Gauge
	DayPnLPct     prometheus.Gauge
	OpenPositions prometheus.Gauge
	RealizedPnL   prometheus.Gauge
}

// NewMetrics registers the collectors with reg. A nil reg leaves them
// unregistered, which tests use to avoid global state.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	const ns, sub = "daytrade", "hub"

	return &Metrics{
		Ticks: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "ticks_total",
			Help: "Ticks processed.",
		}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: sub, Name: "tick_duration_seconds",
			Help:    "Time to process one tick.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		Orders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "orders_total",
			Help: "Orders routed by side and result.",
		}, []string{"side", "result"}),
		Exits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "exits_total",
			Help: "Confirmed exits by reason.",
		}, []string{"reason"}),
		RiskDenials: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "risk_denials_total",
			Help: "Entries denied by the risk gate, by first reason.",
		}, []string{"reason"}),
		ScoringErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "scoring_errors_total",
			Help: "Scorer failures mapped to a neutral score.",
		}),
		FillMismatch: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "fill_mismatch_total",
			Help: "Fills confirmed at a different quantity or price.",
		}),
		Panics: f.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "symbol_panics_total",
			Help: "Recovered panics while processing a symbol.",
		}),
		Equity: f.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "equity",
			Help: "Cash plus held positions at last price.",
		}),
		Cash: f.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "cash",
			Help: "Uninvested cash.",
		}),
		Exposure: f.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "exposure",
			Help: "Market value of held positions.",
		}),
		DayPnLPct: f.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "day_pnl_pct",
			Help: "Equity change since the start of the trading day, in percent.",
		}),
		OpenPositions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "open_positions",
			Help: "Symbols currently held.",
		}),
		RealizedPnL: f.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "realized_pnl",
			Help: "Realized profit and loss this session.",
		}),
	}
}
