package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the reconciliation engine.
type Metrics struct {
	CyclesTotal        prometheus.Counter
	CycleErrorsTotal   prometheus.Counter
	TransfersSeenTotal prometheus.Counter
	MatchedTotal       prometheus.Counter
	UnmatchedTotal     prometheus.Counter
	ExpiredTotal       prometheus.Counter
	FetchFailures      *prometheus.CounterVec
	PendingOrders      prometheus.Gauge
}

// New registers and returns the engine metrics on the given registerer.
// Passing nil uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		CyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "reconciliation_cycles_total",
			Help: "Completed reconciliation cycles.",
		}),
		CycleErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "reconciliation_cycle_errors_total",
			Help: "Cycles abandoned because of an unexpected error.",
		}),
		TransfersSeenTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "reconciliation_transfers_seen_total",
			Help: "New transfers evaluated after cursor and dedupe filtering.",
		}),
		MatchedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "reconciliation_matched_total",
			Help: "Transfers matched to a pending order.",
		}),
		UnmatchedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "reconciliation_unmatched_total",
			Help: "Transfers that matched no pending order.",
		}),
		ExpiredTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "reconciliation_orders_expired_total",
			Help: "Pending orders expired by the sweeper.",
		}),
		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reconciliation_fetch_failures_total",
			Help: "Explorer fetch failures by source.",
		}, []string{"source"}),
		PendingOrders: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reconciliation_pending_orders",
			Help: "Orders currently awaiting payment.",
		}),
	}
}
