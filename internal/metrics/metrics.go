package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PaymentConfirmations counts settled payment confirmations by outcome
	PaymentConfirmations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "premium_payment_confirmations_total",
		Help: "Payment confirmations settled, by outcome",
	}, []string{"outcome"})

	// Refunds counts refund attempts by outcome
	Refunds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "premium_refunds_total",
		Help: "Refund attempts, by outcome",
	}, []string{"outcome"})

	// ReconcileSweeps counts reconciliation sweep executions
	ReconcileSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "premium_reconcile_sweeps_total",
		Help: "Reconciliation sweeps executed",
	})

	// ReconcileItems counts per-item reconciliation outcomes
	ReconcileItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "premium_reconcile_items_total",
		Help: "Reconciliation items processed, by kind and outcome",
	}, []string{"kind", "outcome"})

	// SweepDuration observes how long a full sweep takes
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "premium_reconcile_sweep_duration_seconds",
		Help:    "Duration of reconciliation sweeps",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
	})

	// ProviderRequests counts outbound provider calls by operation and outcome
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "premium_provider_requests_total",
		Help: "Payment provider calls, by operation and outcome",
	}, []string{"operation", "outcome"})
)
