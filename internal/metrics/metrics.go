package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	DepositsInitiated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deposits",
			Name:      "initiated_total",
			Help:      "Deposit initiation attempts by method and result.",
		},
		[]string{"method", "result"}, // result: ok/validation/request_failed
	)

	StatusPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deposits",
			Name:      "status_polls_total",
			Help:      "Status queries issued by pollers and the reconciler.",
		},
		[]string{"source", "result"}, // result: pending/success/failed/error
	)

	Outcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deposits",
			Name:      "outcomes_total",
			Help:      "Terminal outcomes of deposit dialogs.",
		},
		[]string{"outcome"},
	)

	ActivePollers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "deposits",
			Name:      "active_pollers",
			Help:      "Polling sessions currently running.",
		},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "deposits",
			Name:      "circuitbreaker_state",
			Help:      "Circuit breaker state of the payment API (0/1).",
		},
		[]string{"name", "state"}, // state: closed/open/half_open
	)
)

var registerOnce sync.Once

func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(DepositsInitiated, StatusPolls, Outcomes, ActivePollers, BreakerState)
	})
}
