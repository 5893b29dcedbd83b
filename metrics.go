package famgate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "famgate",
			Name:      "requests_created_total",
			Help:      "Child requests accepted by the SDK.",
		},
		[]string{"kind"},
	)

	requestDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "famgate",
			Name:      "request_decisions_total",
			Help:      "Parent decisions recorded on requests.",
		},
		[]string{"decision"},
	)

	requestsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "famgate",
			Name:      "requests_expired_total",
			Help:      "Pending requests moved to expired by the sweep.",
		},
	)
)
