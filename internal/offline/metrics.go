package offline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "famgate",
		Subsystem: "offline",
		Name:      "queued_total",
		Help:      "Operations accepted into the offline queue.",
	})

	replayedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "famgate",
		Subsystem: "offline",
		Name:      "replayed_total",
		Help:      "Queued operations completed successfully on drain.",
	})

	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "famgate",
		Subsystem: "offline",
		Name:      "dropped_total",
		Help:      "Queued operations dropped after exhausting retries.",
	})

	expiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "famgate",
		Subsystem: "offline",
		Name:      "expired_total",
		Help:      "Queued operations rejected by the queued-time ceiling.",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "famgate",
		Subsystem: "offline",
		Name:      "queue_depth",
		Help:      "Operations currently waiting for replay.",
	})
)
