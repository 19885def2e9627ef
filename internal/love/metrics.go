package love

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "valentine",
		Name:      "pages_published_total",
		Help:      "Love pages persisted after a verified payment",
	})

	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "valentine",
		Name:      "payment_verifications_total",
		Help:      "Payment signature checks by result",
	}, []string{"result"})

	slugCollisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "valentine",
		Name:      "slug_collisions_total",
		Help:      "Slug candidates rejected because they were already taken",
	})

	persistenceFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "valentine",
		Name:      "paid_persistence_failures_total",
		Help:      "Verified payments whose page could not be stored and need reconciliation",
	})
)
