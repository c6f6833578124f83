package funnel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	assignmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funnel_assignments_total",
		Help: "Visitor resolutions by outcome (new, existing, conflict).",
	}, []string{"outcome"})

	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funnel_events_total",
		Help: "Event recording attempts by type and outcome (stored, duplicate, rejected).",
	}, []string{"type", "outcome"})
)
