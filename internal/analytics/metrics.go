package analytics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "analytics_query_duration_seconds",
	Help:    "Time spent loading and aggregating campaign analytics.",
	Buckets: prometheus.DefBuckets,
}, []string{"query"})
