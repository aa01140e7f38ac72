package sql

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nostrsync/negsync/metrics"
)

const namespace = "database"

type histogram interface {
	WithLabelValues(lvs ...string) prometheus.Observer
}

// queryDuration in nanoseconds.
var queryDuration = metrics.NewHistogramWithBuckets(
	"query_duration",
	namespace,
	"Duration of the query in nanoseconds",
	[]string{"query"},
	prometheus.ExponentialBuckets(100_000, 2, 20),
)

var connWaitLatency = metrics.NewHistogramWithBuckets(
	"conn_wait_latency",
	namespace,
	"Time waited for a pooled connection in seconds",
	[]string{},
	prometheus.ExponentialBuckets(0.0001, 2, 16),
).WithLabelValues()
