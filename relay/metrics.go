package relay

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nostrsync/negsync/metrics"
)

const (
	subsystem = "relay"
	outcome   = "outcome"
	direction = "direction"
)

var (
	sessions = metrics.NewCounter(
		"sessions",
		subsystem,
		"Number of finished sync sessions",
		[]string{outcome})
	sessionsComplete = sessions.WithLabelValues("complete")
	sessionsFailed   = sessions.WithLabelValues("failed")

	sessionRounds = metrics.NewHistogramWithBuckets(
		"session_rounds",
		subsystem,
		"Number of NEG-MSG rounds per successful sync session",
		[]string{},
		prometheus.LinearBuckets(1, 1, 10),
	).WithLabelValues()

	sessionDuration = metrics.NewHistogramWithBuckets(
		"session_duration_seconds",
		subsystem,
		"Duration of successful sync sessions",
		[]string{},
		prometheus.ExponentialBuckets(0.01, 2, 12),
	).WithLabelValues()

	needItems = metrics.NewSimpleCounter(
		"need_items",
		subsystem,
		"Total number of IDs found to be missing locally")

	haveItems = metrics.NewSimpleCounter(
		"have_items",
		subsystem,
		"Total number of IDs found to be missing on the relay")

	messageSize = metrics.NewHistogramWithBuckets(
		"message_size_bytes",
		subsystem,
		"Size of the negentropy messages",
		[]string{direction},
		prometheus.ExponentialBuckets(64, 2, 12),
	)

	responderSessions = metrics.NewGauge(
		"responder_sessions",
		subsystem,
		"Number of open responder sessions",
		[]string{},
	).WithLabelValues()

	responderErrors = metrics.NewCounter(
		"responder_errors",
		subsystem,
		"Number of NEG-ERR responses sent",
		[]string{"reason"})
)
