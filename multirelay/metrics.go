package multirelay

import "github.com/nostrsync/negsync/metrics"

const subsystem = "multirelay"

var relayOutcomes = metrics.NewCounter(
	"relay_outcomes",
	subsystem,
	"Number of relay sync attempts by outcome",
	[]string{"status"},
)
