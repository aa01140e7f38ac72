package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PushConfig specifies the prometheus pushgateway to send the metrics of a
// finished batch run to.
type PushConfig struct {
	URL      string            `mapstructure:"url"`
	Job      string            `mapstructure:"job"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	Headers  map[string]string `mapstructure:"headers"`
}

// Push sends the current values of the default registry metrics to the pushgateway.
func Push(cfg PushConfig, grouping map[string]string) error {
	header := http.Header{}
	for k, v := range cfg.Headers {
		header.Add(k, v)
	}
	job := cfg.Job
	if job == "" {
		job = Namespace
	}
	pusher := push.New(cfg.URL, job).
		Gatherer(prometheus.DefaultGatherer).
		Header(header)
	for k, v := range grouping {
		pusher = pusher.Grouping(k, v)
	}
	if cfg.Username != "" && cfg.Password != "" {
		pusher = pusher.BasicAuth(cfg.Username, cfg.Password)
	}
	if err := pusher.Push(); err != nil {
		return fmt.Errorf("push metrics to %s: %w", cfg.URL, err)
	}
	return nil
}
