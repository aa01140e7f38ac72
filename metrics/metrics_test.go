package metrics_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nostrsync/negsync/metrics"
)

var testCounter = metrics.NewCounter("test_events", "metricstest", "test counter", []string{"kind"})

func TestServer(t *testing.T) {
	testCounter.WithLabelValues("foo").Add(3)
	s, err := metrics.StartServer(zaptest.NewLogger(t), "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Shutdown(context.Background())) })

	resp, err := http.Get("http://" + s.Addr().String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `negsync_metricstest_test_events{kind="foo"} 3`)
}

func TestPush(t *testing.T) {
	testCounter.WithLabelValues("bar").Inc()
	var path, user string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		user, _, _ = r.BasicAuth()
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, metrics.Push(metrics.PushConfig{
		URL:      srv.URL,
		Username: "user",
		Password: "secret",
	}, map[string]string{"relay": "all"}))
	require.True(t, strings.HasPrefix(path, "/metrics/job/negsync/relay/all"), path)
	require.Equal(t, "user", user)
	require.NotEmpty(t, body)
}
