package log

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	var buf bytes.Buffer
	mu.Lock()
	prev := logWriter
	logWriter = &buf
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		logWriter = prev
		mu.Unlock()
		JSONLog(false)
	})
	return &buf
}

func TestLogLevel(t *testing.T) {
	buf := captureOutput(t)
	hooked := 0
	logger := NewWithLevel("test", zap.NewAtomicLevelAt(zapcore.InfoLevel), func(e zapcore.Entry) error {
		hooked++
		require.Equal(t, zapcore.InfoLevel, e.Level)
		return nil
	})
	logger.Debug("hidden")
	require.Empty(t, buf.String())
	logger.Info("shown", zap.String("relay", "wss://relay.example"))
	require.Equal(t, 1, hooked)
	out := buf.String()
	require.Contains(t, out, "INFO")
	require.Contains(t, out, "test")
	require.Contains(t, out, "shown")
	require.Contains(t, out, "wss://relay.example")
}

func TestJSONLog(t *testing.T) {
	buf := captureOutput(t)
	JSONLog(true)
	logger, err := New("sync", "debug")
	require.NoError(t, err)
	logger.Debug("round", zap.Int("n", 3))

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	require.Equal(t, "debug", entry["level"])
	require.Equal(t, "sync", entry["logger"])
	require.Equal(t, "round", entry["msg"])
	require.EqualValues(t, 3, entry["n"])
}

func TestBadLevel(t *testing.T) {
	_, err := New("sync", "loud")
	require.Error(t, err)
}

func TestDefaultWriterIsStderr(t *testing.T) {
	require.Equal(t, io.Writer(os.Stderr), writer())
}
