// Package log builds the zap loggers used by negsync components.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu sync.RWMutex
	// stdout is left for command output.
	logWriter io.Writer = os.Stderr
	jsonLog             = false
)

// JSONLog turns JSON format on or off for the loggers created afterwards.
func JSONLog(b bool) {
	mu.Lock()
	defer mu.Unlock()
	jsonLog = b
}

func encoder() zapcore.Encoder {
	mu.RLock()
	defer mu.RUnlock()
	if jsonLog {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

func writer() io.Writer {
	mu.RLock()
	defer mu.RUnlock()
	return logWriter
}

// NewWithLevel creates a logger with a fixed level and with a set of (optional) hooks.
func NewWithLevel(module string, level zap.AtomicLevel, hooks ...func(zapcore.Entry) error) *zap.Logger {
	core := zapcore.NewCore(encoder(), zapcore.AddSync(writer()), level)
	return zap.New(zapcore.RegisterHooks(core, hooks...)).Named(module)
}

// New creates a logger for the module with the level specified as a string,
// such as "debug" or "warn".
func New(module, level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level for %s: %w", module, err)
	}
	return NewWithLevel(module, lvl), nil
}
