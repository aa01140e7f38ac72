package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nostrsync/negsync/cmd"
	"github.com/nostrsync/negsync/metrics"
	"github.com/nostrsync/negsync/sql"
)

func openDatabase(app *cmd.BaseApp) (*sql.Database, error) {
	logger := app.Logger("store", app.Config.Logging.StoreLoggerLevel)
	db, err := sql.Open("file:"+app.Config.Database,
		sql.WithLogger(logger),
		sql.WithLatencyMetering(app.Config.Metrics.Enabled))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// startMetrics starts the metrics server if it's enabled and returns the function
// that stops it.
func startMetrics(app *cmd.BaseApp, logger *zap.Logger) (func(), error) {
	if !app.Config.Metrics.Enabled {
		return func() {}, nil
	}
	srv, err := metrics.StartServer(logger.Named("metrics"), app.Config.Metrics.Listen)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := srv.Shutdown(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("failed to stop metrics server", zap.Error(err))
		}
	}, nil
}
