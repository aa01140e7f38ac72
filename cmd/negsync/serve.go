package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nostrsync/negsync/cmd"
	"github.com/nostrsync/negsync/nip11"
	"github.com/nostrsync/negsync/relay"
	"github.com/nostrsync/negsync/relay/wsconn"
	"github.com/nostrsync/negsync/sqlstore"
)

func newServeCmd(app *cmd.BaseApp) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "serve negentropy sync of the local events over websocket",
		RunE: func(c *cobra.Command, _ []string) error {
			ctx, cancel := cmd.Context()
			defer cancel()
			return runServe(ctx, app, nil)
		},
	}
}

// runServe serves until the context is canceled. If ready is not nil, the
// listening address is sent to it once the server is up.
func runServe(ctx context.Context, app *cmd.BaseApp, ready chan<- net.Addr) error {
	cfg := app.Config
	logger := app.Logger("serve", cfg.Logging.ServeLoggerLevel)
	stopMetrics, err := startMetrics(app, logger)
	if err != nil {
		return err
	}
	defer stopMetrics()

	db, err := openDatabase(app)
	if err != nil {
		return err
	}
	defer db.Close()

	storeLogger := app.Logger("store", cfg.Logging.StoreLoggerLevel)
	responder := relay.NewResponder(sqlstore.NewProvider(db, storeLogger),
		relay.WithMaxSessions(cfg.Serve.MaxSessions),
		relay.WithResponderFrameSizeLimit(cfg.Serve.FrameSizeLimit),
		relay.WithResponderLogger(app.Logger("relay", cfg.Logging.RelayLoggerLevel)))
	info := &nip11.Info{
		Name:          "negsync",
		Description:   "negentropy sync of the local event set",
		Software:      "https://github.com/nostrsync/negsync",
		Version:       cmd.Version,
		SupportedNIPs: []int{11, nip11.NegentropyNIP},
	}
	lis, err := net.Listen("tcp", cfg.Serve.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Serve.Listen, err)
	}
	srv := &http.Server{
		Handler:           wsconn.NewHandler(responder, info, wsconn.WithLogger(logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(lis)
	}()
	logger.Info("serving negentropy sync", zap.Stringer("address", lis.Addr()))
	if ready != nil {
		ready <- lis.Addr()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// websocket connections are hijacked, so Shutdown doesn't wait for them
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
