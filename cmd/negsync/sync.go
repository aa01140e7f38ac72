package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nostrsync/negsync/cmd"
	"github.com/nostrsync/negsync/metrics"
	"github.com/nostrsync/negsync/multirelay"
	"github.com/nostrsync/negsync/nip11"
	"github.com/nostrsync/negsync/relay"
	"github.com/nostrsync/negsync/relay/wsconn"
	"github.com/nostrsync/negsync/sqlstore"
)

const dialTimeout = 10 * time.Second

type syncOutput struct {
	Need   relay.IDSet               `json:"need"`
	Have   relay.IDSet               `json:"have"`
	Relays []multirelay.RelayOutcome `json:"relays"`
	Failed map[string]string         `json:"failed,omitempty"`
}

func newSyncCmd(app *cmd.BaseApp) *cobra.Command {
	var out string
	c := &cobra.Command{
		Use:   "sync",
		Short: "reconcile the local events with the relays",
		RunE: func(c *cobra.Command, _ []string) error {
			ctx, cancel := cmd.Context()
			defer cancel()
			return runSync(ctx, app, c.OutOrStdout(), out)
		},
	}
	c.Flags().StringVarP(&out, "out", "o", "", "Write the JSON result to the file instead of stdout")
	return c
}

func dialRelays(ctx context.Context, urls []string, logger *zap.Logger) ([]*wsconn.Conn, map[string]string) {
	var conns []*wsconn.Conn
	failed := make(map[string]string)
	for _, url := range urls {
		dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		conn, err := wsconn.Dial(dialCtx, url, wsconn.WithLogger(logger))
		cancel()
		if err != nil {
			logger.Warn("failed to connect to relay", zap.String("relay", url), zap.Error(err))
			failed[url] = err.Error()
			continue
		}
		conns = append(conns, conn)
	}
	return conns, failed
}

func runSync(ctx context.Context, app *cmd.BaseApp, stdout io.Writer, out string) error {
	cfg := app.Config
	logger := app.Logger("sync", cfg.Logging.SyncLoggerLevel)
	stopMetrics, err := startMetrics(app, logger)
	if err != nil {
		return err
	}
	defer stopMetrics()

	if !json.Valid([]byte(cfg.Sync.Filters)) {
		return fmt.Errorf("filters are not valid JSON: %s", cfg.Sync.Filters)
	}
	db, err := openDatabase(app)
	if err != nil {
		return err
	}
	defer db.Close()

	relayLogger := app.Logger("relay", cfg.Logging.RelayLoggerLevel)
	conns, failed := dialRelays(ctx, cfg.Relays, relayLogger)
	relays := make([]relay.Conn, 0, len(conns))
	for _, conn := range conns {
		defer conn.Close()
		relays = append(relays, conn)
	}

	opts := []multirelay.SyncerOpt{
		multirelay.WithLogger(logger),
		multirelay.WithFrameSizeLimit(cfg.Sync.FrameSizeLimit),
		multirelay.WithSessionTimeout(cfg.Sync.Timeout),
		multirelay.WithMaxConcurrency(cfg.Sync.MaxConcurrentRelays),
	}
	if cfg.Sync.CheckCapabilities {
		nip11Logger := app.Logger("nip11", cfg.Logging.NIP11LoggerLevel)
		checker := nip11.NewChecker(
			nip11.NewClient(
				nip11.WithClientLogger(nip11Logger),
				nip11.WithRetries(cfg.Sync.CapabilityRetries)),
			nip11.WithTTL(cfg.Sync.CapabilityTTL),
			nip11.WithCheckerLogger(nip11Logger))
		opts = append(opts, multirelay.WithCapabilityChecker(checker))
	}
	storeLogger := app.Logger("store", cfg.Logging.StoreLoggerLevel)
	syncer := multirelay.NewSyncer(sqlstore.NewProvider(db, storeLogger), opts...)
	if len(conns) == 0 && len(failed) != 0 {
		return fmt.Errorf("%w: could not connect to any of %d relays", multirelay.ErrNoRelays, len(failed))
	}
	report, err := syncer.Sync(ctx, relays, []byte(cfg.Sync.Filters))
	if err != nil {
		return err
	}

	if cfg.Metrics.Push.URL != "" {
		if err := metrics.Push(cfg.Metrics.Push, map[string]string{"command": "sync"}); err != nil {
			logger.Warn("failed to push metrics", zap.Error(err))
		}
	}

	result := syncOutput{
		Need:   report.Need,
		Have:   report.Have,
		Relays: report.Relays,
	}
	if len(failed) != 0 {
		result.Failed = failed
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if out == "" {
		_, err = stdout.Write(append(data, '\n'))
		return err
	}
	if err := atomic.WriteFile(out, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	logger.Info("result written", zap.String("path", out),
		zap.Int("need", report.Need.Len()),
		zap.Int("have", report.Have.Len()))
	return nil
}
