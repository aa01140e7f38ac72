package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nostrsync/negsync/cmd"
	"github.com/nostrsync/negsync/nip11"
)

type checkOutput struct {
	URL       string      `json:"url"`
	Supported bool        `json:"supported"`
	Error     string      `json:"error,omitempty"`
	Info      *nip11.Info `json:"info,omitempty"`
}

func newCheckCmd(app *cmd.BaseApp) *cobra.Command {
	return &cobra.Command{
		Use:   "check [relay...]",
		Short: "report whether the relays advertise negentropy support",
		RunE: func(c *cobra.Command, args []string) error {
			ctx, cancel := cmd.Context()
			defer cancel()
			urls := args
			if len(urls) == 0 {
				urls = app.Config.Relays
			}
			if len(urls) == 0 {
				return errors.New("no relays specified")
			}
			logger := app.Logger("nip11", app.Config.Logging.NIP11LoggerLevel)
			checker := nip11.NewChecker(
				nip11.NewClient(
					nip11.WithClientLogger(logger),
					nip11.WithRetries(app.Config.Sync.CapabilityRetries)),
				nip11.WithCheckerLogger(logger))
			out := make([]checkOutput, 0, len(urls))
			for _, url := range urls {
				cp := checker.Check(ctx, url)
				out = append(out, checkOutput{
					URL:       url,
					Supported: cp.Supported,
					Error:     cp.Error,
					Info:      cp.Info,
				})
			}
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.OutOrStdout(), string(data))
			return err
		},
	}
}
