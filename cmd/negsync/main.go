// negsync reconciles a local set of nostr events with relays using negentropy (NIP-77).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nostrsync/negsync/cmd"
)

var (
	version string
	commit  string
	branch  string
)

func newRootCmd(app *cmd.BaseApp) *cobra.Command {
	root := &cobra.Command{
		Use:           "negsync",
		Short:         "negentropy (NIP-77) set reconciliation for nostr events",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s+%s+%s", cmd.Version, cmd.Commit, cmd.Branch),
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			return app.Initialize(c)
		},
	}
	cmd.AddCommands(root, app)
	root.AddCommand(
		newSyncCmd(app),
		newServeCmd(app),
		newImportCmd(app),
		newCheckCmd(app),
	)
	return root
}

func main() { // run the app
	cmd.Version = version
	cmd.Commit = commit
	cmd.Branch = branch
	if err := newRootCmd(cmd.NewBaseApp()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
