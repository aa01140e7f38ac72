package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nostrsync/negsync/cmd"
	"github.com/nostrsync/negsync/negentropy"
	"github.com/nostrsync/negsync/sql"
	"github.com/nostrsync/negsync/sql/events"
)

func newImportCmd(app *cmd.BaseApp) *cobra.Command {
	return &cobra.Command{
		Use:   "import [file...]",
		Short: "add '<created_at> <id>' lines to the local event set",
		Long: "Reads lines of the form '<created_at> <hex id>' from the files, or from stdin\n" +
			"if no files are given, and adds them to the database. Existing events are skipped.",
		RunE: func(c *cobra.Command, args []string) error {
			ctx, cancel := cmd.Context()
			defer cancel()
			if len(args) == 0 {
				return runImport(ctx, app, c.OutOrStdout(), c.InOrStdin())
			}
			for _, name := range args {
				f, err := os.Open(name)
				if err != nil {
					return err
				}
				err = runImport(ctx, app, c.OutOrStdout(), f)
				f.Close()
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
			}
			return nil
		},
	}
}

func parseItem(line string) (negentropy.Item, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return negentropy.Item{}, fmt.Errorf("expected '<created_at> <id>', got %q", line)
	}
	ts, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return negentropy.Item{}, fmt.Errorf("bad timestamp: %w", err)
	}
	id, err := negentropy.ParseID(fields[1])
	if err != nil {
		return negentropy.Item{}, fmt.Errorf("bad id: %w", err)
	}
	return negentropy.Item{Timestamp: ts, ID: id}, nil
}

func runImport(ctx context.Context, app *cmd.BaseApp, stdout io.Writer, r io.Reader) error {
	logger := app.Logger("import", app.Config.Logging.AppLoggerLevel)
	db, err := openDatabase(app)
	if err != nil {
		return err
	}
	defer db.Close()

	var added, skipped int
	err = db.WithTxImmediate(ctx, func(tx *sql.Tx) error {
		scanner := bufio.NewScanner(r)
		for n := 1; scanner.Scan(); n++ {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			it, err := parseItem(line)
			if err != nil {
				return fmt.Errorf("line %d: %w", n, err)
			}
			switch err := events.Add(tx, it); {
			case errors.Is(err, sql.ErrObjectExists):
				skipped++
			case err != nil:
				return fmt.Errorf("line %d: %w", n, err)
			default:
				added++
			}
		}
		return scanner.Err()
	})
	if err != nil {
		return err
	}
	logger.Info("import complete", zap.Int("added", added), zap.Int("skipped", skipped))
	_, err = fmt.Fprintf(stdout, "added %d, skipped %d\n", added, skipped)
	return err
}
