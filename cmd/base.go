// Package cmd is the base package for the negsync executables.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/nostrsync/negsync/config"
	"github.com/nostrsync/negsync/log"
)

var (
	// Version is the app's semantic version. Designed to be overwritten by make.
	Version string

	// Branch is the git branch used to build the App. Designed to be overwritten by make.
	Branch string

	// Commit is the git commit used to build the app. Designed to be overwritten by make.
	Commit string
)

// BaseApp is the base application command, provides basic init and flags for all subcommands.
type BaseApp struct {
	Config     *config.Config
	ConfigFile string
	// Fs is the filesystem the config file is read from.
	Fs afero.Fs
}

// NewBaseApp returns new basic application.
func NewBaseApp() *BaseApp {
	dc := config.DefaultConfig()
	return &BaseApp{Config: &dc, Fs: afero.NewOsFs()}
}

type savedFlag struct {
	flag  *pflag.Flag
	value string
	slice []string
}

// Initialize loads the config file, if any, on top of the defaults. The flags that
// were set explicitly take precedence over the file.
func (app *BaseApp) Initialize(cmd *cobra.Command) error {
	if app.ConfigFile != "" {
		var saved []savedFlag
		cmd.Flags().Visit(func(f *pflag.Flag) {
			s := savedFlag{flag: f, value: f.Value.String()}
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				s.slice = sv.GetSlice()
			}
			saved = append(saved, s)
		})
		if err := config.LoadConfig(app.Fs, app.ConfigFile, app.Config); err != nil {
			return err
		}
		for _, s := range saved {
			if sv, ok := s.flag.Value.(pflag.SliceValue); ok {
				if err := sv.Replace(s.slice); err != nil {
					return fmt.Errorf("flag --%s: %w", s.flag.Name, err)
				}
				continue
			}
			if err := s.flag.Value.Set(s.value); err != nil {
				return fmt.Errorf("flag --%s: %w", s.flag.Name, err)
			}
		}
	}
	if err := app.Config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log.JSONLog(app.Config.Logging.Encoder == config.JSONLogEncoder)
	return nil
}

// Logger creates a logger for the module with the configured level.
func (app *BaseApp) Logger(module, level string) *zap.Logger {
	logger, err := log.New(module, level)
	if err != nil {
		// the level was rejected, so fall back to info and report it
		logger = log.NewWithLevel(module, zap.NewAtomicLevelAt(zap.InfoLevel))
		logger.Warn("bad log level", zap.Error(err))
	}
	return logger
}

// Context returns the context that is canceled on SIGINT or SIGTERM.
func Context() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
