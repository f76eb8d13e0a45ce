package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/hopperbot/internal/app"
	"github.com/ibeckermayer/hopperbot/internal/config"
	"github.com/ibeckermayer/hopperbot/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "hopperbot",
		Short:         "Relay tweet threads and videos to Tumblr",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (default is the user config dir)")

	return cmd
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadPath(configPath)
	if err != nil {
		if configPath == "" && errors.Is(err, fs.ErrNotExist) {
			return firstRun()
		}
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.Logging, os.Stderr)

	a, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("error during shutdown", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("hopperbot starting")
	err = a.Run(ctx)
	logger.Info("hopperbot stopped")
	return err
}

// firstRun writes a default config for the user to fill in.
func firstRun() error {
	cfg := config.Default()
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("could not save default config: %w", err)
	}
	path, _ := config.ConfigPath()
	return fmt.Errorf("created default config at %s; add credentials and [[update]] blocks, then restart", path)
}
