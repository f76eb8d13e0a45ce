// Command hb is the operator CLI for hopperbot. It manages the people
// directory, the thread index, failed update dumps, stream rules and the
// renderer's browser session.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/hopperbot/internal/config"
	"github.com/ibeckermayer/hopperbot/internal/logging"
	"github.com/ibeckermayer/hopperbot/internal/store"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "hb",
		Short:         "hopperbot maintenance tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default is the user config dir)")

	root.AddCommand(
		personCmd(),
		indexCmd(),
		dumpsCmd(),
		filtersCmd(),
		loginCmd(),
		logoutCmd(),
		openCmd(),
		botTestCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadPath(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*store.Store, error) {
	path, err := cfg.DatabasePath()
	if err != nil {
		return nil, err
	}
	return store.New(path)
}

// withStore loads the config and opens the database for the duration of fn.
func withStore(fn func(cfg *config.Config, st *store.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(cfg, st)
}

func cliLogger(cfg *config.Config) *slog.Logger {
	return logging.New(cfg.Logging, os.Stderr)
}
