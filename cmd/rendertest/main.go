// Command rendertest screenshots a range of a live thread with the bot's
// renderer so selector changes on x.com can be checked by eye.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/hopperbot/internal/auth"
	"github.com/ibeckermayer/hopperbot/internal/config"
	"github.com/ibeckermayer/hopperbot/internal/logging"
	"github.com/ibeckermayer/hopperbot/internal/renderer"
	"github.com/ibeckermayer/hopperbot/internal/types"
)

func main() {
	var (
		configPath string
		out        string
		start      int
		count      int
		visible    bool
	)

	cmd := &cobra.Command{
		Use:           "rendertest <thread-url>",
		Short:         "Screenshot a range of a thread with the bot's renderer",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, args[0], out, types.NewRange(start, start+count), visible)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (default is the user config dir)")
	cmd.Flags().StringVarP(&out, "out", "o", ".", "directory for the screenshots")
	cmd.Flags().IntVar(&start, "start", 0, "first thread offset")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of tweets")
	cmd.Flags().BoolVar(&visible, "visible", false, "show the browser window")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, threadURL, out string, rng types.Range, visible bool) error {
	cfg, err := config.LoadPath(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if visible {
		cfg.Renderer.Headless = false
	}
	logger := logging.New(cfg.Logging, os.Stderr)

	cookiePath, err := auth.DefaultCookieStorePath()
	if err != nil {
		return err
	}

	r := renderer.New(cfg.Renderer, out, auth.NewCookieStore(cookiePath), logger)
	defer r.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	files, err := r.Render(ctx, threadURL, "rendertest", rng)
	for _, f := range files {
		fmt.Println(f)
	}
	return err
}
