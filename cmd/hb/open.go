package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/chromedp/chromedp"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	browseropts "github.com/ibeckermayer/hopperbot/internal/browser"
	"github.com/ibeckermayer/hopperbot/internal/config"
)

func openCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "open <config|cache>",
		Short:     "Open the config file or the cache directory",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"config", "cache"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			var err error

			switch args[0] {
			case "config":
				path, err = config.ConfigPath()
			case "cache":
				path, err = config.CacheDir()
			default:
				return fmt.Errorf("unknown target: %s", args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to get path: %w", err)
			}

			return browser.OpenFile(path)
		},
	}
}

// botTestCmd opens bot.sannysoft.com with the renderer's browser flags to
// audit the fingerprint X sees.
func botTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot-test",
		Short: "Open a fingerprint audit page with the renderer's browser options",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			allocCtx, cancel := chromedp.NewExecAllocator(cmd.Context(), browseropts.Options(false, 1280, 900)...)
			defer cancel()

			ctx, cancel := chromedp.NewContext(allocCtx)
			defer cancel()

			if err := chromedp.Run(ctx,
				chromedp.Navigate("https://bot.sannysoft.com"),
				chromedp.WaitVisible("body", chromedp.ByQuery),
			); err != nil {
				return fmt.Errorf("failed to navigate: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Press Enter to close the browser...")
			bufio.NewReader(os.Stdin).ReadString('\n')
			return nil
		},
	}
}
