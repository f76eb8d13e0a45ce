package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/hopperbot/internal/twitter"
)

func filtersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filters",
		Short: "Manage the filtered stream rules",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the active stream rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client := twitter.New(cfg.Twitter, cliLogger(cfg))

			rules, err := client.Rules(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, r := range rules {
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, r.Tag, r.Value)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Replace this bot's rules with ones built from the configured users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client := twitter.New(cfg.Twitter, cliLogger(cfg))

			usernames := cfg.Routes().TwitterUsernames()
			ids, err := client.SyncFilters(cmd.Context(), usernames, cfg.Twitter.RuleTag)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d rules cover %d users\n", len(ids), len(usernames))
			return nil
		},
	})

	var all bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove this bot's stream rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client := twitter.New(cfg.Twitter, cliLogger(cfg))

			tag := cfg.Twitter.RuleTag
			if all {
				tag = ""
			}
			n, err := client.ClearFilters(cmd.Context(), tag)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d rules\n", n)
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&all, "all", false, "remove every rule on the account, not only this bot's")
	cmd.AddCommand(clearCmd)

	return cmd
}
