package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/hopperbot/internal/config"
	"github.com/ibeckermayer/hopperbot/internal/store"
)

func indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect the thread index",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <tweet-id>",
		Short: "Show the index entry for a published tweet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid tweet id %q: %w", args[0], err)
			}
			return withStore(func(_ *config.Config, st *store.Store) error {
				entry, ok, err := st.GetThreadEntry(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("tweet %d is not in the index", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "tweet %d: offset %d, post %d on %s\n",
					entry.SourceID, entry.Offset, entry.PublishedID, entry.Destination)
				return nil
			})
		},
	})

	var limit int
	var asJSON bool
	dump := &cobra.Command{
		Use:   "dump",
		Short: "List the most recently indexed tweets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(_ *config.Config, st *store.Store) error {
				total, err := st.CountThreadEntries(cmd.Context())
				if err != nil {
					return err
				}
				entries, err := st.ListThreadEntries(cmd.Context(), limit)
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(w)
					enc.SetIndent("", "  ")
					return enc.Encode(entries)
				}

				fmt.Fprintf(w, "%s entries indexed\n", humanize.Comma(int64(total)))
				for _, e := range entries {
					fmt.Fprintf(w, "%-20d offset %-3d post %-20d %-24s %s\n",
						e.SourceID, e.Offset, e.PublishedID, e.Destination, humanize.Time(e.CreatedAt))
				}
				return nil
			})
		},
	}
	dump.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	dump.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	cmd.AddCommand(dump)

	return cmd
}
