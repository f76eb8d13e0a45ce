package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/hopperbot/internal/config"
	"github.com/ibeckermayer/hopperbot/internal/pipeline"
	"github.com/ibeckermayer/hopperbot/internal/store"
)

func dumpsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dumps",
		Short: "Inspect updates that failed to publish",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List failed update dumps, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := listDumps()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintln(w, "no failed updates")
				return nil
			}
			for _, f := range files {
				fu, err := store.LoadDump[pipeline.FailedUpdate](f)
				if err != nil {
					fmt.Fprintf(w, "%s  (unreadable: %v)\n", filepath.Base(f), err)
					continue
				}
				printDumpLine(w, filepath.Base(f), fu)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <file>",
		Short: "Print a failed update dump, including the post body when one was built",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !filepath.IsAbs(path) && filepath.Dir(path) == "." {
				root, err := config.CacheDir()
				if err != nil {
					return err
				}
				path = filepath.Join(root, string(store.DumpFailedUpdate), path)
			}

			fu, err := store.LoadDump[pipeline.FailedUpdate](path)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			printDumpLine(w, filepath.Base(path), fu)
			fmt.Fprintf(w, "update: %s\n", fu.Update)
			if len(fu.Post) > 0 {
				fmt.Fprintf(w, "post:   %s\n", fu.Post)
			}
			return nil
		},
	})

	return cmd
}

func listDumps() ([]string, error) {
	root, err := config.CacheDir()
	if err != nil {
		return nil, err
	}
	return store.ListDumps(root, store.DumpFailedUpdate)
}

func printDumpLine(w io.Writer, name string, fu pipeline.FailedUpdate) {
	blog := fu.Blog
	if blog == "" {
		blog = "-"
	}
	fmt.Fprintf(w, "%s  %-16s %-14s %s\n", name, blog, humanize.Time(fu.FailedAt), fu.Error)
}
