package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ibeckermayer/hopperbot/internal/config"
	"github.com/ibeckermayer/hopperbot/internal/people"
	"github.com/ibeckermayer/hopperbot/internal/store"
)

func personCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "person",
		Short: "Manage the people directory used in post headers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <twitter-id> <name> [pronoun...]",
		Short: "Register the person behind a Twitter user id",
		Long:  "Pronoun keys: " + strings.Join(people.PronounKeys(), ", ") + ". Defaults to THEY.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid twitter id %q: %w", args[0], err)
			}
			keys := args[2:]
			if len(keys) == 0 {
				keys = []string{people.They.Key}
			}
			p, err := people.New(args[1], keys...)
			if err != nil {
				return err
			}

			return withStore(func(_ *config.Config, st *store.Store) error {
				if err := st.AddPerson(cmd.Context(), id, p); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %d: %s\n", id, p)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <twitter-id>",
		Short: "Show the person registered for a Twitter user id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid twitter id %q: %w", args[0], err)
			}
			return withStore(func(_ *config.Config, st *store.Store) error {
				p, ok, err := st.GetPerson(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no person registered for %d", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d: %s (reflexive %q)\n", id, p, p.Reflexive())
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered people",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(_ *config.Config, st *store.Store) error {
				all, err := st.ListPeople(cmd.Context())
				if err != nil {
					return err
				}
				ids := make([]int64, 0, len(all))
				for id := range all {
					ids = append(ids, id)
				}
				sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

				w := cmd.OutOrStdout()
				for _, id := range ids {
					fmt.Fprintf(w, "%-20d %s\n", id, all[id])
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Register people listed in a YAML file; existing ids are skipped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			entries, err := parseImport(f)
			if err != nil {
				return err
			}

			return withStore(func(_ *config.Config, st *store.Store) error {
				added, skipped := 0, 0
				for _, e := range entries {
					err := st.AddPerson(cmd.Context(), e.TwitterID, e.Person)
					switch {
					case errors.Is(err, store.ErrDuplicateKey):
						skipped++
					case err != nil:
						return err
					default:
						added++
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d people, skipped %d existing\n", added, skipped)
				return nil
			})
		},
	})

	return cmd
}

// importFile is the YAML layout accepted by `hb person import`:
//
//	people:
//	  - twitter_id: 12
//	    name: Alice
//	    pronouns: [SHE, THEY]
type importFile struct {
	People []struct {
		TwitterID int64    `yaml:"twitter_id"`
		Name      string   `yaml:"name"`
		Pronouns  []string `yaml:"pronouns"`
	} `yaml:"people"`
}

type importEntry struct {
	TwitterID int64
	Person    people.Person
}

func parseImport(r io.Reader) ([]importEntry, error) {
	var f importFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse import file: %w", err)
	}

	entries := make([]importEntry, 0, len(f.People))
	for i, p := range f.People {
		if p.TwitterID == 0 {
			return nil, fmt.Errorf("people[%d]: twitter_id is required", i)
		}
		keys := p.Pronouns
		if len(keys) == 0 {
			keys = []string{people.They.Key}
		}
		person, err := people.New(p.Name, keys...)
		if err != nil {
			return nil, fmt.Errorf("people[%d]: %w", i, err)
		}
		entries = append(entries, importEntry{TwitterID: p.TwitterID, Person: person})
	}
	return entries, nil
}
