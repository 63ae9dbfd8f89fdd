package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/benaskins/keychain/internal/keychain"
	"github.com/spf13/cobra"
)

var (
	findAll        bool
	findLimit      int
	findShowSecret bool
)

var findCmd = &cobra.Command{
	Use:     "find <kind> [name=value]...",
	Short:   "Find password items matching attributes",
	Aliases: []string{"ls"},
	Example: `  keychain find generic service=github
  keychain find internet host=git.example.com --all --show-secret`,
	Args: usageArgs(cobra.MinimumNArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		conds, err := parseFields(args[1:])
		if err != nil {
			return err
		}
		if findLimit < 0 {
			return usageErrorf("--limit must not be negative")
		}

		sess, err := openSession()
		if err != nil {
			return err
		}
		defer sess.close()

		items, err := findItems(sess.collection(kind), conds, findAll, findLimit)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return noMatch(kind, args[1:])
		}
		return printItems(cmd.OutOrStdout(), kind, items, findShowSecret)
	},
}

func findItems(coll *keychain.Collection, conds keychain.Conditions, all bool, limit int) ([]*keychain.Item, error) {
	if all || limit > 0 {
		return coll.All(conds, limit)
	}
	return coll.Find(keychain.First, conds, 0)
}

// printItems writes one row per item: the store, the identifying fields,
// the description and modification time, and optionally the secret.
func printItems(out io.Writer, kind keychain.Kind, items []*keychain.Item, showSecret bool) error {
	fields := keychain.IdentifyingFields(kind)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	header := []string{"STORE"}
	for _, f := range fields {
		header = append(header, strings.ToUpper(f))
	}
	header = append(header, "DESCRIPTION", "MODIFIED")
	if showSecret {
		header = append(header, "SECRET")
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for _, item := range items {
		row := []string{storeLabel(item.Store())}
		for _, f := range fields {
			v, err := item.Get(f)
			if err != nil {
				return err
			}
			row = append(row, cell(v))
		}
		for _, f := range []string{keychain.AttrDescription, keychain.AttrUpdatedAt} {
			v, err := item.Get(f)
			if err != nil {
				return err
			}
			row = append(row, cell(v))
		}
		if showSecret {
			secret, err := item.Secret()
			if err != nil {
				return err
			}
			row = append(row, string(secret))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

func storeLabel(s *keychain.Store) string {
	if loc := s.Location(); loc != "" {
		return loc
	}
	return "default"
}

func cell(v any) string {
	switch v := v.(type) {
	case nil:
		return "-"
	case time.Time:
		return v.Local().Format("2006-01-02 15:04")
	case string:
		if v == "" {
			return "-"
		}
		return v
	}
	return fmt.Sprint(v)
}

func init() {
	findCmd.Flags().BoolVarP(&findAll, "all", "a", false, "return every match across all stores")
	findCmd.Flags().IntVarP(&findLimit, "limit", "n", 0, "maximum number of items (implies --all, 0 = no limit)")
	findCmd.Flags().BoolVar(&findShowSecret, "show-secret", false, "include secrets in the output")
	rootCmd.AddCommand(findCmd)
}
