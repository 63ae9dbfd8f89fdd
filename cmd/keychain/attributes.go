package main

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/benaskins/keychain/internal/keychain"
	"github.com/spf13/cobra"
)

var attributesCmd = &cobra.Command{
	Use:     "attributes",
	Short:   "List item attributes, their codes and value types",
	Aliases: []string{"attrs"},
	Args:    usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds := []keychain.Kind{keychain.GenericPassword, keychain.InternetPassword}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCODE\tTYPE\tKINDS")
		for _, a := range keychain.Attributes() {
			var valid []string
			for _, k := range kinds {
				if slices.Contains(keychain.ValidFieldsFor(k), a.Name) {
					valid = append(valid, k.String())
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Name, a.Code, a.Type, strings.Join(valid, ","))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(attributesCmd)
}
