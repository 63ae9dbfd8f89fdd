package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:     "get <kind> <name=value>...",
	Short:   "Print the secret of the first matching item",
	Example: `  export GITHUB_TOKEN=$(keychain get generic service=github account=deploy)`,
	Args:    usageArgs(cobra.MinimumNArgs(2)),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		conds, err := parseFields(args[1:])
		if err != nil {
			return err
		}

		sess, err := openSession()
		if err != nil {
			return err
		}
		defer sess.close()

		item, ok, err := sess.collection(kind).First(conds)
		if err != nil {
			return err
		}
		if !ok {
			return noMatch(kind, args[1:])
		}
		secret, err := item.Secret()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(secret))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
