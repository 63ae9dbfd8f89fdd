package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var addSecret string

var addCmd = &cobra.Command{
	Use:   "add <kind> <name=value>...",
	Short: "Add a password item",
	Long: `Add a password item to the first --store, or the default store.

The secret is read from a prompt, or from stdin when piped. --secret sets
it inline, which leaves it in shell history.`,
	Example: `  keychain add generic service=github account=deploy
  echo -n "$TOKEN" | keychain add internet host=git.example.com account=ci protocol=htps port=443`,
	Args: usageArgs(cobra.MinimumNArgs(2)),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		fields, err := parseFields(args[1:])
		if err != nil {
			return err
		}

		var secret []byte
		if cmd.Flags().Changed("secret") {
			secret = []byte(addSecret)
		} else if secret, err = readSecret(cmd, "Enter secret: "); err != nil {
			return err
		}

		sess, err := openSession()
		if err != nil {
			return err
		}
		defer sess.close()

		item, err := sess.collection(kind).Add(fields, secret)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s to %s\n", kind, describe(item), storeLabel(item.Store()))
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&addSecret, "secret", "", "secret value (prompted or read from stdin when omitted)")
	rootCmd.AddCommand(addCmd)
}
