package main

import (
	"fmt"

	"github.com/benaskins/keychain/internal/keychain"
	"github.com/spf13/cobra"
)

var rotateCommand string

var rotateCmd = &cobra.Command{
	Use:   "rotate <kind> <name=value>... --command <cmd>",
	Short: "Replace an item's secret with the output of a command",
	Long: `Run a command with /bin/sh and store its trimmed stdout as the new
secret of the first matching item. The old secret is kept if the command
fails.`,
	Example: `  keychain rotate generic service=db account=app --command "openssl rand -hex 24"`,
	Args:    usageArgs(cobra.MinimumNArgs(2)),
	RunE: func(cmd *cobra.Command, args []string) error {
		if rotateCommand == "" {
			return usageErrorf("--command is required")
		}
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
		if err := keychain.Rotate(item, rotateCommand); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Rotated %s %s in %s\n", kind, describe(item), storeLabel(item.Store()))
		return nil
	},
}

func init() {
	rotateCmd.Flags().StringVar(&rotateCommand, "command", "", "shell command whose stdout becomes the new secret")
	rootCmd.AddCommand(rotateCmd)
}
