package main

import (
	"fmt"

	"github.com/benaskins/keychain/internal/keychain"
	"github.com/spf13/cobra"
)

var (
	updateSet    []string
	updateUnset  []string
	updateSecret bool
)

var updateCmd = &cobra.Command{
	Use:   "update <kind> <name=value>... --set name=value",
	Short: "Change the first item matching attributes",
	Long: `Change the first item matching the given attributes.

--set and --unset edit attributes; --secret reads a new secret from a
prompt or stdin. Changing an identifying field renames the item.`,
	Example: `  keychain update generic service=github account=deploy --set comment=rotated
  keychain update generic service=github account=deploy --secret < token.txt`,
	Args: usageArgs(cobra.MinimumNArgs(2)),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		conds, err := parseFields(args[1:])
		if err != nil {
			return err
		}
		changes, err := parseFields(updateSet)
		if err != nil {
			return err
		}
		if len(changes) == 0 && len(updateUnset) == 0 && !updateSecret {
			return usageErrorf("nothing to update: use --set, --unset or --secret")
		}

		var secret []byte
		if updateSecret {
			if secret, err = readSecret(cmd, "Enter new secret: "); err != nil {
				return err
			}
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
		if err := applyChanges(item, changes, updateUnset, secret, updateSecret); err != nil {
			return err
		}
		if err := item.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s %s in %s\n", kind, describe(item), storeLabel(item.Store()))
		return nil
	},
}

// applyChanges stages edits on item without saving.
func applyChanges(item *keychain.Item, set keychain.Conditions, unset []string, secret []byte, hasSecret bool) error {
	for name, v := range set {
		if err := item.Set(name, v); err != nil {
			return err
		}
	}
	for _, name := range unset {
		if err := item.Set(name, nil); err != nil {
			return err
		}
	}
	if hasSecret {
		item.SetSecret(secret)
	}
	return nil
}

func init() {
	updateCmd.Flags().StringArrayVar(&updateSet, "set", nil, "attribute to change, as name=value (repeatable)")
	updateCmd.Flags().StringArrayVar(&updateUnset, "unset", nil, "attribute to remove (repeatable)")
	updateCmd.Flags().BoolVar(&updateSecret, "secret", false, "replace the secret, read from a prompt or stdin")
	rootCmd.AddCommand(updateCmd)
}
