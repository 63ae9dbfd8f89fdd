package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/benaskins/keychain/internal/keychain"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <kind> [name=value]...",
	Short: "Re-run a find whenever a file-backed store changes",
	Long: `Watch the store file behind --store (or the default store) and print
every matching item each time another process changes it. Runs until
interrupted.`,
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

		sess, err := openSession()
		if err != nil {
			return err
		}
		defer sess.close()

		watched := sess.primary()
		if watched.Location() == "" {
			return usageErrorf("watch needs a file-backed store: pass --store or set default_store")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		show := func() {
			if err := showMatches(cmd, watched.Location(), kind, conds); err != nil {
				slog.Error("refreshing matches", "store", watched, "error", err)
			}
		}
		show()
		return keychain.Watch(ctx, watched, show)
	},
}

// showMatches reopens the store so the listing reflects the file as it
// is now, then prints every match.
func showMatches(cmd *cobra.Command, location string, kind keychain.Kind, conds keychain.Conditions) error {
	b, err := keychain.OpenSystemBackend(location)
	if err != nil {
		return err
	}
	st := keychain.NewStore(b)
	defer st.Close()

	items, err := keychain.NewCollection(kind, st).All(conds, 0)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintf(out, "no %s matching\n", kind)
		return nil
	}
	return printItems(out, kind, items, false)
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
