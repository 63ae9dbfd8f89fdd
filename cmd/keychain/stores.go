package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/benaskins/keychain/internal/config"
	"github.com/spf13/cobra"
)

var storesCmd = &cobra.Command{
	Use:   "stores",
	Short: "List configured stores",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		cfg, err := config.Load(path)
		if err != nil {
			return &usageError{err: err}
		}

		out := cmd.OutOrStdout()
		names := cfg.StoreNames()
		if len(names) == 0 {
			location, err := fallbackLocation()
			if err != nil {
				return err
			}
			if location == "" {
				location = "the login keychain"
			}
			fmt.Fprintf(out, "No stores configured; using %s\n", location)
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tLOCATION\tDEFAULT")
		for _, name := range names {
			def := ""
			if name == cfg.DefaultStore {
				def = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", name, cfg.Location(name), def)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(storesCmd)
}
