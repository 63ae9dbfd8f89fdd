package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/benaskins/keychain/internal/audit"
	"github.com/benaskins/keychain/internal/config"
	"github.com/spf13/cobra"
)

var (
	auditAction string
	auditSince  time.Duration
	auditFailed bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recorded store operations",
	Example: `  keychain audit --action secret_read --since 24h
  keychain audit --store work --failed`,
	Args: usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		cfg, err := config.Load(path)
		if err != nil {
			return &usageError{err: err}
		}
		logPath := cfg.AuditLogPath()
		if logPath == "" {
			return usageErrorf("auditing is off: set audit_log in %s", path)
		}

		filter := audit.Filter{Failed: auditFailed}
		if auditAction != "" {
			if filter.Action, err = audit.ParseAction(auditAction); err != nil {
				return &usageError{err: err}
			}
		}
		switch len(storeNames) {
		case 0:
		case 1:
			filter.Store = cfg.Location(storeNames[0])
		default:
			return usageErrorf("audit filters on one --store at a time")
		}
		if auditSince > 0 {
			filter.Since = time.Now().Add(-auditSince)
		}

		entries, err := audit.ReadFile(logPath, filter)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tACTION\tSTORE\tKIND\tKEY\tACTOR\tRESULT")
		for _, e := range entries {
			result := "ok"
			if e.Failed() {
				result = e.Error
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				e.Timestamp.Local().Format(time.DateTime), e.Action, cell(e.Store),
				cell(e.Kind), cell(e.Key), cell(e.Actor), result)
		}
		return w.Flush()
	},
}

func init() {
	auditCmd.Flags().StringVar(&auditAction, "action", "", "only this action (item_search, item_create, item_update, item_read, secret_read)")
	auditCmd.Flags().DurationVar(&auditSince, "since", 0, "only entries newer than this duration")
	auditCmd.Flags().BoolVar(&auditFailed, "failed", false, "only failed operations")
	rootCmd.AddCommand(auditCmd)
}
