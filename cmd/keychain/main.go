package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	configPath string
	storeNames []string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "keychain",
	Short:         "Search and edit password items in keychains",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd.ErrOrStderr(), logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.keychain/config.yaml)")
	rootCmd.PersistentFlags().StringArrayVarP(&storeNames, "store", "s", nil, "store name or path to search, repeatable (default: the configured default store)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})
}

func main() {
	os.Exit(int(run(os.Args[1:], os.Stderr)))
}

func run(args []string, stderr io.Writer) ExitCode {
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(stderr, "keychain:", err)
		return exitCodeFor(err)
	}
	return ExitOK
}

// setupLogging installs a text handler on w as the default slog logger.
// Logs always go to stderr; stdout carries command output.
func setupLogging(w io.Writer, level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return &usageError{err: fmt.Errorf("invalid --log-level %q", level)}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
	return nil
}
