package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/benaskins/keychain/internal/keychain"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// parseKind reads the kind argument, reporting bad values as usage errors.
func parseKind(s string) (keychain.Kind, error) {
	kind, err := keychain.ParseKind(s)
	if err != nil {
		return 0, &usageError{err: err}
	}
	return kind, nil
}

// parseFields turns name=value arguments into typed conditions.
func parseFields(args []string) (keychain.Conditions, error) {
	conds := make(keychain.Conditions, len(args))
	for _, arg := range args {
		name, text, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, usageErrorf("expected name=value, got %q", arg)
		}
		v, err := keychain.ParseValue(name, text)
		if err != nil {
			return nil, err
		}
		conds[name] = v
	}
	return conds, nil
}

// readSecret prompts for a secret on a terminal, or reads all of stdin
// when input is piped. A single trailing newline is dropped.
func readSecret(cmd *cobra.Command, prompt string) ([]byte, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return nil, fmt.Errorf("reading secret: %w", err)
		}
		return b, nil
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	b = bytes.TrimSuffix(b, []byte("\n"))
	return bytes.TrimSuffix(b, []byte("\r")), nil
}

// describe renders an item's identifying fields, e.g. "{account=a service=s}".
func describe(item *keychain.Item) string {
	var parts []string
	for _, name := range keychain.IdentifyingFields(item.Kind()) {
		v, err := item.Get(name)
		if err != nil || v == nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", name, v))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
