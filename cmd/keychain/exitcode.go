package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/benaskins/keychain/internal/keychain"
	"github.com/spf13/cobra"
)

// ExitCode is the process exit status. Values are stable for scripts.
type ExitCode int

const (
	ExitOK ExitCode = 0

	// 1: the search ran and found nothing
	ExitNoMatch ExitCode = 1

	// 2: bad arguments, unknown attributes, missing identifying fields
	ExitUsage ExitCode = 2

	// 3: a record went away between being found and being used
	ExitNotFound ExitCode = 3

	// 4: an item with the same key already exists
	ExitDuplicate ExitCode = 4

	// 5: the store reported a failure or could not be opened
	ExitStore ExitCode = 5

	// 10: anything else
	ExitInternal ExitCode = 10
)

// errNoMatch reports a search with no results. It is an outcome, not a
// store failure, so it does not wrap keychain.ErrNotFound.
var errNoMatch = errors.New("no matching item")

// noMatch describes an empty search for kind over the given arguments.
func noMatch(kind keychain.Kind, args []string) error {
	return fmt.Errorf("%w: %s %s", errNoMatch, kind, strings.Join(args, " "))
}

// usageError marks errors caused by how the command was invoked.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// usageArgs wraps a cobra argument validator so its failures exit with
// ExitUsage.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

func exitCodeFor(err error) ExitCode {
	var ue *usageError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errNoMatch):
		return ExitNoMatch
	case errors.As(err, &ue),
		errors.Is(err, keychain.ErrValidation),
		errors.Is(err, keychain.ErrUnknownAttribute):
		return ExitUsage
	case errors.Is(err, keychain.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, keychain.ErrDuplicateItem):
		return ExitDuplicate
	case errors.Is(err, keychain.ErrNoStore),
		errors.Is(err, keychain.ErrStoreClosed):
		return ExitStore
	}
	if _, ok := keychain.StatusOf(err); ok {
		return ExitStore
	}
	return ExitInternal
}
