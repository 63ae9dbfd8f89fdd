package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/benaskins/keychain/internal/keychain"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ExitCode
	}{
		{"nil", nil, ExitOK},
		{"usage", usageErrorf("bad flag"), ExitUsage},
		{"validation", &keychain.ValidationError{Kind: keychain.GenericPassword, Missing: []string{"account"}}, ExitUsage},
		{"unknown attribute", &keychain.UnknownAttributeError{Name: "colour"}, ExitUsage},
		{"no match", noMatch(keychain.GenericPassword, []string{"service=x"}), ExitNoMatch},
		{"not found", fmt.Errorf("no match: %w", keychain.ErrNotFound), ExitNotFound},
		{"duplicate", &keychain.DuplicateItemError{Kind: keychain.GenericPassword}, ExitDuplicate},
		{"no store", keychain.ErrNoStore, ExitStore},
		{"closed", fmt.Errorf("save: %w", keychain.ErrStoreClosed), ExitStore},
		{"store status", keychain.NewStoreError("create", keychain.StatusAuthFailed, nil), ExitStore},
		{"other", errors.New("boom"), ExitInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestUsageErrorUnwraps(t *testing.T) {
	inner := errors.New("inner")
	err := &usageError{err: inner}
	if !errors.Is(err, inner) {
		t.Error("expected usageError to unwrap")
	}
	if err.Error() != "inner" {
		t.Errorf("expected 'inner', got %q", err.Error())
	}
}
