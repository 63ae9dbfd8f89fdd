//go:build !darwin

package main

import (
	"path/filepath"

	"github.com/benaskins/keychain/internal/config"
)

// fallbackLocation is where the default store lives when the config
// names none. There is no system keychain here, so it is a file under
// ~/.keychain.
func fallbackLocation() (string, error) {
	home := config.Home()
	if home == "" {
		return "", usageErrorf("no home directory for the default store: pass --store or set default_store")
	}
	return filepath.Join(home, "default.yaml"), nil
}
