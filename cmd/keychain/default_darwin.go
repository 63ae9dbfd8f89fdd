//go:build darwin

package main

// fallbackLocation selects the login keychain when the config names no
// default store.
func fallbackLocation() (string, error) {
	return "", nil
}
