//go:build !darwin

package keychain

// OpenSystemBackend opens a FileBackend on non-darwin platforms: there
// is no macOS Keychain, so record attributes live in a YAML file at
// location and secrets in the platform keyring. An empty location
// yields a MemoryBackend whose contents do not survive the process.
func OpenSystemBackend(location string) (Backend, error) {
	if location == "" {
		return NewMemoryBackend(""), nil
	}
	return OpenFileBackend(location)
}
