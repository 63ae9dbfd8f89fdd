package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds settings loaded from ~/.keychain/config.yaml.
type Config struct {
	// DefaultStore names the store used when none is given. Empty means
	// the platform default keychain.
	DefaultStore string `yaml:"default_store"`
	// Stores maps short names to store locations.
	Stores   map[string]string `yaml:"stores"`
	AuditLog string            `yaml:"audit_log"`
	Actor    string            `yaml:"actor"`
}

// Home returns the keychain tool's home directory (~/.keychain).
func Home() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".keychain")
}

// DefaultPath returns the default config file path: ~/.keychain/config.yaml.
func DefaultPath() string {
	dir := Home()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads a YAML config file from path. If the file does not exist,
// it returns an empty Config and no error. An empty or all-comment file
// also returns an empty Config with no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.DefaultStore != "" {
		if _, ok := cfg.Stores[cfg.DefaultStore]; !ok {
			return nil, fmt.Errorf("config %s: default_store %q is not defined in stores", path, cfg.DefaultStore)
		}
	}
	return cfg, nil
}

// Location resolves a store name to its location. Names not in Stores
// are taken as literal locations. "~/" prefixes are expanded.
func (c *Config) Location(name string) string {
	if loc, ok := c.Stores[name]; ok {
		name = loc
	}
	return expandHome(name)
}

// DefaultLocation returns the location of the default store, or "" for
// the platform default.
func (c *Config) DefaultLocation() string {
	if c.DefaultStore == "" {
		return ""
	}
	return c.Location(c.DefaultStore)
}

// AuditLogPath returns the configured audit log path, or "" if auditing
// is disabled.
func (c *Config) AuditLogPath() string {
	return expandHome(c.AuditLog)
}

// StoreNames returns the configured store names, sorted.
func (c *Config) StoreNames() []string {
	names := make([]string, 0, len(c.Stores))
	for n := range c.Stores {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}
