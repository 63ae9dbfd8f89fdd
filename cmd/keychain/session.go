package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/benaskins/keychain/internal/audit"
	"github.com/benaskins/keychain/internal/config"
	"github.com/benaskins/keychain/internal/keychain"
)

const defaultActor = "cli"

// session holds the stores opened for one command invocation.
type session struct {
	cfg    *config.Config
	audit  *audit.Logger
	def    *keychain.Store
	bound  []*keychain.Store
	opened []*keychain.Store
}

// openSession loads the config and opens the default store plus every
// store named with --store.
func openSession() (*session, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, &usageError{err: err}
	}

	s := &session{cfg: cfg}
	if p := cfg.AuditLogPath(); p != "" {
		s.audit, err = audit.NewLogger(p)
		if err != nil {
			return nil, fmt.Errorf("opening audit log: %w", err)
		}
	}

	location, err := defaultLocation(cfg)
	if err != nil {
		s.close()
		return nil, err
	}
	if s.def, err = s.open(location); err != nil {
		s.close()
		return nil, err
	}
	for _, name := range storeNames {
		st, err := s.open(cfg.Location(name))
		if err != nil {
			s.close()
			return nil, err
		}
		s.bound = append(s.bound, st)
	}
	return s, nil
}

// defaultLocation is the configured default store, or the platform
// fallback when none is configured.
func defaultLocation(cfg *config.Config) (string, error) {
	if loc := cfg.DefaultLocation(); loc != "" {
		return loc, nil
	}
	return fallbackLocation()
}

func (s *session) open(location string) (*keychain.Store, error) {
	b, err := keychain.OpenSystemBackend(location)
	if err != nil {
		return nil, fmt.Errorf("opening store %q: %w", location, err)
	}
	var backend keychain.Backend = b
	if s.audit != nil {
		backend = keychain.NewAuditedBackend(backend, s.audit, s.actor())
	}
	st := keychain.NewStore(backend)
	s.opened = append(s.opened, st)
	slog.Debug("store opened", "store", st)
	return st, nil
}

func (s *session) actor() string {
	if s.cfg.Actor != "" {
		return s.cfg.Actor
	}
	return defaultActor
}

// collection returns the kind's collection over the bound stores, or the
// default store when none were named.
func (s *session) collection(kind keychain.Kind) *keychain.Collection {
	return keychain.NewCollection(kind, s.def, keychain.InStores(s.bound...))
}

// primary is the store writes go to.
func (s *session) primary() *keychain.Store {
	if len(s.bound) > 0 {
		return s.bound[0]
	}
	return s.def
}

func (s *session) close() error {
	var errs []error
	for _, st := range s.opened {
		errs = append(errs, st.Close())
	}
	if s.audit != nil {
		errs = append(errs, s.audit.Close())
	}
	return errors.Join(errs...)
}
