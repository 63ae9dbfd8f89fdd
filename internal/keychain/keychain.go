// Package keychain provides typed access to secure credential stores.
//
// Credentials are stored as generic or internet passwords. Callers work
// with semantic attribute names ("account", "service", "host") and the
// package maps them to the four-character codes the store uses
// internally ("acct", "svce", "srvr").
//
// The store itself is a Backend: the macOS Keychain on darwin
// (SystemBackend), a YAML index plus OS keyring secrets elsewhere
// (FileBackend), or an in-memory map for tests (MemoryBackend). Several
// stores can be searched together as one namespace through a Collection.
package keychain

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Ref is an opaque record handle issued by a Backend.
type Ref any

// Snapshot is one record as returned by a search: its handle and its
// attributes keyed by canonical code.
type Snapshot struct {
	Ref   Ref
	Attrs map[string]any
}

// Backend performs the secure storage operations for one store. All
// attribute maps are keyed by canonical code. Failures are *StoreError.
type Backend interface {
	Location() string
	Search(kind Kind, conditions map[string]any) ([]Snapshot, error)
	Create(kind Kind, attrs map[string]any, secret []byte) (Ref, error)
	// Update replaces the record's attributes. A nil secret leaves the
	// stored secret unchanged. The returned Ref addresses the record
	// from now on.
	Update(ref Ref, attrs map[string]any, secret []byte) (Ref, error)
	FetchSecret(ref Ref) ([]byte, error)
	FetchSnapshot(ref Ref) (map[string]any, error)
	Close() error
}

// Store is one open credential container.
type Store struct {
	backend Backend
	closed  atomic.Bool
	logger  *slog.Logger
}

// NewStore wraps an opened backend.
func NewStore(b Backend) *Store {
	return &Store{
		backend: b,
		logger:  slog.With("component", "keychain", "store", locationLabel(b.Location())),
	}
}

// Location returns the store's path-like identifier. Empty means the
// platform default.
func (s *Store) Location() string {
	return s.backend.Location()
}

// Close closes the backend. Items bound to the store can no longer save.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if err := s.backend.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", locationLabel(s.Location()), err)
	}
	return nil
}

// Closed reports whether Close has been called.
func (s *Store) Closed() bool {
	return s.closed.Load()
}

func (s *Store) String() string {
	return fmt.Sprintf("<Keychain: %s>", locationLabel(s.Location()))
}

// GenericPasswords returns a collection of generic passwords in this store.
func (s *Store) GenericPasswords() *Collection {
	return NewCollection(GenericPassword, s)
}

// InternetPasswords returns a collection of internet passwords in this store.
func (s *Store) InternetPasswords() *Collection {
	return NewCollection(InternetPassword, s)
}

// Search returns every record of kind in this store matching conditions.
func (s *Store) Search(kind Kind, conditions Conditions) ([]*Item, error) {
	q, err := NewQuery(kind, All, conditions, []*Store{s}, 0)
	if err != nil {
		return nil, err
	}
	return q.Execute()
}

func (s *Store) usable() error {
	if s == nil {
		return ErrNoStore
	}
	if s.Closed() {
		return fmt.Errorf("%w: %s", ErrStoreClosed, locationLabel(s.Location()))
	}
	return nil
}
