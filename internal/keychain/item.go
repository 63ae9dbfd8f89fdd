package keychain

import (
	"errors"
	"fmt"
	"maps"
)

// State is the lifecycle position of an Item's local data.
type State int

const (
	// Unmaterialized: attributes have not been read yet.
	Unmaterialized State = iota
	// Materialized: attributes are cached and match the store.
	Materialized
	// PendingEdit: attributes or secret were changed and not yet saved.
	PendingEdit
)

func (s State) String() string {
	switch s {
	case Materialized:
		return "materialized"
	case PendingEdit:
		return "pending_edit"
	}
	return "unmaterialized"
}

// Item is one stored credential. Attribute reads are served from a cache
// filled on first access; writes stay local until Save.
//
// An Item is not safe for concurrent use. Two Items for the same record
// do not see each other's unsaved edits, and concurrent saves are last
// writer wins.
type Item struct {
	kind  Kind
	store *Store
	ref   Ref

	// snapshot is the canonical attribute set captured at search time,
	// consumed by the first materialization.
	snapshot map[string]any
	attrs    map[string]any

	pendingSecret []byte
	hasSecret     bool
	state         State
}

func newItem(kind Kind, store *Store, ref Ref, snapshot map[string]any) *Item {
	return &Item{kind: kind, store: store, ref: ref, snapshot: snapshot}
}

// Kind returns the credential kind.
func (it *Item) Kind() Kind { return it.kind }

// Store returns the store the item was read from or added to. The item
// does not own it.
func (it *Item) Store() *Store { return it.store }

// State returns the item's lifecycle state.
func (it *Item) State() State { return it.state }

func (it *Item) materialize() error {
	if it.attrs != nil {
		return nil
	}
	raw := it.snapshot
	if raw == nil {
		if err := it.store.usable(); err != nil {
			return err
		}
		var err error
		raw, err = it.store.backend.FetchSnapshot(it.ref)
		if err != nil {
			return translateStoreError("fetching attributes", it.kind, err)
		}
	}
	attrs, err := fromCanonicalMap(raw)
	if err != nil {
		return fmt.Errorf("store returned bad snapshot: %w", err)
	}
	it.attrs = attrs
	it.snapshot = nil
	if it.state == Unmaterialized {
		it.state = Materialized
	}
	return nil
}

// Get returns the value of the named attribute, or nil if the record
// does not carry it.
func (it *Item) Get(name string) (any, error) {
	if _, err := checkField(it.kind, name); err != nil {
		return nil, err
	}
	if err := it.materialize(); err != nil {
		return nil, err
	}
	return it.attrs[name], nil
}

// String returns a string attribute, or "" if unset.
func (it *Item) String(name string) (string, error) {
	v, err := it.Get(name)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

// Attributes returns a copy of all cached attributes.
func (it *Item) Attributes() (map[string]any, error) {
	if err := it.materialize(); err != nil {
		return nil, err
	}
	return maps.Clone(it.attrs), nil
}

// Set changes an attribute locally. A nil value removes it.
func (it *Item) Set(name string, value any) error {
	a, err := checkField(it.kind, name)
	if err != nil {
		return err
	}
	v, err := normalize(it.kind, a, value)
	if err != nil {
		return err
	}
	if err := it.materialize(); err != nil {
		return err
	}
	if v == nil {
		delete(it.attrs, name)
	} else {
		it.attrs[name] = v
	}
	it.state = PendingEdit
	return nil
}

// SetSecret stages a new secret. Secret returns it until Save commits it.
func (it *Item) SetSecret(secret []byte) {
	it.pendingSecret = append([]byte(nil), secret...)
	it.hasSecret = true
	it.state = PendingEdit
}

// Secret returns the staged secret if there is one, otherwise the
// persisted secret read from the store.
func (it *Item) Secret() ([]byte, error) {
	if it.hasSecret {
		return append([]byte(nil), it.pendingSecret...), nil
	}
	if err := it.store.usable(); err != nil {
		return nil, err
	}
	secret, err := it.store.backend.FetchSecret(it.ref)
	if err != nil {
		return nil, translateStoreError("fetching secret", it.kind, err)
	}
	return secret, nil
}

// Save writes the cached attributes and any staged secret to the
// record. On success the cache is refreshed from the store; an error
// means nothing was written.
func (it *Item) Save() error {
	if err := it.store.usable(); err != nil {
		return err
	}
	if err := it.materialize(); err != nil {
		return err
	}
	if missing := missingFields(it.kind, it.attrs); len(missing) > 0 {
		return &ValidationError{Kind: it.kind, Missing: missing}
	}

	canonical, err := toCanonicalMap(it.kind, it.attrs)
	if err != nil {
		return err
	}
	var secret []byte
	if it.hasSecret {
		secret = it.pendingSecret
		if secret == nil {
			secret = []byte{}
		}
	}

	ref, err := it.store.backend.Update(it.ref, canonical, secret)
	if err != nil {
		if status, _ := StatusOf(err); status == StatusDuplicateItem {
			return &DuplicateItemError{Kind: it.kind, Key: keyOf(it.kind, it.attrs), Location: it.store.Location()}
		}
		return translateStoreError("saving item", it.kind, err)
	}
	it.store.logger.Debug("item saved", "kind", it.kind.String(), "secret", it.hasSecret)

	it.ref = ref
	it.pendingSecret = nil
	it.hasSecret = false
	it.attrs = nil
	it.snapshot = nil
	it.state = Unmaterialized

	// The write is committed. If the refresh fails the item stays
	// unmaterialized and the next read fetches again.
	if err := it.materialize(); err != nil {
		it.store.logger.Warn("refreshing saved item", "kind", it.kind.String(), "error", err)
	}
	return nil
}

// translateStoreError maps the item-not-found status onto ErrNotFound
// and passes every other failure through.
func translateStoreError(op string, kind Kind, err error) error {
	var se *StoreError
	if errors.As(err, &se) && se.Status == StatusItemNotFound {
		return fmt.Errorf("%s: %w: %s", op, ErrNotFound, kind)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func missingFields(kind Kind, fields map[string]any) []string {
	var missing []string
	for _, name := range identifyingFields[kind] {
		v, ok := fields[name]
		if !ok || v == nil || v == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

func keyOf(kind Kind, fields map[string]any) map[string]any {
	key := make(map[string]any, len(identifyingFields[kind]))
	for _, name := range identifyingFields[kind] {
		key[name] = fields[name]
	}
	return key
}
