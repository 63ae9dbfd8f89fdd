package keychain

import (
	"fmt"
	"maps"
)

// add creates a record in store. The primary key is checked for
// duplicates before the create call is issued.
func add(store *Store, kind Kind, fields Conditions, secret []byte) (*Item, error) {
	if err := store.usable(); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown kind %d", int(kind))}
	}

	attrs, err := toCanonicalMap(kind, fields)
	if err != nil {
		return nil, err
	}
	typed, err := fromCanonicalMap(attrs)
	if err != nil {
		return nil, err
	}
	if missing := missingFields(kind, typed); len(missing) > 0 {
		return nil, &ValidationError{Kind: kind, Missing: missing}
	}

	key := keyOf(kind, typed)
	keyConds, err := toCanonicalMap(kind, key)
	if err != nil {
		return nil, err
	}
	existing, err := store.backend.Search(kind, keyConds)
	if err != nil {
		return nil, fmt.Errorf("checking for duplicate %s: %w", kind, err)
	}
	if len(existing) > 0 {
		return nil, &DuplicateItemError{Kind: kind, Key: key, Location: store.Location()}
	}

	if secret == nil {
		secret = []byte{}
	}
	ref, err := store.backend.Create(kind, maps.Clone(attrs), secret)
	if err != nil {
		if status, _ := StatusOf(err); status == StatusDuplicateItem {
			return nil, &DuplicateItemError{Kind: kind, Key: key, Location: store.Location()}
		}
		return nil, fmt.Errorf("creating %s: %w", kind, err)
	}
	store.logger.Debug("item created", "kind", kind.String(), "key", formatKey(key))

	return newItem(kind, store, ref, nil), nil
}
