package keychain

import "maps"

// Collection is a view of one credential kind over a set of stores.
// Queries built from it carry the kind, the bound stores and any preset
// conditions, so callers only supply what is specific to the call.
type Collection struct {
	kind         Kind
	defaultStore *Store
	targets      []*Store
	preset       Conditions
}

// CollectionOption configures a Collection.
type CollectionOption func(*Collection)

// InStores binds the collection to stores, searched in the given order.
// Add writes to the first of them.
func InStores(stores ...*Store) CollectionOption {
	return func(c *Collection) {
		c.targets = append([]*Store(nil), stores...)
	}
}

// Where presets conditions applied to every find and merged into every add.
func Where(conditions Conditions) CollectionOption {
	return func(c *Collection) {
		if c.preset == nil {
			c.preset = make(Conditions, len(conditions))
		}
		maps.Copy(c.preset, conditions)
	}
}

// NewCollection returns a collection of kind. defaultStore is used when
// no stores are bound.
func NewCollection(kind Kind, defaultStore *Store, opts ...CollectionOption) *Collection {
	c := &Collection{kind: kind, defaultStore: defaultStore}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Kind returns the collection's credential kind.
func (c *Collection) Kind() Kind { return c.kind }

// With returns a copy of the collection with further options applied.
func (c *Collection) With(opts ...CollectionOption) *Collection {
	cp := &Collection{
		kind:         c.kind,
		defaultStore: c.defaultStore,
		targets:      append([]*Store(nil), c.targets...),
		preset:       maps.Clone(c.preset),
	}
	for _, opt := range opts {
		opt(cp)
	}
	return cp
}

// Stores returns the stores a find will search, in order.
func (c *Collection) Stores() []*Store {
	if len(c.targets) > 0 {
		return append([]*Store(nil), c.targets...)
	}
	return []*Store{c.defaultStore}
}

// Add creates a credential with fields and secret in the collection's
// store: the first bound store, or the default store.
func (c *Collection) Add(fields Conditions, secret []byte) (*Item, error) {
	return add(c.Stores()[0], c.kind, c.merge(fields), secret)
}

// Find runs a query with the collection's scope. limit 0 means no limit.
func (c *Collection) Find(cardinality Cardinality, conditions Conditions, limit int) ([]*Item, error) {
	q, err := NewQuery(c.kind, cardinality, c.merge(conditions), c.Stores(), limit)
	if err != nil {
		return nil, err
	}
	return q.Execute()
}

// First returns the first match in store order. ok is false when nothing
// matched.
func (c *Collection) First(conditions Conditions) (item *Item, ok bool, err error) {
	q, err := NewQuery(c.kind, First, c.merge(conditions), c.Stores(), 0)
	if err != nil {
		return nil, false, err
	}
	return q.ExecuteFirst()
}

// All returns every match across the collection's stores, truncated to
// limit when limit is positive.
func (c *Collection) All(conditions Conditions, limit int) ([]*Item, error) {
	return c.Find(All, conditions, limit)
}

// merge layers caller conditions over the preset ones.
func (c *Collection) merge(conditions Conditions) Conditions {
	out := make(Conditions, len(c.preset)+len(conditions))
	maps.Copy(out, c.preset)
	maps.Copy(out, conditions)
	return out
}
