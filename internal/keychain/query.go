package keychain

import (
	"fmt"
	"maps"
)

// Cardinality selects between the first match and all matches.
type Cardinality int

const (
	First Cardinality = iota
	All
)

func (c Cardinality) String() string {
	if c == All {
		return "all"
	}
	return "first"
}

// Conditions maps semantic attribute names to expected values.
type Conditions map[string]any

// Query is a validated search request. It is immutable once built.
type Query struct {
	kind        Kind
	conditions  Conditions
	canonical   map[string]any
	targets     []*Store
	cardinality Cardinality
	limit       int
}

// NewQuery validates a search request. targets are searched in order;
// limit 0 means no limit and only applies to All.
func NewQuery(kind Kind, cardinality Cardinality, conditions Conditions, targets []*Store, limit int) (*Query, error) {
	if !kind.Valid() {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown kind %d", int(kind))}
	}
	if len(targets) == 0 {
		return nil, &ValidationError{Kind: kind, Reason: "query has no target stores"}
	}
	for i, s := range targets {
		if s == nil {
			return nil, fmt.Errorf("target %d: %w", i, ErrNoStore)
		}
	}
	if limit < 0 {
		return nil, &ValidationError{Kind: kind, Reason: fmt.Sprintf("limit must not be negative, got %d", limit)}
	}
	canonical, err := toCanonicalMap(kind, conditions)
	if err != nil {
		return nil, err
	}
	return &Query{
		kind:        kind,
		conditions:  maps.Clone(conditions),
		canonical:   canonical,
		targets:     append([]*Store(nil), targets...),
		cardinality: cardinality,
		limit:       limit,
	}, nil
}

func (q *Query) Kind() Kind { return q.kind }
func (q *Query) Cardinality() Cardinality { return q.cardinality }
func (q *Query) Limit() int { return q.limit }
func (q *Query) Conditions() Conditions { return maps.Clone(q.conditions) }
func (q *Query) Targets() []*Store { return append([]*Store(nil), q.targets...) }

// Execute searches the targets one after another. For First it stops at
// the first store with a match and returns at most one item. For All it
// concatenates matches in target order, without de-duplication, and
// truncates to the limit afterwards. A failing store aborts the query.
func (q *Query) Execute() ([]*Item, error) {
	var items []*Item
	for _, s := range q.targets {
		if err := s.usable(); err != nil {
			return nil, err
		}
		snaps, err := s.backend.Search(q.kind, maps.Clone(q.canonical))
		if err != nil {
			return nil, fmt.Errorf("searching %s: %w", locationLabel(s.Location()), err)
		}
		s.logger.Debug("search", "kind", q.kind.String(), "conditions", len(q.canonical), "count", len(snaps))

		if q.cardinality == First {
			if len(snaps) > 0 {
				return []*Item{newItem(q.kind, s, snaps[0].Ref, snaps[0].Attrs)}, nil
			}
			continue
		}
		for _, snap := range snaps {
			items = append(items, newItem(q.kind, s, snap.Ref, snap.Attrs))
		}
	}
	if q.cardinality == All && q.limit > 0 && len(items) > q.limit {
		items = items[:q.limit]
	}
	if items == nil && q.cardinality == All {
		items = []*Item{}
	}
	return items, nil
}

// ExecuteFirst runs the query for a single result. ok is false when no
// target holds a match; that is not an error.
func (q *Query) ExecuteFirst() (item *Item, ok bool, err error) {
	first := *q
	first.cardinality = First
	items, err := first.Execute()
	if err != nil {
		return nil, false, err
	}
	if len(items) == 0 {
		return nil, false, nil
	}
	return items[0], true, nil
}
