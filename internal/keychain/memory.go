package keychain

import (
	"maps"
	"sync"
	"time"
)

// MemoryBackend is an in-memory Backend for tests and for platforms
// without a configured store.
type MemoryBackend struct {
	mu       sync.RWMutex
	location string
	records  []*memoryRecord
	nextID   int
	closed   bool
	now      func() time.Time
}

type memoryRecord struct {
	id     int
	kind   Kind
	attrs  map[string]any
	secret []byte
}

type memoryRef int

// NewMemoryBackend creates an empty in-memory store.
func NewMemoryBackend(location string) *MemoryBackend {
	return &MemoryBackend{location: location, now: time.Now}
}

// SetClock replaces the clock used for creation and modification dates.
func (m *MemoryBackend) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryBackend) Location() string { return m.location }

func (m *MemoryBackend) Search(kind Kind, conditions map[string]any) ([]Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, NewStoreError("search", StatusStoreClosed, nil)
	}
	var out []Snapshot
	for _, r := range m.records {
		if r.kind == kind && matches(r.attrs, conditions) {
			out = append(out, Snapshot{Ref: memoryRef(r.id), Attrs: maps.Clone(r.attrs)})
		}
	}
	return out, nil
}

func (m *MemoryBackend) Create(kind Kind, attrs map[string]any, secret []byte) (Ref, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, NewStoreError("create", StatusStoreClosed, nil)
	}
	for _, r := range m.records {
		if r.kind == kind && samePrimaryKey(kind, r.attrs, attrs) {
			return nil, NewStoreError("create", StatusDuplicateItem, nil)
		}
	}
	now := m.now().UTC()
	rec := &memoryRecord{
		id:     m.nextID,
		kind:   kind,
		attrs:  maps.Clone(attrs),
		secret: append([]byte(nil), secret...),
	}
	if _, ok := rec.attrs["cdat"]; !ok {
		rec.attrs["cdat"] = now
	}
	rec.attrs["mdat"] = now
	m.nextID++
	m.records = append(m.records, rec)
	return memoryRef(rec.id), nil
}

func (m *MemoryBackend) Update(ref Ref, attrs map[string]any, secret []byte) (Ref, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, NewStoreError("update", StatusStoreClosed, nil)
	}
	rec, err := m.lookup("update", ref)
	if err != nil {
		return nil, err
	}
	for _, other := range m.records {
		if other != rec && other.kind == rec.kind && samePrimaryKey(rec.kind, other.attrs, attrs) {
			return nil, NewStoreError("update", StatusDuplicateItem, nil)
		}
	}
	created := rec.attrs["cdat"]
	rec.attrs = maps.Clone(attrs)
	if _, ok := rec.attrs["cdat"]; !ok && created != nil {
		rec.attrs["cdat"] = created
	}
	rec.attrs["mdat"] = m.now().UTC()
	if secret != nil {
		rec.secret = append([]byte(nil), secret...)
	}
	return ref, nil
}

func (m *MemoryBackend) FetchSecret(ref Ref) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, NewStoreError("fetch secret", StatusStoreClosed, nil)
	}
	rec, err := m.lookup("fetch secret", ref)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), rec.secret...), nil
}

func (m *MemoryBackend) FetchSnapshot(ref Ref) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, NewStoreError("fetch attributes", StatusStoreClosed, nil)
	}
	rec, err := m.lookup("fetch attributes", ref)
	if err != nil {
		return nil, err
	}
	return maps.Clone(rec.attrs), nil
}

// Delete removes the record behind ref. Deletion is not part of the
// typed layer; tests use it to simulate records removed by another
// process.
func (m *MemoryBackend) Delete(ref Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.records {
		if id, ok := ref.(memoryRef); ok && int(id) == r.id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return nil
}

// Len returns the number of records.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryBackend) lookup(op string, ref Ref) (*memoryRecord, error) {
	id, ok := ref.(memoryRef)
	if !ok {
		return nil, NewStoreError(op, StatusInvalidRecord, nil)
	}
	for _, r := range m.records {
		if r.id == int(id) {
			return r, nil
		}
	}
	return nil, NewStoreError(op, StatusItemNotFound, nil)
}

// matches reports whether attrs holds every condition. Conditions on
// attributes the record lacks never match.
func matches(attrs, conditions map[string]any) bool {
	for code, want := range conditions {
		got, ok := attrs[code]
		if !ok || !equalValue(got, want) {
			return false
		}
	}
	return true
}

func equalValue(a, b any) bool {
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	return a == b
}

// samePrimaryKey compares the identifying attributes of two canonical maps.
func samePrimaryKey(kind Kind, a, b map[string]any) bool {
	for _, name := range identifyingFields[kind] {
		code := byName[name].Code
		if !equalValue(a[code], b[code]) {
			return false
		}
	}
	return true
}
