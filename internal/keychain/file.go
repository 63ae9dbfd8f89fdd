package keychain

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

const fileIndexVersion = 1

// FileBackend stores record attributes in a YAML index file and the
// secrets in the OS keyring. The index never contains secret material.
//
// Secrets are kept under service "keychain:<location>", one keyring
// entry per record, keyed by the record ID.
type FileBackend struct {
	mu       sync.Mutex
	location string
	service  string
	records  []fileRecord
	closed   bool
	now      func() time.Time
}

type fileIndex struct {
	Version int          `yaml:"version"`
	Records []fileRecord `yaml:"records"`
}

type fileRecord struct {
	ID    string         `yaml:"id"`
	Class string         `yaml:"class"`
	Attrs map[string]any `yaml:"attributes"`
}

type fileRef string

// OpenFileBackend loads the index at location. A missing file is an
// empty store; it is created on the first write.
func OpenFileBackend(location string) (*FileBackend, error) {
	fb := &FileBackend{
		location: location,
		service:  "keychain:" + location,
		now:      time.Now,
	}

	data, err := os.ReadFile(location)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fb, nil
		}
		return nil, NewStoreError("open", StatusStoreClosed, err)
	}

	var idx fileIndex
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return nil, NewStoreError("open", StatusDecode, fmt.Errorf("parsing %s: %w", location, err))
	}
	if idx.Version > fileIndexVersion {
		return nil, NewStoreError("open", StatusDecode, fmt.Errorf("%s: unsupported index version %d", location, idx.Version))
	}
	for i := range idx.Records {
		attrs, err := decodeFileAttrs(idx.Records[i].Attrs)
		if err != nil {
			return nil, NewStoreError("open", StatusDecode, fmt.Errorf("%s: record %s: %w", location, idx.Records[i].ID, err))
		}
		idx.Records[i].Attrs = attrs
	}
	fb.records = idx.Records
	return fb, nil
}

// SetClock replaces the clock used for creation and modification dates.
func (f *FileBackend) SetClock(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

func (f *FileBackend) Location() string { return f.location }

func (f *FileBackend) Search(kind Kind, conditions map[string]any) ([]Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, NewStoreError("search", StatusStoreClosed, nil)
	}
	var out []Snapshot
	for _, r := range f.records {
		if r.Class == kind.Code() && matches(r.Attrs, conditions) {
			out = append(out, Snapshot{Ref: fileRef(r.ID), Attrs: maps.Clone(r.Attrs)})
		}
	}
	return out, nil
}

func (f *FileBackend) Create(kind Kind, attrs map[string]any, secret []byte) (Ref, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, NewStoreError("create", StatusStoreClosed, nil)
	}
	for _, r := range f.records {
		if r.Class == kind.Code() && samePrimaryKey(kind, r.Attrs, attrs) {
			return nil, NewStoreError("create", StatusDuplicateItem, nil)
		}
	}

	now := f.now().UTC()
	rec := fileRecord{ID: uuid.NewString(), Class: kind.Code(), Attrs: maps.Clone(attrs)}
	if _, ok := rec.Attrs["cdat"]; !ok {
		rec.Attrs["cdat"] = now
	}
	rec.Attrs["mdat"] = now

	if err := keyring.Set(f.service, rec.ID, string(secret)); err != nil {
		return nil, NewStoreError("create", StatusInternalFailed, fmt.Errorf("storing secret: %w", err))
	}
	f.records = append(f.records, rec)
	if err := f.save(); err != nil {
		f.records = f.records[:len(f.records)-1]
		if delErr := keyring.Delete(f.service, rec.ID); delErr != nil {
			slog.Warn("orphaned keyring secret", "service", f.service, "id", rec.ID, "error", delErr)
		}
		return nil, NewStoreError("create", StatusInternalFailed, err)
	}
	return fileRef(rec.ID), nil
}

func (f *FileBackend) Update(ref Ref, attrs map[string]any, secret []byte) (Ref, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, NewStoreError("update", StatusStoreClosed, nil)
	}
	i, err := f.lookup("update", ref)
	if err != nil {
		return nil, err
	}
	rec := f.records[i]
	kind, _ := ParseKind(rec.Class)
	for j, other := range f.records {
		if j != i && other.Class == rec.Class && samePrimaryKey(kind, other.Attrs, attrs) {
			return nil, NewStoreError("update", StatusDuplicateItem, nil)
		}
	}

	var restoreSecret func()
	if secret != nil {
		previous, getErr := keyring.Get(f.service, rec.ID)
		if err := keyring.Set(f.service, rec.ID, string(secret)); err != nil {
			return nil, NewStoreError("update", StatusInternalFailed, fmt.Errorf("storing secret: %w", err))
		}
		restoreSecret = func() {
			var err error
			if getErr == nil {
				err = keyring.Set(f.service, rec.ID, previous)
			} else {
				err = keyring.Delete(f.service, rec.ID)
			}
			if err != nil {
				slog.Warn("could not restore keyring secret", "service", f.service, "id", rec.ID, "error", err)
			}
		}
	}

	updated := maps.Clone(attrs)
	if _, ok := updated["cdat"]; !ok {
		if created, ok := rec.Attrs["cdat"]; ok {
			updated["cdat"] = created
		}
	}
	updated["mdat"] = f.now().UTC()
	previous := rec.Attrs
	f.records[i].Attrs = updated
	if err := f.save(); err != nil {
		f.records[i].Attrs = previous
		if restoreSecret != nil {
			restoreSecret()
		}
		return nil, NewStoreError("update", StatusInternalFailed, err)
	}
	return ref, nil
}

func (f *FileBackend) FetchSecret(ref Ref) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, NewStoreError("fetch secret", StatusStoreClosed, nil)
	}
	i, err := f.lookup("fetch secret", ref)
	if err != nil {
		return nil, err
	}
	secret, err := keyring.Get(f.service, f.records[i].ID)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, NewStoreError("fetch secret", StatusItemNotFound, err)
		}
		return nil, NewStoreError("fetch secret", StatusInternalFailed, err)
	}
	return []byte(secret), nil
}

func (f *FileBackend) FetchSnapshot(ref Ref) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, NewStoreError("fetch attributes", StatusStoreClosed, nil)
	}
	i, err := f.lookup("fetch attributes", ref)
	if err != nil {
		return nil, err
	}
	return maps.Clone(f.records[i].Attrs), nil
}

func (f *FileBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FileBackend) lookup(op string, ref Ref) (int, error) {
	id, ok := ref.(fileRef)
	if !ok {
		return -1, NewStoreError(op, StatusInvalidRecord, nil)
	}
	for i, r := range f.records {
		if r.ID == string(id) {
			return i, nil
		}
	}
	return -1, NewStoreError(op, StatusItemNotFound, nil)
}

// save writes the index atomically: tmp file then rename.
func (f *FileBackend) save() error {
	data, err := yaml.Marshal(fileIndex{Version: fileIndexVersion, Records: f.records})
	if err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.location), 0700); err != nil {
		return fmt.Errorf("creating store dir: %w", err)
	}
	tmpPath := f.location + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, f.location)
}

// decodeFileAttrs restores attribute value types after a YAML round
// trip: timestamps may come back as strings and ports as any int width.
func decodeFileAttrs(raw map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	for code, v := range raw {
		a, ok := byCode[code]
		if !ok {
			return nil, fmt.Errorf("unknown attribute code %q", code)
		}
		if s, isString := v.(string); isString && a.Type != StringValue {
			parsed, err := ParseValue(a.Name, s)
			if err != nil {
				return nil, err
			}
			v = parsed
		}
		nv, err := normalize(0, a, v)
		if err != nil {
			return nil, err
		}
		out[code] = nv
	}
	return out, nil
}
