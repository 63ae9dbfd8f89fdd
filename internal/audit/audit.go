// Package audit records credential store operations as newline-delimited
// JSON and reads them back.
//
// An audited store writes one entry per search, create, update, attribute
// fetch and secret read. Secrets never appear in entries; items are named
// by their primary key.
package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Action is the store operation an entry records.
type Action string

const (
	ActionSearch     Action = "item_search"
	ActionCreate     Action = "item_create"
	ActionUpdate     Action = "item_update"
	ActionRead       Action = "item_read"
	ActionSecretRead Action = "secret_read"
)

var actions = map[Action]bool{
	ActionSearch:     true,
	ActionCreate:     true,
	ActionUpdate:     true,
	ActionRead:       true,
	ActionSecretRead: true,
}

// Valid reports whether a is one of the recorded store operations.
func (a Action) Valid() bool { return actions[a] }

// ParseAction accepts an action name such as "secret_read".
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("unknown audit action %q", s)
	}
	return a, nil
}

// Entry is one audited store operation.
type Entry struct {
	Timestamp time.Time `json:"ts"`
	Action    Action    `json:"action"`
	Store     string    `json:"store"`
	Kind      string    `json:"kind,omitempty"`
	Key       string    `json:"key,omitempty"`
	Count     int       `json:"count,omitempty"` // search results
	Actor     string    `json:"actor,omitempty"`
	Status    int       `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Failed reports whether the operation returned an error.
func (e Entry) Failed() bool { return e.Error != "" }

// Logger appends entries to a file shared by every audited store of a
// process.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	path string
	now  func() time.Time
}

// NewLogger opens path for appending, creating it and its directory
// owner-only if needed.
func NewLogger(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating audit log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return &Logger{file: f, path: path, now: time.Now}, nil
}

// SetClock replaces the timestamp source for entries logged without one.
func (l *Logger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *Logger) Path() string { return l.path }

// Log appends entry. Entries without a valid action are rejected.
func (l *Logger) Log(entry Entry) error {
	if !entry.Action.Valid() {
		return fmt.Errorf("audit entry: unknown action %q", entry.Action)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding audit entry: %w", err)
	}
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit entry: %w", err)
	}
	return nil
}

func (l *Logger) Close() error {
	return l.file.Close()
}

// Filter selects entries. Zero fields match everything.
type Filter struct {
	Action Action
	Store  string
	Since  time.Time
	Failed bool // only entries that recorded an error
}

func (f Filter) match(e Entry) bool {
	switch {
	case f.Action != "" && e.Action != f.Action:
		return false
	case f.Store != "" && e.Store != f.Store:
		return false
	case !f.Since.IsZero() && e.Timestamp.Before(f.Since):
		return false
	case f.Failed && !e.Failed():
		return false
	}
	return true
}

// Read decodes entries from r in file order, keeping those matching f.
// Blank lines are skipped; a malformed line is an error naming its line
// number.
func Read(r io.Reader, f Filter) ([]Entry, error) {
	var out []Entry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("audit log line %d: %w", line, err)
		}
		if f.match(e) {
			out = append(out, e)
		}
	}
	return out, sc.Err()
}

// ReadFile reads the entries of the log at path matching f. A missing
// file holds no entries.
func ReadFile(path string, f Filter) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()
	return Read(file, f)
}
