package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var logEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestLog(t *testing.T) *Logger {
	t.Helper()
	l, err := NewLogger(filepath.Join(t.TempDir(), "audit.log"))
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	l.SetClock(func() time.Time { return logEpoch })
	return l
}

func TestStoreOperationsRoundTrip(t *testing.T) {
	l := openTestLog(t)
	ops := []Entry{
		{Action: ActionSearch, Store: "/tmp/work.keychain", Kind: "generic_password", Count: 2, Actor: "cli"},
		{Action: ActionCreate, Store: "/tmp/work.keychain", Kind: "generic_password", Key: "{account=deploy service=github}", Actor: "cli"},
		{Action: ActionSecretRead, Store: "/tmp/work.keychain", Kind: "generic_password", Key: "{account=deploy service=github}", Actor: "cli"},
	}
	for _, e := range ops {
		if err := l.Log(e); err != nil {
			t.Fatalf("Log(%s): %v", e.Action, err)
		}
	}

	got, err := ReadFile(l.Path(), Filter{})
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].Count != 2 || got[0].Key != "" {
		t.Errorf("expected search entry with count and no key, got %+v", got[0])
	}
	if got[1].Key != "{account=deploy service=github}" {
		t.Errorf("expected create key, got %q", got[1].Key)
	}
	if !got[2].Timestamp.Equal(logEpoch) {
		t.Errorf("expected clock timestamp %v, got %v", logEpoch, got[2].Timestamp)
	}
}

func TestLogRejectsUnknownAction(t *testing.T) {
	l := openTestLog(t)
	if err := l.Log(Entry{Action: "secret_delete", Store: "x"}); err == nil {
		t.Error("expected error for an action the store never performs")
	}
	got, _ := ReadFile(l.Path(), Filter{})
	if len(got) != 0 {
		t.Errorf("expected nothing written, got %d entries", len(got))
	}
}

func TestReadFilters(t *testing.T) {
	l := openTestLog(t)
	l.Log(Entry{Timestamp: logEpoch, Action: ActionSearch, Store: "login", Count: 1})
	l.Log(Entry{Timestamp: logEpoch.Add(time.Minute), Action: ActionUpdate, Store: "work", Status: -25300, Error: "item not found"})
	l.Log(Entry{Timestamp: logEpoch.Add(2 * time.Minute), Action: ActionSecretRead, Store: "work"})
	l.Log(Entry{Timestamp: logEpoch.Add(3 * time.Minute), Action: ActionSecretRead, Store: "login"})

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 4},
		{"action", Filter{Action: ActionSecretRead}, 2},
		{"store", Filter{Store: "work"}, 2},
		{"action and store", Filter{Action: ActionSecretRead, Store: "login"}, 1},
		{"since", Filter{Since: logEpoch.Add(2 * time.Minute)}, 2},
		{"failed", Filter{Failed: true}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadFile(l.Path(), tt.filter)
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("expected %d entries, got %d", tt.want, len(got))
			}
		})
	}
}

func TestReadMalformedLine(t *testing.T) {
	input := `{"action":"item_search","store":"a"}

not json
`
	_, err := Read(strings.NewReader(input), Filter{})
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Errorf("expected error naming line 3, got %v", err)
	}
}

func TestReadFileMissing(t *testing.T) {
	got, err := ReadFile(filepath.Join(t.TempDir(), "absent.log"), Filter{})
	if err != nil || got != nil {
		t.Errorf("expected no entries and no error, got %v, %v", got, err)
	}
}

func TestLoggerAppendsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.log")
	for _, a := range []Action{ActionCreate, ActionUpdate} {
		l, err := NewLogger(path)
		if err != nil {
			t.Fatalf("NewLogger: %v", err)
		}
		l.Log(Entry{Action: a, Store: "work"})
		l.Close()
	}

	got, err := ReadFile(path, Filter{})
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != 2 || got[0].Action != ActionCreate || got[1].Action != ActionUpdate {
		t.Errorf("expected create then update, got %+v", got)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("expected 0600, got %o", perm)
	}
}

func TestParseAction(t *testing.T) {
	if a, err := ParseAction("secret_read"); err != nil || a != ActionSecretRead {
		t.Errorf("ParseAction(secret_read) = %q, %v", a, err)
	}
	if _, err := ParseAction("secret_write"); err == nil {
		t.Error("expected error for unknown action")
	}
}
