//go:build !darwin

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/zalando/go-keyring"
)

// resetFlags restores every flag to its default so one invocation does
// not leak into the next.
func resetFlags(c *cobra.Command) {
	for _, fs := range []*pflag.FlagSet{c.Flags(), c.PersistentFlags()} {
		fs.VisitAll(func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				sv.Replace(nil)
			} else {
				f.Value.Set(f.DefValue)
			}
			f.Changed = false
		})
	}
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

type cliEnv struct {
	dir    string
	config string
}

func setupCLI(t *testing.T) *cliEnv {
	t.Helper()
	keyring.MockInit()
	dir := t.TempDir()
	cfg := `default_store: work
stores:
  work: ` + filepath.Join(dir, "work.yaml") + `
  personal: ` + filepath.Join(dir, "personal.yaml") + `
audit_log: ` + filepath.Join(dir, "audit.log") + `
actor: tester
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return &cliEnv{dir: dir, config: path}
}

// setupCLIWithoutDefault writes a config naming no stores and points
// HOME at a temp dir.
func setupCLIWithoutDefault(t *testing.T) *cliEnv {
	t.Helper()
	keyring.MockInit()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("actor: tester\n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return &cliEnv{dir: dir, config: path}
}

func (e *cliEnv) run(t *testing.T, stdin string, args ...string) (string, string, ExitCode) {
	t.Helper()
	resetFlags(rootCmd)
	var stdout, stderr bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	t.Cleanup(func() {
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	code := run(append([]string{"--config", e.config}, args...), &stderr)
	return stdout.String(), stderr.String(), code
}

func (e *cliEnv) mustRun(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	out, errOut, code := e.run(t, stdin, args...)
	if code != ExitOK {
		t.Fatalf("%v: exit %d: %s", args, code, errOut)
	}
	return out
}

func TestAddAndGet(t *testing.T) {
	env := setupCLI(t)

	out := env.mustRun(t, "s3cret\n", "add", "generic", "service=github", "account=deploy")
	if !strings.Contains(out, "Added generic_password") {
		t.Errorf("unexpected add output %q", out)
	}

	out = env.mustRun(t, "", "get", "generic", "service=github")
	if out != "s3cret\n" {
		t.Errorf("expected 's3cret', got %q", out)
	}
}

func TestAddInlineSecret(t *testing.T) {
	env := setupCLI(t)
	env.mustRun(t, "", "add", "internet", "host=git.example.com", "account=ci", "protocol=htps", "port=443", "--secret", "tok")

	out := env.mustRun(t, "", "get", "internet", "host=git.example.com", "port=443")
	if out != "tok\n" {
		t.Errorf("expected 'tok', got %q", out)
	}
}

func TestAddExitCodes(t *testing.T) {
	env := setupCLI(t)
	env.mustRun(t, "p1", "add", "generic", "service=svc", "account=acct")

	if _, _, code := env.run(t, "p2", "add", "generic", "service=svc", "account=acct"); code != ExitDuplicate {
		t.Errorf("expected ExitDuplicate, got %d", code)
	}
	if _, _, code := env.run(t, "p", "add", "generic", "service=svc"); code != ExitUsage {
		t.Errorf("expected ExitUsage for missing account, got %d", code)
	}
	if _, _, code := env.run(t, "p", "add", "generic", "service=svc", "account=a", "host=x"); code != ExitUsage {
		t.Errorf("expected ExitUsage for host on generic, got %d", code)
	}
	if _, _, code := env.run(t, "p", "add", "generic"); code != ExitUsage {
		t.Errorf("expected ExitUsage for missing fields, got %d", code)
	}
	if _, _, code := env.run(t, "", "find", "generic", "--bogus"); code != ExitUsage {
		t.Errorf("expected ExitUsage for unknown flag, got %d", code)
	}
}

func TestGetNoMatch(t *testing.T) {
	env := setupCLI(t)
	_, errOut, code := env.run(t, "", "get", "generic", "service=nope")
	if code != ExitNoMatch {
		t.Errorf("expected ExitNoMatch, got %d", code)
	}
	if !strings.Contains(errOut, "no matching item: generic_password service=nope") {
		t.Errorf("expected no match message, got %q", errOut)
	}
	if _, _, code := env.run(t, "", "find", "internet", "host=nope"); code != ExitNoMatch {
		t.Errorf("expected ExitNoMatch from find, got %d", code)
	}
}

func TestFindTable(t *testing.T) {
	env := setupCLI(t)
	env.mustRun(t, "p1", "add", "generic", "service=svc", "account=one", "description=first")
	env.mustRun(t, "p2", "add", "generic", "service=svc", "account=two")

	out := env.mustRun(t, "", "find", "generic", "service=svc", "--all", "--show-secret")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got:\n%s", out)
	}
	for _, col := range []string{"STORE", "SERVICE", "ACCOUNT", "DESCRIPTION", "SECRET"} {
		if !strings.Contains(lines[0], col) {
			t.Errorf("expected %s column in header %q", col, lines[0])
		}
	}
	if !strings.Contains(lines[1], "one") || !strings.Contains(lines[1], "first") || !strings.Contains(lines[1], "p1") {
		t.Errorf("unexpected first row %q", lines[1])
	}

	out = env.mustRun(t, "", "find", "generic", "service=svc")
	if n := len(strings.Split(strings.TrimSpace(out), "\n")); n != 2 {
		t.Errorf("expected a single match without --all, got %d lines", n)
	}
	if strings.Contains(out, "p1") {
		t.Error("secret shown without --show-secret")
	}

	if _, _, code := env.run(t, "", "find", "generic", "service=svc", "--limit", "-1"); code != ExitUsage {
		t.Errorf("expected ExitUsage for negative limit, got %d", code)
	}
}

func TestFindAcrossStores(t *testing.T) {
	env := setupCLI(t)
	env.mustRun(t, "w", "add", "generic", "service=svc", "account=work-acct")
	env.mustRun(t, "p", "--store", "personal", "add", "generic", "service=svc", "account=home-acct")

	out := env.mustRun(t, "", "--store", "personal", "--store", "work", "find", "generic", "service=svc", "--all")
	home := strings.Index(out, "home-acct")
	work := strings.Index(out, "work-acct")
	if home < 0 || work < 0 || home > work {
		t.Errorf("expected personal then work results, got:\n%s", out)
	}

	out = env.mustRun(t, "", "find", "generic", "service=svc", "--all")
	if strings.Contains(out, "home-acct") {
		t.Error("default store search returned an item from another store")
	}
}

func TestUpdate(t *testing.T) {
	env := setupCLI(t)
	env.mustRun(t, "p1", "add", "generic", "service=svc", "account=acct", "comment=old")

	env.mustRun(t, "p2\n", "update", "generic", "service=svc", "--set", "account=acct2", "--unset", "comment", "--secret")

	if out := env.mustRun(t, "", "get", "generic", "account=acct2"); out != "p2\n" {
		t.Errorf("expected p2, got %q", out)
	}
	if _, _, code := env.run(t, "", "get", "generic", "account=acct"); code != ExitNoMatch {
		t.Errorf("expected old account gone, got exit %d", code)
	}
	if _, _, code := env.run(t, "", "get", "generic", "comment=old"); code != ExitNoMatch {
		t.Errorf("expected comment removed, got exit %d", code)
	}
	if _, _, code := env.run(t, "", "update", "generic", "service=svc"); code != ExitUsage {
		t.Errorf("expected ExitUsage without changes, got %d", code)
	}
}

func TestRotateCommand(t *testing.T) {
	env := setupCLI(t)
	env.mustRun(t, "old", "add", "generic", "service=db", "account=app")

	env.mustRun(t, "", "rotate", "generic", "service=db", "--command", "echo fresh")
	if out := env.mustRun(t, "", "get", "generic", "service=db"); out != "fresh\n" {
		t.Errorf("expected fresh, got %q", out)
	}

	if _, _, code := env.run(t, "", "rotate", "generic", "service=db"); code != ExitUsage {
		t.Errorf("expected ExitUsage without --command, got %d", code)
	}
}

func TestAuditLogWritten(t *testing.T) {
	env := setupCLI(t)
	env.mustRun(t, "p1", "add", "generic", "service=svc", "account=acct")
	env.mustRun(t, "", "get", "generic", "service=svc")

	data, err := os.ReadFile(filepath.Join(env.dir, "audit.log"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	for _, want := range []string{`"item_create"`, `"secret_read"`, `"actor":"tester"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("expected %s in audit log:\n%s", want, data)
		}
	}
}

func TestStoresCommand(t *testing.T) {
	env := setupCLI(t)
	out := env.mustRun(t, "", "stores")
	if !strings.Contains(out, "personal") || !strings.Contains(out, "work") {
		t.Errorf("expected both stores listed, got:\n%s", out)
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "work") && !strings.HasSuffix(strings.TrimSpace(line), "*") {
			t.Errorf("expected work marked default, got %q", line)
		}
	}
}

func TestAttributesCommand(t *testing.T) {
	env := setupCLI(t)
	out := env.mustRun(t, "", "attributes")
	if !strings.Contains(out, "protocol") || !strings.Contains(out, "ptcl") {
		t.Errorf("expected protocol/ptcl row, got:\n%s", out)
	}
}

func TestInvalidLogLevel(t *testing.T) {
	env := setupCLI(t)
	if _, _, code := env.run(t, "", "--log-level", "loud", "stores"); code != ExitUsage {
		t.Errorf("expected ExitUsage, got %d", code)
	}
}

func TestAddWithoutDefaultStorePersists(t *testing.T) {
	env := setupCLIWithoutDefault(t)
	env.mustRun(t, "", "add", "generic", "service=svc", "account=acct", "--secret", "p1")

	if out := env.mustRun(t, "", "get", "generic", "service=svc"); out != "p1\n" {
		t.Errorf("expected p1 from a fresh invocation, got %q", out)
	}
	if _, err := os.Stat(filepath.Join(env.dir, ".keychain", "default.yaml")); err != nil {
		t.Errorf("expected default store file under ~/.keychain: %v", err)
	}

	out := env.mustRun(t, "", "stores")
	if !strings.Contains(out, filepath.Join(env.dir, ".keychain", "default.yaml")) {
		t.Errorf("expected stores to name the fallback file, got %q", out)
	}
}

func TestAuditCommand(t *testing.T) {
	env := setupCLI(t)
	env.mustRun(t, "p1", "add", "generic", "service=svc", "account=acct")
	env.mustRun(t, "", "get", "generic", "service=svc")

	out := env.mustRun(t, "", "audit", "--action", "secret_read", "--store", "work")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one secret_read row, got:\n%s", out)
	}
	if !strings.Contains(lines[1], "secret_read") || !strings.Contains(lines[1], "tester") {
		t.Errorf("unexpected row %q", lines[1])
	}

	if _, _, code := env.run(t, "", "audit", "--action", "secret_write"); code != ExitUsage {
		t.Errorf("expected ExitUsage for unknown action, got %d", code)
	}
}
