package keychain

import (
	"fmt"

	"github.com/benaskins/keychain/internal/audit"
)

// AuditedBackend wraps a Backend and records every operation in the
// audit log. Audit logging is best-effort: a failure to log never fails
// the operation.
type AuditedBackend struct {
	inner Backend
	audit *audit.Logger
	actor string // "cli", "rotation", ...
}

// NewAuditedBackend wraps inner with audit logging.
func NewAuditedBackend(inner Backend, auditLog *audit.Logger, actor string) *AuditedBackend {
	return &AuditedBackend{inner: inner, audit: auditLog, actor: actor}
}

func (b *AuditedBackend) Location() string { return b.inner.Location() }

func (b *AuditedBackend) Search(kind Kind, conditions map[string]any) ([]Snapshot, error) {
	snaps, err := b.inner.Search(kind, conditions)
	b.log(audit.Entry{
		Action: audit.ActionSearch,
		Kind:   kind.String(),
		Count:  len(snaps),
	}, err)
	return snaps, err
}

func (b *AuditedBackend) Create(kind Kind, attrs map[string]any, secret []byte) (Ref, error) {
	ref, err := b.inner.Create(kind, attrs, secret)
	b.log(audit.Entry{
		Action: audit.ActionCreate,
		Kind:   kind.String(),
		Key:    canonicalKey(kind, attrs),
	}, err)
	return ref, err
}

func (b *AuditedBackend) Update(ref Ref, attrs map[string]any, secret []byte) (Ref, error) {
	newRef, err := b.inner.Update(ref, attrs, secret)
	b.log(audit.Entry{
		Action: audit.ActionUpdate,
		Key:    refLabel(ref),
	}, err)
	return newRef, err
}

func (b *AuditedBackend) FetchSecret(ref Ref) ([]byte, error) {
	secret, err := b.inner.FetchSecret(ref)
	b.log(audit.Entry{
		Action: audit.ActionSecretRead,
		Key:    refLabel(ref),
	}, err)
	return secret, err
}

func (b *AuditedBackend) FetchSnapshot(ref Ref) (map[string]any, error) {
	attrs, err := b.inner.FetchSnapshot(ref)
	b.log(audit.Entry{
		Action: audit.ActionRead,
		Key:    refLabel(ref),
	}, err)
	return attrs, err
}

func (b *AuditedBackend) Close() error {
	return b.inner.Close()
}

func (b *AuditedBackend) log(entry audit.Entry, err error) {
	entry.Store = locationLabel(b.inner.Location())
	entry.Actor = b.actor
	if err != nil {
		entry.Error = err.Error()
		entry.Status, _ = StatusOf(err)
	}
	// Audit logging is best-effort: a failed write never fails the operation.
	b.audit.Log(entry)
}

func canonicalKey(kind Kind, attrs map[string]any) string {
	key := make(map[string]any, len(identifyingFields[kind]))
	for _, name := range identifyingFields[kind] {
		key[name] = attrs[byName[name].Code]
	}
	return formatKey(key)
}

func refLabel(ref Ref) string {
	return fmt.Sprintf("%v", ref)
}
