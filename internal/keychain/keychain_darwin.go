//go:build darwin

package keychain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gokeychain "github.com/keybase/go-keychain"
)

// SystemBackend stores credentials in the macOS Keychain.
//
// go-keychain exposes no persistent item references, so records are
// addressed by their primary key. New items are never synced to iCloud
// and are only readable while the device is unlocked.
type SystemBackend struct {
	location string
	kc       *gokeychain.Keychain
}

// systemRef is the primary key of a Keychain record.
type systemRef struct {
	kind     Kind
	service  string
	server   string
	account  string
	protocol string
}

// OpenSystemBackend opens the keychain file at location, or the user's
// default search list when location is empty.
func OpenSystemBackend(location string) (*SystemBackend, error) {
	sb := &SystemBackend{location: location}
	if location != "" {
		kc := gokeychain.NewWithPath(location)
		if err := kc.Status(); err != nil {
			return nil, nativeError("open", err)
		}
		sb.kc = &kc
	}
	return sb, nil
}

func (s *SystemBackend) Location() string { return s.location }

func (s *SystemBackend) Search(kind Kind, conditions map[string]any) ([]Snapshot, error) {
	query := s.newItem(kind)
	if err := applyAttrs(&query, conditions); err != nil {
		return nil, NewStoreError("search", StatusNoSuchAttr, err)
	}
	query.SetMatchLimit(gokeychain.MatchLimitAll)
	query.SetReturnAttributes(true)

	results, err := gokeychain.QueryItem(query)
	if err != nil {
		if errors.Is(err, gokeychain.ErrorItemNotFound) {
			return nil, nil
		}
		return nil, nativeError("search", err)
	}
	out := make([]Snapshot, 0, len(results))
	for _, r := range results {
		attrs := resultAttrs(kind, r)
		// Keychain matching is partial for some attributes; re-check.
		if !matches(attrs, conditions) {
			continue
		}
		out = append(out, Snapshot{Ref: refFor(kind, attrs), Attrs: attrs})
	}
	return out, nil
}

func (s *SystemBackend) Create(kind Kind, attrs map[string]any, secret []byte) (Ref, error) {
	item := gokeychain.NewItem()
	item.SetSecClass(secClass(kind))
	if s.kc != nil {
		item.UseKeychain(*s.kc)
	}
	if err := applyAttrs(&item, attrs); err != nil {
		return nil, NewStoreError("create", StatusNoSuchAttr, err)
	}
	item.SetData(secret)
	item.SetSynchronizable(gokeychain.SynchronizableNo)
	item.SetAccessible(gokeychain.AccessibleWhenUnlockedThisDeviceOnly)

	if err := gokeychain.AddItem(item); err != nil {
		return nil, nativeError("create", err)
	}
	return refFor(kind, attrs), nil
}

func (s *SystemBackend) Update(ref Ref, attrs map[string]any, secret []byte) (Ref, error) {
	r, ok := ref.(systemRef)
	if !ok {
		return nil, NewStoreError("update", StatusInvalidRecord, nil)
	}
	update := gokeychain.NewItem()
	// Creation and modification dates are maintained by the Keychain.
	writable := make(map[string]any, len(attrs))
	for code, v := range attrs {
		if code != "cdat" && code != "mdat" {
			writable[code] = v
		}
	}
	if err := applyAttrs(&update, writable); err != nil {
		return nil, NewStoreError("update", StatusNoSuchAttr, err)
	}
	if secret != nil {
		update.SetData(secret)
	}

	// go-keychain drops empty values from an update, so a cleared
	// attribute would silently keep its old value.
	current, err := s.FetchSnapshot(r)
	if err != nil {
		return nil, err
	}
	if removed := removedCodes(current, writable, "cdat", "mdat"); len(removed) > 0 {
		return nil, NewStoreError("update", StatusNoSuchAttr,
			fmt.Errorf("clearing %s is not supported", strings.Join(removed, ", ")))
	}

	if err := gokeychain.UpdateItem(s.queryFor(r), update); err != nil {
		return nil, nativeError("update", err)
	}
	return refFor(r.kind, mergeAttrs(r, writable)), nil
}

func (s *SystemBackend) FetchSecret(ref Ref) ([]byte, error) {
	r, ok := ref.(systemRef)
	if !ok {
		return nil, NewStoreError("fetch secret", StatusInvalidRecord, nil)
	}
	query := s.queryFor(r)
	query.SetMatchLimit(gokeychain.MatchLimitOne)
	query.SetReturnData(true)
	results, err := gokeychain.QueryItem(query)
	if err != nil {
		return nil, nativeError("fetch secret", err)
	}
	if len(results) == 0 {
		return nil, NewStoreError("fetch secret", StatusItemNotFound, nil)
	}
	return results[0].Data, nil
}

func (s *SystemBackend) FetchSnapshot(ref Ref) (map[string]any, error) {
	r, ok := ref.(systemRef)
	if !ok {
		return nil, NewStoreError("fetch attributes", StatusInvalidRecord, nil)
	}
	query := s.queryFor(r)
	query.SetMatchLimit(gokeychain.MatchLimitOne)
	query.SetReturnAttributes(true)
	results, err := gokeychain.QueryItem(query)
	if err != nil {
		return nil, nativeError("fetch attributes", err)
	}
	if len(results) == 0 {
		return nil, NewStoreError("fetch attributes", StatusItemNotFound, nil)
	}
	return resultAttrs(r.kind, results[0]), nil
}

// Close releases nothing: the Keychain stays owned by the OS.
func (s *SystemBackend) Close() error { return nil }

func (s *SystemBackend) newItem(kind Kind) gokeychain.Item {
	item := gokeychain.NewItem()
	item.SetSecClass(secClass(kind))
	if s.kc != nil {
		item.SetMatchSearchList(*s.kc)
	}
	return item
}

func (s *SystemBackend) queryFor(r systemRef) gokeychain.Item {
	item := s.newItem(r.kind)
	item.SetAccount(r.account)
	switch r.kind {
	case GenericPassword:
		item.SetService(r.service)
	case InternetPassword:
		item.SetServer(r.server)
		item.SetProtocol(r.protocol)
	}
	return item
}

func secClass(kind Kind) gokeychain.SecClass {
	if kind == InternetPassword {
		return gokeychain.SecClassInternetPassword
	}
	return gokeychain.SecClassGenericPassword
}

// applyAttrs copies canonical attributes onto a go-keychain item.
func applyAttrs(item *gokeychain.Item, attrs map[string]any) error {
	for code, v := range attrs {
		switch code {
		case "acct":
			item.SetAccount(v.(string))
		case "svce":
			item.SetService(v.(string))
		case "srvr":
			item.SetServer(v.(string))
		case "ptcl":
			item.SetProtocol(v.(string))
		case "path":
			item.SetPath(v.(string))
		case "port":
			item.SetPort(int32(v.(int)))
		case "desc":
			item.SetDescription(v.(string))
		case "icmt":
			item.SetComment(v.(string))
		case "cdat", "mdat":
			// Set by the Keychain; not matchable through go-keychain.
		default:
			return &UnknownAttributeError{Name: code}
		}
	}
	return nil
}

func resultAttrs(kind Kind, r gokeychain.QueryResult) map[string]any {
	attrs := make(map[string]any)
	put := func(code, v string) {
		if v != "" {
			attrs[code] = v
		}
	}
	put("acct", r.Account)
	put("desc", r.Description)
	put("icmt", r.Comment)
	switch kind {
	case GenericPassword:
		put("svce", r.Service)
	case InternetPassword:
		put("srvr", r.Server)
		put("ptcl", r.Protocol)
		put("path", r.Path)
		if r.Port != 0 {
			attrs["port"] = int(r.Port)
		}
	}
	putTime := func(code string, t time.Time) {
		if !t.IsZero() {
			attrs[code] = t
		}
	}
	putTime("cdat", r.CreationDate)
	putTime("mdat", r.ModificationDate)
	return attrs
}

func refFor(kind Kind, attrs map[string]any) systemRef {
	str := func(code string) string {
		s, _ := attrs[code].(string)
		return s
	}
	return systemRef{
		kind:     kind,
		service:  str("svce"),
		server:   str("srvr"),
		account:  str("acct"),
		protocol: str("ptcl"),
	}
}

// mergeAttrs overlays updated attributes on a ref's key to find where
// the record lives after an update.
func mergeAttrs(r systemRef, attrs map[string]any) map[string]any {
	merged := map[string]any{
		"svce": r.service,
		"srvr": r.server,
		"acct": r.account,
		"ptcl": r.protocol,
	}
	for code, v := range attrs {
		merged[code] = v
	}
	return merged
}

func nativeError(op string, err error) error {
	var kerr gokeychain.Error
	if errors.As(err, &kerr) {
		return &StoreError{Op: op, Status: int(kerr), Message: kerr.Error()}
	}
	return NewStoreError(op, StatusInternalFailed, err)
}
