package keychain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a record no longer exists in the store.
	ErrNotFound = errors.New("item not found")

	ErrUnknownAttribute = errors.New("unknown attribute")
	ErrDuplicateItem    = errors.New("duplicate item")
	ErrValidation       = errors.New("validation failed")

	// ErrNoStore and ErrStoreClosed are consistency errors: the item (or
	// query) refers to a store that cannot serve it.
	ErrNoStore     = errors.New("no owning store")
	ErrStoreClosed = errors.New("store is closed")
)

// Store status codes. Values follow the macOS Security framework so that
// SystemBackend can pass native codes through unchanged.
const (
	StatusOK             = 0
	StatusUnimplemented  = -4
	StatusParam          = -50
	StatusAllocate       = -108
	StatusStoreClosed    = -25295
	StatusDuplicateItem  = -25299
	StatusItemNotFound   = -25300
	StatusNoSuchAttr     = -25303
	StatusInteractionNA  = -25308
	StatusAuthFailed     = -25293
	StatusDecode         = -26275
	StatusInvalidRecord  = -67701
	StatusInternalFailed = -26276
)

var statusMessages = map[int]string{
	StatusUnimplemented:  "function or operation not implemented",
	StatusParam:          "one or more parameters passed to a function were not valid",
	StatusAllocate:       "failed to allocate memory",
	StatusStoreClosed:    "the specified keychain is not open",
	StatusDuplicateItem:  "the specified item already exists in the keychain",
	StatusItemNotFound:   "the specified item could not be found in the keychain",
	StatusNoSuchAttr:     "the specified attribute does not exist",
	StatusInteractionNA:  "user interaction is not allowed",
	StatusAuthFailed:     "the user name or passphrase you entered is not correct",
	StatusDecode:         "unable to decode the provided data",
	StatusInvalidRecord:  "the record is not valid",
	StatusInternalFailed: "internal error in the store",
}

// StatusMessage describes a store status code.
func StatusMessage(status int) string {
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	return fmt.Sprintf("unknown status %d", status)
}

// StoreError is a failure reported by a Backend. Status carries the
// backend's native code verbatim.
type StoreError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

// NewStoreError builds a StoreError whose message is looked up from status.
func NewStoreError(op string, status int, cause error) *StoreError {
	return &StoreError{Op: op, Status: status, Message: StatusMessage(status), Err: cause}
}

func (e *StoreError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "%s (status %d)", e.Message, e.Status)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *StoreError) Unwrap() error { return e.Err }

// StatusOf returns the status carried by a *StoreError in err's chain.
func StatusOf(err error) (int, bool) {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Status, true
	}
	return StatusOK, false
}

// UnknownAttributeError reports a semantic name outside the attribute
// table, or one that is not valid for Kind when Kind is set.
type UnknownAttributeError struct {
	Name string
	Kind Kind
}

func (e *UnknownAttributeError) Error() string {
	if e.Kind.Valid() {
		return fmt.Sprintf("attribute %q is not valid for %s", e.Name, e.Kind)
	}
	return fmt.Sprintf("unknown attribute %q", e.Name)
}

func (e *UnknownAttributeError) Is(target error) bool { return target == ErrUnknownAttribute }

// DuplicateItemError reports an add against a store that already holds a
// record with the same primary key.
type DuplicateItemError struct {
	Kind     Kind
	Key      map[string]any
	Location string
}

func (e *DuplicateItemError) Error() string {
	return fmt.Sprintf("duplicate %s %s in %s", e.Kind, formatKey(e.Key), locationLabel(e.Location))
}

func (e *DuplicateItemError) Is(target error) bool { return target == ErrDuplicateItem }

// ValidationError reports input rejected before any store call.
type ValidationError struct {
	Kind    Kind
	Field   string
	Missing []string
	Reason  string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid ")
	if e.Kind.Valid() {
		b.WriteString(e.Kind.String())
	} else {
		b.WriteString("value")
	}
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, ": missing %s", strings.Join(e.Missing, ", "))
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": %s", e.Field)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func formatKey(key map[string]any) string {
	names := make([]string, 0, len(key))
	for n := range key {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, fmt.Sprintf("%s=%v", n, key[n]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func locationLabel(location string) string {
	if location == "" {
		return "default keychain"
	}
	return location
}
