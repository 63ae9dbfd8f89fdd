package keychain

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Kind is the class of a stored credential.
type Kind int

const (
	GenericPassword Kind = iota + 1
	InternetPassword
)

// Class codes the underlying store uses to identify a credential kind.
const (
	GenericPasswordClass  = "genp"
	InternetPasswordClass = "inet"
)

// Code returns the store's class code for k.
func (k Kind) Code() string {
	switch k {
	case GenericPassword:
		return GenericPasswordClass
	case InternetPassword:
		return InternetPasswordClass
	}
	return ""
}

func (k Kind) String() string {
	switch k {
	case GenericPassword:
		return "generic_password"
	case InternetPassword:
		return "internet_password"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == GenericPassword || k == InternetPassword
}

// ParseKind accepts a kind name ("generic_password"), its short form
// ("generic") or its class code ("genp").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "generic_password", "generic", GenericPasswordClass:
		return GenericPassword, nil
	case "internet_password", "internet", InternetPasswordClass:
		return InternetPassword, nil
	}
	return 0, fmt.Errorf("unknown credential kind %q", s)
}

// ValueType is the Go type an attribute value must have.
type ValueType int

const (
	StringValue ValueType = iota
	IntValue
	BoolValue
	TimeValue
)

func (t ValueType) String() string {
	switch t {
	case IntValue:
		return "int"
	case BoolValue:
		return "bool"
	case TimeValue:
		return "time"
	}
	return "string"
}

// Attribute pairs a canonical attribute code with its semantic name.
type Attribute struct {
	Code string
	Name string
	Type ValueType
}

// Semantic attribute names.
const (
	AttrCreatedAt      = "created_at"
	AttrUpdatedAt      = "updated_at"
	AttrDescription    = "description"
	AttrComment        = "comment"
	AttrNegative       = "negative"
	AttrAccount        = "account"
	AttrService        = "service"
	AttrSecurityDomain = "security_domain"
	AttrHost           = "host"
	AttrPort           = "port"
	AttrPath           = "path"
	AttrProtocol       = "protocol"
)

var attributeTable = []Attribute{
	{Code: "cdat", Name: AttrCreatedAt, Type: TimeValue},
	{Code: "mdat", Name: AttrUpdatedAt, Type: TimeValue},
	{Code: "desc", Name: AttrDescription, Type: StringValue},
	{Code: "icmt", Name: AttrComment, Type: StringValue},
	{Code: "nega", Name: AttrNegative, Type: BoolValue},
	{Code: "acct", Name: AttrAccount, Type: StringValue},
	{Code: "svce", Name: AttrService, Type: StringValue},
	{Code: "sdmn", Name: AttrSecurityDomain, Type: StringValue},
	{Code: "srvr", Name: AttrHost, Type: StringValue},
	{Code: "port", Name: AttrPort, Type: IntValue},
	{Code: "path", Name: AttrPath, Type: StringValue},
	{Code: "ptcl", Name: AttrProtocol, Type: StringValue},
}

var (
	byCode = make(map[string]Attribute, len(attributeTable))
	byName = make(map[string]Attribute, len(attributeTable))
)

var sharedFields = []string{
	AttrAccount, AttrCreatedAt, AttrUpdatedAt, AttrDescription, AttrComment, AttrNegative,
}

var kindFields = map[Kind][]string{
	GenericPassword:  {AttrService},
	InternetPassword: {AttrSecurityDomain, AttrHost, AttrPort, AttrPath, AttrProtocol},
}

var identifyingFields = map[Kind][]string{
	GenericPassword:  {AttrService, AttrAccount},
	InternetPassword: {AttrHost, AttrAccount, AttrProtocol},
}

var validFields = make(map[Kind]map[string]bool)

func init() {
	for _, a := range attributeTable {
		byCode[a.Code] = a
		byName[a.Name] = a
	}
	for kind, extra := range kindFields {
		set := make(map[string]bool, len(sharedFields)+len(extra))
		for _, n := range sharedFields {
			set[n] = true
		}
		for _, n := range extra {
			set[n] = true
		}
		validFields[kind] = set
	}
}

// Attributes returns a copy of the attribute table.
func Attributes() []Attribute {
	out := make([]Attribute, len(attributeTable))
	copy(out, attributeTable)
	return out
}

// ToCanonical maps a semantic name to its canonical code.
func ToCanonical(name string) (string, error) {
	a, ok := byName[name]
	if !ok {
		return "", &UnknownAttributeError{Name: name}
	}
	return a.Code, nil
}

// ToSemantic maps a canonical code to its semantic name.
func ToSemantic(code string) (string, error) {
	a, ok := byCode[code]
	if !ok {
		return "", &UnknownAttributeError{Name: code}
	}
	return a.Name, nil
}

// ValidFieldsFor returns the semantic names accepted for kind, in table order.
func ValidFieldsFor(kind Kind) []string {
	set := validFields[kind]
	var out []string
	for _, a := range attributeTable {
		if set[a.Name] {
			out = append(out, a.Name)
		}
	}
	return out
}

// IdentifyingFields returns the fields forming kind's primary key.
func IdentifyingFields(kind Kind) []string {
	return append([]string(nil), identifyingFields[kind]...)
}

// checkField fails with *UnknownAttributeError if name is outside the
// table or not valid for kind.
func checkField(kind Kind, name string) (Attribute, error) {
	a, ok := byName[name]
	if !ok {
		return Attribute{}, &UnknownAttributeError{Name: name}
	}
	if !validFields[kind][name] {
		return Attribute{}, &UnknownAttributeError{Name: name, Kind: kind}
	}
	return a, nil
}

// normalize coerces v to the attribute's value type. All Go integer types
// are accepted for IntValue attributes and stored as int.
func normalize(kind Kind, a Attribute, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch a.Type {
	case StringValue:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case BoolValue:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case TimeValue:
		if t, ok := v.(time.Time); ok {
			return t, nil
		}
	case IntValue:
		n, ok := toInt64(v)
		if !ok {
			break
		}
		if err := checkRange(kind, a, n); err != nil {
			return nil, err
		}
		return int(n), nil
	}
	return nil, &ValidationError{
		Kind:   kind,
		Field:  a.Name,
		Reason: fmt.Sprintf("expected %s value, got %T", a.Type, v),
	}
}

// toInt64 widens any Go integer type. Unsigned values above MaxInt64
// report ok=false.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), uint64(n) <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	}
	return 0, false
}

// checkRange bounds integer attributes. Ports are 0 through 65535.
func checkRange(kind Kind, a Attribute, n int64) error {
	if a.Name == AttrPort && (n < 0 || n > maxPort) {
		return &ValidationError{
			Kind:   kind,
			Field:  a.Name,
			Reason: fmt.Sprintf("port %d out of range 0-%d", n, maxPort),
		}
	}
	return nil
}

const maxPort = 65535

// ParseValue converts a textual value into the typed value for the named
// attribute. Times use RFC 3339.
func ParseValue(name, text string) (any, error) {
	a, ok := byName[name]
	if !ok {
		return nil, &UnknownAttributeError{Name: name}
	}
	switch a.Type {
	case IntValue:
		n, err := strconv.Atoi(text)
		if err != nil {
			return nil, &ValidationError{Field: name, Reason: fmt.Sprintf("invalid integer %q", text)}
		}
		if err := checkRange(0, a, int64(n)); err != nil {
			return nil, err
		}
		return n, nil
	case BoolValue:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return nil, &ValidationError{Field: name, Reason: fmt.Sprintf("invalid boolean %q", text)}
		}
		return b, nil
	case TimeValue:
		t, err := time.Parse(time.RFC3339, text)
		if err != nil {
			return nil, &ValidationError{Field: name, Reason: fmt.Sprintf("invalid time %q", text)}
		}
		return t, nil
	}
	return text, nil
}

// toCanonicalMap validates and translates semantic fields for kind.
func toCanonicalMap(kind Kind, fields map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for name, v := range fields {
		a, err := checkField(kind, name)
		if err != nil {
			return nil, err
		}
		nv, err := normalize(kind, a, v)
		if err != nil {
			return nil, err
		}
		if nv == nil {
			continue
		}
		out[a.Code] = nv
	}
	return out, nil
}

// removedCodes returns the codes present in before but absent from
// after, sorted. Codes in ignore are skipped.
func removedCodes(before, after map[string]any, ignore ...string) []string {
	var removed []string
	for code := range before {
		if _, ok := after[code]; ok || slices.Contains(ignore, code) {
			continue
		}
		removed = append(removed, code)
	}
	slices.Sort(removed)
	return removed
}

// fromCanonicalMap translates a store snapshot into semantic names. Codes
// outside the table are reported; the store must not return them.
func fromCanonicalMap(snapshot map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(snapshot))
	for code, v := range snapshot {
		name, err := ToSemantic(code)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}
