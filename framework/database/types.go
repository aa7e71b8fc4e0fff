package database

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/errors"
)

// Type converts values between their database and Go representations.
type Type interface {
	Name() string
	// ToGo converts a value scanned from the database.
	ToGo(src any) (any, error)
	// ToDatabase converts a Go value into a driver argument.
	ToDatabase(v any) (any, error)
}

// Types is a per-connection type registry. It starts with the base types
// and takes the "types" section of the connection record on top.
type Types struct {
	mu    sync.RWMutex
	types map[string]Type
}

// NewTypes returns a registry holding the base types: string, integer,
// boolean, datetime, json and uuid.
func NewTypes() *Types {
	t := &Types{types: make(map[string]Type)}
	for _, typ := range []Type{
		StringType{}, IntegerType{}, BooleanType{}, DateTimeType{}, JSONType{}, UUIDType{},
	} {
		t.types[typ.Name()] = typ
	}
	return t
}

// Has reports whether name is registered.
func (t *Types) Has(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.types[name]
	return ok
}

// Lookup returns the type registered under name.
func (t *Types) Lookup(name string) (Type, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	typ, ok := t.types[name]
	if !ok {
		return nil, errors.NotFoundf("type %q", name)
	}
	return typ, nil
}

// Set registers typ under name, adding it or overriding what was there.
func (t *Types) Set(name string, typ Type) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if typ.Name() != name {
		typ = Named(name, typ)
	}
	t.types[name] = typ
}

// Alias registers name as another name for the existing base type.
//
//	types:
//	  uuid_binary: uuid
func (t *Types) Alias(name, base string) error {
	typ, err := t.Lookup(base)
	if err != nil {
		return errors.Trace(err)
	}
	t.Set(name, typ)
	return nil
}

// Names returns the registered type names in sorted order.
func (t *Types) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.types))
	for name := range t.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Named returns typ under a different name.
func Named(name string, typ Type) Type { return namedType{name: name, Type: typ} }

type namedType struct {
	name string
	Type
}

func (n namedType) Name() string { return n.name }

// ── Base types ────────────────────────────────────────────────────────────────

type StringType struct{}

func (StringType) Name() string { return "string" }

func (StringType) ToGo(src any) (any, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}
	return fmt.Sprint(src), nil
}

func (StringType) ToDatabase(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return fmt.Sprint(v), nil
}

type IntegerType struct{}

func (IntegerType) Name() string { return "integer" }

func (IntegerType) ToGo(src any) (any, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	}
	return nil, errors.NotValidf("integer from %T", src)
}

func (t IntegerType) ToDatabase(v any) (any, error) { return t.ToGo(v) }

type BooleanType struct{}

func (BooleanType) Name() string { return "boolean" }

func (BooleanType) ToGo(src any) (any, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case []byte:
		return strconv.ParseBool(string(v))
	case string:
		return strconv.ParseBool(v)
	}
	return nil, errors.NotValidf("boolean from %T", src)
}

func (t BooleanType) ToDatabase(v any) (any, error) { return t.ToGo(v) }

type DateTimeType struct{}

func (DateTimeType) Name() string { return "datetime" }

// dateTimeLayouts are tried in order when parsing text columns.
var dateTimeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}

func (DateTimeType) ToGo(src any) (any, error) {
	var s string
	switch v := src.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return v, nil
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		return nil, errors.NotValidf("datetime from %T", src)
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return nil, errors.NotValidf("datetime %q", s)
}

func (t DateTimeType) ToDatabase(v any) (any, error) { return t.ToGo(v) }

type JSONType struct{}

func (JSONType) Name() string { return "json" }

func (JSONType) ToGo(src any) (any, error) {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return nil, errors.NotValidf("json from %T", src)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Annotate(err, "decoding json column")
	}
	return out, nil
}

func (JSONType) ToDatabase(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return string(b), nil
}

type UUIDType struct{}

func (UUIDType) Name() string { return "uuid" }

func (UUIDType) ToGo(src any) (any, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case uuid.UUID:
		return v, nil
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return uuid.ParseBytes(v)
	case string:
		return uuid.Parse(v)
	}
	return nil, errors.NotValidf("uuid from %T", src)
}

func (t UUIDType) ToDatabase(v any) (any, error) {
	id, err := t.ToGo(v)
	if err != nil || id == nil {
		return id, err
	}
	return id.(uuid.UUID).String(), nil
}
