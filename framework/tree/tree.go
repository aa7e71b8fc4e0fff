package tree

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Kind tags the variant held by a Node.
type Kind uint8

const (
	Null Kind = iota
	Scalar
	Sequence
	Mapping
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Sequence:
		return "sequence"
	case Mapping:
		return "mapping"
	}
	return "null"
}

// Node is an immutable configuration value: a mapping, a sequence, a scalar
// or null. The zero Node is null.
//
// Scalars are normalized on the way in: every integer becomes int64, every
// float becomes float64, strings, bools and time.Time are kept as they are.
type Node struct {
	kind   Kind
	scalar any
	seq    []Node
	m      map[string]Node
}

// ── Construction ──────────────────────────────────────────────────────────────

// Of converts a decoded Go value into a Node. It accepts what the YAML,
// TOML and JSON decoders produce: map[string]any, map[any]any, []any and
// scalars. A Node passes through unchanged.
//
//	n, err := tree.Of(map[string]any{"cache": map[string]any{"adapter": "array"}})
func Of(v any) (Node, error) {
	switch x := v.(type) {
	case nil:
		return Node{}, nil
	case Node:
		return x, nil
	case map[string]any:
		m := make(map[string]Node, len(x))
		for k, item := range x {
			n, err := Of(item)
			if err != nil {
				return Node{}, fmt.Errorf("%s: %w", k, err)
			}
			m[k] = n
		}
		return Node{kind: Mapping, m: m}, nil
	case map[any]any:
		m := make(map[string]Node, len(x))
		for k, item := range x {
			key := fmt.Sprint(k)
			n, err := Of(item)
			if err != nil {
				return Node{}, fmt.Errorf("%s: %w", key, err)
			}
			m[key] = n
		}
		return Node{kind: Mapping, m: m}, nil
	case map[string]string:
		m := make(map[string]Node, len(x))
		for k, s := range x {
			m[k] = String(s)
		}
		return Node{kind: Mapping, m: m}, nil
	case []any:
		seq := make([]Node, 0, len(x))
		for i, item := range x {
			n, err := Of(item)
			if err != nil {
				return Node{}, fmt.Errorf("[%d]: %w", i, err)
			}
			seq = append(seq, n)
		}
		return Node{kind: Sequence, seq: seq}, nil
	case []string:
		seq := make([]Node, 0, len(x))
		for _, s := range x {
			seq = append(seq, String(s))
		}
		return Node{kind: Sequence, seq: seq}, nil
	case []map[string]any:
		seq := make([]Node, 0, len(x))
		for i, item := range x {
			n, err := Of(item)
			if err != nil {
				return Node{}, fmt.Errorf("[%d]: %w", i, err)
			}
			seq = append(seq, n)
		}
		return Node{kind: Sequence, seq: seq}, nil
	case string, bool, time.Time:
		return Node{kind: Scalar, scalar: x}, nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return Int(int64(x)), nil
	case uint8:
		return Int(int64(x)), nil
	case uint16:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case uint64:
		return Int(int64(x)), nil
	case float32:
		return Node{kind: Scalar, scalar: float64(x)}, nil
	case float64:
		return Node{kind: Scalar, scalar: x}, nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return Node{}, err
		}
		return Node{kind: Scalar, scalar: f}, nil
	}
	return Node{}, fmt.Errorf("unsupported configuration value of type %T", v)
}

// MustOf is like Of but panics on unsupported input. Meant for literals in
// code and tests.
func MustOf(v any) Node {
	n, err := Of(v)
	if err != nil {
		panic(err)
	}
	return n
}

// String returns a string scalar.
func String(s string) Node { return Node{kind: Scalar, scalar: s} }

// Int returns an integer scalar.
func Int(i int64) Node { return Node{kind: Scalar, scalar: i} }

// Bool returns a boolean scalar.
func Bool(b bool) Node { return Node{kind: Scalar, scalar: b} }

// Map returns a mapping node holding a copy of m.
func Map(m map[string]Node) Node {
	out := make(map[string]Node, len(m))
	for k, v := range m {
		out[k] = v
	}
	return Node{kind: Mapping, m: out}
}

// Seq returns a sequence node holding a copy of items.
func Seq(items ...Node) Node {
	out := make([]Node, len(items))
	copy(out, items)
	return Node{kind: Sequence, seq: out}
}

// EmptyMap is a mapping with no keys.
func EmptyMap() Node { return Node{kind: Mapping, m: map[string]Node{}} }

// ── Inspection ────────────────────────────────────────────────────────────────

func (n Node) Kind() Kind { return n.kind }
func (n Node) IsNull() bool { return n.kind == Null }
func (n Node) IsMap() bool { return n.kind == Mapping }
func (n Node) IsSeq() bool { return n.kind == Sequence }
func (n Node) IsScalar() bool { return n.kind == Scalar }

// Value returns the scalar held by n, or nil for any other kind.
func (n Node) Value() any {
	if n.kind != Scalar {
		return nil
	}
	return n.scalar
}

// Len is the number of keys of a mapping or items of a sequence.
func (n Node) Len() int {
	switch n.kind {
	case Mapping:
		return len(n.m)
	case Sequence:
		return len(n.seq)
	}
	return 0
}

// Has reports whether a mapping holds key.
func (n Node) Has(key string) bool {
	if n.kind != Mapping {
		return false
	}
	_, ok := n.m[key]
	return ok
}

// Get returns the child stored under key, or a null Node.
func (n Node) Get(key string) Node {
	if n.kind != Mapping {
		return Node{}
	}
	return n.m[key]
}

// Lookup walks a path of mapping keys.
func (n Node) Lookup(path ...string) (Node, bool) {
	cur := n
	for _, key := range path {
		if cur.kind != Mapping {
			return Node{}, false
		}
		next, ok := cur.m[key]
		if !ok {
			return Node{}, false
		}
		cur = next
	}
	return cur, true
}

// Keys returns the keys of a mapping in sorted order.
func (n Node) Keys() []string {
	if n.kind != Mapping {
		return nil
	}
	keys := make([]string, 0, len(n.m))
	for k := range n.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Items returns a copy of the items of a sequence.
func (n Node) Items() []Node {
	if n.kind != Sequence {
		return nil
	}
	out := make([]Node, len(n.seq))
	copy(out, n.seq)
	return out
}

// AsString returns the value of a string scalar.
func (n Node) AsString() (string, bool) {
	s, ok := n.Value().(string)
	return s, ok
}

// AsBool returns the value of a bool scalar.
func (n Node) AsBool() (bool, bool) {
	b, ok := n.Value().(bool)
	return b, ok
}

// AsInt returns the value of an integer scalar.
func (n Node) AsInt() (int64, bool) {
	i, ok := n.Value().(int64)
	return i, ok
}

// AsMap returns a copy of the children of a mapping.
func (n Node) AsMap() (map[string]Node, bool) {
	if n.kind != Mapping {
		return nil, false
	}
	out := make(map[string]Node, len(n.m))
	for k, v := range n.m {
		out[k] = v
	}
	return out, true
}

// Text formats a scalar the way it would be written in a config file.
// Null and non-scalars yield "".
func (n Node) Text() string {
	if n.kind != Scalar {
		return ""
	}
	switch v := n.scalar.(type) {
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339Nano)
	}
	return fmt.Sprint(n.scalar)
}

// StringOr returns the string stored under key, or def when the key is
// absent, null or not a string.
func (n Node) StringOr(key, def string) string {
	if s, ok := n.Get(key).AsString(); ok {
		return s
	}
	return def
}

// StringMap returns the string values of a mapping. Non-string scalars are
// formatted with Text; nested collections are an error.
func (n Node) StringMap() (map[string]string, error) {
	if n.kind == Null {
		return map[string]string{}, nil
	}
	if n.kind != Mapping {
		return nil, fmt.Errorf("expected mapping, got %s", n.kind)
	}
	out := make(map[string]string, len(n.m))
	for k, v := range n.m {
		switch v.kind {
		case Scalar:
			out[k] = v.Text()
		case Null:
			out[k] = ""
		default:
			return nil, fmt.Errorf("%s: expected scalar, got %s", k, v.kind)
		}
	}
	return out, nil
}

// Strings returns the items of a sequence of string scalars.
func (n Node) Strings() ([]string, error) {
	if n.kind == Null {
		return nil, nil
	}
	if n.kind != Sequence {
		return nil, fmt.Errorf("expected sequence, got %s", n.kind)
	}
	out := make([]string, 0, len(n.seq))
	for i, item := range n.seq {
		s, ok := item.AsString()
		if !ok {
			return nil, fmt.Errorf("[%d]: expected string, got %s", i, item.kind)
		}
		out = append(out, s)
	}
	return out, nil
}

// ── Derivation ────────────────────────────────────────────────────────────────

// With returns a copy of a mapping with key set to v. A non-mapping
// receiver is treated as an empty mapping.
func (n Node) With(key string, v Node) Node {
	out := make(map[string]Node, len(n.m)+1)
	if n.kind == Mapping {
		for k, child := range n.m {
			out[k] = child
		}
	}
	out[key] = v
	return Node{kind: Mapping, m: out}
}

// Without returns a copy of a mapping with keys removed.
func (n Node) Without(keys ...string) Node {
	if n.kind != Mapping {
		return n
	}
	out := make(map[string]Node, len(n.m))
	for k, v := range n.m {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return Node{kind: Mapping, m: out}
}

// Interface converts n back into plain Go values: map[string]any, []any
// and scalars.
func (n Node) Interface() any {
	switch n.kind {
	case Mapping:
		out := make(map[string]any, len(n.m))
		for k, v := range n.m {
			out[k] = v.Interface()
		}
		return out
	case Sequence:
		out := make([]any, 0, len(n.seq))
		for _, v := range n.seq {
			out = append(out, v.Interface())
		}
		return out
	case Scalar:
		return n.scalar
	}
	return nil
}

// Equal reports whether two nodes hold the same structure and scalars.
func (n Node) Equal(o Node) bool {
	if n.kind != o.kind {
		return false
	}
	switch n.kind {
	case Null:
		return true
	case Scalar:
		if t, ok := n.scalar.(time.Time); ok {
			u, ok := o.scalar.(time.Time)
			return ok && t.Equal(u)
		}
		return n.scalar == o.scalar
	case Sequence:
		if len(n.seq) != len(o.seq) {
			return false
		}
		for i := range n.seq {
			if !n.seq[i].Equal(o.seq[i]) {
				return false
			}
		}
		return true
	}
	if len(n.m) != len(o.m) {
		return false
	}
	for k, v := range n.m {
		w, ok := o.m[k]
		if !ok || !v.Equal(w) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes n with mapping keys in sorted order, so equal nodes
// always encode to identical bytes.
func (n Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Interface())
}

// UnmarshalJSON decodes any JSON document into n.
func (n *Node) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	decoded, err := Of(v)
	if err != nil {
		return err
	}
	*n = decoded
	return nil
}
