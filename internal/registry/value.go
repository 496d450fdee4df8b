// Package registry holds the structured requirements knowledge base that an
// interview accumulates, and the pure merge functions that write into it.
//
// Every value in a Registry is one of three shapes: a scalar string, an
// ordered list of unique strings, or a group mapping names to nested values.
// Merges never mutate their input; they return a new Registry.
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type Kind int

const (
	KindScalar Kind = iota + 1
	KindList
	KindGroup
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindGroup:
		return "group"
	default:
		return "empty"
	}
}

// Value is a tagged union over the three registry shapes. The zero Value is
// "absent" and is never stored in a Registry.
type Value struct {
	kind   Kind
	scalar string
	list   []string
	group  map[string]Value
}

func Scalar(s string) Value {
	return Value{kind: KindScalar, scalar: s}
}

// List builds a list value, dropping empty and duplicate items while keeping
// first-seen order.
func List(items ...string) Value {
	return Value{kind: KindList, list: appendUnique(nil, items)}
}

func Group(entries map[string]Value) Value {
	g := make(map[string]Value, len(entries))
	for k, v := range entries {
		if v.kind == 0 {
			continue
		}
		g[k] = v.Clone()
	}
	return Value{kind: KindGroup, group: g}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsZero() bool { return v.kind == 0 }

// Text returns the scalar text. Lists are joined with ", ".
func (v Value) Text() string {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindList:
		return strings.Join(v.list, ", ")
	default:
		return ""
	}
}

// Items returns a copy of the list items, or nil for non-list values.
func (v Value) Items() []string {
	if v.kind != KindList {
		return nil
	}
	return append([]string{}, v.list...)
}

// Get returns a group entry.
func (v Value) Get(name string) (Value, bool) {
	if v.kind != KindGroup {
		return Value{}, false
	}
	e, ok := v.group[name]
	return e, ok
}

// Keys returns the group entry names in sorted order.
func (v Value) Keys() []string {
	if v.kind != KindGroup {
		return nil
	}
	keys := make([]string, 0, len(v.group))
	for k := range v.group {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindGroup:
		return len(v.group)
	case KindScalar:
		if v.scalar == "" {
			return 0
		}
		return 1
	}
	return 0
}

func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		return Value{kind: KindList, list: append([]string{}, v.list...)}
	case KindGroup:
		g := make(map[string]Value, len(v.group))
		for k, e := range v.group {
			g[k] = e.Clone()
		}
		return Value{kind: KindGroup, group: g}
	default:
		return v
	}
}

func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindScalar:
		return v.scalar == o.scalar
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != o.list[i] {
				return false
			}
		}
		return true
	case KindGroup:
		if len(v.group) != len(o.group) {
			return false
		}
		for k, e := range v.group {
			oe, ok := o.group[k]
			if !ok || !e.Equal(oe) {
				return false
			}
		}
		return true
	}
	return true
}

// withEntry returns a copy of a group with one entry replaced.
func (v Value) withEntry(name string, e Value) Value {
	out := v.Clone()
	if out.kind != KindGroup {
		out = Value{kind: KindGroup, group: map[string]Value{}}
	}
	out.group[name] = e
	return out
}

// withItems returns a copy of a list with new unique items appended.
func (v Value) withItems(items []string) Value {
	base := v.Items()
	return Value{kind: KindList, list: appendUnique(base, items)}
}

// Any converts the value into plain JSON-compatible Go values.
func (v Value) Any() any {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindList:
		return append([]string{}, v.list...)
	case KindGroup:
		m := make(map[string]any, len(v.group))
		for k, e := range v.group {
			m[k] = e.Any()
		}
		return m
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// FromAny converts decoded JSON into a Value. Strings, numbers and booleans
// become scalars, arrays become lists and objects become groups; null yields
// the zero Value.
func FromAny(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Value{}
	case string:
		return Scalar(t)
	case json.Number:
		return Scalar(t.String())
	case float64:
		return Scalar(fmt.Sprintf("%g", t))
	case int:
		return Scalar(fmt.Sprintf("%d", t))
	case bool:
		if t {
			return Scalar("true")
		}
		return Scalar("false")
	case []string:
		return List(t...)
	case []any:
		items := make([]string, 0, len(t))
		for _, it := range t {
			switch s := it.(type) {
			case nil:
				continue
			case string:
				items = append(items, s)
			default:
				b, err := json.Marshal(s)
				if err != nil {
					continue
				}
				items = append(items, string(b))
			}
		}
		return List(items...)
	case map[string]any:
		g := make(map[string]Value, len(t))
		for k, e := range t {
			if ev := FromAny(e); !ev.IsZero() {
				g[k] = ev
			}
		}
		return Value{kind: KindGroup, group: g}
	case map[string]Value:
		return Group(t)
	case Value:
		return t.Clone()
	}
	return Scalar(fmt.Sprint(raw))
}

func appendUnique(base []string, items []string) []string {
	seen := make(map[string]struct{}, len(base)+len(items))
	out := make([]string, 0, len(base)+len(items))
	for _, s := range base {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
