// Package jsontree walks dynamically shaped JSON values: trees of
// map[string]any, []any, and scalars as produced by encoding/json.
package jsontree

import (
	"reflect"
	"sort"
)

// KeySet is a closed set of object keys.
type KeySet map[string]struct{}

// NewKeySet builds a KeySet from keys.
func NewKeySet(keys ...string) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Has reports whether k is in the set.
func (s KeySet) Has(k string) bool {
	_, ok := s[k]
	return ok
}

// Keys returns the members in sorted order.
func (s KeySet) Keys() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy of v. Maps and slices are copied; scalars are
// returned as-is. v must be acyclic.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	default:
		return v
	}
}

// CloneMap deep-copies m. A nil map clones to nil.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Clone(v)
	}
	return out
}

// Strip removes, in place, every object key in blacklist at any depth of
// node, descending through nested objects and arrays. Containers already
// visited are skipped, so values reachable through more than one path (or in
// a cycle) are processed once.
func Strip(node any, blacklist KeySet) {
	strip(node, blacklist, make(map[uintptr]struct{}))
}

func strip(node any, blacklist KeySet, seen map[uintptr]struct{}) {
	switch t := node.(type) {
	case map[string]any:
		if visited(t, seen) {
			return
		}
		for k, v := range t {
			if blacklist.Has(k) {
				delete(t, k)
				continue
			}
			strip(v, blacklist, seen)
		}
	case []any:
		if len(t) == 0 || visited(t, seen) {
			return
		}
		for _, v := range t {
			strip(v, blacklist, seen)
		}
	}
}

func visited(container any, seen map[uintptr]struct{}) bool {
	ptr := reflect.ValueOf(container).Pointer()
	if _, ok := seen[ptr]; ok {
		return true
	}
	seen[ptr] = struct{}{}
	return false
}

// Find reports whether any object key in keys appears at any depth of node.
func Find(node any, keys KeySet) bool {
	switch t := node.(type) {
	case map[string]any:
		for k, v := range t {
			if keys.Has(k) || Find(v, keys) {
				return true
			}
		}
	case []any:
		for _, v := range t {
			if Find(v, keys) {
				return true
			}
		}
	}
	return false
}
