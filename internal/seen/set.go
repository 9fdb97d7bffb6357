// Package seen persists the dedup keys of items that have already been
// announced. A Set only grows; keys are never removed automatically.
package seen

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Set is an order-independent collection of dedup keys.
type Set map[string]struct{}

// NewSet returns a Set holding keys.
func NewSet(keys ...string) Set {
	s := make(Set, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Has reports whether key is present.
func (s Set) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Add inserts key and reports whether it was new.
func (s Set) Add(key string) bool {
	if s.Has(key) {
		return false
	}
	s[key] = struct{}{}
	return true
}

// Len returns the number of keys.
func (s Set) Len() int {
	return len(s)
}

// Sorted returns the keys in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Equal reports whether both sets hold the same keys.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for k := range s {
		if !other.Has(k) {
			return false
		}
	}
	return true
}

// Encode renders the set as a sorted, indented JSON array.
func Encode(s Set) ([]byte, error) {
	data, err := json.MarshalIndent(s.Sorted(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode seen set: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a JSON array of strings. Any other shape is an error; callers
// decide whether that is fatal.
func Decode(data []byte) (Set, error) {
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("decode seen set: %w", err)
	}
	return NewSet(keys...), nil
}
