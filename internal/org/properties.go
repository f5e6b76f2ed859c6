package org

import (
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Properties is the insertion-ordered key/value map of a heading's
// metadata block. Keys are stored upper-case.
type Properties struct {
	m *orderedmap.OrderedMap[string, string]
}

// NewProperties returns an empty property map.
func NewProperties() *Properties {
	return &Properties{m: orderedmap.New[string, string]()}
}

func canonicalKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// Get returns the value stored under key.
func (p *Properties) Get(key string) (string, bool) {
	if p == nil || p.m == nil {
		return "", false
	}
	return p.m.Get(canonicalKey(key))
}

// Value returns the value stored under key or "" when absent.
func (p *Properties) Value(key string) string {
	v, _ := p.Get(key)
	return v
}

// Has reports whether key is present.
func (p *Properties) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Set stores value under key. An existing key keeps its position.
func (p *Properties) Set(key, value string) {
	if p.m == nil {
		p.m = orderedmap.New[string, string]()
	}
	p.m.Set(canonicalKey(key), value)
}

// Delete removes key.
func (p *Properties) Delete(key string) {
	if p == nil || p.m == nil {
		return
	}
	p.m.Delete(canonicalKey(key))
}

// Len returns the number of properties.
func (p *Properties) Len() int {
	if p == nil || p.m == nil {
		return 0
	}
	return p.m.Len()
}

// Keys returns the keys in insertion order.
func (p *Properties) Keys() []string {
	if p.Len() == 0 {
		return nil
	}
	keys := make([]string, 0, p.m.Len())
	for pair := p.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Each calls fn for every property in insertion order.
func (p *Properties) Each(fn func(key, value string)) {
	if p.Len() == 0 {
		return
	}
	for pair := p.m.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// Clone returns an independent copy.
func (p *Properties) Clone() *Properties {
	out := NewProperties()
	p.Each(func(k, v string) { out.m.Set(k, v) })
	return out
}

// Map returns the properties as a plain map. Order is lost.
func (p *Properties) Map() map[string]string {
	out := make(map[string]string, p.Len())
	p.Each(func(k, v string) { out[k] = v })
	return out
}
