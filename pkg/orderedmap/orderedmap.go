// Package orderedmap provides a map that remembers insertion order.
package orderedmap

import "slices"

type Map[K comparable, V any] struct {
	keys   []K
	values map[K]V
}

func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{values: make(map[K]V)}
}

// Set stores v under k. A new key is appended; an existing key keeps its position.
func (m *Map[K, V]) Set(k K, v V) {
	if m.values == nil {
		m.values = make(map[K]V)
	}
	if _, ok := m.values[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.values[k] = v
}

func (m *Map[K, V]) Get(k K) (V, bool) {
	if m == nil {
		var zero V
		return zero, false
	}
	v, ok := m.values[k]
	return v, ok
}

func (m *Map[K, V]) Has(k K) bool {
	_, ok := m.Get(k)
	return ok
}

func (m *Map[K, V]) Delete(k K) {
	if _, ok := m.values[k]; !ok {
		return
	}
	delete(m.values, k)
	m.keys = slices.DeleteFunc(m.keys, func(x K) bool { return x == k })
}

func (m *Map[K, V]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns a copy of the keys in insertion order.
func (m *Map[K, V]) Keys() []K {
	if m == nil {
		return nil
	}
	return slices.Clone(m.keys)
}

// Each visits entries in order until fn returns false.
func (m *Map[K, V]) Each(fn func(k K, v V) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// Clone returns a shallow copy with its own key order.
func (m *Map[K, V]) Clone() *Map[K, V] {
	out := New[K, V]()
	m.Each(func(k K, v V) bool {
		out.Set(k, v)
		return true
	})
	return out
}

// Merge overlays other onto m. Keys from other win.
func (m *Map[K, V]) Merge(other *Map[K, V]) {
	other.Each(func(k K, v V) bool {
		m.Set(k, v)
		return true
	})
}
