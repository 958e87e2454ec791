// Package typekey assigns canonical identifiers to Go types.
//
// A Key is a small integer handed out by a Table the first time a type is
// seen. Keys are never zero, totally ordered, comparable with ==, and live for
// as long as their Table. Every other package uses them as map and graph keys.
package typekey

import (
	"reflect"
	"sort"
	"sync"
)

// Key identifies a type within a Table.
type Key uint32

// Invalid is the zero Key. No Table ever issues it.
const Invalid Key = 0

// Valid reports whether k was issued by a Table.
func (k Key) Valid() bool {
	return k != Invalid
}

type entry struct {
	typ  reflect.Type
	name string
}

// Table interns types into Keys. Safe for concurrent use.
type Table struct {
	byType  map[reflect.Type]Key
	byName  map[string]Key
	entries []entry // index = Key-1
	mu      sync.RWMutex
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		byType: make(map[reflect.Type]Key),
		byName: make(map[string]Key),
	}
}

var (
	defaultTable *Table
	defaultOnce  sync.Once
)

// Default returns the process-wide table, created on first access.
func Default() *Table {
	defaultOnce.Do(func() {
		defaultTable = NewTable()
	})
	return defaultTable
}

// For returns the Key of a Go type, assigning one if needed.
func (t *Table) For(rt reflect.Type) Key {
	if rt == nil {
		return Invalid
	}

	t.mu.RLock()
	k, ok := t.byType[rt]
	t.mu.RUnlock()
	if ok {
		return k
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if k, ok := t.byType[rt]; ok {
		return k
	}
	k = t.add(entry{typ: rt, name: rt.String()})
	t.byType[rt] = k
	return k
}

// Named returns the Key of a type known only by name, assigning one if needed.
// Named keys never collide with Go type keys, even for equal names.
func (t *Table) Named(name string) Key {
	t.mu.RLock()
	k, ok := t.byName[name]
	t.mu.RUnlock()
	if ok {
		return k
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if k, ok := t.byName[name]; ok {
		return k
	}
	k = t.add(entry{name: name})
	t.byName[name] = k
	return k
}

// add must be called with mu held.
func (t *Table) add(e entry) Key {
	t.entries = append(t.entries, e)
	return Key(len(t.entries))
}

// Lookup returns the Key of rt without assigning one.
func (t *Table) Lookup(rt reflect.Type) (Key, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	k, ok := t.byType[rt]
	return k, ok
}

// Name returns the display name of k, or "" if k is unknown.
func (t *Table) Name(k Key) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if k == Invalid || int(k) > len(t.entries) {
		return ""
	}
	return t.entries[k-1].name
}

// Type returns the Go type of k, or nil for named and unknown keys.
func (t *Table) Type(k Key) reflect.Type {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if k == Invalid || int(k) > len(t.entries) {
		return nil
	}
	return t.entries[k-1].typ
}

// Len returns the number of issued keys.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Keys returns all issued keys in ascending order.
func (t *Table) Keys() []Key {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys := make([]Key, len(t.entries))
	for i := range t.entries {
		keys[i] = Key(i + 1)
	}
	return keys
}

// Of returns the Key of T in t.
func Of[T any](t *Table) Key {
	return t.For(reflect.TypeFor[T]())
}

// Sort orders keys ascending in place.
func Sort(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
}
