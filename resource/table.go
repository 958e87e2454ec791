package resource

import (
	"sync"
)

// Table wraps a LocalBackend with observer support.
type Table struct {
	backend   *LocalBackend
	observers []Observer
	obsMu     sync.RWMutex
	closed    bool
	closeMu   sync.RWMutex
}

// NewTable creates a new table with a LocalBackend.
func NewTable() *Table {
	return &Table{
		backend: NewLocalBackend(),
	}
}

// Insert adds a value with one reference and returns its handle.
func (t *Table) Insert(kind uint32, value any) Handle {
	t.closeMu.RLock()
	if t.closed {
		t.closeMu.RUnlock()
		return 0
	}
	t.closeMu.RUnlock()

	handle, err := t.backend.Create(kind, value)
	if err != nil {
		return 0
	}

	t.notify(Event{
		Type:   EventCreated,
		Handle: handle,
		Kind:   kind,
		Refs:   1,
		Value:  value,
	})

	return handle
}

// Get retrieves a value by handle.
func (t *Table) Get(handle Handle) (any, bool) {
	return t.backend.Get(handle)
}

// GetTyped retrieves a value only if it carries the expected kind.
func (t *Table) GetTyped(handle Handle, kind uint32) (any, bool) {
	actual, ok := t.backend.Kind(handle)
	if !ok || actual != kind {
		return nil, false
	}
	return t.backend.Get(handle)
}

// Kind returns the kind tag of a handle.
func (t *Table) Kind(handle Handle) (uint32, bool) {
	return t.backend.Kind(handle)
}

// RefCount returns the number of references held on handle.
func (t *Table) RefCount(handle Handle) uint32 {
	return t.backend.RefCount(handle)
}

// Retain adds a reference. Returns false if handle is invalid.
func (t *Table) Retain(handle Handle) bool {
	refs := t.backend.IncRef(handle)
	if refs == 0 {
		return false
	}
	t.notify(Event{
		Type:   EventRetained,
		Handle: handle,
		Refs:   refs,
	})
	return true
}

// Release drops a reference. On the last reference the slot is freed, the
// value's Dropper runs, and (value, true) is returned.
func (t *Table) Release(handle Handle) (any, bool) {
	kind, _ := t.backend.Kind(handle)
	value, dropped := t.backend.DecRef(handle)
	if !dropped {
		t.notify(Event{
			Type:   EventReleased,
			Handle: handle,
			Refs:   t.backend.RefCount(handle),
		})
		return nil, false
	}

	if d, ok := value.(Dropper); ok {
		d.Drop()
	}

	t.notify(Event{
		Type:   EventDropped,
		Handle: handle,
		Kind:   kind,
		Value:  value,
	})

	return value, true
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live slots.
func (t *Table) Len() int {
	return t.backend.Len()
}

// Each iterates over all live slots.
func (t *Table) Each(fn func(Handle, uint32, any) bool) {
	t.backend.Each(fn)
}

// Close releases all slots and stops accepting inserts.
func (t *Table) Close() error {
	t.closeMu.Lock()
	t.closed = true
	t.closeMu.Unlock()

	return t.backend.Close()
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
