package resource

// Handle is an opaque reference to a slot in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Event types for slot lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
	EventRetained
	EventReleased
)

// Event represents a slot lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	Kind   uint32
	Refs   uint32
	Type   EventType
}

// Observer receives notifications about slot lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Backend provides the underlying storage mechanism for slots.
type Backend interface {
	// Create stores a value with a reference count of one and returns a handle.
	Create(kind uint32, value any) (Handle, error)

	// Get retrieves a value by handle.
	Get(handle Handle) (any, bool)

	// IncRef adds a reference. Returns the new count, or 0 if handle is invalid.
	IncRef(handle Handle) uint32

	// DecRef removes a reference. When the count reaches zero the slot is
	// freed and (value, true) is returned so the caller can finalize it.
	DecRef(handle Handle) (any, bool)

	// Close releases all slots held by the backend.
	Close() error
}

// Dropper is optionally implemented by values that need cleanup when their
// last reference is released.
type Dropper interface {
	Drop()
}
