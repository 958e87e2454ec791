package instance

import "sync/atomic"

type control struct {
	drop func()
	uses atomic.Int32
}

// Shared is a shared-ownership pointer. Each Shared value is one use; the
// pointee is dropped when the last use is released.
type Shared[T any] struct {
	ptr *T
	ctl *control
}

// NewShared takes ownership of p with a use count of one.
func NewShared[T any](p *T) *Shared[T] {
	s := &Shared[T]{ptr: p, ctl: &control{}}
	s.ctl.uses.Store(1)
	return s
}

// NewSharedFunc shares p without owning it: drop runs instead of dropping p
// when the last use is released.
func NewSharedFunc[T any](p *T, drop func()) *Shared[T] {
	s := NewShared(p)
	s.ctl.drop = drop
	return s
}

// Get returns the pointee, or nil once this use is released.
func (s *Shared[T]) Get() *T {
	if s == nil {
		return nil
	}
	return s.ptr
}

// Clone returns a new use of the same pointee.
func (s *Shared[T]) Clone() *Shared[T] {
	if s.ptr == nil {
		return &Shared[T]{}
	}
	s.ctl.uses.Add(1)
	return &Shared[T]{ptr: s.ptr, ctl: s.ctl}
}

// Release gives up this use. Releasing twice is a no-op.
func (s *Shared[T]) Release() {
	if s == nil || s.ptr == nil {
		return
	}
	p := s.ptr
	s.ptr = nil
	if s.ctl.uses.Add(-1) == 0 {
		if s.ctl.drop != nil {
			s.ctl.drop()
			return
		}
		if d, ok := any(p).(Dropper); ok {
			d.Drop()
		}
	}
}

// UseCount returns the number of live uses of the pointee.
func (s *Shared[T]) UseCount() int {
	if s == nil || s.ctl == nil || s.ptr == nil {
		return 0
	}
	return int(s.ctl.uses.Load())
}

// Alive reports whether the pointee still has a live use.
func (s *Shared[T]) Alive() bool {
	return s.UseCount() > 0
}
