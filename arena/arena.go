package arena

import (
	"context"

	"github.com/wippyai/objbridge"
	"github.com/wippyai/objbridge/errors"
)

const (
	// Granule is the allocation unit and the maximum supported alignment.
	Granule = 8

	// firstOffset keeps offset 0 free so it can mean "no block".
	firstOffset = Granule
)

// Arena is a linear memory with an allocator.
type Arena interface {
	objbridge.Memory
	objbridge.Allocator
	objbridge.MemorySizer

	// Bytes returns a view of [offset, offset+length). The view aliases the
	// arena and stays valid until the block is freed.
	Bytes(offset, length uint32) ([]byte, error)

	// InUse returns the number of allocated bytes, including rounding.
	InUse() uint32

	// Close releases the backing memory.
	Close(ctx context.Context) error
}

// RoundUp rounds n up to a multiple of align, which must be a power of two.
func RoundUp(n, align uint32) uint32 {
	return (n + align - 1) &^ (align - 1)
}

// allocator is a bump allocator with per-size free lists.
type allocator struct {
	free  map[uint32][]uint32
	next  uint32
	limit uint32
	inUse uint32
}

func newAllocator(limit uint32) allocator {
	return allocator{
		free:  make(map[uint32][]uint32),
		next:  firstOffset,
		limit: limit,
	}
}

func (a *allocator) alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	if align > Granule || align&(align-1) != 0 {
		return 0, errors.AllocationFailed(errors.PhaseHolder, size, align)
	}
	if size == 0 {
		size = 1
	}
	n := RoundUp(size, Granule)
	if n < size {
		return 0, errors.AllocationFailed(errors.PhaseHolder, size, align)
	}

	if list := a.free[n]; len(list) > 0 {
		off := list[len(list)-1]
		a.free[n] = list[:len(list)-1]
		a.inUse += n
		return off, nil
	}

	if a.next > a.limit || n > a.limit-a.next {
		return 0, errors.AllocationFailed(errors.PhaseHolder, size, align)
	}
	off := a.next
	a.next += n
	a.inUse += n
	return off, nil
}

func (a *allocator) release(ptr, size uint32) {
	if ptr == 0 {
		return
	}
	if size == 0 {
		size = 1
	}
	n := RoundUp(size, Granule)
	a.free[n] = append(a.free[n], ptr)
	a.inUse -= n
}
