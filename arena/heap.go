package arena

import (
	"context"
	"encoding/binary"
	"unsafe"

	"github.com/wippyai/objbridge/errors"
)

const minHeapSize = 64

// Heap is an Arena backed by a Go-heap buffer.
// The buffer is allocated as []uint64 so its base is 8-byte aligned.
type Heap struct {
	words []uint64
	buf   []byte
	alloc allocator
}

// NewHeap creates a heap arena of size bytes (rounded up to 8, at least 64).
func NewHeap(size uint32) *Heap {
	if size < minHeapSize {
		size = minHeapSize
	}
	size = RoundUp(size, Granule)
	words := make([]uint64, size/Granule)
	return &Heap{
		words: words,
		buf:   unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size),
		alloc: newAllocator(size),
	}
}

func (h *Heap) check(offset, length uint32) error {
	if h.buf == nil {
		return errors.InvalidInput(errors.PhaseHolder, "arena closed")
	}
	if uint64(offset)+uint64(length) > uint64(len(h.buf)) {
		return errors.OutOfBounds(errors.PhaseHolder, offset, length, uint32(len(h.buf)))
	}
	return nil
}

func (h *Heap) Read(offset uint32, length uint32) ([]byte, error) {
	if err := h.check(offset, length); err != nil {
		return nil, err
	}
	return h.buf[offset : offset+length : offset+length], nil
}

func (h *Heap) Bytes(offset, length uint32) ([]byte, error) {
	return h.Read(offset, length)
}

func (h *Heap) Write(offset uint32, data []byte) error {
	if err := h.check(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(h.buf[offset:], data)
	return nil
}

func (h *Heap) ReadU8(offset uint32) (uint8, error) {
	if err := h.check(offset, 1); err != nil {
		return 0, err
	}
	return h.buf[offset], nil
}

func (h *Heap) ReadU16(offset uint32) (uint16, error) {
	if err := h.check(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(h.buf[offset:]), nil
}

func (h *Heap) ReadU32(offset uint32) (uint32, error) {
	if err := h.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(h.buf[offset:]), nil
}

func (h *Heap) ReadU64(offset uint32) (uint64, error) {
	if err := h.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(h.buf[offset:]), nil
}

func (h *Heap) WriteU8(offset uint32, value uint8) error {
	if err := h.check(offset, 1); err != nil {
		return err
	}
	h.buf[offset] = value
	return nil
}

func (h *Heap) WriteU16(offset uint32, value uint16) error {
	if err := h.check(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(h.buf[offset:], value)
	return nil
}

func (h *Heap) WriteU32(offset uint32, value uint32) error {
	if err := h.check(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(h.buf[offset:], value)
	return nil
}

func (h *Heap) WriteU64(offset uint32, value uint64) error {
	if err := h.check(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(h.buf[offset:], value)
	return nil
}

// Size returns the arena capacity in bytes.
func (h *Heap) Size() uint32 {
	return uint32(len(h.buf))
}

func (h *Heap) Alloc(size, align uint32) (uint32, error) {
	if h.buf == nil {
		return 0, errors.InvalidInput(errors.PhaseHolder, "arena closed")
	}
	return h.alloc.alloc(size, align)
}

func (h *Heap) Free(ptr, size, align uint32) {
	h.alloc.release(ptr, size)
}

func (h *Heap) InUse() uint32 {
	return h.alloc.inUse
}

// Close drops the buffer. Views handed out earlier keep it reachable.
func (h *Heap) Close(ctx context.Context) error {
	h.words = nil
	h.buf = nil
	return nil
}
