package arena

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/objbridge"
	"github.com/wippyai/objbridge/errors"
)

const (
	// PageSize is the WebAssembly page size.
	PageSize = 65536

	// MaxPages bounds the wazero arena to 64 MiB.
	MaxPages = 1024

	memoryExport = "memory"
)

// WazeroMemory wraps wazero memory to implement objbridge.Memory
type WazeroMemory struct {
	mem api.Memory
}

func (m *WazeroMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseHolder, offset, length, m.Size())
	}
	return data, nil
}

func (m *WazeroMemory) Write(offset uint32, data []byte) error {
	ok := m.mem.Write(offset, data)
	if !ok {
		return errors.OutOfBounds(errors.PhaseHolder, offset, uint32(len(data)), m.Size())
	}
	return nil
}

func (m *WazeroMemory) ReadU8(offset uint32) (uint8, error) {
	val, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseHolder, offset, 1, m.Size())
	}
	return val, nil
}

func (m *WazeroMemory) ReadU16(offset uint32) (uint16, error) {
	val, ok := m.mem.ReadUint16Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseHolder, offset, 2, m.Size())
	}
	return val, nil
}

func (m *WazeroMemory) ReadU32(offset uint32) (uint32, error) {
	val, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseHolder, offset, 4, m.Size())
	}
	return val, nil
}

func (m *WazeroMemory) ReadU64(offset uint32) (uint64, error) {
	val, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseHolder, offset, 8, m.Size())
	}
	return val, nil
}

func (m *WazeroMemory) WriteU8(offset uint32, value uint8) error {
	if !m.mem.WriteByte(offset, value) {
		return errors.OutOfBounds(errors.PhaseHolder, offset, 1, m.Size())
	}
	return nil
}

func (m *WazeroMemory) WriteU16(offset uint32, value uint16) error {
	if !m.mem.WriteUint16Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseHolder, offset, 2, m.Size())
	}
	return nil
}

func (m *WazeroMemory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseHolder, offset, 4, m.Size())
	}
	return nil
}

func (m *WazeroMemory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseHolder, offset, 8, m.Size())
	}
	return nil
}

func (m *WazeroMemory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

// Wasm is an Arena backed by the exported memory of a wazero module.
// The memory is created with min == max pages and is never grown, so views
// returned by Bytes do not move.
type Wasm struct {
	rt    wazero.Runtime
	mod   api.Module
	mem   *WazeroMemory
	alloc allocator
}

// NewWasm instantiates a memory-only module with the given number of pages.
func NewWasm(ctx context.Context, pages uint32) (*Wasm, error) {
	if pages == 0 || pages > MaxPages {
		return nil, errors.InvalidInput(errors.PhaseHolder, "wasm arena pages out of range")
	}

	rt := wazero.NewRuntime(ctx)
	mod, err := rt.Instantiate(ctx, memoryModule(pages))
	if err != nil {
		_ = rt.Close(ctx)
		return nil, errors.Wrap(errors.PhaseHolder, errors.KindAllocation, err, "instantiate arena module")
	}

	mem := mod.ExportedMemory(memoryExport)
	if mem == nil {
		_ = rt.Close(ctx)
		return nil, errors.NotFound(errors.PhaseHolder, "memory export", memoryExport)
	}

	return &Wasm{
		rt:    rt,
		mod:   mod,
		mem:   &WazeroMemory{mem: mem},
		alloc: newAllocator(mem.Size()),
	}, nil
}

func (w *Wasm) Read(offset uint32, length uint32) ([]byte, error) {
	return w.mem.Read(offset, length)
}

func (w *Wasm) Bytes(offset, length uint32) ([]byte, error) {
	return w.mem.Read(offset, length)
}

func (w *Wasm) Write(offset uint32, data []byte) error { return w.mem.Write(offset, data) }

func (w *Wasm) ReadU8(offset uint32) (uint8, error)   { return w.mem.ReadU8(offset) }
func (w *Wasm) ReadU16(offset uint32) (uint16, error) { return w.mem.ReadU16(offset) }
func (w *Wasm) ReadU32(offset uint32) (uint32, error) { return w.mem.ReadU32(offset) }
func (w *Wasm) ReadU64(offset uint32) (uint64, error) { return w.mem.ReadU64(offset) }

func (w *Wasm) WriteU8(offset uint32, value uint8) error   { return w.mem.WriteU8(offset, value) }
func (w *Wasm) WriteU16(offset uint32, value uint16) error { return w.mem.WriteU16(offset, value) }
func (w *Wasm) WriteU32(offset uint32, value uint32) error { return w.mem.WriteU32(offset, value) }
func (w *Wasm) WriteU64(offset uint32, value uint64) error { return w.mem.WriteU64(offset, value) }

func (w *Wasm) Size() uint32 {
	return w.mem.Size()
}

func (w *Wasm) Alloc(size, align uint32) (uint32, error) {
	return w.alloc.alloc(size, align)
}

func (w *Wasm) Free(ptr, size, align uint32) {
	w.alloc.release(ptr, size)
}

func (w *Wasm) InUse() uint32 {
	return w.alloc.inUse
}

// Close closes the module and the wazero runtime.
func (w *Wasm) Close(ctx context.Context) error {
	if w.rt == nil {
		return nil
	}
	err := w.rt.Close(ctx)
	w.rt = nil
	w.mod = nil
	return err
}

// memoryModule encodes a module that only exports a fixed-size memory:
//
//	(module (memory (export "memory") pages pages))
func memoryModule(pages uint32) []byte {
	limits := append([]byte{0x01}, uleb128(pages)...)
	limits = append(limits, uleb128(pages)...)

	memSection := append([]byte{0x01}, limits...)
	exportSection := []byte{0x01, byte(len(memoryExport))}
	exportSection = append(exportSection, memoryExport...)
	exportSection = append(exportSection, 0x02, 0x00)

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, 0x05)
	out = append(out, uleb128(uint32(len(memSection)))...)
	out = append(out, memSection...)
	out = append(out, 0x07)
	out = append(out, uleb128(uint32(len(exportSection)))...)
	out = append(out, exportSection...)
	return out
}

func uleb128(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

var (
	_ objbridge.Memory      = (*WazeroMemory)(nil)
	_ objbridge.MemorySizer = (*WazeroMemory)(nil)
	_ Arena                 = (*Heap)(nil)
	_ Arena                 = (*Wasm)(nil)
)
