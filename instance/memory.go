package instance

import (
	"math/bits"

	"go.uber.org/zap"

	wasmexecutor "github.com/wippyai/wasm-executor"
	"github.com/wippyai/wasm-executor/errors"
)

// MemorySize returns the current byte size of linear memory.
func (w *Wrapper) MemorySize() uint32 {
	w.mustOpen()
	return w.memory.Size()
}

// ReadMemoryInto copies len(dest) bytes starting at ptr into dest.
// It fails with ErrOutOfBounds if the span does not fit the current extent.
func (w *Wrapper) ReadMemoryInto(ptr wasmexecutor.Pointer, dest []byte) error {
	w.mustOpen()
	return w.withMemory(func(mem []byte) error {
		start, end, ok := checkedRange(uint32(ptr), len(dest), len(mem))
		if !ok {
			return errors.OutOfBounds(errors.PhaseMemory, uint32(ptr), uint64(len(dest)), uint64(len(mem)))
		}
		copy(dest, mem[start:end])
		return nil
	})
}

// WriteMemoryFrom copies src into linear memory starting at ptr.
// It fails with ErrOutOfBounds if the span does not fit the current extent.
func (w *Wrapper) WriteMemoryFrom(ptr wasmexecutor.Pointer, src []byte) error {
	w.mustOpen()
	return w.withMemory(func(mem []byte) error {
		start, end, ok := checkedRange(uint32(ptr), len(src), len(mem))
		if !ok {
			return errors.OutOfBounds(errors.PhaseMemory, uint32(ptr), uint64(len(src)), uint64(len(mem)))
		}
		copy(mem[start:end], src)
		return nil
	})
}

// Allocate asks alloc for size bytes of guest heap and returns the pointer.
// Allocator failures are reported as ErrAllocation with the cause attached.
func (w *Wrapper) Allocate(alloc wasmexecutor.Allocator, size wasmexecutor.WordSize) (wasmexecutor.Pointer, error) {
	w.mustOpen()
	var ptr wasmexecutor.Pointer
	err := w.withMemory(func(mem []byte) error {
		p, err := alloc.Allocate(mem, size)
		if err != nil {
			return errors.AllocationFailed(uint32(size), err)
		}
		if _, _, ok := checkedRange(uint32(p), int(size), len(mem)); !ok {
			return errors.New(errors.PhaseAllocate, errors.KindAllocation).
				Value(uint32(p)).
				Detail("allocator returned region [%d, +%d) outside memory extent %d", p, size, len(mem)).
				Build()
		}
		ptr = p
		return nil
	})
	return ptr, err
}

// Deallocate returns the region at ptr to alloc.
func (w *Wrapper) Deallocate(alloc wasmexecutor.Allocator, ptr wasmexecutor.Pointer) error {
	w.mustOpen()
	return w.withMemory(func(mem []byte) error {
		if err := alloc.Deallocate(mem, ptr); err != nil {
			return errors.DeallocationFailed(uint32(ptr), err)
		}
		return nil
	})
}

// GrowMemory grows linear memory by pages. Growth may relocate memory, so
// no view obtained before this call may be used after it.
func (w *Wrapper) GrowMemory(pages uint32) error {
	w.mustOpen()
	prev, ok := w.memory.Grow(pages)
	if !ok {
		max, hasMax := w.memory.Definition().Max()
		info := errors.GrowthInfo{
			CurrentPages:   w.memory.Size() / wasmexecutor.PageSize,
			RequestedPages: pages,
			MaxPages:       max,
			HasMax:         hasMax,
		}
		Logger().Debug("memory growth refused",
			zap.Uint32("current_pages", info.CurrentPages),
			zap.Uint32("requested_pages", pages))
		return errors.GrowthRefused(info)
	}
	Logger().Debug("memory grown",
		zap.Uint32("previous_pages", prev),
		zap.Uint32("delta_pages", pages))
	return nil
}

// withMemory derives a view of the whole linear memory and passes it to fn.
// The view is valid only until fn returns and must not escape it.
func (w *Wrapper) withMemory(fn func(mem []byte) error) error {
	size := w.memory.Size()
	if size == 0 {
		return fn([]byte{})
	}
	view, ok := w.memory.Read(0, size)
	if !ok {
		panic("instance: linear memory view unavailable at its own extent")
	}
	return fn(view)
}

// checkedRange returns [offset, offset+length) if it lies within extent.
func checkedRange(offset uint32, length, extent int) (start, end int, ok bool) {
	if length < 0 {
		return 0, 0, false
	}
	sum, carry := bits.Add64(uint64(offset), uint64(length), 0)
	if carry != 0 || sum > uint64(extent) {
		return 0, 0, false
	}
	return int(offset), int(sum), true
}
