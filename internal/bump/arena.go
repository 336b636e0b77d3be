// Package bump provides a minimal host-side bump allocator for guest heaps.
//
// Arena hands out 8-byte aligned regions above the module's heap base and
// keeps its bookkeeping on the host, never inside guest memory. Freeing the
// most recent allocation rewinds the bump pointer; freeing anything else
// only retires the region. It has no free list: it serves short sessions
// (one entrypoint call, a CLI run) and tests, not long-lived heaps.
package bump

import (
	"errors"
	"fmt"
	"math"

	wasmexecutor "github.com/wippyai/wasm-executor"
)

const (
	// Alignment of every returned pointer.
	Alignment = 8

	// MaxAllocation caps a single request at 32 MiB.
	MaxAllocation = 32 << 20
)

// Allocation errors.
var (
	ErrExhausted      = errors.New("bump: heap exhausted")
	ErrTooLarge       = errors.New("bump: requested allocation too large")
	ErrInvalidPointer = errors.New("bump: invalid pointer")
)

// Arena is a bump allocator. It is not safe for concurrent use, matching
// the single-owner model of the instance it serves.
type Arena struct {
	live map[wasmexecutor.Pointer]uint32
	base uint32
	next uint32
}

var _ wasmexecutor.Allocator = (*Arena)(nil)

// New creates an arena whose heap starts at heapBase rounded up to Alignment.
// A heap base that cannot be aligned within the 32-bit address space yields
// an arena that refuses every request.
func New(heapBase uint32) *Arena {
	base := alignUp(uint64(heapBase))
	if base > math.MaxUint32 {
		base = math.MaxUint32
	}
	return &Arena{
		live: make(map[wasmexecutor.Pointer]uint32),
		base: uint32(base),
		next: uint32(base),
	}
}

// Allocate reserves size bytes inside mem.
func (a *Arena) Allocate(mem []byte, size wasmexecutor.WordSize) (wasmexecutor.Pointer, error) {
	if size > MaxAllocation {
		return 0, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}
	n := alignUp(uint64(size))
	if n == 0 {
		n = Alignment
	}
	end := uint64(a.next) + n
	if end > uint64(len(mem)) {
		return 0, fmt.Errorf("%w: need %d bytes at %d, memory is %d bytes", ErrExhausted, n, a.next, len(mem))
	}

	ptr := wasmexecutor.Pointer(a.next)
	a.live[ptr] = uint32(n)
	a.next = uint32(end)
	return ptr, nil
}

// Deallocate releases the region at ptr.
func (a *Arena) Deallocate(_ []byte, ptr wasmexecutor.Pointer) error {
	n, ok := a.live[ptr]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidPointer, ptr)
	}
	delete(a.live, ptr)
	if uint32(ptr)+n == a.next {
		a.next = uint32(ptr)
	}
	return nil
}

// Base returns the aligned start of the heap.
func (a *Arena) Base() uint32 {
	return a.base
}

// Used returns the number of bytes between the heap base and the bump pointer.
func (a *Arena) Used() uint32 {
	return a.next - a.base
}

// Live returns the number of outstanding allocations.
func (a *Arena) Live() int {
	return len(a.live)
}

// Reset forgets every allocation.
func (a *Arena) Reset() {
	clear(a.live)
	a.next = a.base
}

func alignUp(v uint64) uint64 {
	return (v + Alignment - 1) &^ (Alignment - 1)
}
