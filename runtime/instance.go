package runtime

import (
	"context"

	"go.uber.org/zap"

	wasmexecutor "github.com/wippyai/wasm-executor"
	"github.com/wippyai/wasm-executor/errors"
	"github.com/wippyai/wasm-executor/instance"
)

// Instance is one running module. Like the wrapper it owns, it is not safe
// for concurrent use.
type Instance struct {
	wrapper  *instance.Wrapper
	factory  AllocatorFactory
	alloc    wasmexecutor.Allocator
	log      *zap.Logger
	heapBase uint32
}

// Wrapper exposes the boundary layer for direct memory and export access.
func (i *Instance) Wrapper() *instance.Wrapper {
	return i.wrapper
}

// HeapBase returns the module's heap base.
func (i *Instance) HeapBase() (uint32, error) {
	if err := i.ensureOpen(); err != nil {
		return 0, err
	}
	if i.alloc != nil {
		return i.heapBase, nil
	}
	return i.wrapper.ExtractHeapBase()
}

// Allocator returns the instance allocator, building it on first use.
func (i *Instance) Allocator() (wasmexecutor.Allocator, error) {
	if err := i.ensureOpen(); err != nil {
		return nil, err
	}
	if i.alloc != nil {
		return i.alloc, nil
	}

	hb, err := i.wrapper.ExtractHeapBase()
	if err != nil {
		return nil, err
	}
	i.heapBase = hb
	i.alloc = i.factory(hb)
	return i.alloc, nil
}

// Call runs entrypoint with input and returns a copy of its output.
//
// The input is copied into a fresh allocation, the entrypoint receives
// (ptr, len) and returns the packed output region, which is bounds-checked
// and copied out. The input allocation is released on every path.
func (i *Instance) Call(ctx context.Context, entrypoint string, input []byte) ([]byte, error) {
	if err := i.ensureOpen(); err != nil {
		return nil, err
	}
	if uint64(len(input)) > uint64(^uint32(0)) {
		return nil, errors.InvalidInput(errors.PhaseCall, "input exceeds 32-bit address space")
	}

	ep, err := i.wrapper.ResolveEntrypoint(entrypoint)
	if err != nil {
		return nil, err
	}
	alloc, err := i.Allocator()
	if err != nil {
		return nil, err
	}

	size := wasmexecutor.WordSize(len(input))
	inPtr, err := i.wrapper.Allocate(alloc, size)
	if err != nil {
		return nil, err
	}
	defer func() {
		if i.wrapper.Closed() {
			return
		}
		if err := i.wrapper.Deallocate(alloc, inPtr); err != nil {
			i.log.Warn("failed to release call input", zap.String("entrypoint", entrypoint), zap.Error(err))
		}
	}()

	if err := i.wrapper.WriteMemoryFrom(inPtr, input); err != nil {
		return nil, err
	}

	outPtr, outLen, err := ep.Invoke(ctx, inPtr, size)
	if err != nil {
		i.log.Debug("entrypoint failed", zap.String("entrypoint", entrypoint), zap.Error(err))
		return nil, err
	}

	// The region comes from the guest; check it before sizing a host buffer.
	if extent := uint64(i.wrapper.MemorySize()); uint64(outPtr)+uint64(outLen) > extent {
		return nil, errors.Wrap(errors.PhaseCall, errors.KindOutOfBounds,
			errors.OutOfBounds(errors.PhaseCall, uint32(outPtr), uint64(outLen), extent),
			"entrypoint "+entrypoint+" returned an invalid output region")
	}
	out := make([]byte, outLen)
	if err := i.wrapper.ReadMemoryInto(outPtr, out); err != nil {
		return nil, errors.Wrap(errors.PhaseCall, errors.KindOutOfBounds, err, "entrypoint "+entrypoint+" returned an invalid output region")
	}

	i.log.Debug("entrypoint returned",
		zap.String("entrypoint", entrypoint),
		zap.Int("input_len", len(input)),
		zap.Uint32("output_len", uint32(outLen)))
	return out, nil
}

// Close tears the instance down. Close is idempotent.
func (i *Instance) Close(ctx context.Context) error {
	i.alloc = nil
	return i.wrapper.Close(ctx)
}

func (i *Instance) ensureOpen() error {
	if i.wrapper.Closed() {
		return errors.InvalidInput(errors.PhaseCall, "instance is closed")
	}
	return nil
}
