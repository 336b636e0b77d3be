// Package instance wraps one instantiated WebAssembly runtime module and is
// the only sanctioned path for host code to touch its linear memory or invoke
// its entrypoints.
//
// # Ownership
//
// A Wrapper owns its module exclusively. The engine package wraps each
// instantiation immediately and never hands the raw api.Module to callers,
// so no second referent can exist. Wrapper must not be copied by value; it
// carries a noCopy marker that go vet reports.
//
// A Wrapper has a single owner and is not safe for concurrent use. No lock
// is taken internally: exclusivity is a precondition of every method.
//
// # Memory Views
//
// Linear memory can be relocated by growth, whether requested by the host
// through GrowMemory or by the guest executing memory.grow during a call.
// Every accessor therefore derives the base and extent of memory at call
// time, uses the view and drops it before returning:
//
//	buf := make([]byte, n)
//	if err := w.ReadMemoryInto(ptr, buf); err != nil {
//	    return err // errors.ErrOutOfBounds
//	}
//
// Allocators see the same discipline: Allocate and Deallocate pass a freshly
// derived view of the whole memory, valid for the duration of that one call.
//
// # Entrypoints
//
// Entrypoints have the fixed signature (i32, i32) -> i64:
//
//	entry, err := w.ResolveEntrypoint("Core_version")
//	if err != nil {
//	    return err // ErrNotFound, ErrNotAFunction or ErrSignatureMismatch
//	}
//	outPtr, outLen, err := entry.Invoke(ctx, inPtr, inLen)
//
// # Failure Model
//
// Every boundary condition is returned as a typed *errors.Error. Using a
// Wrapper after Close panics, since that indicates a defect in the host.
package instance
