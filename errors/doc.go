// Package errors provides structured error types for the wasm-executor library.
//
// Errors are categorized by Phase (which boundary operation failed) and Kind
// (error category). The Error type carries the export or region involved, a
// detail message, the offending value and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseMemory, errors.KindOutOfBounds).
//		Export("memory").
//		Value(offset).
//		Detail("read of %d bytes at %d exceeds extent %d", n, offset, extent).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.OutOfBounds(errors.PhaseMemory, offset, length, extent)
//	err := errors.NotFound(errors.PhaseResolve, "export", name)
//
// Matching works through errors.Is against the exported sentinels:
//
//	if errors.Is(err, errors.ErrOutOfBounds) { ... }
//
// A sentinel with an empty Phase matches any phase, one with an empty Kind
// matches any kind, so ErrHeapBase matches every heap base failure.
package errors
