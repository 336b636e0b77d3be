// Package wasmexecutor is the boundary layer between a blockchain node and an
// untrusted WebAssembly runtime module acting as its state-transition function.
//
// The library is organized into several packages with distinct responsibilities:
//
//	wasmexecutor/        Pointer, WordSize, Allocator and ptr/len packing
//	├── instance/        Instance wrapper: memory access, allocation, entrypoints
//	├── exports/         Export index built from the module binary
//	├── engine/          wazero integration: compile, host imports, instantiate
//	├── runtime/         Embedding executor: sessions and the call-in-wasm flow
//	├── errors/          Structured error types
//	└── cmd/run/         Command line runner with an interactive mode
//
// # Quick Start
//
//	rt, err := runtime.New(ctx, runtime.WithAllocatorFactory(newAllocator))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	mod, err := rt.LoadModule(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	inst, err := mod.Instantiate(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//
//	out, err := inst.Call(ctx, "Core_version", nil)
//
// # Calling Convention
//
// Every entrypoint has the core signature (i32, i32) -> i64. The host passes
// a pointer and length of the input region; the module returns the output
// region packed into one 64-bit value, pointer in the low half and length in
// the high half. The convention is fixed and never negotiated at runtime.
//
// # Thread Safety
//
// Runtime and Module are safe for concurrent use. An instance wrapper has
// exactly one owner and must never be used from two goroutines at once; the
// wrapper performs no locking of its own.
//
// # Memory Model
//
// Linear memory may be relocated by growth. Nothing in this library keeps a
// slice of guest memory across a call: every accessor derives a fresh view,
// uses it and drops it before returning.
package wasmexecutor
