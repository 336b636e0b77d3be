// Package runtime is the high-level API for running byte-oriented
// WebAssembly entrypoints.
//
// An entrypoint is an export with signature (i32 ptr, i32 len) -> i64. The
// host copies the input into guest memory, calls the export and reads the
// output region packed into the result as (len << 32) | ptr.
//
//	rt, err := runtime.New(ctx, runtime.WithMemoryLimitPages(1024))
//	if err != nil {
//	    return err
//	}
//	defer rt.Close(ctx)
//
//	mod, err := rt.LoadModule(ctx, wasmBytes)
//	if err != nil {
//	    return err
//	}
//	inst, err := mod.Instantiate(ctx)
//	if err != nil {
//	    return err
//	}
//	defer inst.Close(ctx)
//
//	out, err := inst.Call(ctx, "Core_version", nil)
//
// # Host Functions
//
// Guests import host functions by module and name. Register them before
// the first instantiation that imports their namespace:
//
//	rt.RegisterFunc("env", "ext_twice", func(v uint32) uint32 { return v * 2 })
//
// Struct hosts register every exported method under their Namespace():
//
//	type Env struct{}
//	func (Env) Namespace() string { return "env" }
//	func (Env) ExtPrintNum(ctx context.Context, v uint64) { ... } // ext_print_num
//
// # Allocation
//
// Each instance builds one allocator from its __heap_base on first use. The
// default is a host-side bump arena (internal/bump); WithAllocatorFactory
// installs another wasmexecutor.Allocator.
//
// # Thread Safety
//
// Runtime and Module are safe for concurrent use. Instance is not: it is the
// exclusive owner of one wasm instance.
package runtime
