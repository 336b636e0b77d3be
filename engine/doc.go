// Package engine compiles core WebAssembly modules on wazero and produces
// wrapped instances.
//
// # Architecture
//
//	WazeroEngine  - owns the wazero runtime, host modules and WASI
//	WazeroModule  - a compiled module plus its export index
//	instance.Wrapper - one running instance, exclusively owned by the caller
//
// # Instantiation Flow
//
//  1. WazeroEngine.LoadModule() indexes the binary and compiles it
//  2. WazeroEngine.RegisterHostFunc() declares functions guests import
//  3. WazeroModule.Instantiate() builds pending host modules, verifies every
//     function import resolves, instantiates and wraps the result
//
// Host modules are wazero modules and therefore runtime-wide: a namespace is
// instantiated once, on first use, and cannot gain functions afterwards.
// Unresolved imports are reported together as *errors.MissingImportsError,
// unless Config.AllowMissingImports replaces them with trapping stubs.
//
// # Configuration
//
//	cfg := &engine.Config{
//	    MemoryLimitPages:   1024, // 64 MiB per instance
//	    CloseOnContextDone: true,
//	}
//	eng, err := engine.NewWazeroEngineWithConfig(ctx, cfg)
//
// # Thread Safety
//
// WazeroEngine and WazeroModule are safe for concurrent use. Wrappers are not;
// see package instance.
package engine
