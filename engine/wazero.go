package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-executor/errors"
	"github.com/wippyai/wasm-executor/exports"
)

// WazeroEngine compiles modules and owns the shared wazero runtime together
// with the host modules guests import from.
type WazeroEngine struct {
	runtime      wazero.Runtime
	cfg          Config
	hostFuncs    map[string]map[string]HostFunc // namespace -> name
	built        map[string]bool                // host namespaces already instantiated
	hostMu       sync.Mutex
	wasiInitMu   sync.Mutex
	wasiInitDone atomic.Bool
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// CloseOnContextDone closes an instance when the context of a call into
	// it is canceled or times out. The instance is unusable afterwards.
	CloseOnContextDone bool

	// EnableThreads enables the WebAssembly threads proposal (experimental).
	// Thread operations are guest-only and not exposed to host functions.
	EnableThreads bool

	// EnableWASI instantiates wasi_snapshot_preview1 before the first guest.
	EnableWASI bool

	// AllowMissingImports satisfies function imports nobody registered with
	// stubs that trap when called. Stubs can only be added to a host module
	// that is not instantiated yet, so they cover the imports of the first
	// guest that needs each namespace.
	AllowMissingImports bool
}

// NewWazeroEngine creates a new wazero-based engine
func NewWazeroEngine(ctx context.Context) (*WazeroEngine, error) {
	return NewWazeroEngineWithConfig(ctx, nil)
}

// NewWazeroEngineWithConfig creates a new engine with custom configuration
func NewWazeroEngineWithConfig(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()

	var c Config
	if cfg != nil {
		c = *cfg
		if c.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(c.MemoryLimitPages)
		}
		if c.CloseOnContextDone {
			runtimeCfg = runtimeCfg.WithCloseOnContextDone(true)
		}
		if c.EnableThreads {
			runtimeCfg = runtimeCfg.WithCoreFeatures(api.CoreFeaturesV2 | experimental.CoreFeaturesThreads)
		}
	}

	Logger().Debug("creating engine",
		zap.Uint32("memory_limit_pages", c.MemoryLimitPages),
		zap.Bool("close_on_context_done", c.CloseOnContextDone),
		zap.Bool("wasi", c.EnableWASI))

	return &WazeroEngine{
		runtime:   wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		cfg:       c,
		hostFuncs: make(map[string]map[string]HostFunc),
		built:     make(map[string]bool),
	}, nil
}

// Config returns the configuration the engine was created with.
func (e *WazeroEngine) Config() Config {
	return e.cfg
}

// LoadModule compiles a core module and indexes its exports and imports.
func (e *WazeroEngine) LoadModule(ctx context.Context, wasmBytes []byte) (*WazeroModule, error) {
	idx, err := exports.Parse(wasmBytes)
	if err != nil {
		return nil, errors.Load("parse module", err)
	}

	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Load("compile failed", err)
	}

	Logger().Debug("module compiled",
		zap.Int("exports", len(idx.Names())),
		zap.Int("func_imports", len(idx.FuncImports())))

	return &WazeroModule{
		engine:   e,
		compiled: compiled,
		index:    idx,
	}, nil
}

// Close releases the runtime and every instance created from it.
func (e *WazeroEngine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}
