package engine

import (
	"context"
	"io"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-executor/errors"
	"github.com/wippyai/wasm-executor/exports"
	"github.com/wippyai/wasm-executor/instance"
)

// InstanceConfig holds configuration for module instantiation
type InstanceConfig struct {
	// Name registers the instance under a module name. Empty instantiates
	// anonymously, which allows any number of parallel instances.
	Name string

	// Stdout and Stderr receive WASI output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer

	// StartFunctions run after instantiation. Nil runs "_initialize" when
	// the module exports it; "_start" is never run implicitly.
	StartFunctions []string
}

// WazeroModule is a compiled module. It is safe for concurrent
// instantiation.
type WazeroModule struct {
	engine   *WazeroEngine
	compiled wazero.CompiledModule
	index    *exports.Index
}

// Index returns the module's export index.
func (m *WazeroModule) Index() *exports.Index {
	return m.index
}

// ExportNames returns the sorted names of all exports.
func (m *WazeroModule) ExportNames() []string {
	return m.index.Names()
}

// Entrypoints returns the sorted names of exported functions with the
// (i32, i32) -> i64 entrypoint signature.
func (m *WazeroModule) Entrypoints() []string {
	var names []string
	for name, def := range m.compiled.ExportedFunctions() {
		if isEntrypoint(def) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Instantiate links the module against registered host functions and wraps
// the new instance. The returned wrapper is the instance's only owner.
func (m *WazeroModule) Instantiate(ctx context.Context, cfg *InstanceConfig) (*instance.Wrapper, error) {
	if cfg == nil {
		cfg = &InstanceConfig{}
	}

	if m.engine.cfg.EnableWASI {
		if err := m.engine.InitWASI(ctx); err != nil {
			return nil, err
		}
	}
	if err := m.engine.linkImports(ctx, m.index); err != nil {
		return nil, err
	}

	modConfig := wazero.NewModuleConfig().WithName(cfg.Name)
	if cfg.Stdout != nil {
		modConfig = modConfig.WithStdout(cfg.Stdout)
	}
	if cfg.Stderr != nil {
		modConfig = modConfig.WithStderr(cfg.Stderr)
	}
	modConfig = modConfig.WithStartFunctions(m.startFunctions(cfg)...)

	mod, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, modConfig)
	if err != nil {
		return nil, errors.Instantiation(err)
	}

	w, err := instance.New(mod, m.index)
	if err != nil {
		mod.Close(ctx)
		return nil, err
	}

	Logger().Debug("module instantiated", zap.String("name", cfg.Name))
	return w, nil
}

func (m *WazeroModule) startFunctions(cfg *InstanceConfig) []string {
	if cfg.StartFunctions != nil {
		return cfg.StartFunctions
	}
	if e, ok := m.index.Lookup("_initialize"); ok && e.Kind == exports.KindFunc {
		return []string{"_initialize"}
	}
	return []string{}
}

// Close releases the compiled code. Live instances are unaffected.
func (m *WazeroModule) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

func isEntrypoint(def api.FunctionDefinition) bool {
	return instance.IsEntrypointSignature(def.ParamTypes(), def.ResultTypes())
}
