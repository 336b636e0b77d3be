package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-executor/errors"
	"github.com/wippyai/wasm-executor/exports"
)

// HostFunc is a Go function exported to guests under Namespace.Name.
type HostFunc struct {
	Fn        api.GoModuleFunc
	Namespace string
	Name      string
	Params    []api.ValueType
	Results   []api.ValueType
}

// RegisterHostFunc declares a host function guests may import. Host modules
// are built lazily on the first instantiation that needs them; registering
// into a namespace that is already instantiated fails.
func (e *WazeroEngine) RegisterHostFunc(namespace, name string, params, results []api.ValueType, fn api.GoModuleFunc) error {
	if namespace == "" || name == "" {
		return errors.Registration(namespace, name, fmt.Errorf("namespace and name are required"))
	}
	if fn == nil {
		return errors.Registration(namespace, name, fmt.Errorf("function is nil"))
	}
	for _, t := range append(append([]api.ValueType(nil), params...), results...) {
		if !isNumeric(t) {
			return errors.Registration(namespace, name, fmt.Errorf("unsupported value type 0x%02x", t))
		}
	}

	e.hostMu.Lock()
	defer e.hostMu.Unlock()

	if e.built[namespace] || e.runtime.Module(namespace) != nil {
		return errors.Registration(namespace, name, fmt.Errorf("host module %q is already instantiated", namespace))
	}
	funcs := e.hostFuncs[namespace]
	if funcs == nil {
		funcs = make(map[string]HostFunc)
		e.hostFuncs[namespace] = funcs
	}
	if _, dup := funcs[name]; dup {
		return errors.Registration(namespace, name, fmt.Errorf("already registered"))
	}

	funcs[name] = HostFunc{
		Fn:        fn,
		Namespace: namespace,
		Name:      name,
		Params:    append([]api.ValueType(nil), params...),
		Results:   append([]api.ValueType(nil), results...),
	}
	return nil
}

// HostFuncs returns the registered host functions sorted by namespace and name.
func (e *WazeroEngine) HostFuncs() []HostFunc {
	e.hostMu.Lock()
	defer e.hostMu.Unlock()

	var out []HostFunc
	for _, funcs := range e.hostFuncs {
		for _, hf := range funcs {
			out = append(out, hf)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// linkImports makes sure every function import of idx is provided by an
// instantiated host module, building pending host modules on the way.
func (e *WazeroEngine) linkImports(ctx context.Context, idx *exports.Index) error {
	e.hostMu.Lock()
	defer e.hostMu.Unlock()

	imports := idx.FuncImports()

	// Stubs for unregistered imports, per namespace not yet built.
	stubs := make(map[string][]exports.Import)
	if e.cfg.AllowMissingImports {
		for _, imp := range imports {
			if e.built[imp.Module] || e.runtime.Module(imp.Module) != nil {
				continue
			}
			if _, ok := e.hostFuncs[imp.Module][imp.Name]; ok {
				continue
			}
			stubs[imp.Module] = append(stubs[imp.Module], imp)
		}
	}

	for _, ns := range e.pendingNamespaces(imports) {
		if err := e.buildHostModule(ctx, ns, stubs[ns]); err != nil {
			return err
		}
	}

	var missing []errors.MissingImport
	for _, imp := range imports {
		mod := e.runtime.Module(imp.Module)
		if mod == nil || mod.ExportedFunction(imp.Name) == nil {
			missing = append(missing, errors.MissingImport{Module: imp.Module, Name: imp.Name})
		}
	}
	if len(missing) > 0 {
		return errors.NewMissingImportsError(missing)
	}
	return nil
}

// pendingNamespaces lists namespaces imported by the guest that have no
// instantiated module yet, sorted.
func (e *WazeroEngine) pendingNamespaces(imports []exports.Import) []string {
	seen := make(map[string]bool)
	var out []string
	for _, imp := range imports {
		ns := imp.Module
		if seen[ns] || e.built[ns] || e.runtime.Module(ns) != nil {
			continue
		}
		seen[ns] = true
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// buildHostModule instantiates namespace from its registered functions plus
// trap stubs. Must be called with hostMu held.
func (e *WazeroEngine) buildHostModule(ctx context.Context, namespace string, stubs []exports.Import) error {
	funcs := e.hostFuncs[namespace]
	if len(funcs) == 0 && len(stubs) == 0 {
		return nil
	}

	builder := e.runtime.NewHostModuleBuilder(namespace)

	names := make([]string, 0, len(funcs))
	for name := range funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		hf := funcs[name]
		builder.NewFunctionBuilder().
			WithGoModuleFunction(hf.Fn, hf.Params, hf.Results).
			WithName(name).
			Export(name)
	}

	for _, imp := range stubs {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(trapStub(imp.Module, imp.Name), imp.Type.Params, imp.Type.Results).
			WithName(imp.Name).
			Export(imp.Name)
	}

	if _, err := builder.Instantiate(ctx); err != nil {
		return errors.Wrap(errors.PhaseHost, errors.KindInstantiation, err,
			fmt.Sprintf("instantiate host module %q", namespace))
	}
	e.built[namespace] = true

	Logger().Debug("host module instantiated",
		zap.String("namespace", namespace),
		zap.Int("functions", len(funcs)),
		zap.Int("stubs", len(stubs)))
	return nil
}

// trapStub returns a host function that fails any call.
func trapStub(module, name string) api.GoModuleFunc {
	return func(context.Context, api.Module, []uint64) {
		panic(fmt.Errorf("call to missing import %s.%s", module, name))
	}
}

func isNumeric(t api.ValueType) bool {
	switch t {
	case api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF32, api.ValueTypeF64:
		return true
	}
	return false
}
