package instance

import (
	"context"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	wasmexecutor "github.com/wippyai/wasm-executor"
	"github.com/wippyai/wasm-executor/errors"
	"github.com/wippyai/wasm-executor/exports"
)

const entrypointSignature = "(i32, i32) -> i64"

// Entrypoint is a resolved export with the (i32, i32) -> i64 signature.
type Entrypoint struct {
	fn    api.Function
	owner *Wrapper
	name  string
}

// ResolveEntrypoint resolves the exported function name and verifies its
// signature is exactly (i32, i32) -> i64.
func (w *Wrapper) ResolveEntrypoint(name string) (*Entrypoint, error) {
	w.mustOpen()

	kind, ok := w.kindOf(name)
	if !ok {
		Logger().Debug("entrypoint not found", zap.String("name", name))
		return nil, errors.NotFound(errors.PhaseResolve, "exported method", name)
	}
	if kind != exports.KindFunc {
		return nil, errors.NotAFunction(name)
	}

	fn := w.mod.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotAFunction(name)
	}

	def := fn.Definition()
	if !IsEntrypointSignature(def.ParamTypes(), def.ResultTypes()) {
		return nil, errors.SignatureMismatch(name, formatSignature(def.ParamTypes(), def.ResultTypes()), entrypointSignature)
	}

	return &Entrypoint{fn: fn, owner: w, name: name}, nil
}

// Name returns the export name of the entrypoint.
func (e *Entrypoint) Name() string {
	return e.name
}

// Call invokes the entrypoint with an input region and returns the raw
// packed result. A trap is returned as ErrTrap; the instance survives it.
func (e *Entrypoint) Call(ctx context.Context, ptr wasmexecutor.Pointer, length wasmexecutor.WordSize) (uint64, error) {
	e.owner.mustOpen()

	results, err := e.fn.Call(ctx, uint64(ptr), uint64(length))
	if err != nil {
		return 0, errors.Trap(e.name, err)
	}
	if len(results) != 1 {
		return 0, errors.InvalidData(errors.PhaseCall, "entrypoint returned no result")
	}
	return results[0], nil
}

// Invoke calls the entrypoint and unpacks the result into the output region.
// The region is not bounds-checked here; read it through the wrapper.
func (e *Entrypoint) Invoke(ctx context.Context, ptr wasmexecutor.Pointer, length wasmexecutor.WordSize) (wasmexecutor.Pointer, wasmexecutor.WordSize, error) {
	packed, err := e.Call(ctx, ptr, length)
	if err != nil {
		return 0, 0, err
	}
	outPtr, outLen := wasmexecutor.UnpackPtrLen(packed)
	return outPtr, outLen, nil
}

// IsEntrypointSignature reports whether params and results form the
// entrypoint calling convention (i32, i32) -> i64.
func IsEntrypointSignature(params, results []api.ValueType) bool {
	return len(params) == 2 &&
		params[0] == api.ValueTypeI32 &&
		params[1] == api.ValueTypeI32 &&
		len(results) == 1 &&
		results[0] == api.ValueTypeI64
}

func formatSignature(params, results []api.ValueType) string {
	var b strings.Builder
	b.WriteByte('(')
	writeTypes(&b, params)
	b.WriteString(") -> ")
	if len(results) == 1 {
		b.WriteString(api.ValueTypeName(results[0]))
		return b.String()
	}
	b.WriteByte('(')
	writeTypes(&b, results)
	b.WriteByte(')')
	return b.String()
}

func writeTypes(b *strings.Builder, types []api.ValueType) {
	for i, t := range types {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(api.ValueTypeName(t))
	}
}
