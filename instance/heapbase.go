package instance

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-executor/errors"
	"github.com/wippyai/wasm-executor/exports"
)

// ExtractHeapBase reads the i32 global __heap_base, which marks where the
// module's static data ends and free heap space begins.
//
// Absence, a non-global export and a non-i32 global are distinct errors
// (ErrNotFound, ErrNotAGlobal, ErrGlobalType); all of them match ErrHeapBase.
func (w *Wrapper) ExtractHeapBase() (uint32, error) {
	w.mustOpen()

	kind, ok := w.kindOf(HeapBaseExport)
	if !ok {
		return 0, errors.NotFound(errors.PhaseHeapBase, "global", HeapBaseExport)
	}
	if kind != exports.KindGlobal {
		return 0, errors.NotAGlobal(HeapBaseExport)
	}

	global := w.mod.ExportedGlobal(HeapBaseExport)
	if global == nil {
		return 0, errors.NotAGlobal(HeapBaseExport)
	}
	if global.Type() != api.ValueTypeI32 {
		return 0, errors.GlobalType(HeapBaseExport, api.ValueTypeName(global.Type()), "i32")
	}

	return api.DecodeU32(global.Get()), nil
}
