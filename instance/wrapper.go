package instance

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-executor/errors"
	"github.com/wippyai/wasm-executor/exports"
)

// Reserved export names.
const (
	MemoryExport   = "memory"
	TableExport    = "__indirect_function_table"
	HeapBaseExport = "__heap_base"
)

// noCopy may be embedded into structs which must not be copied after first use.
// See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Wrapper is the exclusive owner of one module instantiation.
type Wrapper struct {
	_      noCopy
	mod    api.Module
	memory api.Memory
	index  *exports.Index
	table  *exports.Table
}

// New wraps mod. The caller hands over ownership: after New returns, the
// wrapper must be the only referent to mod.
//
// idx is the export index of the binary mod was instantiated from. When nil,
// export kinds are probed through wazero's typed lookups, which only see
// functions, memories and globals. No table can be discovered then, and a
// table or tag export reads as absent: a table exported as `memory` fails
// as "not exported" instead of as the wrong kind.
func New(mod api.Module, idx *exports.Index) (*Wrapper, error) {
	if mod == nil {
		return nil, errors.Configuration("", "module is nil")
	}

	w := &Wrapper{mod: mod, index: idx}

	memory, err := w.linearMemory()
	if err != nil {
		return nil, err
	}
	w.memory = memory
	w.table = w.indirectTable()

	Logger().Debug("wrapped instance",
		zap.String("module", mod.Name()),
		zap.Uint32("memory_bytes", memory.Size()),
		zap.Bool("table", w.table != nil))

	return w, nil
}

func (w *Wrapper) linearMemory() (api.Memory, error) {
	kind, ok := w.kindOf(MemoryExport)
	if !ok {
		if w.index == nil {
			return nil, errors.Configuration(MemoryExport, "memory is not exported under `memory` name (or is a table, which cannot be probed without an export index)")
		}
		return nil, errors.Configuration(MemoryExport, "memory is not exported under `memory` name")
	}
	if kind != exports.KindMemory {
		return nil, errors.Configuration(MemoryExport, "the `memory` export should have memory type, got "+kind.String())
	}
	memory := w.mod.ExportedMemory(MemoryExport)
	if memory == nil {
		return nil, errors.Configuration(MemoryExport, "the `memory` export should have memory type")
	}
	return memory, nil
}

func (w *Wrapper) indirectTable() *exports.Table {
	if w.index == nil {
		return nil
	}
	t, ok := w.index.Table(TableExport)
	if !ok {
		return nil
	}
	return &t
}

// kindOf reports the kind of the export called name. Without an index,
// table and tag exports are reported as absent.
func (w *Wrapper) kindOf(name string) (exports.Kind, bool) {
	if w.index != nil {
		e, ok := w.index.Lookup(name)
		return e.Kind, ok
	}
	switch {
	case w.mod.ExportedFunction(name) != nil:
		return exports.KindFunc, true
	case w.mod.ExportedMemory(name) != nil:
		return exports.KindMemory, true
	case w.mod.ExportedGlobal(name) != nil:
		return exports.KindGlobal, true
	}
	return 0, false
}

// Table returns the indirect function table, if the module exports one.
func (w *Wrapper) Table() (exports.Table, bool) {
	w.mustOpen()
	if w.table == nil {
		return exports.Table{}, false
	}
	return *w.table, true
}

// Name returns the instance name assigned at instantiation.
func (w *Wrapper) Name() string {
	w.mustOpen()
	return w.mod.Name()
}

// Close tears down the instance. Close is idempotent; any other method
// called after Close panics.
func (w *Wrapper) Close(ctx context.Context) error {
	if w.mod == nil {
		return nil
	}
	err := w.mod.Close(ctx)
	w.mod = nil
	w.memory = nil
	w.table = nil
	return err
}

// Closed reports whether Close has been called.
func (w *Wrapper) Closed() bool {
	return w.mod == nil
}

func (w *Wrapper) mustOpen() {
	if w.mod == nil {
		panic("instance: use of closed wrapper")
	}
}
