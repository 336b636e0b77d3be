package instance

import (
	"context"
	"fmt"
	"testing"

	"github.com/tetratelabs/wazero"

	wasmexecutor "github.com/wippyai/wasm-executor"
	"github.com/wippyai/wasm-executor/exports"
	"github.com/wippyai/wasm-executor/internal/wasmtest"
)

// fixture builds the module most tests share: one page of memory (max 2),
// a table, heap base 1024 and a handful of functions.
func fixture() []byte {
	b := wasmtest.New()
	mem := b.Memory(1, 2, true)
	b.Export(MemoryExport, wasmtest.KindMemory, mem)
	b.Export(TableExport, wasmtest.KindTable, b.Table(3))
	b.Export(HeapBaseExport, wasmtest.KindGlobal, b.GlobalI32(1024))
	b.Export("echo", wasmtest.KindFunc, b.Func(wasmtest.Entrypoint, wasmtest.EchoBody()))
	b.Export("mark", wasmtest.KindFunc, b.Func(wasmtest.Entrypoint, wasmtest.MarkBody()))
	b.Export("grow", wasmtest.KindFunc, b.Func(wasmtest.Entrypoint, wasmtest.GrowEchoBody(1)))
	b.Export("trap", wasmtest.KindFunc, b.Func(wasmtest.Entrypoint, wasmtest.TrapBody()))
	b.Export("one_param", wasmtest.KindFunc, b.Func(
		wasmtest.Signature{Params: []wasmtest.ValType{wasmtest.I32}, Results: []wasmtest.ValType{wasmtest.I64}},
		wasmtest.ConstI64Body(0)))
	b.Export("no_result", wasmtest.KindFunc, b.Func(wasmtest.Signature{}, wasmtest.EmptyBody()))
	return b.Build()
}

var instanceSeq int

// instantiate compiles bin in a fresh runtime and wraps it. useIndex selects
// whether the wrapper gets the parsed export index.
func instantiate(t *testing.T, bin []byte, useIndex bool) (*Wrapper, error) {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })

	instanceSeq++
	mod, err := rt.InstantiateWithConfig(ctx, bin, wazero.NewModuleConfig().WithName(fmt.Sprintf("test-%d", instanceSeq)))
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}

	var idx *exports.Index
	if useIndex {
		idx, err = exports.Parse(bin)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
	}
	return New(mod, idx)
}

func mustWrap(t *testing.T, bin []byte) *Wrapper {
	t.Helper()
	w, err := instantiate(t, bin, true)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { w.Close(context.Background()) })
	return w
}

// stubAllocator returns fixed answers and counts calls.
type stubAllocator struct {
	ptr       wasmexecutor.Pointer
	err       error
	allocs    int
	deallocs  int
	lastSize  wasmexecutor.WordSize
	lastFree  wasmexecutor.Pointer
	memLength int
}

func (s *stubAllocator) Allocate(mem []byte, size wasmexecutor.WordSize) (wasmexecutor.Pointer, error) {
	s.allocs++
	s.lastSize = size
	s.memLength = len(mem)
	return s.ptr, s.err
}

func (s *stubAllocator) Deallocate(mem []byte, ptr wasmexecutor.Pointer) error {
	s.deallocs++
	s.lastFree = ptr
	s.memLength = len(mem)
	return s.err
}
