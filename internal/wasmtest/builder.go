// Package wasmtest builds small WebAssembly modules for tests.
//
// Modules are assembled from typed pieces instead of being checked in as
// opaque binaries, so every fixture documents its own shape:
//
//	b := wasmtest.New()
//	mem := b.Memory(1, 0, false)
//	b.Export("memory", wasmtest.KindMemory, mem)
//	fn := b.Func(wasmtest.Entrypoint, wasmtest.EchoBody())
//	b.Export("echo", wasmtest.KindFunc, fn)
//	wasm := b.Build()
package wasmtest

import (
	"bytes"

	"github.com/wippyai/wasm-executor/internal/binary"
)

// ValType is a core value type encoding.
type ValType byte

const (
	I32 ValType = 0x7F
	I64 ValType = 0x7E
	F32 ValType = 0x7D
	F64 ValType = 0x7C
)

// Export kinds.
const (
	KindFunc   byte = 0
	KindTable  byte = 1
	KindMemory byte = 2
	KindGlobal byte = 3
)

// Signature is a function type.
type Signature struct {
	Params  []ValType
	Results []ValType
}

// Entrypoint is the (i32, i32) -> i64 entrypoint signature.
var Entrypoint = Signature{Params: []ValType{I32, I32}, Results: []ValType{I64}}

type funcImport struct {
	module  string
	name    string
	typeIdx uint32
}

type funcDef struct {
	body    []byte
	typeIdx uint32
}

type limits struct {
	min    uint32
	max    uint32
	hasMax bool
}

type globalDef struct {
	init    []byte
	valType ValType
}

type exportDef struct {
	name  string
	kind  byte
	index uint32
}

// Builder assembles a module.
// Function imports must be declared before any defined function.
type Builder struct {
	types    []Signature
	imports  []funcImport
	funcs    []funcDef
	tables   []limits
	memories []limits
	globals  []globalDef
	exports  []exportDef
}

// New creates an empty module builder.
func New() *Builder {
	return &Builder{}
}

func (b *Builder) typeIndex(sig Signature) uint32 {
	for i, t := range b.types {
		if bytes.Equal(valBytes(t.Params), valBytes(sig.Params)) &&
			bytes.Equal(valBytes(t.Results), valBytes(sig.Results)) {
			return uint32(i)
		}
	}
	b.types = append(b.types, sig)
	return uint32(len(b.types) - 1)
}

// ImportFunc declares an imported function and returns its function index.
func (b *Builder) ImportFunc(module, name string, sig Signature) uint32 {
	if len(b.funcs) > 0 {
		panic("wasmtest: function imports must precede defined functions")
	}
	b.imports = append(b.imports, funcImport{module: module, name: name, typeIdx: b.typeIndex(sig)})
	return uint32(len(b.imports) - 1)
}

// Func defines a function with no locals. body is the instruction sequence
// including the terminating end opcode.
func (b *Builder) Func(sig Signature, body []byte) uint32 {
	b.funcs = append(b.funcs, funcDef{typeIdx: b.typeIndex(sig), body: body})
	return uint32(len(b.imports) + len(b.funcs) - 1)
}

// Memory defines a linear memory of min pages, bounded by max when hasMax.
func (b *Builder) Memory(min, max uint32, hasMax bool) uint32 {
	b.memories = append(b.memories, limits{min: min, max: max, hasMax: hasMax})
	return uint32(len(b.memories) - 1)
}

// Table defines a funcref table with min elements.
func (b *Builder) Table(min uint32) uint32 {
	b.tables = append(b.tables, limits{min: min})
	return uint32(len(b.tables) - 1)
}

// GlobalI32 defines an immutable i32 global.
func (b *Builder) GlobalI32(v int32) uint32 {
	w := binary.NewWriter()
	w.Byte(opI32Const)
	w.WriteS64(int64(v))
	w.Byte(opEnd)
	b.globals = append(b.globals, globalDef{valType: I32, init: w.Bytes()})
	return uint32(len(b.globals) - 1)
}

// GlobalI64 defines an immutable i64 global.
func (b *Builder) GlobalI64(v int64) uint32 {
	w := binary.NewWriter()
	w.Byte(opI64Const)
	w.WriteS64(v)
	w.Byte(opEnd)
	b.globals = append(b.globals, globalDef{valType: I64, init: w.Bytes()})
	return uint32(len(b.globals) - 1)
}

// Export exports the definition of kind at index under name.
func (b *Builder) Export(name string, kind byte, index uint32) {
	b.exports = append(b.exports, exportDef{name: name, kind: kind, index: index})
}

// Build encodes the module.
func (b *Builder) Build() []byte {
	w := binary.NewWriter()
	w.WriteU32LE(0x6D736100)
	w.WriteU32LE(0x01)

	if len(b.types) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(b.types)))
		for _, t := range b.types {
			s.Byte(0x60)
			writeValTypes(s, t.Params)
			writeValTypes(s, t.Results)
		}
		w.WriteSection(1, s.Bytes())
	}

	if len(b.imports) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(b.imports)))
		for _, imp := range b.imports {
			s.WriteName(imp.module)
			s.WriteName(imp.name)
			s.Byte(KindFunc)
			s.WriteU32(imp.typeIdx)
		}
		w.WriteSection(2, s.Bytes())
	}

	if len(b.funcs) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(b.funcs)))
		for _, f := range b.funcs {
			s.WriteU32(f.typeIdx)
		}
		w.WriteSection(3, s.Bytes())
	}

	if len(b.tables) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(b.tables)))
		for _, t := range b.tables {
			s.Byte(0x70)
			writeLimits(s, t)
		}
		w.WriteSection(4, s.Bytes())
	}

	if len(b.memories) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(b.memories)))
		for _, m := range b.memories {
			writeLimits(s, m)
		}
		w.WriteSection(5, s.Bytes())
	}

	if len(b.globals) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(b.globals)))
		for _, g := range b.globals {
			s.Byte(byte(g.valType))
			s.Byte(0) // immutable
			s.WriteBytes(g.init)
		}
		w.WriteSection(6, s.Bytes())
	}

	if len(b.exports) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(b.exports)))
		for _, e := range b.exports {
			s.WriteName(e.name)
			s.Byte(e.kind)
			s.WriteU32(e.index)
		}
		w.WriteSection(7, s.Bytes())
	}

	if len(b.funcs) > 0 {
		s := binary.NewWriter()
		s.WriteU32(uint32(len(b.funcs)))
		for _, f := range b.funcs {
			body := binary.NewWriter()
			body.WriteU32(0) // no local entries
			body.WriteBytes(f.body)
			s.WriteU32(uint32(body.Len()))
			s.WriteBytes(body.Bytes())
		}
		w.WriteSection(10, s.Bytes())
	}

	return w.Bytes()
}

func valBytes(types []ValType) []byte {
	out := make([]byte, len(types))
	for i, t := range types {
		out[i] = byte(t)
	}
	return out
}

func writeValTypes(w *binary.Writer, types []ValType) {
	w.WriteU32(uint32(len(types)))
	w.WriteBytes(valBytes(types))
}

func writeLimits(w *binary.Writer, l limits) {
	if l.hasMax {
		w.Byte(0x01)
		w.WriteU32(l.min)
		w.WriteU32(l.max)
		return
	}
	w.Byte(0x00)
	w.WriteU32(l.min)
}
