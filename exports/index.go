package exports

import (
	"errors"
	"fmt"
	"sort"

	"github.com/wippyai/wasm-executor/internal/binary"
)

// Binary format constants.
const (
	Magic   uint32 = 0x6D736100
	Version uint32 = 0x01

	sectionType   byte = 1
	sectionImport byte = 2
	sectionTable  byte = 4
	sectionMemory byte = 5
	sectionExport byte = 7
)

// Parsing errors returned by Parse.
var (
	ErrInvalidMagic   = errors.New("invalid wasm magic number")
	ErrInvalidVersion = errors.New("invalid wasm version")
)

// Kind is the kind of an exported or imported definition.
type Kind byte

const (
	KindFunc   Kind = 0
	KindTable  Kind = 1
	KindMemory Kind = 2
	KindGlobal Kind = 3
	KindTag    Kind = 4
)

func (k Kind) String() string {
	switch k {
	case KindFunc:
		return "func"
	case KindTable:
		return "table"
	case KindMemory:
		return "memory"
	case KindGlobal:
		return "global"
	case KindTag:
		return "tag"
	default:
		return fmt.Sprintf("kind(0x%02x)", byte(k))
	}
}

// Export is a named definition exported by the module.
type Export struct {
	Name  string
	Kind  Kind
	Index uint32
}

// Limits are the page or element bounds of a memory or table.
type Limits struct {
	Min    uint64
	Max    uint64
	HasMax bool
	Shared bool
}

// Table describes a table definition. It is a read-only snapshot of the
// declared type; element contents are owned by the engine.
type Table struct {
	Name     string
	ElemType string
	Limits   Limits
}

// FuncType is a function signature. Value types use the binary encoding,
// which is also wazero's api.ValueType.
type FuncType struct {
	Params  []byte
	Results []byte
}

// Import is an imported definition. Type is set for function imports only.
type Import struct {
	Module string
	Name   string
	Kind   Kind
	Type   *FuncType
}

// Index is the parsed export surface of a module.
type Index struct {
	exports  map[string]Export
	types    []FuncType
	imports  []Import
	tables   []Table
	memories []Limits
	order    []string
}

// Parse scans a module binary and builds its export index.
func Parse(data []byte) (*Index, error) {
	r := binary.NewReader(data)

	magic, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}
	version, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if version != Version {
		return nil, ErrInvalidVersion
	}

	idx := &Index{exports: make(map[string]Export)}

	for r.Len() > 0 {
		id, payload, err := r.ReadSection()
		if err != nil {
			return nil, err
		}

		sr := binary.NewReader(payload)
		switch id {
		case sectionType:
			err = idx.parseTypes(sr)
		case sectionImport:
			err = idx.parseImports(sr)
		case sectionTable:
			err = idx.parseTables(sr)
		case sectionMemory:
			err = idx.parseMemories(sr)
		case sectionExport:
			err = idx.parseExports(sr)
		}
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", id, err)
		}
	}

	return idx, nil
}

// Lookup returns the export with the given name.
func (x *Index) Lookup(name string) (Export, bool) {
	e, ok := x.exports[name]
	return e, ok
}

// Exports returns all exports in declaration order.
func (x *Index) Exports() []Export {
	out := make([]Export, 0, len(x.order))
	for _, name := range x.order {
		out = append(out, x.exports[name])
	}
	return out
}

// Names returns the sorted export names.
func (x *Index) Names() []string {
	names := make([]string, len(x.order))
	copy(names, x.order)
	sort.Strings(names)
	return names
}

// Imports returns all imports in declaration order.
func (x *Index) Imports() []Import {
	out := make([]Import, len(x.imports))
	copy(out, x.imports)
	return out
}

// FuncImports returns the function imports in declaration order.
func (x *Index) FuncImports() []Import {
	var out []Import
	for _, imp := range x.imports {
		if imp.Kind == KindFunc {
			out = append(out, imp)
		}
	}
	return out
}

// Table returns the type of the table exported under name.
// Imported tables precede defined ones in the index space.
func (x *Index) Table(name string) (Table, bool) {
	e, ok := x.exports[name]
	if !ok || e.Kind != KindTable || int(e.Index) >= len(x.tables) {
		return Table{}, false
	}
	t := x.tables[e.Index]
	t.Name = name
	return t, true
}

// Memory returns the limits of the memory exported under name.
func (x *Index) Memory(name string) (Limits, bool) {
	e, ok := x.exports[name]
	if !ok || e.Kind != KindMemory || int(e.Index) >= len(x.memories) {
		return Limits{}, false
	}
	return x.memories[e.Index], true
}

func (x *Index) parseImports(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		module, err := r.ReadName()
		if err != nil {
			return err
		}
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		imp := Import{Module: module, Name: name, Kind: Kind(kind)}
		switch Kind(kind) {
		case KindFunc:
			typeIdx, err := r.ReadU32()
			if err != nil {
				return err
			}
			if int(typeIdx) >= len(x.types) {
				return fmt.Errorf("import %s.%s: type index %d out of range", module, name, typeIdx)
			}
			ft := x.types[typeIdx]
			imp.Type = &ft
		case KindTable:
			t, err := readTable(r)
			if err != nil {
				return err
			}
			x.tables = append(x.tables, t)
		case KindMemory:
			l, err := readLimits(r)
			if err != nil {
				return err
			}
			x.memories = append(x.memories, l)
		case KindGlobal:
			if err := skipValType(r); err != nil {
				return err
			}
			if _, err := r.ReadByte(); err != nil {
				return err
			}
		case KindTag:
			if _, err := r.ReadByte(); err != nil {
				return err
			}
			if _, err := r.ReadU32(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown import kind 0x%02x", kind)
		}
		x.imports = append(x.imports, imp)
	}
	return nil
}

func (x *Index) parseTypes(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		form, err := r.ReadByte()
		if err != nil {
			return err
		}
		if form != 0x60 {
			return fmt.Errorf("type %d: unsupported type form 0x%02x", i, form)
		}
		var ft FuncType
		if ft.Params, err = readValTypes(r); err != nil {
			return err
		}
		if ft.Results, err = readValTypes(r); err != nil {
			return err
		}
		x.types = append(x.types, ft)
	}
	return nil
}

func readValTypes(r *binary.Reader) ([]byte, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if int(n) > r.Len() {
		return nil, fmt.Errorf("value type count %d exceeds section", n)
	}
	types := make([]byte, 0, n)
	for j := uint32(0); j < n; j++ {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == 0x63 || b == 0x64 {
			if err := r.SkipLEB128(); err != nil {
				return nil, err
			}
		}
		types = append(types, b)
	}
	return types, nil
}

func (x *Index) parseTables(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		t, err := readTable(r)
		if err != nil {
			return err
		}
		x.tables = append(x.tables, t)
	}
	return nil
}

func (x *Index) parseMemories(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		l, err := readLimits(r)
		if err != nil {
			return err
		}
		x.memories = append(x.memories, l)
	}
	return nil
}

func (x *Index) parseExports(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		index, err := r.ReadU32()
		if err != nil {
			return err
		}
		if _, dup := x.exports[name]; dup {
			return fmt.Errorf("duplicate export %q", name)
		}
		x.exports[name] = Export{Name: name, Kind: Kind(kind), Index: index}
		x.order = append(x.order, name)
	}
	return nil
}

func readTable(r *binary.Reader) (Table, error) {
	elem, err := readRefType(r)
	if err != nil {
		return Table{}, err
	}
	l, err := readLimits(r)
	if err != nil {
		return Table{}, err
	}
	return Table{ElemType: elem, Limits: l}, nil
}

func readRefType(r *binary.Reader) (string, error) {
	b, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	switch b {
	case 0x70:
		return "funcref", nil
	case 0x6F:
		return "externref", nil
	case 0x63, 0x64:
		// typed reference: heap type follows as s33
		if err := r.SkipLEB128(); err != nil {
			return "", err
		}
		return "ref", nil
	default:
		return "", fmt.Errorf("unsupported table element type 0x%02x", b)
	}
}

func readLimits(r *binary.Reader) (Limits, error) {
	flags, err := r.ReadByte()
	if err != nil {
		return Limits{}, err
	}
	if flags > 0x07 {
		return Limits{}, fmt.Errorf("invalid limits flags 0x%02x", flags)
	}

	read := func() (uint64, error) {
		if flags&0x04 != 0 {
			return r.ReadU64()
		}
		v, err := r.ReadU32()
		return uint64(v), err
	}

	var l Limits
	if l.Min, err = read(); err != nil {
		return Limits{}, err
	}
	if flags&0x01 != 0 {
		if l.Max, err = read(); err != nil {
			return Limits{}, err
		}
		l.HasMax = true
	}
	l.Shared = flags&0x02 != 0
	return l, nil
}

func skipValType(r *binary.Reader) error {
	b, err := r.ReadByte()
	if err != nil {
		return err
	}
	if b == 0x63 || b == 0x64 {
		return r.SkipLEB128()
	}
	return nil
}
