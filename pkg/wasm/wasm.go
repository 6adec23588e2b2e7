// Package wasm defines the Wasm 1.0 module AST consumed by the translator.
//
// Decoding a .wasm binary into this AST is out of scope for the core
// translator (see pkg/decode for the adapter that does it); this
// package only carries the shapes spec.md §3 requires.
package wasm

import "fmt"

// ValueType is a Wasm value type. Only I32 and I64 are accepted by the
// translator; F32/F64 exist so the decoder can report
// UnsupportedArgType instead of silently dropping float signatures.
type ValueType uint8

const (
	I32 ValueType = iota
	I64
	F32
	F64
)

func (t ValueType) String() string {
	switch t {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return "unknown"
	}
}

// Size returns the number of 32-bit cells a value of this type
// occupies once laid out in MASM locals/memory (1 for i32, 2 for i64).
func (t ValueType) Size() int {
	if t == I64 {
		return 2
	}
	return 1
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValueType
	Results []ValueType
}

func (t *FuncType) String() string {
	return fmt.Sprintf("%v -> %v", t.Params, t.Results)
}

// ImportDesc is the sum of things a module can import. Only
// ImportFunc is accepted by the translator (§6: every import must be
// WASI-registered); the decoder records the other variants, and the
// translator ignores table, memory and global imports.
type ImportDesc interface{ isImportDesc() }

type ImportFunc struct{ TypeIdx uint32 }
type ImportTable struct{}
type ImportMemory struct{}
type ImportGlobal struct{ Type ValueType; Mutable bool }

func (ImportFunc) isImportDesc()   {}
func (ImportTable) isImportDesc()  {}
func (ImportMemory) isImportDesc() {}
func (ImportGlobal) isImportDesc() {}

// Import is one entry of the Wasm import section.
type Import struct {
	Module string
	Name   string
	Desc   ImportDesc
}

// Function is a defined (non-imported) function.
type Function struct {
	TypeIdx uint32
	Locals  []ValueType // declared locals, in declaration order (params excluded)
	Body    []Instr
}

// GlobalMutability distinguishes const from mutable globals.
type GlobalMutability uint8

const (
	Const GlobalMutability = iota
	Mutable
)

// Global is one entry of the Wasm global section.
type Global struct {
	Type        ValueType
	Mut         GlobalMutability
	Initializer []Instr // a constant expression, terminated implicitly
}

// DataSegment initializes a byte range of linear memory. Only MemIdx
// == 0 is supported; the translator fails BadNoMultipleMem otherwise.
type DataSegment struct {
	MemIdx uint32
	Offset []Instr // a constant expression yielding a byte offset
	Bytes  []byte
}

// ExportKind is the kind of thing named by an export entry.
type ExportKind uint8

const (
	ExportFunc ExportKind = iota
	ExportTable
	ExportMemory
	ExportGlobal
)

// Export is one entry of the Wasm export section.
type Export struct {
	Name  string
	Kind  ExportKind
	Index uint32
}

// Module is a full parsed Wasm module, the translator's sole input.
type Module struct {
	Types     []FuncType
	Imports   []Import
	Functions []Function // defined functions only; see FuncIndexSpace for the combined space
	Globals   []Global
	Datas     []DataSegment
	Exports   []Export
	Start     *uint32 // index into the function index space, if the start section is present
}

// NumFuncImports returns how many of m.Imports are function imports.
func (m *Module) NumFuncImports() int {
	n := 0
	for _, imp := range m.Imports {
		if _, ok := imp.Desc.(ImportFunc); ok {
			n++
		}
	}
	return n
}

// FuncIndexSpace returns the size of the function index space, which
// concatenates function imports (in declaration order) then defined
// functions, per spec.md §4.1.
func (m *Module) FuncIndexSpace() int {
	return m.NumFuncImports() + len(m.Functions)
}

// IsImportedFunc reports whether a function-index-space index refers
// to an imported function, and if so which import.
func (m *Module) IsImportedFunc(idx uint32) (Import, bool) {
	var funcImportIdx uint32
	for _, imp := range m.Imports {
		if fi, ok := imp.Desc.(ImportFunc); ok {
			if funcImportIdx == idx {
				_ = fi
				return imp, true
			}
			funcImportIdx++
		}
	}
	return Import{}, false
}

// DefinedFunc resolves a function-index-space index to a defined
// function, adjusting for the imports that precede it in the space.
func (m *Module) DefinedFunc(idx uint32) (*Function, bool) {
	nImports := uint32(m.NumFuncImports())
	if idx < nImports {
		return nil, false
	}
	di := idx - nImports
	if int(di) >= len(m.Functions) {
		return nil, false
	}
	return &m.Functions[di], true
}

// FuncType resolves the signature of a function-index-space index,
// whether imported or defined.
func (m *Module) FuncType(idx uint32) (*FuncType, error) {
	if imp, ok := m.IsImportedFunc(idx); ok {
		fi := imp.Desc.(ImportFunc)
		if int(fi.TypeIdx) >= len(m.Types) {
			return nil, fmt.Errorf("wasm: import %s.%s: type index %d out of range", imp.Module, imp.Name, fi.TypeIdx)
		}
		return &m.Types[fi.TypeIdx], nil
	}
	if fn, ok := m.DefinedFunc(idx); ok {
		if int(fn.TypeIdx) >= len(m.Types) {
			return nil, fmt.Errorf("wasm: function %d: type index %d out of range", idx, fn.TypeIdx)
		}
		return &m.Types[fn.TypeIdx], nil
	}
	return nil, fmt.Errorf("wasm: function index %d out of range", idx)
}
