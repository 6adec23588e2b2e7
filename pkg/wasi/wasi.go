// Package wasi is the fixed registry of host-provided functions a
// module may import (spec.md §4.3, §6). It is "external configuration"
// from the translator's point of view — the translator only needs the
// registry's shape (named globals referenced by Load/Store must
// appear in the method's Globals list) — but a compiler with an empty
// registry cannot translate anything real, so this package ships a
// small, fixed WASI-like surface modeled on what clang/rustc wasm32
// binaries actually import: process exit and a write-to-descriptor
// call, plus a couple of MinZ-stdlib-style print helpers for
// hand-written test modules.
package wasi

import "github.com/minz/w2m/pkg/masm"

// InstrKind selects which field of Instr is meaningful.
type InstrKind uint8

const (
	// KindM emits Masm verbatim.
	KindM InstrKind = iota
	// KindLoad resolves Name via the globals address map and emits a
	// MemLoad at that fixed address.
	KindLoad
	// KindStore resolves Name and emits a MemStore at that fixed
	// address; the MemStore consumes the stored value.
	KindStore
)

// Instr is a WASI pseudo-instruction (spec.md §4.3): either a verbatim
// MASM instruction or a named-global access resolved later against
// the layout's wasiGlobalsAddrMap.
type Instr struct {
	Kind InstrKind
	Masm masm.Instr
	Name string
}

func M(i masm.Instr) Instr       { return Instr{Kind: KindM, Masm: i} }
func Load(name string) Instr     { return Instr{Kind: KindLoad, Name: name} }
func Store(name string) Instr    { return Instr{Kind: KindStore, Name: name} }

// Method describes one importable WASI-like function.
type Method struct {
	Locals  uint32
	Globals []string
	Init    []Instr
	Body    []Instr
}

type key struct{ Module, Name string }

var registry = map[key]Method{
	{"wasi_snapshot_preview1", "proc_exit"}: {
		// proc_exit(code: i32) -> () : stash the code, then halt.
		Globals: []string{"wasi_exit_code"},
		Body: []Instr{
			Store("wasi_exit_code"),
			M(masm.Instr{Op: masm.OpPush, Word: 0}),
			M(masm.Instr{Op: masm.OpAssert}),
		},
	},
	{"wasi_snapshot_preview1", "fd_write"}: {
		// fd_write(fd, iovs, iovs_len, nwritten) -> errno. Miden has
		// no console; this is a stub that drops the four i32 params
		// (one cell each) and returns errno 0; nothing is written
		// through the nwritten pointer.
		Body: []Instr{
			M(masm.Instr{Op: masm.OpDrop}),
			M(masm.Instr{Op: masm.OpDrop}),
			M(masm.Instr{Op: masm.OpDrop}),
			M(masm.Instr{Op: masm.OpDrop}),
			M(masm.Instr{Op: masm.OpPush, Word: 0}),
		},
	},
	{"env", "print_char"}: {
		// print_char(c: i32) -> (): record the last character printed
		// in a named global so a test harness can observe output.
		Globals: []string{"last_char"},
		Body: []Instr{
			Store("last_char"),
		},
	},
	{"env", "print_i32"}: {
		Globals: []string{"last_printed"},
		Body: []Instr{
			Store("last_printed"),
		},
	},
}

// Lookup resolves a (module, name) import to its WASI method.
func Lookup(module, name string) (Method, bool) {
	m, ok := registry[key{module, name}]
	return m, ok
}
