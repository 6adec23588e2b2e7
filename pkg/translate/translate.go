// Package translate implements the Wasm-to-MASM core: stack-discipline
// tracking, control-flow lowering via the branch-counter scheme, and
// per-instruction codegen (spec.md §4).
package translate

import (
	"github.com/minz/w2m/pkg/masm"
	"github.com/minz/w2m/pkg/wasm"
)

// Translate lowers a parsed Wasm module to a MASM module (spec.md §1's
// top-level entry point). Fatal error kinds (see ErrorKind.fatal) abort
// the whole translation immediately; a non-fatal error confined to one
// function is reported for that function alone and does not prevent
// translating the rest of the module, so a caller can collect every
// independent defect in one pass.
func Translate(m *wasm.Module) (*masm.Module, []*Error) {
	p, err := buildPlan(m)
	if err != nil {
		return nil, []*Error{err.(*Error)}
	}
	lay, err := buildLayout(m)
	if err != nil {
		return nil, []*Error{err.(*Error)}
	}

	var procs []masm.Proc
	elided := map[uint32]bool{}
	var errs []*Error
	for _, idx := range p.order {
		if _, ok := m.IsImportedFunc(idx); ok {
			continue // inlined at call sites, never compiled as its own procedure
		}
		proc, err := translateFunction(m, lay, elided, idx)
		if err != nil {
			e := err.(*Error)
			if e.Kind.fatal() {
				return nil, []*Error{e}
			}
			errs = append(errs, e)
			elided[idx] = true
			continue
		}
		if proc == nil {
			elided[idx] = true
			continue
		}
		procs = append(procs, *proc)
	}
	if len(errs) > 0 {
		return nil, errs
	}

	program, err := buildInit(m, lay)
	if err != nil {
		return nil, []*Error{err.(*Error)}
	}
	for _, idx := range p.entries {
		if _, ok := m.IsImportedFunc(idx); ok {
			continue // an entry that resolves to an import has nothing to run
		}
		if elided[idx] {
			continue
		}
		program = append(program, masm.Instr{Op: masm.OpExec, Name: procName(idx)})
	}

	return &masm.Module{
		UseImports: wasiModuleNames(m),
		Procedures: procs,
		Program:    program,
	}, nil
}

// wasiModuleNames returns the deduplicated set of WASI module names
// actually imported, in first-discovery order, for the MASM module's
// `use` header.
func wasiModuleNames(m *wasm.Module) []string {
	var names []string
	seen := map[string]bool{}
	for _, imp := range m.Imports {
		if _, ok := imp.Desc.(wasm.ImportFunc); !ok {
			continue
		}
		if !seen[imp.Module] {
			seen[imp.Module] = true
			names = append(names, imp.Module)
		}
	}
	return names
}
