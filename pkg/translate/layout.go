package translate

import (
	"github.com/minz/w2m/pkg/wasi"
	"github.com/minz/w2m/pkg/wasm"
)

// branchCounterAddr is the fixed memory cell spec.md §4.2 reserves for
// the branch-counter encoding of multi-level `br` (see control.go).
const branchCounterAddr = 0

// layout is the result of the memory layout allocator (spec.md §4.2):
// a flat address assignment for the branch counter, WASI-exposed named
// globals, and Wasm globals, plus the first free word for the data
// section (memBeginning).
type layout struct {
	wasiGlobalsAddr map[string]uint32 // named WASI global -> address
	globalAddr      []uint32          // m.Globals[i] -> address
	memBeginning    uint32
}

// buildLayout allocates addresses in the fixed order spec.md §4.2
// requires: branch counter at 0, then WASI-exposed named globals
// (discovered from the bodies of WASI methods actually imported, in
// import-declaration order) at sequential addresses, then Wasm globals
// in index order (1 cell for i32, 2 for i64), then memBeginning.
func buildLayout(m *wasm.Module) (*layout, error) {
	wasiGlobals, err := discoverWasiGlobals(m)
	if err != nil {
		return nil, err
	}

	addr := uint32(branchCounterAddr + 1)
	wasiAddr := map[string]uint32{}
	for _, name := range wasiGlobals {
		wasiAddr[name] = addr
		addr++
	}

	globalAddr := make([]uint32, len(m.Globals))
	for i, g := range m.Globals {
		globalAddr[i] = addr
		addr += uint32(g.Type.Size())
	}

	return &layout{
		wasiGlobalsAddr: wasiAddr,
		globalAddr:      globalAddr,
		memBeginning:    addr,
	}, nil
}

// discoverWasiGlobals resolves every function import against the WASI
// registry and collects the union of named globals its Init/Body
// sequences reference, in first-discovery (import declaration) order.
// An import that does not resolve is BadImport (spec.md §6: every
// import must be WASI-registered).
func discoverWasiGlobals(m *wasm.Module) ([]string, error) {
	var names []string
	seen := map[string]bool{}
	for _, imp := range m.Imports {
		fi, ok := imp.Desc.(wasm.ImportFunc)
		if !ok {
			continue
		}
		_ = fi
		method, ok := wasi.Lookup(imp.Module, imp.Name)
		if !ok {
			return nil, newErr(BadImport, -1, nil, "unregistered import %s.%s", imp.Module, imp.Name)
		}
		for _, g := range method.Globals {
			if !seen[g] {
				seen[g] = true
				names = append(names, g)
			}
		}
	}
	return names, nil
}
