package translate

import (
	"github.com/minz/w2m/pkg/masm"
	"github.com/minz/w2m/pkg/wasi"
	"github.com/minz/w2m/pkg/wasm"
)

// wasiInstrsToMasm resolves a WASI method's pseudo-instructions
// against the layout's named-global address map.
func wasiInstrsToMasm(instrs []wasi.Instr, addr map[string]uint32) []masm.Instr {
	out := make([]masm.Instr, 0, len(instrs))
	for _, in := range instrs {
		switch in.Kind {
		case wasi.KindM:
			out = append(out, in.Masm)
		case wasi.KindLoad:
			out = append(out, masm.Instr{Op: masm.OpMemLoad, Addr: masm.Some(addr[in.Name])})
		case wasi.KindStore:
			out = append(out, masm.Instr{Op: masm.OpMemStore, Addr: masm.Some(addr[in.Name])})
		}
	}
	return out
}

// lowerWasiCall translates a call to an imported function: every
// import must resolve against the WASI registry (spec.md §6), and its
// Body is inlined at the call site rather than emitted as a procedure.
func (c *funcCtx) lowerWasiCall(imp wasm.Import, sig *wasm.FuncType) []masm.Instr {
	method, ok := wasi.Lookup(imp.Module, imp.Name)
	if !ok {
		c.fail(BadImport, "unregistered import %s.%s", imp.Module, imp.Name)
		return nil
	}
	return wasiInstrsToMasm(method.Body, c.lay.wasiGlobalsAddr)
}
