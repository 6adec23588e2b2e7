package translate

import (
	"github.com/minz/w2m/pkg/masm"
	"github.com/minz/w2m/pkg/wasi"
	"github.com/minz/w2m/pkg/wasm"
)

// evalConstExpr evaluates a Wasm constant expression (spec.md §4.2):
// in practice a single i32.const/i64.const, the only form the
// translator's WASI registry and data layout ever need to fold.
func evalConstExpr(instrs []wasm.Instr) (lo, hi uint32, ty wasm.ValueType, err error) {
	if len(instrs) != 1 {
		return 0, 0, 0, newErr(UnsupportedArgType, -1, nil, "constant expression must be a single const instruction")
	}
	switch instrs[0].Op {
	case wasm.OpI32Const:
		lo, hi = splitI64(instrs[0].Imm)
		return lo, 0, wasm.I32, nil
	case wasm.OpI64Const:
		lo, hi = splitI64(instrs[0].Imm)
		return lo, hi, wasm.I64, nil
	default:
		return 0, 0, 0, newErr(UnsupportedArgType, -1, nil, "unsupported constant expression opcode %d", instrs[0].Op)
	}
}

// buildInit emits the program's initialization sequence (spec.md
// §4.2): zero the branch counter, run every imported WASI method's
// one-time Init, assign global initial values, and pack data segments
// into their fixed memory words.
func buildInit(m *wasm.Module, lay *layout) ([]masm.Instr, error) {
	var out []masm.Instr
	out = append(out, masm.Instr{Op: masm.OpPush, Word: 0}, masm.Instr{Op: masm.OpMemStore, Addr: masm.Some(branchCounterAddr)})

	seen := map[string]bool{}
	for _, imp := range m.Imports {
		if _, ok := imp.Desc.(wasm.ImportFunc); !ok {
			continue
		}
		key := imp.Module + "." + imp.Name
		if seen[key] {
			continue
		}
		seen[key] = true
		method, ok := wasi.Lookup(imp.Module, imp.Name)
		if !ok {
			return nil, newErr(BadImport, -1, nil, "unregistered import %s.%s", imp.Module, imp.Name)
		}
		out = append(out, wasiInstrsToMasm(method.Init, lay.wasiGlobalsAddr)...)
	}

	for i, g := range m.Globals {
		lo, hi, ty, err := evalConstExpr(g.Initializer)
		if err != nil {
			return nil, err
		}
		if ty != g.Type {
			return nil, newErr(UnsupportedArgType, -1, nil, "global %d: initializer type mismatch", i)
		}
		addr := lay.globalAddr[i]
		out = append(out, masm.Instr{Op: masm.OpPush, Word: lo}, masm.Instr{Op: masm.OpMemStore, Addr: masm.Some(addr)})
		if ty == wasm.I64 {
			out = append(out, masm.Instr{Op: masm.OpPush, Word: hi}, masm.Instr{Op: masm.OpMemStore, Addr: masm.Some(addr + 1)})
		}
	}

	for di, d := range m.Datas {
		if d.MemIdx != 0 {
			return nil, newErr(BadNoMultipleMem, -1, nil, "data segment %d targets memory %d", di, d.MemIdx)
		}
		offLo, _, ty, err := evalConstExpr(d.Offset)
		if err != nil {
			return nil, err
		}
		if ty != wasm.I32 {
			return nil, newErr(UnsupportedArgType, -1, nil, "data segment %d: offset must be i32", di)
		}
		if offLo%4 != 0 {
			return nil, newErr(BadMisalignedI64, -1, nil, "data segment %d: offset %d is not word-aligned", di, offLo)
		}
		words := packWords(d.Bytes)
		base := lay.memBeginning + offLo/4
		for wi, w := range words {
			out = append(out, masm.Instr{Op: masm.OpPush, Word: w}, masm.Instr{Op: masm.OpMemStore, Addr: masm.Some(base + uint32(wi))})
		}
	}

	return out, nil
}

// packWords packs a byte slice into little-endian 32-bit words,
// zero-padding the final partial word.
func packWords(b []byte) []uint32 {
	n := (len(b) + 3) / 4
	words := make([]uint32, n)
	for i, v := range b {
		words[i/4] |= uint32(v) << uint((i%4)*8)
	}
	return words
}
