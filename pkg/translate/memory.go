package translate

import (
	"github.com/minz/w2m/pkg/masm"
	"github.com/minz/w2m/pkg/wasm"
)

// numScratchCells is the number of extra local cells every procedure
// reserves for the memory lowerer's own temporaries (spec.md §4.5):
// none of this is visible to the Wasm source, it exists purely so
// sub-word load/store codegen can stash intermediates instead of
// juggling the operand stack.
const numScratchCells = 6

// scratch returns the absolute cell index of scratch temporary n.
func (c *funcCtx) scratch(n int) int { return c.declaredCells + n }

func ea(offset uint32) []masm.Instr {
	return []masm.Instr{{Op: masm.OpPush, Word: offset}, {Op: masm.OpIAdd}}
}

func memLoadNone() masm.Instr  { return masm.Instr{Op: masm.OpMemLoad} }
func memStoreNone() masm.Instr { return masm.Instr{Op: masm.OpMemStore} }

// lowerLoad translates every Wasm load instruction. Full-width i32/i64
// loads assume the effective address is word-aligned and compute the
// word index directly; sub-word loads go through the generic
// shift/mask path, with a two's-complement subtract for the signed
// variants (spec.md §4.5).
func (c *funcCtx) lowerLoad(i *wasm.Instr) []masm.Instr {
	addr, ok := c.st.pop(1)
	if !ok || addr[0] != wasm.I32 {
		c.fail(ExpectedStack, "load expects an i32 address")
		return nil
	}

	switch i.Op {
	case wasm.OpI32Load:
		c.st.push(wasm.I32)
		return c.lowerWordLoad(i.Mem.Offset, false)
	case wasm.OpI64Load:
		c.st.push(wasm.I64)
		return c.lowerWordLoad(i.Mem.Offset, true)
	case wasm.OpI32Load8S:
		c.st.push(wasm.I32)
		return c.lowerSubwordLoad(i.Mem.Offset, 8, true, false)
	case wasm.OpI32Load8U:
		c.st.push(wasm.I32)
		return c.lowerSubwordLoad(i.Mem.Offset, 8, false, false)
	case wasm.OpI32Load16S:
		c.st.push(wasm.I32)
		return c.lowerSubwordLoad(i.Mem.Offset, 16, true, false)
	case wasm.OpI32Load16U:
		c.st.push(wasm.I32)
		return c.lowerSubwordLoad(i.Mem.Offset, 16, false, false)
	case wasm.OpI64Load8S:
		c.st.push(wasm.I64)
		return c.lowerSubwordLoad(i.Mem.Offset, 8, true, true)
	case wasm.OpI64Load8U:
		c.st.push(wasm.I64)
		return c.lowerSubwordLoad(i.Mem.Offset, 8, false, true)
	case wasm.OpI64Load16S:
		c.st.push(wasm.I64)
		return c.lowerSubwordLoad(i.Mem.Offset, 16, true, true)
	case wasm.OpI64Load16U:
		c.st.push(wasm.I64)
		return c.lowerSubwordLoad(i.Mem.Offset, 16, false, true)
	case wasm.OpI64Load32S:
		c.st.push(wasm.I64)
		return c.lowerWord32LoadInto64(i.Mem.Offset, true)
	case wasm.OpI64Load32U:
		c.st.push(wasm.I64)
		return c.lowerWord32LoadInto64(i.Mem.Offset, false)
	}
	c.fail(UnsupportedInstr, "load opcode %d", i.Op)
	return nil
}

// lowerWordLoad loads one (i32) or two (i64) consecutive words,
// assuming the dynamic address is word-aligned.
func (c *funcCtx) lowerWordLoad(offsetBytes uint32, is64 bool) []masm.Instr {
	wordOff := offsetBytes/4 + c.lay.memBeginning
	out := []masm.Instr{
		{Op: masm.OpPush, Word: 2}, {Op: masm.OpIShR},
		{Op: masm.OpPush, Word: wordOff}, {Op: masm.OpIAdd},
	}
	if !is64 {
		return append(out, memLoadNone())
	}
	return append(out,
		masm.Instr{Op: masm.OpDup, K: 0},
		memLoadNone(),
		masm.Instr{Op: masm.OpSwap, K: 1},
		masm.Instr{Op: masm.OpPush, Word: 1}, masm.Instr{Op: masm.OpIAdd},
		memLoadNone(),
	)
}

// lowerWord32LoadInto64 loads one aligned word as the i64 result's low
// half, zero- or sign-extending it into the high half.
func (c *funcCtx) lowerWord32LoadInto64(offsetBytes uint32, signed bool) []masm.Instr {
	wordOff := offsetBytes/4 + c.lay.memBeginning
	out := []masm.Instr{
		{Op: masm.OpPush, Word: 2}, {Op: masm.OpIShR},
		{Op: masm.OpPush, Word: wordOff}, {Op: masm.OpIAdd},
		memLoadNone(),
	}
	return append(out, extendHiFromLo(signed)...)
}

// extendHiFromLo produces the i64 high word for a 32-bit value already
// on top of the stack, leaving [hi, lo].
func extendHiFromLo(signed bool) []masm.Instr {
	if !signed {
		return []masm.Instr{{Op: masm.OpPush, Word: 0}}
	}
	return []masm.Instr{
		{Op: masm.OpDup, K: 0},
		{Op: masm.OpPush, Word: 0x80000000}, {Op: masm.OpIAnd},
		{Op: masm.OpPush, Word: 0x80000000}, {Op: masm.OpIEq},
		{Op: masm.OpIf,
			Then: []masm.Instr{{Op: masm.OpPush, Word: 0xFFFFFFFF}},
			Else: []masm.Instr{{Op: masm.OpPush, Word: 0}},
		},
	}
}

// lowerSubwordLoad implements the generic byte/halfword load path:
// compute the word address and in-word byte offset from the dynamic
// effective address, load the containing word, shift and mask out the
// target bits, then sign-extend via two's-complement subtraction if
// required (spec.md §4.5).
func (c *funcCtx) lowerSubwordLoad(offsetBytes uint32, widthBits int, signed, resultIs64 bool) []masm.Instr {
	eaCell, wordAddrCell := c.scratch(0), c.scratch(1)
	mask := uint32(1)<<uint(widthBits) - 1
	signBit := uint32(1) << uint(widthBits-1)
	wrapMod := uint32(1) << uint(widthBits)

	out := append(ea(offsetBytes), masm.Instr{Op: masm.OpLocStore, Cell: eaCell})
	out = append(out,
		masm.Instr{Op: masm.OpLocLoad, Cell: eaCell}, masm.Instr{Op: masm.OpPush, Word: 2}, masm.Instr{Op: masm.OpIShR},
		masm.Instr{Op: masm.OpPush, Word: c.lay.memBeginning}, masm.Instr{Op: masm.OpIAdd},
		masm.Instr{Op: masm.OpLocStore, Cell: wordAddrCell},
		masm.Instr{Op: masm.OpLocLoad, Cell: wordAddrCell}, memLoadNone(),
		masm.Instr{Op: masm.OpLocLoad, Cell: eaCell}, masm.Instr{Op: masm.OpPush, Word: 3}, masm.Instr{Op: masm.OpIAnd},
		masm.Instr{Op: masm.OpPush, Word: 8}, masm.Instr{Op: masm.OpIMul},
		masm.Instr{Op: masm.OpIShR},
		masm.Instr{Op: masm.OpPush, Word: mask}, masm.Instr{Op: masm.OpIAnd},
	)
	if signed {
		out = append(out,
			masm.Instr{Op: masm.OpDup, K: 0},
			masm.Instr{Op: masm.OpPush, Word: signBit}, masm.Instr{Op: masm.OpIAnd},
			masm.Instr{Op: masm.OpPush, Word: signBit}, masm.Instr{Op: masm.OpIEq},
			masm.Instr{Op: masm.OpIf, Then: []masm.Instr{
				{Op: masm.OpPush, Word: wrapMod}, {Op: masm.OpISub},
			}},
		)
	}
	if resultIs64 {
		out = append(out, extendHiFromLo(signed)...)
	}
	return out
}

// lowerStore translates every Wasm store instruction.
func (c *funcCtx) lowerStore(i *wasm.Instr) []masm.Instr {
	switch i.Op {
	case wasm.OpI32Store:
		vs, ok := c.st.pop(2)
		if !ok || vs[0] != wasm.I32 || vs[1] != wasm.I32 {
			c.fail(ExpectedStack, "i32.store expects [addr, value]")
			return nil
		}
		return c.lowerWordStore(i.Mem.Offset, false)
	case wasm.OpI64Store:
		vs, ok := c.st.pop(2)
		if !ok || vs[0] != wasm.I32 || vs[1] != wasm.I64 {
			c.fail(ExpectedStack, "i64.store expects [addr, value]")
			return nil
		}
		return c.lowerWordStore(i.Mem.Offset, true)
	case wasm.OpI32Store8:
		return c.popAndLowerSubwordStore(i.Mem.Offset, 8, false)
	case wasm.OpI32Store16:
		return c.popAndLowerSubwordStore(i.Mem.Offset, 16, false)
	case wasm.OpI64Store8:
		return c.popAndLowerSubwordStore(i.Mem.Offset, 8, true)
	case wasm.OpI64Store16:
		return c.popAndLowerSubwordStore(i.Mem.Offset, 16, true)
	case wasm.OpI64Store32:
		vs, ok := c.st.pop(2)
		if !ok || vs[0] != wasm.I32 || vs[1] != wasm.I64 {
			c.fail(ExpectedStack, "i64.store32 expects [addr, value]")
			return nil
		}
		// the i64 value's high cell is already on top; drop it, then
		// store the low cell as a plain aligned 32-bit word.
		return append([]masm.Instr{{Op: masm.OpDrop}}, c.lowerWordStore(i.Mem.Offset, false)...)
	}
	c.fail(UnsupportedInstr, "store opcode %d", i.Op)
	return nil
}

func (c *funcCtx) popAndLowerSubwordStore(offsetBytes uint32, widthBits int, valueIs64 bool) []masm.Instr {
	valTy := wasm.I32
	if valueIs64 {
		valTy = wasm.I64
	}
	vs, ok := c.st.pop(2)
	if !ok || vs[0] != wasm.I32 || vs[1] != valTy {
		c.fail(ExpectedStack, "store expects [addr, value]")
		return nil
	}
	var drop []masm.Instr
	if valueIs64 {
		// value is [hi(top), lo]; only lo participates in a sub-word store.
		drop = []masm.Instr{{Op: masm.OpDrop}}
	}
	return append(drop, c.lowerSubwordStore(offsetBytes, widthBits)...)
}

// lowerWordStore stores one (i32) or two (i64) consecutive words,
// assuming the dynamic address is word-aligned. Stack on entry
// (top-to-bottom): value (hi,lo for i64), addr.
func (c *funcCtx) lowerWordStore(offsetBytes uint32, is64 bool) []masm.Instr {
	wordOff := offsetBytes/4 + c.lay.memBeginning
	if !is64 {
		return []masm.Instr{
			{Op: masm.OpSwap, K: 1}, // [addr, value]
			{Op: masm.OpPush, Word: 2}, {Op: masm.OpIShR},
			{Op: masm.OpPush, Word: wordOff}, {Op: masm.OpIAdd}, // [wordAddr, value]
			memStoreNone(),
		}
	}
	return []masm.Instr{
		{Op: masm.OpMoveUp, K: 2}, // [addr, hi, lo]
		{Op: masm.OpDup, K: 0},    // [addr, addr, hi, lo]
		{Op: masm.OpPush, Word: 2}, {Op: masm.OpIShR},
		{Op: masm.OpPush, Word: wordOff + 1}, {Op: masm.OpIAdd}, // [hiWordAddr, addr, hi, lo]
		{Op: masm.OpMoveUp, K: 2}, {Op: masm.OpSwap, K: 1}, // [hiWordAddr, hi, addr, lo]
		memStoreNone(), // [addr, lo]
		{Op: masm.OpPush, Word: 2}, {Op: masm.OpIShR},
		{Op: masm.OpPush, Word: wordOff}, {Op: masm.OpIAdd}, // [loWordAddr, lo]
		memStoreNone(),
	}
}

// lowerSubwordStore implements a byte/halfword store as a
// read-modify-write of the containing word, via scratch locals (no
// stack juggling): stack on entry is [value(top), addr].
func (c *funcCtx) lowerSubwordStore(offsetBytes uint32, widthBits int) []masm.Instr {
	valueCell, eaCell, wordAddrCell, shiftCell, oldWordCell := c.scratch(2), c.scratch(0), c.scratch(1), c.scratch(3), c.scratch(4)
	mask := uint32(1)<<uint(widthBits) - 1

	var out []masm.Instr
	out = append(out, masm.Instr{Op: masm.OpLocStore, Cell: valueCell})
	out = append(out, ea(offsetBytes)...)
	out = append(out, masm.Instr{Op: masm.OpLocStore, Cell: eaCell})
	out = append(out,
		masm.Instr{Op: masm.OpLocLoad, Cell: eaCell}, masm.Instr{Op: masm.OpPush, Word: 2}, masm.Instr{Op: masm.OpIShR},
		masm.Instr{Op: masm.OpPush, Word: c.lay.memBeginning}, masm.Instr{Op: masm.OpIAdd},
		masm.Instr{Op: masm.OpLocStore, Cell: wordAddrCell},
		masm.Instr{Op: masm.OpLocLoad, Cell: eaCell}, masm.Instr{Op: masm.OpPush, Word: 3}, masm.Instr{Op: masm.OpIAnd},
		masm.Instr{Op: masm.OpPush, Word: 8}, masm.Instr{Op: masm.OpIMul},
		masm.Instr{Op: masm.OpLocStore, Cell: shiftCell},
		masm.Instr{Op: masm.OpLocLoad, Cell: wordAddrCell}, memLoadNone(),
		masm.Instr{Op: masm.OpLocStore, Cell: oldWordCell},
	)
	out = append(out,
		masm.Instr{Op: masm.OpPush, Word: mask}, masm.Instr{Op: masm.OpLocLoad, Cell: shiftCell}, masm.Instr{Op: masm.OpIShL},
		masm.Instr{Op: masm.OpINot},
		masm.Instr{Op: masm.OpLocLoad, Cell: oldWordCell}, masm.Instr{Op: masm.OpIAnd},
	)
	out = append(out,
		masm.Instr{Op: masm.OpLocLoad, Cell: valueCell}, masm.Instr{Op: masm.OpPush, Word: mask}, masm.Instr{Op: masm.OpIAnd},
		masm.Instr{Op: masm.OpLocLoad, Cell: shiftCell}, masm.Instr{Op: masm.OpIShL},
		masm.Instr{Op: masm.OpIOr},
	)
	out = append(out, masm.Instr{Op: masm.OpLocLoad, Cell: wordAddrCell}, memStoreNone())
	return out
}
