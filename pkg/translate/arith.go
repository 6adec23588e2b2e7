package translate

import (
	"github.com/minz/w2m/pkg/masm"
	"github.com/minz/w2m/pkg/wasm"
)

const signBit32 = uint32(0x80000000)

// lowerBinOp translates OpIBinOp: spec.md §4.5 maps arithmetic/bitwise
// ops directly onto MASM where the hardware provides them, and onto an
// abs/negate/isNegative idiom for the signed ops MASM has no native
// form for. 64-bit division, remainder, signed shift and rotate are
// Unsupported64Bits; rotate is unsupported at any width (no MASM
// primitive and no Wasm program in the wild needs it for this target).
func (c *funcCtx) lowerBinOp(i *wasm.Instr) []masm.Instr {
	ty := wasm.I32
	if i.Bits64 {
		ty = wasm.I64
	}
	vs, ok := c.st.pop(2)
	if !ok || vs[0] != ty || vs[1] != ty {
		c.fail(ExpectedStack, "%s.binop expects two %s operands", ty, ty)
		return nil
	}
	c.st.push(ty)

	if i.Bits64 {
		switch i.NumOp {
		case wasm.NumAdd:
			return []masm.Instr{{Op: masm.OpIAdd64}}
		case wasm.NumSub:
			return []masm.Instr{{Op: masm.OpISub64}}
		case wasm.NumMul:
			return []masm.Instr{{Op: masm.OpIMul64}}
		case wasm.NumAnd:
			return []masm.Instr{{Op: masm.OpIAnd64}}
		case wasm.NumOr:
			return []masm.Instr{{Op: masm.OpIOr64}}
		case wasm.NumXor:
			return []masm.Instr{{Op: masm.OpIXor64}}
		case wasm.NumShl:
			return []masm.Instr{{Op: masm.OpIShL64}}
		case wasm.NumShrU:
			return []masm.Instr{{Op: masm.OpIShR64}}
		default:
			c.fail(Unsupported64Bits, "64-bit %v has no supported lowering", i.NumOp)
			return nil
		}
	}

	if i.NumOp == wasm.NumRotl || i.NumOp == wasm.NumRotr {
		c.fail(UnsupportedInstr, "rotate has no MASM primitive")
		return nil
	}

	switch i.NumOp {
	case wasm.NumAdd:
		return []masm.Instr{{Op: masm.OpIAdd}}
	case wasm.NumSub:
		return []masm.Instr{{Op: masm.OpISub}}
	case wasm.NumMul:
		return []masm.Instr{{Op: masm.OpIMul}}
	case wasm.NumDivU:
		return []masm.Instr{{Op: masm.OpIDiv}}
	case wasm.NumRemU:
		return []masm.Instr{{Op: masm.OpIMod}}
	case wasm.NumAnd:
		return []masm.Instr{{Op: masm.OpIAnd}}
	case wasm.NumOr:
		return []masm.Instr{{Op: masm.OpIOr}}
	case wasm.NumXor:
		return []masm.Instr{{Op: masm.OpIXor}}
	case wasm.NumShl:
		return []masm.Instr{{Op: masm.OpIShL}}
	case wasm.NumShrU:
		return []masm.Instr{{Op: masm.OpIShR}}
	case wasm.NumDivS:
		return c.lowerDivS()
	case wasm.NumRemS:
		return c.lowerRemS()
	case wasm.NumShrS:
		return c.lowerShrS()
	default:
		c.fail(UnsupportedInstr, "binop %v", i.NumOp)
		return nil
	}
}

// absSeq loads cell and replaces it with its absolute value (32-bit
// two's-complement negate when the sign bit is set).
func absSeq(cell int) []masm.Instr {
	return []masm.Instr{
		{Op: masm.OpLocLoad, Cell: cell},
		{Op: masm.OpDup, K: 0},
		{Op: masm.OpPush, Word: signBit32}, {Op: masm.OpIAnd},
		{Op: masm.OpPush, Word: signBit32}, {Op: masm.OpIEq},
		{Op: masm.OpIf, Then: []masm.Instr{
			{Op: masm.OpPush, Word: 0}, {Op: masm.OpSwap, K: 1}, {Op: masm.OpISub},
		}},
	}
}

func isNegativeSeq(cell int) []masm.Instr {
	return []masm.Instr{
		{Op: masm.OpLocLoad, Cell: cell},
		{Op: masm.OpPush, Word: signBit32}, {Op: masm.OpIAnd},
		{Op: masm.OpPush, Word: signBit32}, {Op: masm.OpIEq},
	}
}

// negateTop negates the value on top of stack via two's complement.
func negateTop() []masm.Instr {
	return []masm.Instr{{Op: masm.OpPush, Word: 0}, {Op: masm.OpSwap, K: 1}, {Op: masm.OpISub}}
}

func (c *funcCtx) lowerDivS() []masm.Instr {
	a, b := c.scratch(0), c.scratch(1)
	out := []masm.Instr{{Op: masm.OpLocStore, Cell: b}, {Op: masm.OpLocStore, Cell: a}}
	out = append(out, absSeq(a)...)
	out = append(out, absSeq(b)...)
	out = append(out, masm.Instr{Op: masm.OpIDiv})
	out = append(out, isNegativeSeq(a)...)
	out = append(out, isNegativeSeq(b)...)
	out = append(out, masm.Instr{Op: masm.OpIXor})
	out = append(out, masm.Instr{Op: masm.OpIf, Then: negateTop()})
	return out
}

func (c *funcCtx) lowerRemS() []masm.Instr {
	a, b := c.scratch(0), c.scratch(1)
	out := []masm.Instr{{Op: masm.OpLocStore, Cell: b}, {Op: masm.OpLocStore, Cell: a}}
	out = append(out, absSeq(a)...)
	out = append(out, absSeq(b)...)
	out = append(out, masm.Instr{Op: masm.OpIMod})
	out = append(out, isNegativeSeq(a)...)
	out = append(out, masm.Instr{Op: masm.OpIf, Then: negateTop()})
	return out
}

// lowerShrS implements arithmetic right shift: for a non-negative
// operand a plain unsigned shift is correct, but a negative operand
// must have ones shifted in from the left, via the
// NOT((NOT a) SHR b) identity (spec.md §4.5).
func (c *funcCtx) lowerShrS() []masm.Instr {
	v, k := c.scratch(0), c.scratch(1)
	out := []masm.Instr{{Op: masm.OpLocStore, Cell: k}, {Op: masm.OpLocStore, Cell: v}}
	out = append(out, isNegativeSeq(v)...)
	out = append(out, masm.Instr{Op: masm.OpIf,
		Then: []masm.Instr{
			{Op: masm.OpLocLoad, Cell: v}, {Op: masm.OpINot},
			{Op: masm.OpLocLoad, Cell: k}, {Op: masm.OpIShR},
			{Op: masm.OpINot},
		},
		Else: []masm.Instr{
			{Op: masm.OpLocLoad, Cell: v},
			{Op: masm.OpLocLoad, Cell: k}, {Op: masm.OpIShR},
		},
	})
	return out
}

// lowerRelOp translates OpIRelOp: unsigned comparisons map straight
// onto MASM's native (unsigned) relational ops; signed comparisons use
// the isNegative(a-b) idiom (spec.md §4.5).
func (c *funcCtx) lowerRelOp(i *wasm.Instr) []masm.Instr {
	ty := wasm.I32
	if i.Bits64 {
		ty = wasm.I64
	}
	vs, ok := c.st.pop(2)
	if !ok || vs[0] != ty || vs[1] != ty {
		c.fail(ExpectedStack, "%s.relop expects two %s operands", ty, ty)
		return nil
	}
	c.st.push(wasm.I32)

	if i.Bits64 {
		switch i.RelOp {
		case wasm.RelEq:
			return []masm.Instr{{Op: masm.OpIEq64}}
		case wasm.RelNe:
			return []masm.Instr{{Op: masm.OpINeq64}}
		case wasm.RelLtU:
			return []masm.Instr{{Op: masm.OpILt64}}
		case wasm.RelGtU:
			return []masm.Instr{{Op: masm.OpIGt64}}
		case wasm.RelLeU:
			return []masm.Instr{{Op: masm.OpILte64}}
		case wasm.RelGeU:
			return []masm.Instr{{Op: masm.OpIGte64}}
		default:
			c.fail(Unsupported64Bits, "64-bit signed comparison %v", i.RelOp)
			return nil
		}
	}

	switch i.RelOp {
	case wasm.RelEq:
		return []masm.Instr{{Op: masm.OpIEq}}
	case wasm.RelNe:
		return []masm.Instr{{Op: masm.OpINeq}}
	case wasm.RelLtU:
		return []masm.Instr{{Op: masm.OpILt}}
	case wasm.RelGtU:
		return []masm.Instr{{Op: masm.OpIGt}}
	case wasm.RelLeU:
		return []masm.Instr{{Op: masm.OpILte}}
	case wasm.RelGeU:
		return []masm.Instr{{Op: masm.OpIGte}}
	case wasm.RelLtS:
		return c.signedCompare(false)
	case wasm.RelGtS:
		return c.signedCompare(true)
	case wasm.RelLeS:
		return append(c.signedCompare(true), boolNot()...)
	case wasm.RelGeS:
		return append(c.signedCompare(false), boolNot()...)
	default:
		c.fail(UnsupportedInstr, "relop %v", i.RelOp)
		return nil
	}
}

func boolNot() []masm.Instr {
	return []masm.Instr{{Op: masm.OpPush, Word: 1}, {Op: masm.OpIXor}}
}

// signedCompare computes isNegative(b-a) (greater) or isNegative(a-b)
// (less), ignoring the single-overflow edge case a two's-complement
// subtract based compare always has (see DESIGN.md).
func (c *funcCtx) signedCompare(greater bool) []masm.Instr {
	a, b := c.scratch(0), c.scratch(1)
	out := []masm.Instr{{Op: masm.OpLocStore, Cell: b}, {Op: masm.OpLocStore, Cell: a}}
	if greater {
		out = append(out, masm.Instr{Op: masm.OpLocLoad, Cell: b}, masm.Instr{Op: masm.OpLocLoad, Cell: a}, masm.Instr{Op: masm.OpISub})
	} else {
		out = append(out, masm.Instr{Op: masm.OpLocLoad, Cell: a}, masm.Instr{Op: masm.OpLocLoad, Cell: b}, masm.Instr{Op: masm.OpISub})
	}
	out = append(out, masm.Instr{Op: masm.OpPush, Word: signBit32}, masm.Instr{Op: masm.OpIAnd})
	out = append(out, masm.Instr{Op: masm.OpPush, Word: signBit32}, masm.Instr{Op: masm.OpIEq})
	return out
}

// lowerEqz translates i32.eqz / i64.eqz.
func (c *funcCtx) lowerEqz(is64 bool) []masm.Instr {
	ty := wasm.I32
	if is64 {
		ty = wasm.I64
	}
	vs, ok := c.st.pop(1)
	if !ok || vs[0] != ty {
		c.fail(ExpectedStack, "eqz expects %s", ty)
		return nil
	}
	c.st.push(wasm.I32)
	if is64 {
		return []masm.Instr{{Op: masm.OpIEqz64}}
	}
	return []masm.Instr{{Op: masm.OpIEqz}}
}
