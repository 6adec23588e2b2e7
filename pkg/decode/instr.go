package decode

import (
	"fmt"

	"github.com/minz/w2m/pkg/translate"
	"github.com/minz/w2m/pkg/wasm"
)

const (
	opEnd  = 0x0B
	opElse = 0x05
)

func unsupported(detail string) error {
	return &translate.Error{Kind: translate.UnsupportedInstr, FuncIdx: -1, Detail: detail}
}

func unsupportedFloat(detail string) error {
	return &translate.Error{Kind: translate.UnsupportedArgType, FuncIdx: -1, Detail: detail}
}

// instrSeq decodes a straight-line sequence of instructions, stopping
// at the first `end` or `else` byte at this nesting depth and
// returning which one it was.
func (d *decoder) instrSeq() ([]wasm.Instr, byte, error) {
	var out []wasm.Instr
	for {
		op, err := d.byte()
		if err != nil {
			return nil, 0, err
		}
		if op == opEnd || op == opElse {
			return out, op, nil
		}
		instr, err := d.oneInstr(op)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, instr)
	}
}

func (d *decoder) blockType() (wasm.BlockType, error) {
	b, err := d.byte()
	if err != nil {
		return wasm.BlockType{}, err
	}
	if b == 0x40 {
		return wasm.BlockType{}, nil
	}
	t, err := valueType(b)
	if err != nil {
		return wasm.BlockType{}, err
	}
	if err := requireIntType(t); err != nil {
		return wasm.BlockType{}, err
	}
	return wasm.BlockType{Results: []wasm.ValueType{t}}, nil
}

func (d *decoder) memArg() (wasm.MemArg, error) {
	align, err := d.varuint32()
	if err != nil {
		return wasm.MemArg{}, err
	}
	offset, err := d.varuint32()
	if err != nil {
		return wasm.MemArg{}, err
	}
	return wasm.MemArg{Align: align, Offset: offset}, nil
}

func (d *decoder) brTable() ([]uint32, uint32, error) {
	n, err := d.varuint32()
	if err != nil {
		return nil, 0, err
	}
	targets := make([]uint32, n)
	for i := uint32(0); i < n; i++ {
		targets[i], err = d.varuint32()
		if err != nil {
			return nil, 0, err
		}
	}
	def, err := d.varuint32()
	if err != nil {
		return nil, 0, err
	}
	return targets, def, nil
}

// oneInstr decodes a single instruction whose opcode byte has already
// been consumed (spec.md §6's op-by-op coverage: every Wasm 1.0 MVP
// opcode is recognized, with floats/tables/memory.grow/SIMD rejected
// right here rather than passed through to the translator).
func (d *decoder) oneInstr(op byte) (wasm.Instr, error) {
	switch op {
	case 0x00:
		return wasm.Instr{Op: wasm.OpUnreachable}, nil
	case 0x01:
		return wasm.Instr{Op: wasm.OpNop}, nil

	case 0x02, 0x03, 0x04: // block, loop, if
		bt, err := d.blockType()
		if err != nil {
			return wasm.Instr{}, err
		}
		then, term, err := d.instrSeq()
		if err != nil {
			return wasm.Instr{}, err
		}
		var els []wasm.Instr
		if op == 0x04 && term == opElse {
			els, _, err = d.instrSeq()
			if err != nil {
				return wasm.Instr{}, err
			}
		}
		switch op {
		case 0x02:
			return wasm.Instr{Op: wasm.OpBlock, Block: bt, Then: then}, nil
		case 0x03:
			return wasm.Instr{Op: wasm.OpLoop, Block: bt, Then: then}, nil
		default:
			return wasm.Instr{Op: wasm.OpIf, Block: bt, Then: then, Else: els}, nil
		}

	case 0x0C, 0x0D: // br, br_if
		depth, err := d.varuint32()
		if err != nil {
			return wasm.Instr{}, err
		}
		if op == 0x0C {
			return wasm.Instr{Op: wasm.OpBr, BrDepth: depth}, nil
		}
		return wasm.Instr{Op: wasm.OpBrIf, BrDepth: depth}, nil

	case 0x0E: // br_table
		targets, def, err := d.brTable()
		if err != nil {
			return wasm.Instr{}, err
		}
		return wasm.Instr{Op: wasm.OpBrTable, BrTableTargets: targets, BrTableDefault: def}, nil

	case 0x0F:
		return wasm.Instr{Op: wasm.OpReturn}, nil

	case 0x10: // call
		idx, err := d.varuint32()
		if err != nil {
			return wasm.Instr{}, err
		}
		return wasm.Instr{Op: wasm.OpCall, FuncIdx: idx}, nil
	case 0x11: // call_indirect
		return wasm.Instr{}, unsupported("call_indirect: indirect calls are not supported")

	case 0x1A:
		return wasm.Instr{Op: wasm.OpDrop}, nil
	case 0x1B:
		return wasm.Instr{Op: wasm.OpSelect}, nil

	case 0x20, 0x21, 0x22: // get_local, set_local, tee_local
		idx, err := d.varuint32()
		if err != nil {
			return wasm.Instr{}, err
		}
		switch op {
		case 0x20:
			return wasm.Instr{Op: wasm.OpGetLocal, LocalIdx: idx}, nil
		case 0x21:
			return wasm.Instr{Op: wasm.OpSetLocal, LocalIdx: idx}, nil
		default:
			return wasm.Instr{Op: wasm.OpTeeLocal, LocalIdx: idx}, nil
		}
	case 0x23, 0x24: // get_global, set_global
		idx, err := d.varuint32()
		if err != nil {
			return wasm.Instr{}, err
		}
		if op == 0x23 {
			return wasm.Instr{Op: wasm.OpGetGlobal, GlobalIdx: idx}, nil
		}
		return wasm.Instr{Op: wasm.OpSetGlobal, GlobalIdx: idx}, nil

	case 0x28, 0x29, 0x2C, 0x2D, 0x2E, 0x2F, 0x30, 0x31, 0x32, 0x33, 0x34, 0x35:
		m, err := d.memArg()
		if err != nil {
			return wasm.Instr{}, err
		}
		return wasm.Instr{Op: loadOp(op), Mem: m}, nil
	case 0x2A, 0x2B:
		return wasm.Instr{}, unsupportedFloat("f32/f64.load: floating point is not supported")

	case 0x36, 0x37, 0x3A, 0x3B, 0x3C, 0x3D, 0x3E:
		m, err := d.memArg()
		if err != nil {
			return wasm.Instr{}, err
		}
		return wasm.Instr{Op: storeOp(op), Mem: m}, nil
	case 0x38, 0x39:
		return wasm.Instr{}, unsupportedFloat("f32/f64.store: floating point is not supported")

	case 0x3F, 0x40: // memory.size, memory.grow
		if _, err := d.byte(); err != nil { // reserved
			return wasm.Instr{}, err
		}
		if op == 0x3F {
			return wasm.Instr{}, unsupported("memory.size is not supported")
		}
		return wasm.Instr{}, unsupported("memory.grow is not supported")

	case 0x41: // i32.const
		v, err := d.varint32()
		if err != nil {
			return wasm.Instr{}, err
		}
		return wasm.Instr{Op: wasm.OpI32Const, Imm: int64(v)}, nil
	case 0x42: // i64.const
		v, err := d.varint64()
		if err != nil {
			return wasm.Instr{}, err
		}
		return wasm.Instr{Op: wasm.OpI64Const, Imm: v}, nil
	case 0x43:
		if _, err := d.bytes(4); err != nil {
			return wasm.Instr{}, err
		}
		return wasm.Instr{}, unsupportedFloat("f32.const: floating point is not supported")
	case 0x44:
		if _, err := d.bytes(8); err != nil {
			return wasm.Instr{}, err
		}
		return wasm.Instr{}, unsupportedFloat("f64.const: floating point is not supported")

	case 0x45:
		return wasm.Instr{Op: wasm.OpI32Eqz}, nil
	case 0x46, 0x47, 0x48, 0x49, 0x4A, 0x4B, 0x4C, 0x4D, 0x4E, 0x4F:
		return wasm.Instr{Op: wasm.OpIRelOp, RelOp: i32RelOp(op)}, nil
	case 0x50:
		return wasm.Instr{Op: wasm.OpI64Eqz}, nil
	case 0x51, 0x52, 0x53, 0x54, 0x55, 0x56, 0x57, 0x58, 0x59, 0x5A:
		return wasm.Instr{Op: wasm.OpIRelOp, Bits64: true, RelOp: i64RelOp(op)}, nil
	case 0x5B, 0x5C, 0x5D, 0x5E, 0x5F, 0x60, 0x61, 0x62, 0x63, 0x64, 0x65, 0x66:
		return wasm.Instr{}, unsupportedFloat("floating-point comparison is not supported")

	case 0x67, 0x68, 0x69:
		return wasm.Instr{}, unsupported("i32.clz/ctz/popcnt have no MASM primitive")
	case 0x6A, 0x6B, 0x6C, 0x6D, 0x6E, 0x6F, 0x70, 0x71, 0x72, 0x73, 0x74, 0x75, 0x76, 0x77, 0x78:
		return wasm.Instr{Op: wasm.OpIBinOp, NumOp: i32NumOp(op)}, nil

	case 0x79, 0x7A, 0x7B:
		return wasm.Instr{}, unsupported("i64.clz/ctz/popcnt have no MASM primitive")
	case 0x7C, 0x7D, 0x7E, 0x7F, 0x80, 0x81, 0x82, 0x83, 0x84, 0x85, 0x86, 0x87, 0x88, 0x89, 0x8A:
		return wasm.Instr{Op: wasm.OpIBinOp, Bits64: true, NumOp: i64NumOp(op)}, nil

	case 0x8B, 0x8C, 0x8D, 0x8E, 0x8F, 0x90, 0x91, 0x92, 0x93, 0x94, 0x95, 0x96, 0x97, 0x98,
		0x99, 0x9A, 0x9B, 0x9C, 0x9D, 0x9E, 0x9F, 0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5, 0xA6:
		return wasm.Instr{}, unsupportedFloat("floating-point arithmetic is not supported")

	case 0xA7:
		return wasm.Instr{Op: wasm.OpI32WrapI64}, nil
	case 0xA8, 0xA9, 0xAA, 0xAB:
		return wasm.Instr{}, unsupportedFloat("i32.trunc_f32/f64: floating point is not supported")
	case 0xAC:
		return wasm.Instr{Op: wasm.OpI64ExtendSI32}, nil
	case 0xAD:
		return wasm.Instr{Op: wasm.OpI64ExtendUI32}, nil
	case 0xAE, 0xAF, 0xB0, 0xB1, 0xB2, 0xB3, 0xB4, 0xB5, 0xB6, 0xB7, 0xB8, 0xB9, 0xBA, 0xBB,
		0xBC, 0xBD, 0xBE, 0xBF:
		return wasm.Instr{}, unsupportedFloat("floating-point conversion is not supported")

	default:
		return wasm.Instr{}, fmt.Errorf("decode: unknown or unsupported opcode 0x%02x", op)
	}
}

func loadOp(op byte) wasm.Op {
	switch op {
	case 0x28:
		return wasm.OpI32Load
	case 0x29:
		return wasm.OpI64Load
	case 0x2C:
		return wasm.OpI32Load8S
	case 0x2D:
		return wasm.OpI32Load8U
	case 0x2E:
		return wasm.OpI32Load16S
	case 0x2F:
		return wasm.OpI32Load16U
	case 0x30:
		return wasm.OpI64Load8S
	case 0x31:
		return wasm.OpI64Load8U
	case 0x32:
		return wasm.OpI64Load16S
	case 0x33:
		return wasm.OpI64Load16U
	case 0x34:
		return wasm.OpI64Load32S
	default:
		return wasm.OpI64Load32U
	}
}

func storeOp(op byte) wasm.Op {
	switch op {
	case 0x36:
		return wasm.OpI32Store
	case 0x37:
		return wasm.OpI64Store
	case 0x3A:
		return wasm.OpI32Store8
	case 0x3B:
		return wasm.OpI32Store16
	case 0x3C:
		return wasm.OpI64Store8
	case 0x3D:
		return wasm.OpI64Store16
	default:
		return wasm.OpI64Store32
	}
}

func i32RelOp(op byte) wasm.RelOp {
	return [...]wasm.RelOp{
		0x46: wasm.RelEq, 0x47: wasm.RelNe,
		0x48: wasm.RelLtS, 0x49: wasm.RelLtU, 0x4A: wasm.RelGtS, 0x4B: wasm.RelGtU,
		0x4C: wasm.RelLeS, 0x4D: wasm.RelLeU, 0x4E: wasm.RelGeS, 0x4F: wasm.RelGeU,
	}[op]
}

func i64RelOp(op byte) wasm.RelOp {
	return [...]wasm.RelOp{
		0x51: wasm.RelEq, 0x52: wasm.RelNe,
		0x53: wasm.RelLtS, 0x54: wasm.RelLtU, 0x55: wasm.RelGtS, 0x56: wasm.RelGtU,
		0x57: wasm.RelLeS, 0x58: wasm.RelLeU, 0x59: wasm.RelGeS, 0x5A: wasm.RelGeU,
	}[op]
}

func i32NumOp(op byte) wasm.NumOp {
	return [...]wasm.NumOp{
		0x6A: wasm.NumAdd, 0x6B: wasm.NumSub, 0x6C: wasm.NumMul,
		0x6D: wasm.NumDivS, 0x6E: wasm.NumDivU, 0x6F: wasm.NumRemS, 0x70: wasm.NumRemU,
		0x71: wasm.NumAnd, 0x72: wasm.NumOr, 0x73: wasm.NumXor,
		0x74: wasm.NumShl, 0x75: wasm.NumShrS, 0x76: wasm.NumShrU,
		0x77: wasm.NumRotl, 0x78: wasm.NumRotr,
	}[op]
}

func i64NumOp(op byte) wasm.NumOp {
	return [...]wasm.NumOp{
		0x7C: wasm.NumAdd, 0x7D: wasm.NumSub, 0x7E: wasm.NumMul,
		0x7F: wasm.NumDivS, 0x80: wasm.NumDivU, 0x81: wasm.NumRemS, 0x82: wasm.NumRemU,
		0x83: wasm.NumAnd, 0x84: wasm.NumOr, 0x85: wasm.NumXor,
		0x86: wasm.NumShl, 0x87: wasm.NumShrS, 0x88: wasm.NumShrU,
		0x89: wasm.NumRotl, 0x8A: wasm.NumRotr,
	}[op]
}
