package wasm

// Op is a Wasm instruction opcode. The translator supports exactly
// the subset below; anything else surfaces as UnsupportedInstruction.
type Op uint16

const (
	OpUnreachable Op = iota
	OpNop
	OpBlock
	OpLoop
	OpIf
	OpBr
	OpBrIf
	OpBrTable
	OpReturn
	OpCall
	OpDrop
	OpSelect

	OpGetLocal
	OpSetLocal
	OpTeeLocal
	OpGetGlobal
	OpSetGlobal

	OpI32Const
	OpI64Const

	OpI32Load
	OpI64Load
	OpI32Load8S
	OpI32Load8U
	OpI32Load16S
	OpI32Load16U
	OpI64Load8S
	OpI64Load8U
	OpI64Load16S
	OpI64Load16U
	OpI64Load32S
	OpI64Load32U

	OpI32Store
	OpI64Store
	OpI32Store8
	OpI32Store16
	OpI64Store8
	OpI64Store16
	OpI64Store32

	OpI32Eqz
	OpI64Eqz

	OpIBinOp // bitsize-parameterized arithmetic/bitwise op, see NumOp
	OpIRelOp // bitsize-parameterized comparison op, see RelOp

	OpI32WrapI64
	OpI64ExtendUI32
	OpI64ExtendSI32
)

// NumOp is the operator carried by an OpIBinOp instruction.
type NumOp uint8

const (
	NumAdd NumOp = iota
	NumSub
	NumMul
	NumDivU
	NumDivS
	NumRemU
	NumRemS
	NumAnd
	NumOr
	NumXor
	NumShl
	NumShrU
	NumShrS
	NumRotl
	NumRotr
)

// RelOp is the operator carried by an OpIRelOp instruction.
type RelOp uint8

const (
	RelEq RelOp = iota
	RelNe
	RelLtU
	RelLtS
	RelGtU
	RelGtS
	RelLeU
	RelLeS
	RelGeU
	RelGeS
)

// MemArg carries a load/store's static byte offset and declared
// alignment hint (the translator ignores Align; it is part of the
// Wasm encoding but has no effect on MASM codegen).
type MemArg struct {
	Offset uint32
	Align  uint32
}

// BlockType is the params/results signature of a block/loop/if. Wasm
// 1.0 MVP blocks carry at most one result and no params; the fields
// are slices so the same shape covers the empty case uniformly and
// leaves room for multi-value blocks without another type.
type BlockType struct {
	Params  []ValueType
	Results []ValueType
}

// Instr is a single Wasm instruction. It is a monolithic tagged
// struct (per spec.md §9's "sum-type IR" design note) rather than a
// class hierarchy: Op selects which of the fields below are
// meaningful.
type Instr struct {
	Op Op

	// OpI32Const / OpI64Const: the constant value (sign-extended into
	// int64 so both widths share one field).
	Imm int64

	// OpIBinOp / OpIRelOp.
	Bits64 bool
	NumOp  NumOp
	RelOp  RelOp

	// OpGetLocal / OpSetLocal / OpTeeLocal.
	LocalIdx uint32

	// OpGetGlobal / OpSetGlobal.
	GlobalIdx uint32

	// OpCall.
	FuncIdx uint32

	// OpBr / OpBrIf: target block depth, 0 = innermost enclosing block.
	BrDepth uint32

	// OpBrTable: one target depth per case, plus a default.
	BrTableTargets []uint32
	BrTableDefault uint32

	// Loads/stores.
	Mem MemArg

	// OpBlock / OpLoop / OpIf.
	Block BlockType
	Then  []Instr // OpBlock/OpLoop body, or OpIf's then-branch
	Else  []Instr // OpIf's else-branch (nil/empty if absent)
}
