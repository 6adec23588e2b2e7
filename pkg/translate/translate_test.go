package translate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/minz/w2m/pkg/interp"
	"github.com/minz/w2m/pkg/masm"
	"github.com/minz/w2m/pkg/wasm"
)

// runModule translates m and executes it against the reference
// interpreter, returning the interpreter so callers can inspect memory.
func runModule(t *testing.T, m *wasm.Module) *interp.Interp {
	t.Helper()
	mod, errs := Translate(m)
	require.Empty(t, errs, "translation errors: %v", errs)
	require.NotNil(t, mod)
	in := interp.New(mod)
	require.NoError(t, in.Run(mod))
	return in
}

// addTwoConstsModule builds a module whose start function calls an
// add function and writes the result into a global.
func addTwoConstsModule() *wasm.Module {
	// start (no params/results): push 3, 4, call "add", store into global 0.
	// add (i32,i32)->i32: get_local 0; get_local 1; i32.add.
	return &wasm.Module{
		Types: []wasm.FuncType{
			{}, // 0: start
			{Params: []wasm.ValueType{wasm.I32, wasm.I32}, Results: []wasm.ValueType{wasm.I32}}, // 1: add
		},
		Functions: []wasm.Function{
			{TypeIdx: 0, Body: []wasm.Instr{
				{Op: wasm.OpI32Const, Imm: 3},
				{Op: wasm.OpI32Const, Imm: 4},
				{Op: wasm.OpCall, FuncIdx: 1},
				{Op: wasm.OpSetGlobal, GlobalIdx: 0},
			}},
			{TypeIdx: 1, Body: []wasm.Instr{
				{Op: wasm.OpGetLocal, LocalIdx: 0},
				{Op: wasm.OpGetLocal, LocalIdx: 1},
				{Op: wasm.OpIBinOp, NumOp: wasm.NumAdd},
			}},
		},
		Globals: []wasm.Global{
			{Type: wasm.I32, Mut: wasm.Mutable, Initializer: []wasm.Instr{{Op: wasm.OpI32Const, Imm: 0}}},
		},
		Start: uint32Ptr(0),
	}
}

func uint32Ptr(v uint32) *uint32 { return &v }

func TestTranslateCallAcrossFunctionsEndToEnd(t *testing.T) {
	m := addTwoConstsModule()
	lay, err := buildLayout(m)
	require.NoError(t, err)

	in := runModule(t, m)
	require.Equal(t, uint32(7), in.Mem(lay.globalAddr[0]))
}

func TestTranslateBranchOutOfBlockSkipsGuardedCode(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Functions: []wasm.Function{
			{TypeIdx: 0, Locals: []wasm.ValueType{wasm.I32}, Body: []wasm.Instr{
				{Op: wasm.OpI32Const, Imm: 10},
				{Op: wasm.OpSetLocal, LocalIdx: 0},
				{Op: wasm.OpBlock, Block: wasm.BlockType{}, Then: []wasm.Instr{
					{Op: wasm.OpI32Const, Imm: 1},
					{Op: wasm.OpBrIf, BrDepth: 0},
					{Op: wasm.OpI32Const, Imm: 999},
					{Op: wasm.OpSetLocal, LocalIdx: 0},
				}},
				{Op: wasm.OpGetLocal, LocalIdx: 0},
				{Op: wasm.OpSetGlobal, GlobalIdx: 0},
			}},
		},
		Globals: []wasm.Global{
			{Type: wasm.I32, Mut: wasm.Mutable, Initializer: []wasm.Instr{{Op: wasm.OpI32Const, Imm: 0}}},
		},
		Start: uint32Ptr(0),
	}
	lay, err := buildLayout(m)
	require.NoError(t, err)

	in := runModule(t, m)
	require.Equal(t, uint32(10), in.Mem(lay.globalAddr[0]), "branch out of the block must skip the guarded overwrite")
}

func TestTranslateBranchNotTakenRunsGuardedCode(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Functions: []wasm.Function{
			{TypeIdx: 0, Locals: []wasm.ValueType{wasm.I32}, Body: []wasm.Instr{
				{Op: wasm.OpI32Const, Imm: 10},
				{Op: wasm.OpSetLocal, LocalIdx: 0},
				{Op: wasm.OpBlock, Block: wasm.BlockType{}, Then: []wasm.Instr{
					{Op: wasm.OpI32Const, Imm: 0}, // condition false: fall through
					{Op: wasm.OpBrIf, BrDepth: 0},
					{Op: wasm.OpI32Const, Imm: 999},
					{Op: wasm.OpSetLocal, LocalIdx: 0},
				}},
				{Op: wasm.OpGetLocal, LocalIdx: 0},
				{Op: wasm.OpSetGlobal, GlobalIdx: 0},
			}},
		},
		Globals: []wasm.Global{
			{Type: wasm.I32, Mut: wasm.Mutable, Initializer: []wasm.Instr{{Op: wasm.OpI32Const, Imm: 0}}},
		},
		Start: uint32Ptr(0),
	}
	lay, err := buildLayout(m)
	require.NoError(t, err)

	in := runModule(t, m)
	require.Equal(t, uint32(999), in.Mem(lay.globalAddr[0]))
}

func TestTranslateLoopSumsToTen(t *testing.T) {
	// locals: 0 = i (counter), 1 = sum
	// loop: i += 1; sum += i; br_if 0 while i < 4 (sum = 1+2+3+4)
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Functions: []wasm.Function{
			{TypeIdx: 0, Locals: []wasm.ValueType{wasm.I32, wasm.I32}, Body: []wasm.Instr{
				{Op: wasm.OpLoop, Block: wasm.BlockType{}, Then: []wasm.Instr{
					{Op: wasm.OpGetLocal, LocalIdx: 0},
					{Op: wasm.OpI32Const, Imm: 1},
					{Op: wasm.OpIBinOp, NumOp: wasm.NumAdd},
					{Op: wasm.OpSetLocal, LocalIdx: 0},

					{Op: wasm.OpGetLocal, LocalIdx: 1},
					{Op: wasm.OpGetLocal, LocalIdx: 0},
					{Op: wasm.OpIBinOp, NumOp: wasm.NumAdd},
					{Op: wasm.OpSetLocal, LocalIdx: 1},

					{Op: wasm.OpGetLocal, LocalIdx: 0},
					{Op: wasm.OpI32Const, Imm: 4},
					{Op: wasm.OpIRelOp, RelOp: wasm.RelLtU},
					{Op: wasm.OpBrIf, BrDepth: 0},
				}},
				{Op: wasm.OpGetLocal, LocalIdx: 1},
				{Op: wasm.OpSetGlobal, GlobalIdx: 0},
			}},
		},
		Globals: []wasm.Global{
			{Type: wasm.I32, Mut: wasm.Mutable, Initializer: []wasm.Instr{{Op: wasm.OpI32Const, Imm: 0}}},
		},
		Start: uint32Ptr(0),
	}
	lay, err := buildLayout(m)
	require.NoError(t, err)

	in := runModule(t, m)
	require.Equal(t, uint32(1+2+3+4), in.Mem(lay.globalAddr[0]))
}

func TestTranslateSelectPicksFirstOperandWhenTrue(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Functions: []wasm.Function{
			{TypeIdx: 0, Body: []wasm.Instr{
				{Op: wasm.OpI32Const, Imm: 111},
				{Op: wasm.OpI32Const, Imm: 222},
				{Op: wasm.OpI32Const, Imm: 1}, // condition
				{Op: wasm.OpSelect},
				{Op: wasm.OpSetGlobal, GlobalIdx: 0},
			}},
		},
		Globals: []wasm.Global{
			{Type: wasm.I32, Mut: wasm.Mutable, Initializer: []wasm.Instr{{Op: wasm.OpI32Const, Imm: 0}}},
		},
		Start: uint32Ptr(0),
	}
	lay, err := buildLayout(m)
	require.NoError(t, err)

	in := runModule(t, m)
	require.Equal(t, uint32(111), in.Mem(lay.globalAddr[0]))
}

func TestTranslateSelectPicksSecondOperandWhenFalse(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Functions: []wasm.Function{
			{TypeIdx: 0, Body: []wasm.Instr{
				{Op: wasm.OpI32Const, Imm: 111},
				{Op: wasm.OpI32Const, Imm: 222},
				{Op: wasm.OpI32Const, Imm: 0}, // condition
				{Op: wasm.OpSelect},
				{Op: wasm.OpSetGlobal, GlobalIdx: 0},
			}},
		},
		Globals: []wasm.Global{
			{Type: wasm.I32, Mut: wasm.Mutable, Initializer: []wasm.Instr{{Op: wasm.OpI32Const, Imm: 0}}},
		},
		Start: uint32Ptr(0),
	}
	lay, err := buildLayout(m)
	require.NoError(t, err)

	in := runModule(t, m)
	require.Equal(t, uint32(222), in.Mem(lay.globalAddr[0]))
}

func TestTranslateSignedDivisionAndRemainder(t *testing.T) {
	// -7 / 2 == -3, -7 % 2 == -1 (Wasm truncating division)
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Functions: []wasm.Function{
			{TypeIdx: 0, Body: []wasm.Instr{
				{Op: wasm.OpI32Const, Imm: -7},
				{Op: wasm.OpI32Const, Imm: 2},
				{Op: wasm.OpIBinOp, NumOp: wasm.NumDivS},
				{Op: wasm.OpSetGlobal, GlobalIdx: 0},

				{Op: wasm.OpI32Const, Imm: -7},
				{Op: wasm.OpI32Const, Imm: 2},
				{Op: wasm.OpIBinOp, NumOp: wasm.NumRemS},
				{Op: wasm.OpSetGlobal, GlobalIdx: 1},
			}},
		},
		Globals: []wasm.Global{
			{Type: wasm.I32, Mut: wasm.Mutable, Initializer: []wasm.Instr{{Op: wasm.OpI32Const, Imm: 0}}},
			{Type: wasm.I32, Mut: wasm.Mutable, Initializer: []wasm.Instr{{Op: wasm.OpI32Const, Imm: 0}}},
		},
		Start: uint32Ptr(0),
	}
	lay, err := buildLayout(m)
	require.NoError(t, err)

	in := runModule(t, m)
	require.Equal(t, uint32(int32(-3)), in.Mem(lay.globalAddr[0]))
	require.Equal(t, uint32(int32(-1)), in.Mem(lay.globalAddr[1]))
}

func TestTranslateSignedComparison(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Functions: []wasm.Function{
			{TypeIdx: 0, Body: []wasm.Instr{
				{Op: wasm.OpI32Const, Imm: -1}, // 0xFFFFFFFF: unsigned-huge, signed-negative
				{Op: wasm.OpI32Const, Imm: 1},
				{Op: wasm.OpIRelOp, RelOp: wasm.RelLtS},
				{Op: wasm.OpSetGlobal, GlobalIdx: 0},
			}},
		},
		Globals: []wasm.Global{
			{Type: wasm.I32, Mut: wasm.Mutable, Initializer: []wasm.Instr{{Op: wasm.OpI32Const, Imm: 0}}},
		},
		Start: uint32Ptr(0),
	}
	lay, err := buildLayout(m)
	require.NoError(t, err)

	in := runModule(t, m)
	require.Equal(t, uint32(1), in.Mem(lay.globalAddr[0]), "-1 <_s 1 must be true")
}

func TestTranslateMemoryStoreLoadRoundTrip(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Functions: []wasm.Function{
			{TypeIdx: 0, Body: []wasm.Instr{
				{Op: wasm.OpI32Const, Imm: 0}, // address
				{Op: wasm.OpI32Const, Imm: 1234},
				{Op: wasm.OpI32Store},
				{Op: wasm.OpI32Const, Imm: 0},
				{Op: wasm.OpI32Load},
				{Op: wasm.OpSetGlobal, GlobalIdx: 0},
			}},
		},
		Globals: []wasm.Global{
			{Type: wasm.I32, Mut: wasm.Mutable, Initializer: []wasm.Instr{{Op: wasm.OpI32Const, Imm: 0}}},
		},
		Start: uint32Ptr(0),
	}
	in := runModule(t, m)
	lay, err := buildLayout(m)
	require.NoError(t, err)
	require.Equal(t, uint32(1234), in.Mem(lay.globalAddr[0]))
}

func TestTranslateSubwordStoreLoad(t *testing.T) {
	// store a byte at address 1 (within the first word), load it back
	// sign-extended: 0xFF as i32.load8_s must read back as -1.
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Functions: []wasm.Function{
			{TypeIdx: 0, Body: []wasm.Instr{
				{Op: wasm.OpI32Const, Imm: 1},
				{Op: wasm.OpI32Const, Imm: 0xFF},
				{Op: wasm.OpI32Store8},
				{Op: wasm.OpI32Const, Imm: 1},
				{Op: wasm.OpI32Load8S},
				{Op: wasm.OpSetGlobal, GlobalIdx: 0},
			}},
		},
		Globals: []wasm.Global{
			{Type: wasm.I32, Mut: wasm.Mutable, Initializer: []wasm.Instr{{Op: wasm.OpI32Const, Imm: 0}}},
		},
		Start: uint32Ptr(0),
	}
	in := runModule(t, m)
	lay, err := buildLayout(m)
	require.NoError(t, err)
	require.Equal(t, uint32(int32(-1)), in.Mem(lay.globalAddr[0]))
}

func TestTranslateI64ArithmeticAcrossTwoCells(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Functions: []wasm.Function{
			{TypeIdx: 0, Body: []wasm.Instr{
				{Op: wasm.OpI64Const, Imm: 1<<32 - 1}, // low word all ones, high word zero
				{Op: wasm.OpI64Const, Imm: 1},
				{Op: wasm.OpIBinOp, Bits64: true, NumOp: wasm.NumAdd},
				{Op: wasm.OpSetGlobal, GlobalIdx: 0},
			}},
		},
		Globals: []wasm.Global{
			{Type: wasm.I64, Mut: wasm.Mutable, Initializer: []wasm.Instr{{Op: wasm.OpI64Const, Imm: 0}}},
		},
		Start: uint32Ptr(0),
	}
	in := runModule(t, m)
	lay, err := buildLayout(m)
	require.NoError(t, err)
	require.Equal(t, uint32(0), in.Mem(lay.globalAddr[0]))   // low cell: carried out to 0
	require.Equal(t, uint32(1), in.Mem(lay.globalAddr[0]+1)) // high cell: carry
}

func TestTranslateWrapAndExtend(t *testing.T) {
	// wrap_i64(0x1_0000_0007) == 7; extend_u_i32(7) back to i64 == 7.
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Functions: []wasm.Function{
			{TypeIdx: 0, Body: []wasm.Instr{
				{Op: wasm.OpI64Const, Imm: 0x100000007},
				{Op: wasm.OpI32WrapI64},
				{Op: wasm.OpI64ExtendUI32},
				{Op: wasm.OpSetGlobal, GlobalIdx: 0},
			}},
		},
		Globals: []wasm.Global{
			{Type: wasm.I64, Mut: wasm.Mutable, Initializer: []wasm.Instr{{Op: wasm.OpI64Const, Imm: 0}}},
		},
		Start: uint32Ptr(0),
	}
	lay, err := buildLayout(m)
	require.NoError(t, err)

	in := runModule(t, m)
	require.Equal(t, uint32(7), in.Mem(lay.globalAddr[0]))
	require.Equal(t, uint32(0), in.Mem(lay.globalAddr[0]+1))
}

func TestTranslateWasiImportCallRoutesThroughRegistry(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{
			{Params: []wasm.ValueType{wasm.I32}}, // 0: print_i32's signature
			{},                                    // 1: start
		},
		Imports: []wasm.Import{
			{Module: "env", Name: "print_i32", Desc: wasm.ImportFunc{TypeIdx: 0}},
		},
		Functions: []wasm.Function{
			{TypeIdx: 1, Body: []wasm.Instr{
				{Op: wasm.OpI32Const, Imm: 77},
				{Op: wasm.OpCall, FuncIdx: 0}, // the import occupies function index 0
			}},
		},
		Start: uint32Ptr(1),
	}
	lay, err := buildLayout(m)
	require.NoError(t, err)

	in := runModule(t, m)
	require.Equal(t, uint32(77), in.Mem(lay.wasiGlobalsAddr["last_printed"]))
}

func TestTranslateUnsupportedInstrIsNotFatal(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Functions: []wasm.Function{
			{TypeIdx: 0, Body: []wasm.Instr{
				{Op: wasm.OpI32Const, Imm: 1},
				{Op: wasm.OpI32Const, Imm: 2},
				{Op: wasm.OpIBinOp, NumOp: wasm.NumRotl},
			}},
		},
		Start: uint32Ptr(0),
	}
	mod, errs := Translate(m)
	require.Nil(t, mod)
	require.Len(t, errs, 1)
	require.Equal(t, UnsupportedInstr, errs[0].Kind)
}

func TestTranslateNoEntryIsFatal(t *testing.T) {
	m := &wasm.Module{}
	mod, errs := Translate(m)
	require.Nil(t, mod)
	require.Len(t, errs, 1)
	require.Equal(t, NoEntry, errs[0].Kind)
}

func TestTranslateIsDeterministic(t *testing.T) {
	m := addTwoConstsModule()
	mod1, errs1 := Translate(m)
	require.Empty(t, errs1)
	mod2, errs2 := Translate(m)
	require.Empty(t, errs2)
	require.Equal(t, masm.Print(mod1), masm.Print(mod2))
}

// TestTranslateStoreAtWasmAddressZeroDoesNotClobberBranchCounter checks
// that a dynamic memory access at the lowest wasm address is offset by
// memBeginning (data.go already does this for data-segment init; every
// runtime load/store path must too, or a Wasm program's own address 0
// would alias the branch counter / globals region).
func TestTranslateStoreAtWasmAddressZeroDoesNotClobberBranchCounter(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Functions: []wasm.Function{
			{TypeIdx: 0, Body: []wasm.Instr{
				{Op: wasm.OpI32Const, Imm: 0},
				{Op: wasm.OpI32Const, Imm: 1234},
				{Op: wasm.OpI32Store},
			}},
		},
		Globals: []wasm.Global{
			{Type: wasm.I32, Mut: wasm.Mutable, Initializer: []wasm.Instr{{Op: wasm.OpI32Const, Imm: 0}}},
		},
		Start: uint32Ptr(0),
	}
	lay, err := buildLayout(m)
	require.NoError(t, err)
	require.Greater(t, lay.memBeginning, uint32(0), "memBeginning must reserve the branch counter and globals")

	in := runModule(t, m)
	require.Equal(t, uint32(0), in.Mem(branchCounterAddr), "a store to wasm address 0 must not clobber the branch counter")
	require.Equal(t, uint32(1234), in.Mem(lay.memBeginning), "wasm address 0 must map to memBeginning, not raw cell 0")
}

// TestTranslateBranchPastLoopDecrementsCounterOnce exercises a br that
// targets a block enclosing a loop: the loop must decrement the branch
// counter as it exits, the same as Block/If's emitFrameExit does,
// otherwise the outer block sees the wrong counter value and the code
// immediately after it is wrongly skipped.
func TestTranslateBranchPastLoopDecrementsCounterOnce(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Functions: []wasm.Function{
			{TypeIdx: 0, Body: []wasm.Instr{
				{Op: wasm.OpBlock, Block: wasm.BlockType{}, Then: []wasm.Instr{
					{Op: wasm.OpLoop, Block: wasm.BlockType{}, Then: []wasm.Instr{
						{Op: wasm.OpBr, BrDepth: 1}, // br past the loop, to the block's end
					}},
				}},
				{Op: wasm.OpI32Const, Imm: 42},
				{Op: wasm.OpSetGlobal, GlobalIdx: 0},
			}},
		},
		Globals: []wasm.Global{
			{Type: wasm.I32, Mut: wasm.Mutable, Initializer: []wasm.Instr{{Op: wasm.OpI32Const, Imm: 0}}},
		},
		Start: uint32Ptr(0),
	}
	lay, err := buildLayout(m)
	require.NoError(t, err)

	in := runModule(t, m)
	require.Equal(t, uint32(42), in.Mem(lay.globalAddr[0]), "code after the block the br targets must still run")
}

// TestTranslateShrSNonNegativeOperand checks that i32.shr_s of a
// non-negative value is a plain unsigned shift, not the
// negative-operand NOT/SHR/NOT identity.
func TestTranslateShrSNonNegativeOperand(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Functions: []wasm.Function{
			{TypeIdx: 0, Body: []wasm.Instr{
				{Op: wasm.OpI32Const, Imm: 0x40000000},
				{Op: wasm.OpI32Const, Imm: 1},
				{Op: wasm.OpIBinOp, NumOp: wasm.NumShrS},
				{Op: wasm.OpSetGlobal, GlobalIdx: 0},
			}},
		},
		Globals: []wasm.Global{
			{Type: wasm.I32, Mut: wasm.Mutable, Initializer: []wasm.Instr{{Op: wasm.OpI32Const, Imm: 0}}},
		},
		Start: uint32Ptr(0),
	}
	lay, err := buildLayout(m)
	require.NoError(t, err)

	in := runModule(t, m)
	require.Equal(t, uint32(0x20000000), in.Mem(lay.globalAddr[0]))
}

// TestTranslateShrSNegativeOperand checks the sign-extending case.
func TestTranslateShrSNegativeOperand(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Functions: []wasm.Function{
			{TypeIdx: 0, Body: []wasm.Instr{
				{Op: wasm.OpI32Const, Imm: -8},
				{Op: wasm.OpI32Const, Imm: 1},
				{Op: wasm.OpIBinOp, NumOp: wasm.NumShrS},
				{Op: wasm.OpSetGlobal, GlobalIdx: 0},
			}},
		},
		Globals: []wasm.Global{
			{Type: wasm.I32, Mut: wasm.Mutable, Initializer: []wasm.Instr{{Op: wasm.OpI32Const, Imm: 0}}},
		},
		Start: uint32Ptr(0),
	}
	lay, err := buildLayout(m)
	require.NoError(t, err)

	in := runModule(t, m)
	require.Equal(t, uint32(int32(-4)), in.Mem(lay.globalAddr[0]))
}

// TestTranslateBranchDropsGarbageBelowResult checks the branch-stack
// cleanup step: operands pushed before a branch's own result payload,
// still sitting beneath it, must be dropped so the physical stack
// matches the target block's arity once control resumes there.
func TestTranslateBranchDropsGarbageBelowResult(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Functions: []wasm.Function{
			{TypeIdx: 0, Body: []wasm.Instr{
				{Op: wasm.OpBlock, Block: wasm.BlockType{Results: []wasm.ValueType{wasm.I32}}, Then: []wasm.Instr{
					{Op: wasm.OpI32Const, Imm: 1}, // garbage, sits below the branch's result
					{Op: wasm.OpI32Const, Imm: 2}, // the branch's result payload
					{Op: wasm.OpBr, BrDepth: 0},
				}},
				{Op: wasm.OpSetGlobal, GlobalIdx: 0},
			}},
		},
		Globals: []wasm.Global{
			{Type: wasm.I32, Mut: wasm.Mutable, Initializer: []wasm.Instr{{Op: wasm.OpI32Const, Imm: 0}}},
		},
		Start: uint32Ptr(0),
	}
	lay, err := buildLayout(m)
	require.NoError(t, err)

	in := runModule(t, m)
	require.Equal(t, uint32(2), in.Mem(lay.globalAddr[0]), "garbage below the branch result must not leak onto the stack")
}
