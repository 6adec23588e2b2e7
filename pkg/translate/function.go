package translate

import (
	"fmt"

	"github.com/minz/w2m/pkg/masm"
	"github.com/minz/w2m/pkg/wasm"
)

// funcCtx holds everything needed to translate one defined function's
// body: its signature, its local address map, and the running operand
// stack / control context (spec.md §4.3).
type funcCtx struct {
	m        *wasm.Module
	lay      *layout
	funcIdx  uint32
	sig      *wasm.FuncType
	localTy       []wasm.ValueType // params then declared locals, in index order
	localOff      []int            // localTy[i] -> starting cell within the proc frame
	declaredCells int              // cells occupied by localTy
	nCells        int              // declaredCells + numScratchCells
	st       *state
	elided   map[uint32]bool // function indices with an empty translated body
	err      *Error          // first per-instruction error hit while translating this function; aborts the rest of it
}

func (c *funcCtx) fail(kind ErrorKind, format string, args ...interface{}) {
	if c.err == nil {
		c.err = newErr(kind, int(c.funcIdx), c.st.ctxBreadcrumb(), format, args...)
	}
}

// translateFunction lowers one defined function to a MASM procedure.
// Per spec.md §3's empty-function-elision invariant, a function whose
// body is empty (nothing left to execute, e.g. a Wasm `nop`-only body)
// is not emitted as a procedure; elided is consulted by call sites.
func translateFunction(m *wasm.Module, lay *layout, elided map[uint32]bool, funcIdx uint32) (*masm.Proc, error) {
	fn, ok := m.DefinedFunc(funcIdx)
	if !ok {
		return nil, newErr(BadImport, int(funcIdx), nil, "function %d is not a defined function", funcIdx)
	}
	sig, err := m.FuncType(funcIdx)
	if err != nil {
		return nil, newErr(BadImport, int(funcIdx), nil, "%s", err)
	}

	localTy := append(append([]wasm.ValueType(nil), sig.Params...), fn.Locals...)
	localOff := make([]int, len(localTy))
	cells := 0
	for i, t := range localTy {
		localOff[i] = cells
		cells += t.Size()
	}

	c := &funcCtx{
		m: m, lay: lay, funcIdx: funcIdx, sig: sig,
		localTy: localTy, localOff: localOff, declaredCells: cells, nCells: cells + numScratchCells,
		st: newState(), elided: elided,
	}
	c.st.pushFrame(Frame{Kind: FrameFunction, FuncIdx: funcIdx, Block: wasm.BlockType{Results: sig.Results}})

	prelude := c.emitPrelude()
	body := c.lowerSeq(fn.Body)
	if c.err != nil {
		return nil, c.err
	}
	if len(body) == 0 {
		return nil, nil // elided: nothing to execute
	}

	body = append(body, masm.Instr{Op: masm.OpPush, Word: 0}, masm.Instr{Op: masm.OpMemStore, Addr: masm.Some(branchCounterAddr)})

	full := append(prelude, body...)
	return &masm.Proc{Name: procName(funcIdx), NLocalCells: c.nCells, Body: full}, nil
}

func procName(funcIdx uint32) string { return fmt.Sprintf("f%d", funcIdx) }

// emitPrelude pops the call arguments off the stack into their local
// cells, in reverse parameter order (the last-pushed argument is
// popped first), storing the high cell before the low cell for i64
// locals per the "high word on top" convention (spec.md §4.3).
func (c *funcCtx) emitPrelude() []masm.Instr {
	var out []masm.Instr
	for i := len(c.sig.Params) - 1; i >= 0; i-- {
		cell := c.localOff[i]
		if c.localTy[i] == wasm.I64 {
			out = append(out,
				masm.Instr{Op: masm.OpLocStore, Cell: cell + 1},
				masm.Instr{Op: masm.OpLocStore, Cell: cell},
			)
		} else {
			out = append(out, masm.Instr{Op: masm.OpLocStore, Cell: cell})
		}
	}
	return out
}

// lowerOne dispatches a single Wasm instruction. Control-flow ops
// delegate to control.go; memory ops to memory.go; arithmetic/
// relational/conversion ops to arith.go/convert.go.
func (c *funcCtx) lowerOne(i *wasm.Instr) []masm.Instr {
	if c.err != nil {
		return nil
	}
	switch i.Op {
	case wasm.OpUnreachable:
		return []masm.Instr{{Op: masm.OpPush, Word: 0}, {Op: masm.OpAssert}}
	case wasm.OpNop:
		return nil

	case wasm.OpBlock:
		return c.lowerBlock(i)
	case wasm.OpLoop:
		return c.lowerLoop(i)
	case wasm.OpIf:
		return c.lowerIf(i)
	case wasm.OpBr:
		return c.lowerBr(i)
	case wasm.OpBrIf:
		return c.lowerBrIf(i)
	case wasm.OpBrTable:
		return c.lowerBrTable(i)
	case wasm.OpReturn:
		return c.lowerReturn()
	case wasm.OpCall:
		return c.lowerCall(i)

	case wasm.OpDrop:
		vs, ok := c.st.pop(1)
		if !ok {
			c.fail(EmptyStack, "drop: empty stack")
			return nil
		}
		return dropWidth(vs[0].Size())

	case wasm.OpSelect:
		return c.lowerSelect()

	case wasm.OpGetLocal:
		return c.lowerGetLocal(i.LocalIdx)
	case wasm.OpSetLocal:
		return c.lowerSetLocal(i.LocalIdx)
	case wasm.OpTeeLocal:
		return c.lowerTeeLocal(i.LocalIdx)
	case wasm.OpGetGlobal:
		return c.lowerGetGlobal(i.GlobalIdx)
	case wasm.OpSetGlobal:
		return c.lowerSetGlobal(i.GlobalIdx)

	case wasm.OpI32Const:
		c.st.push(wasm.I32)
		return []masm.Instr{{Op: masm.OpPush, Word: uint32(int32(i.Imm))}}
	case wasm.OpI64Const:
		c.st.push(wasm.I64)
		lo, hi := splitI64(i.Imm)
		return []masm.Instr{{Op: masm.OpPush, Word: lo}, {Op: masm.OpPush, Word: hi}}

	case wasm.OpI32Load, wasm.OpI64Load,
		wasm.OpI32Load8S, wasm.OpI32Load8U, wasm.OpI32Load16S, wasm.OpI32Load16U,
		wasm.OpI64Load8S, wasm.OpI64Load8U, wasm.OpI64Load16S, wasm.OpI64Load16U,
		wasm.OpI64Load32S, wasm.OpI64Load32U:
		return c.lowerLoad(i)
	case wasm.OpI32Store, wasm.OpI64Store, wasm.OpI32Store8, wasm.OpI32Store16,
		wasm.OpI64Store8, wasm.OpI64Store16, wasm.OpI64Store32:
		return c.lowerStore(i)

	case wasm.OpI32Eqz:
		return c.lowerEqz(false)
	case wasm.OpI64Eqz:
		return c.lowerEqz(true)

	case wasm.OpIBinOp:
		return c.lowerBinOp(i)
	case wasm.OpIRelOp:
		return c.lowerRelOp(i)

	case wasm.OpI32WrapI64:
		return c.lowerWrap()
	case wasm.OpI64ExtendUI32:
		return c.lowerExtend(false)
	case wasm.OpI64ExtendSI32:
		return c.lowerExtend(true)

	default:
		c.fail(UnsupportedInstr, "opcode %d", i.Op)
		return nil
	}
}

func splitI64(v int64) (lo, hi uint32) {
	u := uint64(v)
	return uint32(u), uint32(u >> 32)
}

// dropWidth discards a value occupying w cells from the top of the
// physical stack.
func dropWidth(w int) []masm.Instr {
	out := make([]masm.Instr, w)
	for i := range out {
		out[i] = masm.Instr{Op: masm.OpDrop}
	}
	return out
}

// dropOneSlot removes exactly one garbage cell sitting directly
// beneath a payload of the given width, preserving the payload's
// relative order (spec.md §4.4's branch-stack-cleanup idiom).
func dropOneSlot(payloadWidth int) []masm.Instr {
	switch payloadWidth {
	case 0:
		return []masm.Instr{{Op: masm.OpDrop}}
	case 1:
		return []masm.Instr{{Op: masm.OpSwap, K: 1}, {Op: masm.OpDrop}}
	default:
		return []masm.Instr{{Op: masm.OpMoveUp, K: payloadWidth}, {Op: masm.OpDrop}}
	}
}

// dropGarbageBelow removes garbageWidth cells sitting directly beneath
// a payload of payloadWidth cells, one cell at a time.
func dropGarbageBelow(garbageWidth, payloadWidth int) []masm.Instr {
	var out []masm.Instr
	for i := 0; i < garbageWidth; i++ {
		out = append(out, dropOneSlot(payloadWidth)...)
	}
	return out
}

func (c *funcCtx) lowerSelect() []masm.Instr {
	cond, ok := c.st.pop(1)
	if !ok || cond[0] != wasm.I32 {
		c.fail(ExpectedStack, "select expects an i32 condition")
		return nil
	}
	vs, ok := c.st.pop(2)
	if !ok || vs[0] != vs[1] {
		c.fail(ExpectedStack, "select expects two matching operands")
		return nil
	}
	c.st.push(vs[1])
	w := vs[0].Size()
	// stack on entry (top to bottom): cond, val2, val1. cond != 0 keeps
	// val1 (directly below val2, so just drop val2); cond == 0 keeps
	// val2 (sitting above val1, so val1 must be dropped out from under it).
	keepVal1 := dropWidth(w)
	keepVal2 := dropGarbageBelow(w, w)
	return []masm.Instr{{Op: masm.OpIf, Then: keepVal1, Else: keepVal2}}
}

func (c *funcCtx) localCell(idx uint32) (int, wasm.ValueType, bool) {
	if int(idx) >= len(c.localTy) {
		return 0, 0, false
	}
	return c.localOff[idx], c.localTy[idx], true
}

func (c *funcCtx) lowerGetLocal(idx uint32) []masm.Instr {
	cell, ty, ok := c.localCell(idx)
	if !ok {
		c.fail(ExpectedStack, "get_local %d: no such local", idx)
		return nil
	}
	c.st.push(ty)
	if ty == wasm.I64 {
		return []masm.Instr{{Op: masm.OpLocLoad, Cell: cell}, {Op: masm.OpLocLoad, Cell: cell + 1}}
	}
	return []masm.Instr{{Op: masm.OpLocLoad, Cell: cell}}
}

func (c *funcCtx) lowerSetLocal(idx uint32) []masm.Instr {
	cell, ty, ok := c.localCell(idx)
	if !ok {
		c.fail(ExpectedStack, "set_local %d: no such local", idx)
		return nil
	}
	vs, ok := c.st.pop(1)
	if !ok || vs[0] != ty {
		c.fail(ExpectedStack, "set_local %d: expected %s", idx, ty)
		return nil
	}
	if ty == wasm.I64 {
		return []masm.Instr{{Op: masm.OpLocStore, Cell: cell + 1}, {Op: masm.OpLocStore, Cell: cell}}
	}
	return []masm.Instr{{Op: masm.OpLocStore, Cell: cell}}
}

func (c *funcCtx) lowerTeeLocal(idx uint32) []masm.Instr {
	cell, ty, ok := c.localCell(idx)
	if !ok {
		c.fail(ExpectedStack, "tee_local %d: no such local", idx)
		return nil
	}
	if !c.st.hasSuffix([]wasm.ValueType{ty}) {
		c.fail(ExpectedStack, "tee_local %d: expected %s", idx, ty)
		return nil
	}
	// tee keeps the value on the operand stack: duplicate, then store the copy.
	if ty == wasm.I64 {
		return []masm.Instr{
			{Op: masm.OpDup, K: 1}, {Op: masm.OpDup, K: 1},
			{Op: masm.OpLocStore, Cell: cell + 1}, {Op: masm.OpLocStore, Cell: cell},
		}
	}
	return []masm.Instr{{Op: masm.OpDup, K: 0}, {Op: masm.OpLocStore, Cell: cell}}
}

func (c *funcCtx) lowerGetGlobal(idx uint32) []masm.Instr {
	if int(idx) >= len(c.lay.globalAddr) {
		c.fail(BadNamedGlobalRef, "get_global %d: no such global", idx)
		return nil
	}
	ty := c.m.Globals[idx].Type
	addr := c.lay.globalAddr[idx]
	c.st.push(ty)
	if ty == wasm.I64 {
		return []masm.Instr{{Op: masm.OpMemLoad, Addr: masm.Some(addr)}, {Op: masm.OpMemLoad, Addr: masm.Some(addr + 1)}}
	}
	return []masm.Instr{{Op: masm.OpMemLoad, Addr: masm.Some(addr)}}
}

func (c *funcCtx) lowerSetGlobal(idx uint32) []masm.Instr {
	if int(idx) >= len(c.lay.globalAddr) {
		c.fail(BadNamedGlobalRef, "set_global %d: no such global", idx)
		return nil
	}
	ty := c.m.Globals[idx].Type
	addr := c.lay.globalAddr[idx]
	vs, ok := c.st.pop(1)
	if !ok || vs[0] != ty {
		c.fail(ExpectedStack, "set_global %d: expected %s", idx, ty)
		return nil
	}
	if ty == wasm.I64 {
		return []masm.Instr{{Op: masm.OpMemStore, Addr: masm.Some(addr + 1)}, {Op: masm.OpMemStore, Addr: masm.Some(addr)}}
	}
	return []masm.Instr{{Op: masm.OpMemStore, Addr: masm.Some(addr)}}
}

// lowerCall dispatches to an imported WASI method or a defined
// function, accounting for empty-function elision (spec.md §3): a call
// to an elided function just drops its arguments with no result push.
func (c *funcCtx) lowerCall(i *wasm.Instr) []masm.Instr {
	sig, err := c.m.FuncType(i.FuncIdx)
	if err != nil {
		c.fail(BadImport, "%s", err)
		return nil
	}
	if !c.st.hasSuffix(sig.Params) {
		c.fail(ExpectedStack, "call %d expects %v", i.FuncIdx, sig.Params)
		return nil
	}
	c.st.pop(len(sig.Params))
	c.st.pushAll(sig.Results)

	if imp, ok := c.m.IsImportedFunc(i.FuncIdx); ok {
		return c.lowerWasiCall(imp, sig)
	}
	if c.elided[i.FuncIdx] {
		var out []masm.Instr
		for _, p := range sig.Params {
			out = append(out, dropWidth(p.Size())...)
		}
		return out
	}
	return []masm.Instr{{Op: masm.OpExec, Name: procName(i.FuncIdx)}}
}
