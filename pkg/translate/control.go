package translate

import (
	"github.com/minz/w2m/pkg/masm"
	"github.com/minz/w2m/pkg/wasm"
)

// mayBranch reports whether an instruction can leave the branch
// counter non-zero when it finishes — i.e. whether everything lexically
// following it in the same block must be wrapped in a continue-guard
// (spec.md §4.4).
func mayBranch(op wasm.Op) bool {
	switch op {
	case wasm.OpBlock, wasm.OpLoop, wasm.OpIf,
		wasm.OpBr, wasm.OpBrIf, wasm.OpBrTable,
		wasm.OpReturn, wasm.OpUnreachable:
		return true
	default:
		return false
	}
}

// loadCounter / storeCounter are the two MASM instructions every
// control-flow helper below is built from.
func loadCounter() masm.Instr {
	return masm.Instr{Op: masm.OpMemLoad, Addr: masm.Some(branchCounterAddr)}
}

func storeCounter() masm.Instr {
	return masm.Instr{Op: masm.OpMemStore, Addr: masm.Some(branchCounterAddr)}
}

// emitFrameExit is the continue-guard state machine evaluated once,
// unconditionally, at the close of every Block/If body (a Loop
// iteration uses its own inline variant, and a function body ends with
// an unconditional counter reset) (spec.md §4.4): counter==0 means nothing
// branched and there is nothing to do; counter==1 means this frame is
// the branch's target, so it is consumed (reset to 0); counter>1 means
// an outer frame is the target, so the signal is decremented and left
// for that frame to observe.
func emitFrameExit() []masm.Instr {
	return []masm.Instr{
		loadCounter(),
		{Op: masm.OpPush, Word: 1},
		{Op: masm.OpIEq},
		{Op: masm.OpIf,
			Then: []masm.Instr{
				{Op: masm.OpPush, Word: 0},
				storeCounter(),
			},
			Else: []masm.Instr{
				loadCounter(),
				{Op: masm.OpPush, Word: 0},
				{Op: masm.OpIEq},
				{Op: masm.OpIf,
					Then: nil, // counter == 0: normal completion, nothing to do
					Else: []masm.Instr{
						loadCounter(),
						{Op: masm.OpPush, Word: 1},
						{Op: masm.OpISub},
						storeCounter(),
					},
				},
			},
		},
	}
}

// lowerSeq translates a straight-line Wasm instruction sequence,
// threading ctx.st through each instruction and recursively guarding
// everything after a potentially-branching one.
func (c *funcCtx) lowerSeq(instrs []wasm.Instr) []masm.Instr {
	if len(instrs) == 0 {
		return nil
	}
	head := c.lowerOne(&instrs[0])
	if c.err != nil {
		return head
	}
	if mayBranch(instrs[0].Op) {
		rest := c.lowerSeqGuarded(instrs[1:])
		return append(head, rest...)
	}
	rest := c.lowerSeq(instrs[1:])
	return append(head, rest...)
}

// lowerSeqGuarded wraps the translation of instrs in `if counter==0`,
// so it only runs when no branch is currently propagating outward.
func (c *funcCtx) lowerSeqGuarded(instrs []wasm.Instr) []masm.Instr {
	if len(instrs) == 0 {
		return nil
	}
	body := c.lowerSeq(instrs)
	return []masm.Instr{
		loadCounter(),
		{Op: masm.OpIEqz},
		{Op: masm.OpIf, Then: body},
	}
}

// lowerBlock translates OpBlock: no MASM wrapper is needed (a Block
// never repeats and is entered unconditionally), just the body
// followed by the shared frame-exit check.
func (c *funcCtx) lowerBlock(instr *wasm.Instr) []masm.Instr {
	if !c.st.hasSuffix(instr.Block.Params) {
		c.fail(ExpectedStack, "block expects %v", instr.Block.Params)
		return nil
	}
	entering := append([]wasm.ValueType(nil), c.st.stack...)
	c.st.pushFrame(Frame{Kind: FrameBlock, FuncIdx: c.funcIdx, Block: instr.Block, EnteringStack: entering})
	body := c.lowerSeq(instr.Then)
	c.st.popFrame()
	return append(body, emitFrameExit()...)
}

// lowerLoop translates OpLoop: the continue-decision runs inside the
// MASM `while` body every iteration, since it is what drives whether
// the loop restarts (spec.md §4.4's loopContinue).
func (c *funcCtx) lowerLoop(instr *wasm.Instr) []masm.Instr {
	if !c.st.hasSuffix(instr.Block.Params) {
		c.fail(ExpectedStack, "loop expects %v", instr.Block.Params)
		return nil
	}
	entering := append([]wasm.ValueType(nil), c.st.stack...)
	c.st.pushFrame(Frame{Kind: FrameLoop, FuncIdx: c.funcIdx, Block: instr.Block, EnteringStack: entering})
	body := c.lowerSeq(instr.Then)
	c.st.popFrame()

	continueDecision := []masm.Instr{
		loadCounter(),
		{Op: masm.OpPush, Word: 1},
		{Op: masm.OpIEq},
		{Op: masm.OpIf,
			// this loop is the branch target: clear the signal and
			// restart (the branch already pushed fresh params).
			Then: []masm.Instr{
				{Op: masm.OpPush, Word: 0},
				storeCounter(),
				{Op: masm.OpPush, Word: 1},
			},
			Else: []masm.Instr{
				loadCounter(),
				{Op: masm.OpPush, Word: 0},
				{Op: masm.OpIEq},
				{Op: masm.OpIf,
					// counter == 0: completed normally, one pass only.
					Then: []masm.Instr{{Op: masm.OpPush, Word: 0}},
					// counter > 1: an outer frame is the real target; this loop
					// frame is exiting too, so it decrements the counter just
					// like emitFrameExit does, then stops looping.
					Else: []masm.Instr{
						loadCounter(),
						{Op: masm.OpPush, Word: 1},
						{Op: masm.OpISub},
						storeCounter(),
						{Op: masm.OpPush, Word: 0},
					},
				},
			},
		},
	}

	whileBody := append(body, continueDecision...)
	return []masm.Instr{
		{Op: masm.OpPush, Word: 1},
		{Op: masm.OpWhile, Body: whileBody},
	}
}

// lowerIf translates OpIf: both arms converge on the same point, so
// the frame-exit check runs once, after the MASM if/else/end.
func (c *funcCtx) lowerIf(instr *wasm.Instr) []masm.Instr {
	cond, ok := c.st.pop(1)
	if !ok || cond[0] != wasm.I32 {
		c.fail(ExpectedStack, "if expects an i32 condition")
		return nil
	}
	if !c.st.hasSuffix(instr.Block.Params) {
		c.fail(ExpectedStack, "if expects %v", instr.Block.Params)
		return nil
	}
	entering := append([]wasm.ValueType(nil), c.st.stack...)

	c.st.pushFrame(Frame{Kind: FrameIf, FuncIdx: c.funcIdx, Block: instr.Block, EnteringStack: entering})
	thenBody := c.lowerSeq(instr.Then)

	c.st.stack = append([]wasm.ValueType(nil), entering...)
	elseBody := c.lowerSeq(instr.Else)

	c.st.popFrame()

	ifInstr := masm.Instr{Op: masm.OpIf, Then: thenBody, Else: elseBody}
	return append([]masm.Instr{ifInstr}, emitFrameExit()...)
}

// branchCleanup computes the drop sequence for the operand-stack
// cleanup step of a branch (spec.md §4.4): anything pushed since the
// target frame was entered, sitting below the branch's own result
// payload, is garbage once the branch is taken and must be discarded
// so the physical stack matches the target's arity when control
// resumes there. A payload too wide for MoveUp to reach past
// (spec.md GLOSSARY's AccessibleStackDepth) is rejected rather than
// silently mistranslated.
func (c *funcCtx) branchCleanup(target *Frame, want []wasm.ValueType) ([]masm.Instr, bool) {
	payloadWidth := cellWidth(want)
	if payloadWidth >= AccessibleStackDepth {
		c.fail(BlockResultTooLarge, "branch result of %d cells exceeds the accessible stack depth", payloadWidth)
		return nil, false
	}
	base := len(target.EnteringStack)
	top := len(c.st.stack) - len(want)
	if top < base {
		c.fail(ExpectedStack, "branch target stack underflow")
		return nil, false
	}
	garbageWidth := cellWidth(c.st.stack[base:top])
	if garbageWidth == 0 {
		return nil, true
	}
	return dropGarbageBelow(garbageWidth, payloadWidth), true
}

// lowerBr translates an unconditional `br`: the branch payload is
// already on top of the stack (computed by preceding instructions), so
// all that remains is to clean up any garbage beneath it and record
// the target depth in the branch counter.
func (c *funcCtx) lowerBr(instr *wasm.Instr) []masm.Instr {
	target, ok := c.st.blockFrame(instr.BrDepth)
	if !ok {
		c.fail(ExpectedStack, "br %d: no such enclosing block", instr.BrDepth)
		return nil
	}
	want := branchTargetType(target)
	if !c.st.hasSuffix(want) {
		c.fail(ExpectedStack, "br %d expects %v on the stack", instr.BrDepth, want)
		return nil
	}
	cleanup, ok := c.branchCleanup(target, want)
	if !ok {
		return nil
	}
	out := append(cleanup, masm.Instr{Op: masm.OpPush, Word: instr.BrDepth + 1})
	return append(out, storeCounter())
}

// lowerBrIf translates a conditional `br`: the i32 condition gates the
// same sequence lowerBr would produce.
func (c *funcCtx) lowerBrIf(instr *wasm.Instr) []masm.Instr {
	cond, ok := c.st.pop(1)
	if !ok || cond[0] != wasm.I32 {
		c.fail(ExpectedStack, "br_if expects an i32 condition")
		return nil
	}
	target, ok := c.st.blockFrame(instr.BrDepth)
	if !ok {
		c.fail(ExpectedStack, "br_if %d: no such enclosing block", instr.BrDepth)
		return nil
	}
	want := branchTargetType(target)
	if !c.st.hasSuffix(want) {
		c.fail(ExpectedStack, "br_if %d expects %v on the stack", instr.BrDepth, want)
		return nil
	}
	cleanup, ok := c.branchCleanup(target, want)
	if !ok {
		return nil
	}
	then := append(append([]masm.Instr(nil), cleanup...),
		masm.Instr{Op: masm.OpPush, Word: instr.BrDepth + 1},
		storeCounter(),
	)
	return []masm.Instr{{Op: masm.OpIf, Then: then}}
}

// lowerBrTable translates `br_table`: a chain of equality checks
// against a duplicated selector, each cleaning up the stack for its
// own target and setting the branch counter to its target depth,
// falling through to the default.
func (c *funcCtx) lowerBrTable(instr *wasm.Instr) []masm.Instr {
	sel, ok := c.st.pop(1)
	if !ok || sel[0] != wasm.I32 {
		c.fail(ExpectedStack, "br_table expects an i32 selector")
		return nil
	}
	allDepths := append(append([]uint32(nil), instr.BrTableTargets...), instr.BrTableDefault)
	actions := make(map[uint32][]masm.Instr, len(allDepths))
	for _, d := range allDepths {
		if _, done := actions[d]; done {
			continue
		}
		target, ok := c.st.blockFrame(d)
		if !ok {
			c.fail(ExpectedStack, "br_table %d: no such enclosing block", d)
			return nil
		}
		want := branchTargetType(target)
		if !c.st.hasSuffix(want) {
			c.fail(ExpectedStack, "br_table %d expects %v on the stack", d, want)
			return nil
		}
		cleanup, ok := c.branchCleanup(target, want)
		if !ok {
			return nil
		}
		// the selector is still sitting under the comparisons; drop it
		// before the cleanup, which assumes the payload is on top.
		action := append([]masm.Instr{{Op: masm.OpDrop}}, cleanup...)
		action = append(action, masm.Instr{Op: masm.OpPush, Word: d + 1}, storeCounter())
		actions[d] = action
	}
	return brTableCase(instr.BrTableTargets, instr.BrTableDefault, 0, actions)
}

func brTableCase(targets []uint32, def uint32, i int, actions map[uint32][]masm.Instr) []masm.Instr {
	if i == len(targets) {
		return actions[def]
	}
	return []masm.Instr{
		{Op: masm.OpDup, K: 0},
		{Op: masm.OpIEq, Cmp: masm.Some(targets[i])},
		{Op: masm.OpIf, Then: actions[targets[i]], Else: brTableCase(targets, def, i+1, actions)},
	}
}

// lowerReturn is equivalent to a `br` past every currently-open
// Block/Loop/If frame, straight to the function's own exit: the
// function's own frame (ctx[0]) has no enclosing stack of its own, so
// its EnteringStack is empty, matching the physical stack once
// emitPrelude has popped every parameter into its local cell.
func (c *funcCtx) lowerReturn() []masm.Instr {
	if !c.st.hasSuffix(c.sig.Results) {
		c.fail(ExpectedStack, "return expects %v", c.sig.Results)
		return nil
	}
	depth := c.st.enclosingBlockDepth()
	cleanup, ok := c.branchCleanup(&c.st.ctx[0], c.sig.Results)
	if !ok {
		return nil
	}
	out := append(cleanup, masm.Instr{Op: masm.OpPush, Word: depth + 1})
	return append(out, storeCounter())
}
