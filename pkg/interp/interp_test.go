package interp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/minz/w2m/pkg/masm"
)

func run(t *testing.T, body []masm.Instr) *Interp {
	t.Helper()
	mod := &masm.Module{Program: body}
	in := New(mod)
	require.NoError(t, in.Run(mod))
	return in
}

func TestPushAddLeavesSum(t *testing.T) {
	in := run(t, []masm.Instr{
		{Op: masm.OpPush, Word: 2},
		{Op: masm.OpPush, Word: 3},
		{Op: masm.OpIAdd},
	})
	require.Equal(t, []uint32{5}, in.Stack())
}

func TestSubIsOrderSensitive(t *testing.T) {
	// a=10 pushed first (deeper), b=3 pushed second (top): a - b = 7.
	in := run(t, []masm.Instr{
		{Op: masm.OpPush, Word: 10},
		{Op: masm.OpPush, Word: 3},
		{Op: masm.OpISub},
	})
	require.Equal(t, []uint32{7}, in.Stack())
}

func TestDivByZeroTraps(t *testing.T) {
	mod := &masm.Module{Program: []masm.Instr{
		{Op: masm.OpPush, Word: 1},
		{Op: masm.OpPush, Word: 0},
		{Op: masm.OpIDiv},
	}}
	in := New(mod)
	require.Error(t, in.Run(mod))
}

func TestDivModPushesQuotientThenRemainder(t *testing.T) {
	in := run(t, []masm.Instr{
		{Op: masm.OpPush, Word: 17},
		{Op: masm.OpPush, Word: 5},
		{Op: masm.OpIDivMod},
	})
	require.Equal(t, []uint32{3, 2}, in.Stack()) // quotient 3, remainder 2 on top
}

func TestDivModWithImmediateDivisor(t *testing.T) {
	in := run(t, []masm.Instr{
		{Op: masm.OpPush, Word: 17},
		{Op: masm.OpIDivMod, Cmp: masm.Some(5)},
	})
	require.Equal(t, []uint32{3, 2}, in.Stack())
}

func TestRelOpWithImmediateComparand(t *testing.T) {
	in := run(t, []masm.Instr{
		{Op: masm.OpPush, Word: 9},
		{Op: masm.OpIEq, Cmp: masm.Some(9)},
	})
	require.Equal(t, []uint32{1}, in.Stack())
}

func TestCDropSelectsByCondition(t *testing.T) {
	// stack before CDrop (top to bottom): cond, v2, v1
	in := run(t, []masm.Instr{
		{Op: masm.OpPush, Word: 111}, // v1
		{Op: masm.OpPush, Word: 222}, // v2
		{Op: masm.OpPush, Word: 1},   // cond (true)
		{Op: masm.OpCDrop},
	})
	require.Equal(t, []uint32{111}, in.Stack())

	in2 := run(t, []masm.Instr{
		{Op: masm.OpPush, Word: 111},
		{Op: masm.OpPush, Word: 222},
		{Op: masm.OpPush, Word: 0}, // cond (false)
		{Op: masm.OpCDrop},
	})
	require.Equal(t, []uint32{222}, in2.Stack())
}

func TestSwapAndMoveUp(t *testing.T) {
	in := run(t, []masm.Instr{
		{Op: masm.OpPush, Word: 1},
		{Op: masm.OpPush, Word: 2},
		{Op: masm.OpPush, Word: 3},
		{Op: masm.OpSwap, K: 2}, // swap top (3) with depth-2 element (1)
	})
	require.Equal(t, []uint32{3, 2, 1}, in.Stack())

	in2 := run(t, []masm.Instr{
		{Op: masm.OpPush, Word: 1},
		{Op: masm.OpPush, Word: 2},
		{Op: masm.OpPush, Word: 3},
		{Op: masm.OpMoveUp, K: 2}, // move the bottom element (1) to the top
	})
	require.Equal(t, []uint32{2, 3, 1}, in2.Stack())
}

func Test64BitArithSpansTwoCells(t *testing.T) {
	// push lo then hi for each operand, per the [hi(top), lo] convention.
	in := run(t, []masm.Instr{
		{Op: masm.OpPush, Word: 0xFFFFFFFF}, {Op: masm.OpPush, Word: 0}, // lo=max32, hi=0
		{Op: masm.OpPush, Word: 1}, {Op: masm.OpPush, Word: 0}, // lo=1, hi=0
		{Op: masm.OpIAdd64},
	})
	require.Equal(t, []uint32{0, 1}, in.Stack()) // lo=0, hi=1 on top (carried)
}

func TestWhileLoopCountsDown(t *testing.T) {
	// locals[0] starts at 3; loop decrements until zero, leaving 0 on the stack.
	mod := &masm.Module{
		Procedures: []masm.Proc{{
			Name:        "count",
			NLocalCells: 1,
			Body: []masm.Instr{
				{Op: masm.OpPush, Word: 3},
				{Op: masm.OpLocStore, Cell: 0},
				{Op: masm.OpPush, Word: 1}, // enter the loop once
				{Op: masm.OpWhile, Body: []masm.Instr{
					{Op: masm.OpLocLoad, Cell: 0},
					{Op: masm.OpPush, Word: 1},
					{Op: masm.OpISub},
					{Op: masm.OpLocStore, Cell: 0},
					{Op: masm.OpLocLoad, Cell: 0},
					{Op: masm.OpIEqz},
					{Op: masm.OpPush, Word: 1},
					{Op: masm.OpIXor}, // continue while not zero
				}},
				{Op: masm.OpLocLoad, Cell: 0},
			},
		}},
		Program: []masm.Instr{{Op: masm.OpExec, Name: "count"}},
	}
	in := New(mod)
	require.NoError(t, in.Run(mod))
	require.Equal(t, []uint32{0}, in.Stack())
}

func TestExecAllocatesFreshLocalsFrame(t *testing.T) {
	mod := &masm.Module{
		Procedures: []masm.Proc{{
			Name:        "addone",
			NLocalCells: 1,
			Body: []masm.Instr{
				{Op: masm.OpLocStore, Cell: 0},
				{Op: masm.OpLocLoad, Cell: 0},
				{Op: masm.OpPush, Word: 1},
				{Op: masm.OpIAdd},
			},
		}},
		Program: []masm.Instr{
			{Op: masm.OpPush, Word: 41},
			{Op: masm.OpExec, Name: "addone"},
		},
	}
	in := New(mod)
	require.NoError(t, in.Run(mod))
	require.Equal(t, []uint32{42}, in.Stack())
}

func TestAssertTrapsOnZero(t *testing.T) {
	mod := &masm.Module{Program: []masm.Instr{
		{Op: masm.OpPush, Word: 0},
		{Op: masm.OpAssert},
	}}
	in := New(mod)
	require.Error(t, in.Run(mod))
}

func TestMemLoadStoreRoundTrip(t *testing.T) {
	in := run(t, []masm.Instr{
		{Op: masm.OpPush, Word: 99},
		{Op: masm.OpMemStore, Addr: masm.Some(4)},
		{Op: masm.OpMemLoad, Addr: masm.Some(4)},
	})
	require.Equal(t, []uint32{99}, in.Stack())
	require.Equal(t, uint32(99), in.Mem(4))
	require.Equal(t, uint32(0), in.Mem(5))
}

func TestCallToUndefinedProcedureErrors(t *testing.T) {
	mod := &masm.Module{Program: []masm.Instr{{Op: masm.OpExec, Name: "nope"}}}
	in := New(mod)
	require.Error(t, in.Run(mod))
}
