// Package interp is the MASM reference interpreter spec.md §9 calls
// for: a way to check the translator's output without invoking Miden
// itself. It is grounded on the teacher's pkg/mir/interpreter.go
// struct-based fetch/execute loop, adapted from MIR's flat register
// file to MASM's stack machine: one shared operand stack, word-
// addressed memory, and a per-call frame of local cells.
package interp

import (
	"fmt"

	"github.com/minz/w2m/pkg/masm"
)

// Interp executes a MASM module. It is a reference model, not a
// performance-minded implementation: maxSteps guards against an
// infinite `while.true` the same way the teacher's interpreter guards
// MIR execution with maxIterations.
type Interp struct {
	mem       map[uint32]uint32
	stack     []uint32
	procs     map[string]*masm.Proc
	maxSteps  int
	steps     int
}

// New builds an interpreter for mod, ready to Run its Program.
func New(mod *masm.Module) *Interp {
	procs := make(map[string]*masm.Proc, len(mod.Procedures))
	for i := range mod.Procedures {
		procs[mod.Procedures[i].Name] = &mod.Procedures[i]
	}
	return &Interp{
		mem:      make(map[uint32]uint32),
		procs:    procs,
		maxSteps: 10_000_000,
	}
}

// Stack returns the final operand stack, bottom first.
func (in *Interp) Stack() []uint32 { return append([]uint32(nil), in.stack...) }

// Mem reads one memory cell (zero if never written).
func (in *Interp) Mem(addr uint32) uint32 { return in.mem[addr] }

// Run executes mod's top-level Program with an empty locals frame.
func (in *Interp) Run(mod *masm.Module) error {
	return in.exec(mod.Program, nil)
}

func (in *Interp) push(v uint32) { in.stack = append(in.stack, v) }

func (in *Interp) pop() (uint32, error) {
	if len(in.stack) == 0 {
		return 0, fmt.Errorf("interp: pop from empty stack")
	}
	v := in.stack[len(in.stack)-1]
	in.stack = in.stack[:len(in.stack)-1]
	return v, nil
}

// peek returns the value k cells below the top (k=0 is the top itself).
func (in *Interp) peek(k int) (uint32, error) {
	idx := len(in.stack) - 1 - k
	if idx < 0 {
		return 0, fmt.Errorf("interp: stack depth %d exceeds height %d", k, len(in.stack))
	}
	return in.stack[idx], nil
}

func (in *Interp) pop64() (uint64, error) {
	hi, err := in.pop()
	if err != nil {
		return 0, err
	}
	lo, err := in.pop()
	if err != nil {
		return 0, err
	}
	return uint64(hi)<<32 | uint64(lo), nil
}

func (in *Interp) push64(v uint64) {
	in.push(uint32(v))
	in.push(uint32(v >> 32))
}

func (in *Interp) resolveAddr(a masm.Addr) (uint32, error) {
	if a.HasValue {
		return a.Value, nil
	}
	return in.pop()
}

// exec runs a straight-line instruction sequence against the current
// locals frame, short-circuiting on the first error (a trap or a
// malformed program).
func (in *Interp) exec(body []masm.Instr, locals []uint32) error {
	for i := range body {
		if err := in.step(&body[i], locals); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interp) step(inst *masm.Instr, locals []uint32) error {
	in.steps++
	if in.steps > in.maxSteps {
		return fmt.Errorf("interp: exceeded %d steps, probable infinite loop", in.maxSteps)
	}

	switch inst.Op {
	case masm.OpPush:
		in.push(inst.Word)
		return nil
	case masm.OpDrop:
		_, err := in.pop()
		return err
	case masm.OpDup:
		v, err := in.peek(inst.K)
		if err != nil {
			return err
		}
		in.push(v)
		return nil
	case masm.OpSwap:
		return in.swap(inst.K)
	case masm.OpMoveUp:
		return in.moveUp(inst.K)

	case masm.OpMemLoad:
		addr, err := in.resolveAddr(inst.Addr)
		if err != nil {
			return err
		}
		in.push(in.mem[addr])
		return nil
	case masm.OpMemStore:
		addr, err := in.resolveAddr(inst.Addr)
		if err != nil {
			return err
		}
		v, err := in.pop()
		if err != nil {
			return err
		}
		in.mem[addr] = v
		return nil

	case masm.OpLocLoad:
		if inst.Cell < 0 || inst.Cell >= len(locals) {
			return fmt.Errorf("interp: local cell %d out of range (frame has %d)", inst.Cell, len(locals))
		}
		in.push(locals[inst.Cell])
		return nil
	case masm.OpLocStore:
		if inst.Cell < 0 || inst.Cell >= len(locals) {
			return fmt.Errorf("interp: local cell %d out of range (frame has %d)", inst.Cell, len(locals))
		}
		v, err := in.pop()
		if err != nil {
			return err
		}
		locals[inst.Cell] = v
		return nil

	case masm.OpExec:
		proc, ok := in.procs[inst.Name]
		if !ok {
			return fmt.Errorf("interp: call to undefined procedure %q", inst.Name)
		}
		frame := make([]uint32, proc.NLocalCells)
		return in.exec(proc.Body, frame)

	case masm.OpIf:
		cond, err := in.pop()
		if err != nil {
			return err
		}
		if cond != 0 {
			return in.exec(inst.Then, locals)
		}
		return in.exec(inst.Else, locals)

	case masm.OpWhile:
		for {
			cond, err := in.pop()
			if err != nil {
				return err
			}
			if cond == 0 {
				return nil
			}
			if err := in.exec(inst.Body, locals); err != nil {
				return err
			}
		}

	case masm.OpIAdd, masm.OpISub, masm.OpIMul, masm.OpIDiv, masm.OpIMod,
		masm.OpIAnd, masm.OpIOr, masm.OpIXor, masm.OpIShL, masm.OpIShR:
		return in.binOp32(inst.Op)
	case masm.OpINot:
		v, err := in.pop()
		if err != nil {
			return err
		}
		in.push(^v)
		return nil
	case masm.OpIDivMod:
		return in.divMod32(inst.Cmp)

	case masm.OpIEq, masm.OpINeq, masm.OpILt, masm.OpIGt, masm.OpILte, masm.OpIGte:
		return in.relOp32(inst.Op, inst.Cmp)
	case masm.OpIEqz:
		v, err := in.pop()
		if err != nil {
			return err
		}
		in.push(boolWord(v == 0))
		return nil

	case masm.OpIAdd64, masm.OpISub64, masm.OpIMul64, masm.OpIAnd64, masm.OpIOr64,
		masm.OpIXor64, masm.OpIShL64, masm.OpIShR64:
		return in.binOp64(inst.Op)
	case masm.OpIEq64, masm.OpINeq64, masm.OpILt64, masm.OpIGt64, masm.OpILte64, masm.OpIGte64:
		return in.relOp64(inst.Op)
	case masm.OpIEqz64:
		v, err := in.pop64()
		if err != nil {
			return err
		}
		in.push(boolWord(v == 0))
		return nil

	case masm.OpCDrop:
		cond, err := in.pop()
		if err != nil {
			return err
		}
		v2, err := in.pop()
		if err != nil {
			return err
		}
		v1, err := in.pop()
		if err != nil {
			return err
		}
		if cond != 0 {
			in.push(v1)
		} else {
			in.push(v2)
		}
		return nil

	case masm.OpAssert:
		v, err := in.pop()
		if err != nil {
			return err
		}
		if v == 0 {
			return fmt.Errorf("interp: assertion failed (trap)")
		}
		return nil

	default:
		return fmt.Errorf("interp: unknown opcode %d", inst.Op)
	}
}

// swap exchanges the top of stack with the element k cells below it.
func (in *Interp) swap(k int) error {
	top := len(in.stack) - 1
	other := top - k
	if other < 0 {
		return fmt.Errorf("interp: swap.%d exceeds stack height", k)
	}
	in.stack[top], in.stack[other] = in.stack[other], in.stack[top]
	return nil
}

// moveUp removes the element k cells below the top and pushes it back
// on top, shifting the intervening elements down by one.
func (in *Interp) moveUp(k int) error {
	idx := len(in.stack) - 1 - k
	if idx < 0 {
		return fmt.Errorf("interp: moveup.%d exceeds stack height", k)
	}
	v := in.stack[idx]
	in.stack = append(in.stack[:idx], in.stack[idx+1:]...)
	in.push(v)
	return nil
}

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// binOp32 implements the "a OP b" convention: a was pushed first (now
// deeper), b second (now on top).
func (in *Interp) binOp32(op masm.Op) error {
	b, err := in.pop()
	if err != nil {
		return err
	}
	a, err := in.pop()
	if err != nil {
		return err
	}
	switch op {
	case masm.OpIAdd:
		in.push(a + b)
	case masm.OpISub:
		in.push(a - b)
	case masm.OpIMul:
		in.push(a * b)
	case masm.OpIDiv:
		if b == 0 {
			return fmt.Errorf("interp: division by zero")
		}
		in.push(a / b)
	case masm.OpIMod:
		if b == 0 {
			return fmt.Errorf("interp: modulo by zero")
		}
		in.push(a % b)
	case masm.OpIAnd:
		in.push(a & b)
	case masm.OpIOr:
		in.push(a | b)
	case masm.OpIXor:
		in.push(a ^ b)
	case masm.OpIShL:
		in.push(a << (b & 31))
	case masm.OpIShR:
		in.push(a >> (b & 31))
	}
	return nil
}

// divMod32 pushes quotient then remainder (remainder ends on top),
// using the immediate divisor if Cmp carries one.
func (in *Interp) divMod32(d masm.Addr) error {
	var a, b uint32
	var err error
	if d.HasValue {
		b = d.Value
		a, err = in.pop()
		if err != nil {
			return err
		}
	} else {
		b, err = in.pop()
		if err != nil {
			return err
		}
		a, err = in.pop()
		if err != nil {
			return err
		}
	}
	if b == 0 {
		return fmt.Errorf("interp: division by zero")
	}
	in.push(a / b)
	in.push(a % b)
	return nil
}

// relOp32 compares the popped operand against an immediate (Cmp) when
// present, otherwise against the next operand below it on the stack.
func (in *Interp) relOp32(op masm.Op, cmp masm.Addr) error {
	var a, b uint32
	var err error
	if cmp.HasValue {
		b = cmp.Value
		a, err = in.pop()
		if err != nil {
			return err
		}
	} else {
		b, err = in.pop()
		if err != nil {
			return err
		}
		a, err = in.pop()
		if err != nil {
			return err
		}
	}
	switch op {
	case masm.OpIEq:
		in.push(boolWord(a == b))
	case masm.OpINeq:
		in.push(boolWord(a != b))
	case masm.OpILt:
		in.push(boolWord(a < b))
	case masm.OpIGt:
		in.push(boolWord(a > b))
	case masm.OpILte:
		in.push(boolWord(a <= b))
	case masm.OpIGte:
		in.push(boolWord(a >= b))
	}
	return nil
}

func (in *Interp) binOp64(op masm.Op) error {
	b, err := in.pop64()
	if err != nil {
		return err
	}
	a, err := in.pop64()
	if err != nil {
		return err
	}
	switch op {
	case masm.OpIAdd64:
		in.push64(a + b)
	case masm.OpISub64:
		in.push64(a - b)
	case masm.OpIMul64:
		in.push64(a * b)
	case masm.OpIAnd64:
		in.push64(a & b)
	case masm.OpIOr64:
		in.push64(a | b)
	case masm.OpIXor64:
		in.push64(a ^ b)
	case masm.OpIShL64:
		in.push64(a << (b & 63))
	case masm.OpIShR64:
		in.push64(a >> (b & 63))
	}
	return nil
}

func (in *Interp) relOp64(op masm.Op) error {
	b, err := in.pop64()
	if err != nil {
		return err
	}
	a, err := in.pop64()
	if err != nil {
		return err
	}
	var r bool
	switch op {
	case masm.OpIEq64:
		r = a == b
	case masm.OpINeq64:
		r = a != b
	case masm.OpILt64:
		r = a < b
	case masm.OpIGt64:
		r = a > b
	case masm.OpILte64:
		r = a <= b
	case masm.OpIGte64:
		r = a >= b
	}
	in.push(boolWord(r))
	return nil
}
