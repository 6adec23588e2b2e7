package translate

import (
	"fmt"

	"github.com/minz/w2m/pkg/wasm"
)

// AccessibleStackDepth is the MASM-enforced maximum operand a
// Dup/Swap/MoveUp may address (spec.md GLOSSARY).
const AccessibleStackDepth = 16

// FrameKind is the kind of an entry on the control-context stack.
type FrameKind int

const (
	FrameFunction FrameKind = iota
	FrameBlock
	FrameLoop
	FrameIf
	FrameGlobalsInit
	FrameDatasInit
	FrameImport
)

func (k FrameKind) String() string {
	switch k {
	case FrameFunction:
		return "function"
	case FrameBlock:
		return "block"
	case FrameLoop:
		return "loop"
	case FrameIf:
		return "if"
	case FrameGlobalsInit:
		return "globals-init"
	case FrameDatasInit:
		return "datas-init"
	case FrameImport:
		return "import"
	default:
		return "?"
	}
}

// Frame is one entry of the control-context stack (spec.md §3).
type Frame struct {
	Kind          FrameKind
	FuncIdx       uint32
	Block         wasm.BlockType
	EnteringStack []wasm.ValueType // operand stack snapshot on entry, for Block/Loop/If
}

// state is the per-translation mutable state threaded through
// lowerSeq: a symbolic operand-stack type list and a control-context
// stack (a frame is pushed on entry and popped on exit) (spec.md §3, §5).
type state struct {
	stack []wasm.ValueType // stack[len-1] is the top
	ctx   []Frame
}

func newState() *state {
	return &state{}
}

func (s *state) push(v wasm.ValueType) { s.stack = append(s.stack, v) }

func (s *state) pushAll(vs []wasm.ValueType) {
	s.stack = append(s.stack, vs...)
}

// pop removes and returns the top n values, in original (bottom-to-top) order.
func (s *state) pop(n int) ([]wasm.ValueType, bool) {
	if len(s.stack) < n {
		return nil, false
	}
	at := len(s.stack) - n
	out := append([]wasm.ValueType(nil), s.stack[at:]...)
	s.stack = s.stack[:at]
	return out, true
}

// hasSuffix reports whether the top len(params) stack slots equal
// params in push order (params[len-1] is the topmost operand) — the
// "operandStack has params as its prefix" check of spec.md §3.
func (s *state) hasSuffix(params []wasm.ValueType) bool {
	if len(s.stack) < len(params) {
		return false
	}
	at := len(s.stack) - len(params)
	for i, p := range params {
		if s.stack[at+i] != p {
			return false
		}
	}
	return true
}

// ctxBreadcrumb renders the active control context for error reporting.
func (s *state) ctxBreadcrumb() []string {
	out := make([]string, len(s.ctx))
	for i, f := range s.ctx {
		if f.Kind == FrameFunction {
			out[i] = fmt.Sprintf("function#%d", f.FuncIdx)
		} else {
			out[i] = f.Kind.String()
		}
	}
	return out
}

// pushFrame enters a new control-context frame.
func (s *state) pushFrame(f Frame) { s.ctx = append(s.ctx, f) }

// popFrame exits the innermost control-context frame.
func (s *state) popFrame() {
	s.ctx = s.ctx[:len(s.ctx)-1]
}

// blockFrame resolves a `br`/`br_if` depth n to the n-th enclosing
// Block/Loop/If frame, counting from the innermost (n=0).
func (s *state) blockFrame(n uint32) (*Frame, bool) {
	idx := 0
	for i := len(s.ctx) - 1; i >= 0; i-- {
		f := &s.ctx[i]
		if f.Kind != FrameBlock && f.Kind != FrameLoop && f.Kind != FrameIf {
			continue
		}
		if uint32(idx) == n {
			return f, true
		}
		idx++
	}
	return nil, false
}

// enclosingBlockDepth counts the Block/Loop/If frames currently open
// — the depth a `return` is equivalent to branching past (spec.md §4.4).
func (s *state) enclosingBlockDepth() uint32 {
	n := uint32(0)
	for _, f := range s.ctx {
		if f.Kind == FrameBlock || f.Kind == FrameLoop || f.Kind == FrameIf {
			n++
		}
	}
	return n
}

// cellWidth returns the number of 32-bit MASM cells a Wasm value list
// occupies (1 per i32, 2 per i64).
func cellWidth(vs []wasm.ValueType) int {
	w := 0
	for _, v := range vs {
		w += v.Size()
	}
	return w
}

// branchTargetType returns the result type a `br` to this frame must
// leave on the stack: a Loop branches to its *parameter* type (the
// loop restarts), a Block/If branches to its *result* type (spec.md §4.4).
func branchTargetType(f *Frame) []wasm.ValueType {
	if f.Kind == FrameLoop {
		return f.Block.Params
	}
	return f.Block.Results
}
