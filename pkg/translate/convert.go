package translate

import (
	"github.com/minz/w2m/pkg/masm"
	"github.com/minz/w2m/pkg/wasm"
)

// lowerWrap translates i32.wrap_i64: the i64 value's high cell is
// simply dropped, leaving its low 32 bits as the i32 result.
func (c *funcCtx) lowerWrap() []masm.Instr {
	vs, ok := c.st.pop(1)
	if !ok || vs[0] != wasm.I64 {
		c.fail(ExpectedStack, "i32.wrap_i64 expects i64")
		return nil
	}
	c.st.push(wasm.I32)
	return []masm.Instr{{Op: masm.OpDrop}}
}

// lowerExtend translates i64.extend_u_i32 / i64.extend_s_i32.
func (c *funcCtx) lowerExtend(signed bool) []masm.Instr {
	vs, ok := c.st.pop(1)
	if !ok || vs[0] != wasm.I32 {
		c.fail(ExpectedStack, "i64.extend expects i32")
		return nil
	}
	c.st.push(wasm.I64)
	return extendHiFromLo(signed)
}
