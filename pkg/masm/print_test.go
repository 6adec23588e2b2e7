package masm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrintBasicInstrs(t *testing.T) {
	m := &Module{
		Procedures: []Proc{
			{
				Name:        "fn0",
				NLocalCells: 2,
				Body: []Instr{
					{Op: OpPush, Word: 41},
					{Op: OpPush, Word: 1},
					{Op: OpIAdd},
					{Op: OpLocStore, Cell: 0},
				},
			},
		},
		Program: []Instr{{Op: OpExec, Name: "fn0"}},
	}
	out := Print(m)
	require.Contains(t, out, "proc.fn0.2\n")
	require.Contains(t, out, "push.41\n")
	require.Contains(t, out, "add\n")
	require.Contains(t, out, "loc_store.0\n")
	require.Contains(t, out, "begin\n")
	require.Contains(t, out, "exec.fn0\n")
	require.Contains(t, out, "end\n")
}

func TestPrintProcWithNoLocalsOmitsCellCount(t *testing.T) {
	m := &Module{Procedures: []Proc{{Name: "fn1", NLocalCells: 0}}}
	out := Print(m)
	require.Contains(t, out, "proc.fn1\n")
	require.NotContains(t, out, "proc.fn1.0")
}

func TestPrintIfElseNesting(t *testing.T) {
	m := &Module{
		Program: []Instr{
			{Op: OpPush, Word: 1},
			{Op: OpIf,
				Then: []Instr{{Op: OpPush, Word: 2}},
				Else: []Instr{{Op: OpPush, Word: 3}},
			},
		},
	}
	out := Print(m)
	require.Contains(t, out, "if.true\n")
	require.Contains(t, out, "else\n")
}

func TestPrintAddrInstrWithAndWithoutImmediate(t *testing.T) {
	m := &Module{Program: []Instr{
		{Op: OpMemLoad, Addr: Some(7)},
		{Op: OpMemLoad},
	}}
	out := Print(m)
	require.Contains(t, out, "mem_load.7\n")
	require.Contains(t, out, "mem_load\n")
}

func TestPrintUseImports(t *testing.T) {
	m := &Module{UseImports: []string{"std::sys"}}
	out := Print(m)
	require.Contains(t, out, "use.std::sys\n")
}
