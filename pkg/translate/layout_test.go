package translate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/minz/w2m/pkg/wasm"
)

func TestBuildLayoutOrdersBranchCounterThenWasiThenGlobals(t *testing.T) {
	m := &wasm.Module{
		Imports: []wasm.Import{
			{Module: "wasi_snapshot_preview1", Name: "proc_exit", Desc: wasm.ImportFunc{}},
		},
		Globals: []wasm.Global{
			{Type: wasm.I32, Mut: wasm.Mutable, Initializer: []wasm.Instr{{Op: wasm.OpI32Const, Imm: 0}}},
			{Type: wasm.I64, Mut: wasm.Const, Initializer: []wasm.Instr{{Op: wasm.OpI64Const, Imm: 0}}},
		},
	}
	lay, err := buildLayout(m)
	require.NoError(t, err)

	require.Equal(t, uint32(1), lay.wasiGlobalsAddr["wasi_exit_code"])
	require.Equal(t, uint32(2), lay.globalAddr[0]) // 1 cell for i32 global
	require.Equal(t, uint32(3), lay.globalAddr[1]) // starts right after
	require.Equal(t, uint32(5), lay.memBeginning)  // 3 + 2 cells for the i64 global
}

func TestBuildLayoutUnregisteredImportIsBadImport(t *testing.T) {
	m := &wasm.Module{
		Imports: []wasm.Import{{Module: "nope", Name: "nope", Desc: wasm.ImportFunc{}}},
	}
	_, err := buildLayout(m)
	require.Error(t, err)
	tErr := err.(*Error)
	require.Equal(t, BadImport, tErr.Kind)
}

func TestBuildLayoutDedupesSharedWasiGlobals(t *testing.T) {
	m := &wasm.Module{
		Imports: []wasm.Import{
			{Module: "env", Name: "print_i32", Desc: wasm.ImportFunc{}},
			{Module: "env", Name: "print_i32", Desc: wasm.ImportFunc{}},
		},
	}
	lay, err := buildLayout(m)
	require.NoError(t, err)
	require.Len(t, lay.wasiGlobalsAddr, 1)
}

func TestBuildLayoutNoGlobalsOrImportsStillReservesBranchCounter(t *testing.T) {
	m := &wasm.Module{}
	lay, err := buildLayout(m)
	require.NoError(t, err)
	require.Equal(t, uint32(1), lay.memBeginning)
}
