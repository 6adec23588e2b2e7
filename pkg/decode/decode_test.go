package decode

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/minz/w2m/pkg/translate"
	"github.com/minz/w2m/pkg/wasm"
)

func header() []byte {
	return []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
}

func section(id byte, content []byte) []byte {
	out := []byte{id, byte(len(content))}
	return append(out, content...)
}

// addModule builds a minimal .wasm binary exporting a two-arg i32 "add"
// function: (i32, i32) -> i32 { get_local 0; get_local 1; i32.add }.
func addModule() []byte {
	typeSec := section(1, []byte{
		0x01,       // 1 type
		0x60,       // func form
		0x02,       // 2 params
		0x7F, 0x7F, // i32 i32
		0x01, // 1 result
		0x7F, // i32
	})
	funcSec := section(3, []byte{0x01, 0x00}) // 1 function, type 0
	exportSec := section(7, []byte{
		0x01,                   // 1 export
		0x03, 'a', 'd', 'd',    // name "add"
		0x00, // kind func
		0x00, // index 0
	})
	body := []byte{
		0x00,       // 0 local decl groups
		0x20, 0x00, // get_local 0
		0x20, 0x01, // get_local 1
		0x6A, // i32.add
		0x0B, // end
	}
	codeSec := section(10, append([]byte{0x01, byte(len(body))}, body...))

	var buf bytes.Buffer
	buf.Write(header())
	buf.Write(typeSec)
	buf.Write(funcSec)
	buf.Write(exportSec)
	buf.Write(codeSec)
	return buf.Bytes()
}

func TestDecodeAddModule(t *testing.T) {
	m, err := Decode(bytes.NewReader(addModule()))
	require.NoError(t, err)

	require.Len(t, m.Types, 1)
	require.Equal(t, []wasm.ValueType{wasm.I32, wasm.I32}, m.Types[0].Params)
	require.Equal(t, []wasm.ValueType{wasm.I32}, m.Types[0].Results)

	require.Len(t, m.Functions, 1)
	require.Equal(t, uint32(0), m.Functions[0].TypeIdx)
	require.Empty(t, m.Functions[0].Locals)
	require.Equal(t, []wasm.Instr{
		{Op: wasm.OpGetLocal, LocalIdx: 0},
		{Op: wasm.OpGetLocal, LocalIdx: 1},
		{Op: wasm.OpIBinOp, NumOp: wasm.NumAdd},
	}, m.Functions[0].Body)

	require.Len(t, m.Exports, 1)
	require.Equal(t, "add", m.Exports[0].Name)
	require.Equal(t, wasm.ExportFunc, m.Exports[0].Kind)
	require.Equal(t, uint32(0), m.Exports[0].Index)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	bad := append([]byte{0x00, 0x00, 0x00, 0x00}, header()[4:]...)
	_, err := Decode(bytes.NewReader(bad))
	require.Error(t, err)
}

func TestDecodeRejectsFloatConst(t *testing.T) {
	typeSec := section(1, []byte{0x01, 0x60, 0x00, 0x00}) // () -> ()
	funcSec := section(3, []byte{0x01, 0x00})
	body := []byte{
		0x00,                         // 0 locals
		0x43, 0x00, 0x00, 0x00, 0x00, // f32.const 0.0
		0x0B,
	}
	codeSec := section(10, append([]byte{0x01, byte(len(body))}, body...))

	var buf bytes.Buffer
	buf.Write(header())
	buf.Write(typeSec)
	buf.Write(funcSec)
	buf.Write(codeSec)

	_, err := Decode(bytes.NewReader(buf.Bytes()))
	require.Error(t, err)
	tErr, ok := err.(*translate.Error)
	require.True(t, ok)
	require.Equal(t, translate.UnsupportedArgType, tErr.Kind)
}

func TestDecodeRejectsNonEmptyTableSection(t *testing.T) {
	tableSec := section(4, []byte{0x01, 0x70, 0x00, 0x00}) // 1 table entry
	var buf bytes.Buffer
	buf.Write(header())
	buf.Write(tableSec)

	_, err := Decode(bytes.NewReader(buf.Bytes()))
	require.Error(t, err)
	tErr, ok := err.(*translate.Error)
	require.True(t, ok)
	require.Equal(t, translate.UnsupportedInstr, tErr.Kind)
}

func TestDecodeRejectsMultipleMemories(t *testing.T) {
	memSec := section(5, []byte{
		0x02,       // 2 memories
		0x00, 0x01, // memory 0: min=1, no max
		0x00, 0x01, // memory 1: min=1, no max
	})
	var buf bytes.Buffer
	buf.Write(header())
	buf.Write(memSec)

	_, err := Decode(bytes.NewReader(buf.Bytes()))
	require.Error(t, err)
	tErr, ok := err.(*translate.Error)
	require.True(t, ok)
	require.Equal(t, translate.BadNoMultipleMem, tErr.Kind)
}

func TestDecodeGlobalAndDataSections(t *testing.T) {
	globalSec := section(6, []byte{
		0x01,       // 1 global
		0x7F, 0x01, // i32, mutable
		0x41, 0x05, // i32.const 5
		0x0B, // end
	})
	dataSec := section(11, []byte{
		0x01,       // 1 segment
		0x00,       // memory index 0
		0x41, 0x00, // i32.const 0
		0x0B,             // end
		0x04,             // 4 bytes
		'w', 'a', 's', 'm',
	})
	var buf bytes.Buffer
	buf.Write(header())
	buf.Write(globalSec)
	buf.Write(dataSec)

	m, err := Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, m.Globals, 1)
	require.Equal(t, wasm.I32, m.Globals[0].Type)
	require.Equal(t, wasm.Mutable, m.Globals[0].Mut)
	require.Equal(t, []wasm.Instr{{Op: wasm.OpI32Const, Imm: 5}}, m.Globals[0].Initializer)

	require.Len(t, m.Datas, 1)
	require.Equal(t, uint32(0), m.Datas[0].MemIdx)
	require.Equal(t, []byte("wasm"), m.Datas[0].Bytes)
}
