// Package decode adapts a binary .wasm module into pkg/wasm's AST.
// It reads the Wasm 1.0 MVP binary format directly section by section;
// LEB128 integers are read with the real wagon decoder
// (github.com/go-interpreter/wagon/wasm/leb128, grounded on
// other_examples/…go-interpreter-wagon…) rather than a hand-rolled one,
// and value-type bytes are checked against wagon's own wasm.ValueType
// constants so the encoding matches a production decoder exactly.
//
// Anything the translator's Non-goals exclude — floating point,
// tables/indirect calls, multiple memories, memory.grow, SIMD — is
// rejected here, at the boundary, rather than deeper in pkg/translate.
package decode

import (
	"bufio"
	"fmt"
	"io"

	wagonleb "github.com/go-interpreter/wagon/wasm/leb128"
	wagonwasm "github.com/go-interpreter/wagon/wasm"

	"github.com/minz/w2m/pkg/translate"
	"github.com/minz/w2m/pkg/wasm"
)

var magic = [4]byte{0x00, 0x61, 0x73, 0x6d}

// Decode reads one binary Wasm module from r.
func Decode(r io.Reader) (*wasm.Module, error) {
	br := bufio.NewReader(r)

	var hdr [8]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, fmt.Errorf("decode: reading header: %w", err)
	}
	if [4]byte{hdr[0], hdr[1], hdr[2], hdr[3]} != magic {
		return nil, fmt.Errorf("decode: not a wasm binary (bad magic)")
	}

	d := &decoder{r: br}
	var funcTypeIdx []uint32 // Function section: type index per defined function

	for {
		id, err := br.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode: reading section id: %w", err)
		}
		size, err := d.varuint32()
		if err != nil {
			return nil, fmt.Errorf("decode: reading section size: %w", err)
		}
		payload := io.LimitReader(br, int64(size))
		sd := &decoder{r: bufio.NewReader(payload)}

		switch id {
		case 0: // custom
			io.Copy(io.Discard, payload)
		case 1: // type
			if err := sd.typeSection(&d.mod); err != nil {
				return nil, err
			}
		case 2: // import
			if err := sd.importSection(&d.mod); err != nil {
				return nil, err
			}
		case 3: // function
			n, err := sd.varuint32()
			if err != nil {
				return nil, err
			}
			for i := uint32(0); i < n; i++ {
				ti, err := sd.varuint32()
				if err != nil {
					return nil, err
				}
				funcTypeIdx = append(funcTypeIdx, ti)
			}
		case 4: // table
			n, err := sd.varuint32()
			if err != nil {
				return nil, err
			}
			if n > 0 {
				return nil, &translate.Error{Kind: translate.UnsupportedInstr, FuncIdx: -1,
					Detail: "tables/indirect calls are not supported"}
			}
		case 5: // memory
			if err := sd.memorySection(); err != nil {
				return nil, err
			}
		case 6: // global
			if err := sd.globalSection(&d.mod); err != nil {
				return nil, err
			}
		case 7: // export
			if err := sd.exportSection(&d.mod); err != nil {
				return nil, err
			}
		case 8: // start
			idx, err := sd.varuint32()
			if err != nil {
				return nil, err
			}
			d.mod.Start = &idx
		case 9: // element
			n, err := sd.varuint32()
			if err != nil {
				return nil, err
			}
			if n > 0 {
				return nil, &translate.Error{Kind: translate.UnsupportedInstr, FuncIdx: -1,
					Detail: "tables/indirect calls are not supported"}
			}
		case 10: // code
			if err := sd.codeSection(&d.mod, funcTypeIdx); err != nil {
				return nil, err
			}
		case 11: // data
			if err := sd.dataSection(&d.mod); err != nil {
				return nil, err
			}
		default:
			io.Copy(io.Discard, payload)
		}
		io.Copy(io.Discard, payload) // consume any unread tail of the section
	}

	return &d.mod, nil
}

type decoder struct {
	r   *bufio.Reader
	mod wasm.Module
}

func (d *decoder) varuint32() (uint32, error) { return wagonleb.ReadVarUint32(d.r) }
func (d *decoder) varint32() (int32, error)   { return wagonleb.ReadVarint32(d.r) }
func (d *decoder) varint64() (int64, error)   { return wagonleb.ReadVarint64(d.r) }

func (d *decoder) byte() (byte, error) { return d.r.ReadByte() }

func (d *decoder) bytes(n uint32) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *decoder) name() (string, error) {
	n, err := d.varuint32()
	if err != nil {
		return "", err
	}
	b, err := d.bytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func valueType(b byte) (wasm.ValueType, error) {
	// value types are signed 7-bit LEB128 values (0x7F is -1).
	switch wagonwasm.ValueType(int8(b<<1) >> 1) {
	case wagonwasm.ValueTypeI32:
		return wasm.I32, nil
	case wagonwasm.ValueTypeI64:
		return wasm.I64, nil
	case wagonwasm.ValueTypeF32:
		return wasm.F32, nil
	case wagonwasm.ValueTypeF64:
		return wasm.F64, nil
	default:
		return 0, fmt.Errorf("decode: unknown value type byte 0x%02x", b)
	}
}

func requireIntType(t wasm.ValueType) error {
	if t == wasm.F32 || t == wasm.F64 {
		return &translate.Error{Kind: translate.UnsupportedArgType, FuncIdx: -1, Detail: "floating point is not supported"}
	}
	return nil
}

// limits reads a Wasm resizable-limits structure (min, optional max);
// the translator never consults the max, so it is discarded.
func (d *decoder) limits() error {
	flag, err := d.byte()
	if err != nil {
		return err
	}
	if _, err := d.varuint32(); err != nil {
		return err
	}
	if flag == 1 {
		if _, err := d.varuint32(); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) typeSection(m *wasm.Module) error {
	n, err := d.varuint32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		form, err := d.byte()
		if err != nil {
			return err
		}
		if form != 0x60 {
			return fmt.Errorf("decode: unexpected type section form 0x%02x", form)
		}
		var ft wasm.FuncType
		np, err := d.varuint32()
		if err != nil {
			return err
		}
		for j := uint32(0); j < np; j++ {
			b, err := d.byte()
			if err != nil {
				return err
			}
			t, err := valueType(b)
			if err != nil {
				return err
			}
			if err := requireIntType(t); err != nil {
				return err
			}
			ft.Params = append(ft.Params, t)
		}
		nr, err := d.varuint32()
		if err != nil {
			return err
		}
		for j := uint32(0); j < nr; j++ {
			b, err := d.byte()
			if err != nil {
				return err
			}
			t, err := valueType(b)
			if err != nil {
				return err
			}
			if err := requireIntType(t); err != nil {
				return err
			}
			ft.Results = append(ft.Results, t)
		}
		m.Types = append(m.Types, ft)
	}
	return nil
}

func (d *decoder) importSection(m *wasm.Module) error {
	n, err := d.varuint32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		modName, err := d.name()
		if err != nil {
			return err
		}
		fieldName, err := d.name()
		if err != nil {
			return err
		}
		kind, err := d.byte()
		if err != nil {
			return err
		}
		imp := wasm.Import{Module: modName, Name: fieldName}
		switch kind {
		case 0: // func
			ti, err := d.varuint32()
			if err != nil {
				return err
			}
			imp.Desc = wasm.ImportFunc{TypeIdx: ti}
		case 1: // table
			if _, err := d.byte(); err != nil { // elem type
				return err
			}
			if err := d.limits(); err != nil {
				return err
			}
			imp.Desc = wasm.ImportTable{}
		case 2: // memory
			if err := d.limits(); err != nil {
				return err
			}
			imp.Desc = wasm.ImportMemory{}
		case 3: // global
			b, err := d.byte()
			if err != nil {
				return err
			}
			t, err := valueType(b)
			if err != nil {
				return err
			}
			mut, err := d.byte()
			if err != nil {
				return err
			}
			imp.Desc = wasm.ImportGlobal{Type: t, Mutable: mut != 0}
		default:
			return fmt.Errorf("decode: unknown import kind %d", kind)
		}
		m.Imports = append(m.Imports, imp)
	}
	return nil
}

func (d *decoder) memorySection() error {
	n, err := d.varuint32()
	if err != nil {
		return err
	}
	if n > 1 {
		return &translate.Error{Kind: translate.BadNoMultipleMem, FuncIdx: -1, Detail: "module declares more than one memory"}
	}
	for i := uint32(0); i < n; i++ {
		if err := d.limits(); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) globalSection(m *wasm.Module) error {
	n, err := d.varuint32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		b, err := d.byte()
		if err != nil {
			return err
		}
		t, err := valueType(b)
		if err != nil {
			return err
		}
		if err := requireIntType(t); err != nil {
			return err
		}
		mut, err := d.byte()
		if err != nil {
			return err
		}
		init, err := d.constExpr()
		if err != nil {
			return err
		}
		gm := wasm.Const
		if mut != 0 {
			gm = wasm.Mutable
		}
		m.Globals = append(m.Globals, wasm.Global{Type: t, Mut: gm, Initializer: init})
	}
	return nil
}

func (d *decoder) exportSection(m *wasm.Module) error {
	n, err := d.varuint32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		nm, err := d.name()
		if err != nil {
			return err
		}
		kind, err := d.byte()
		if err != nil {
			return err
		}
		idx, err := d.varuint32()
		if err != nil {
			return err
		}
		var k wasm.ExportKind
		switch kind {
		case 0:
			k = wasm.ExportFunc
		case 1:
			k = wasm.ExportTable
		case 2:
			k = wasm.ExportMemory
		case 3:
			k = wasm.ExportGlobal
		default:
			return fmt.Errorf("decode: unknown export kind %d", kind)
		}
		m.Exports = append(m.Exports, wasm.Export{Name: nm, Kind: k, Index: idx})
	}
	return nil
}

func (d *decoder) codeSection(m *wasm.Module, funcTypeIdx []uint32) error {
	n, err := d.varuint32()
	if err != nil {
		return err
	}
	if int(n) != len(funcTypeIdx) {
		return fmt.Errorf("decode: code section has %d bodies, function section declared %d", n, len(funcTypeIdx))
	}
	for i := uint32(0); i < n; i++ {
		bodySize, err := d.varuint32()
		if err != nil {
			return err
		}
		body := io.LimitReader(d.r, int64(bodySize))
		bd := &decoder{r: bufio.NewReader(body)}

		nlocals, err := bd.varuint32()
		if err != nil {
			return err
		}
		var locals []wasm.ValueType
		for j := uint32(0); j < nlocals; j++ {
			count, err := bd.varuint32()
			if err != nil {
				return err
			}
			b, err := bd.byte()
			if err != nil {
				return err
			}
			t, err := valueType(b)
			if err != nil {
				return err
			}
			if err := requireIntType(t); err != nil {
				return err
			}
			for k := uint32(0); k < count; k++ {
				locals = append(locals, t)
			}
		}
		instrs, _, err := bd.instrSeq()
		if err != nil {
			return err
		}
		m.Functions = append(m.Functions, wasm.Function{TypeIdx: funcTypeIdx[i], Locals: locals, Body: instrs})
		io.Copy(io.Discard, body)
	}
	return nil
}

func (d *decoder) dataSection(m *wasm.Module) error {
	n, err := d.varuint32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		memIdx, err := d.varuint32()
		if err != nil {
			return err
		}
		offset, err := d.constExpr()
		if err != nil {
			return err
		}
		size, err := d.varuint32()
		if err != nil {
			return err
		}
		data, err := d.bytes(size)
		if err != nil {
			return err
		}
		m.Datas = append(m.Datas, wasm.DataSegment{MemIdx: memIdx, Offset: offset, Bytes: data})
	}
	return nil
}

// constExpr decodes a constant expression: an instruction sequence
// terminated by `end`, used for global initializers and data/element
// offsets.
func (d *decoder) constExpr() ([]wasm.Instr, error) {
	instrs, _, err := d.instrSeq()
	return instrs, err
}
