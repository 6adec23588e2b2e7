package masm

import (
	"bytes"
	"fmt"
)

// Print renders a Module as Miden Assembly text. It is a mechanical
// tree walk — no templating dependency is warranted for a fixed,
// closed instruction set (see DESIGN.md).
func Print(m *Module) string {
	var buf bytes.Buffer
	for _, imp := range m.UseImports {
		fmt.Fprintf(&buf, "use.%s\n", imp)
	}
	if len(m.UseImports) > 0 {
		buf.WriteByte('\n')
	}
	for _, p := range m.Procedures {
		printProc(&buf, &p)
		buf.WriteByte('\n')
	}
	buf.WriteString("begin\n")
	printBlock(&buf, m.Program, 1)
	buf.WriteString("end\n")
	return buf.String()
}

func printProc(buf *bytes.Buffer, p *Proc) {
	if p.NLocalCells > 0 {
		fmt.Fprintf(buf, "proc.%s.%d\n", p.Name, p.NLocalCells)
	} else {
		fmt.Fprintf(buf, "proc.%s\n", p.Name)
	}
	printBlock(buf, p.Body, 1)
	buf.WriteString("end\n")
}

func indent(buf *bytes.Buffer, depth int) {
	for i := 0; i < depth; i++ {
		buf.WriteString("    ")
	}
}

func printBlock(buf *bytes.Buffer, body []Instr, depth int) {
	for _, inst := range body {
		printInstr(buf, &inst, depth)
	}
}

func printInstr(buf *bytes.Buffer, inst *Instr, depth int) {
	indent(buf, depth)
	switch inst.Op {
	case OpPush:
		fmt.Fprintf(buf, "push.%d\n", inst.Word)
	case OpDrop:
		buf.WriteString("drop\n")
	case OpDup:
		fmt.Fprintf(buf, "dup.%d\n", inst.K)
	case OpSwap:
		fmt.Fprintf(buf, "swap.%d\n", inst.K)
	case OpMoveUp:
		fmt.Fprintf(buf, "movup.%d\n", inst.K)
	case OpMemLoad:
		printAddrInstr(buf, "mem_load", inst.Addr)
	case OpMemStore:
		printAddrInstr(buf, "mem_store", inst.Addr)
	case OpLocLoad:
		fmt.Fprintf(buf, "loc_load.%d\n", inst.Cell)
	case OpLocStore:
		fmt.Fprintf(buf, "loc_store.%d\n", inst.Cell)
	case OpExec:
		fmt.Fprintf(buf, "exec.%s\n", inst.Name)
	case OpIf:
		buf.WriteString("if.true\n")
		printBlock(buf, inst.Then, depth+1)
		if len(inst.Else) > 0 {
			indent(buf, depth)
			buf.WriteString("else\n")
			printBlock(buf, inst.Else, depth+1)
		}
		indent(buf, depth)
		buf.WriteString("end\n")
	case OpWhile:
		buf.WriteString("while.true\n")
		printBlock(buf, inst.Body, depth+1)
		indent(buf, depth)
		buf.WriteString("end\n")
	case OpIAdd:
		buf.WriteString("add\n")
	case OpISub:
		buf.WriteString("sub\n")
	case OpIMul:
		buf.WriteString("mul\n")
	case OpIDiv:
		buf.WriteString("div\n")
	case OpIMod:
		buf.WriteString("mod\n")
	case OpIDivMod:
		printAddrInstr(buf, "divmod", inst.Cmp)
	case OpIShL:
		buf.WriteString("shl\n")
	case OpIShR:
		buf.WriteString("shr\n")
	case OpIAnd:
		buf.WriteString("and\n")
	case OpIOr:
		buf.WriteString("or\n")
	case OpIXor:
		buf.WriteString("xor\n")
	case OpINot:
		buf.WriteString("not\n")
	case OpIEq:
		printAddrInstr(buf, "eq", inst.Cmp)
	case OpINeq:
		printAddrInstr(buf, "neq", inst.Cmp)
	case OpILt:
		buf.WriteString("lt\n")
	case OpIGt:
		buf.WriteString("gt\n")
	case OpILte:
		buf.WriteString("lte\n")
	case OpIGte:
		buf.WriteString("gte\n")
	case OpIEqz:
		buf.WriteString("eqz\n")
	case OpIAdd64:
		buf.WriteString("add64\n")
	case OpISub64:
		buf.WriteString("sub64\n")
	case OpIMul64:
		buf.WriteString("mul64\n")
	case OpIShL64:
		buf.WriteString("shl64\n")
	case OpIShR64:
		buf.WriteString("shr64\n")
	case OpIAnd64:
		buf.WriteString("and64\n")
	case OpIOr64:
		buf.WriteString("or64\n")
	case OpIXor64:
		buf.WriteString("xor64\n")
	case OpIEq64:
		buf.WriteString("eq64\n")
	case OpINeq64:
		buf.WriteString("neq64\n")
	case OpILt64:
		buf.WriteString("lt64\n")
	case OpIGt64:
		buf.WriteString("gt64\n")
	case OpILte64:
		buf.WriteString("lte64\n")
	case OpIGte64:
		buf.WriteString("gte64\n")
	case OpIEqz64:
		buf.WriteString("eqz64\n")
	case OpCDrop:
		buf.WriteString("cdrop\n")
	case OpAssert:
		buf.WriteString("assert\n")
	default:
		fmt.Fprintf(buf, ";; unknown op %d\n", inst.Op)
	}
}

func printAddrInstr(buf *bytes.Buffer, mnemonic string, a Addr) {
	if a.HasValue {
		fmt.Fprintf(buf, "%s.%d\n", mnemonic, a.Value)
	} else {
		fmt.Fprintf(buf, "%s\n", mnemonic)
	}
}
