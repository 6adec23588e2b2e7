package translate

import (
	"fmt"
	"strings"
)

// ErrorKind is the closed error taxonomy from spec.md §7.
type ErrorKind string

const (
	NoEntry               ErrorKind = "NoEntry"
	BadImport             ErrorKind = "BadImport"
	BadNamedGlobalRef     ErrorKind = "BadNamedGlobalRef"
	BadNoMultipleMem      ErrorKind = "BadNoMultipleMem"
	UnsupportedArgType    ErrorKind = "UnsupportedArgType"
	UnsupportedInstr      ErrorKind = "UnsupportedInstruction"
	Unsupported64Bits     ErrorKind = "Unsupported64Bits"
	ExpectedStack         ErrorKind = "ExpectedStack"
	EmptyStack            ErrorKind = "EmptyStack"
	BlockResultTooLarge   ErrorKind = "BlockResultTooLarge"
	BadMisalignedI64      ErrorKind = "BadMisalignedI64"
)

// Error is a single validation failure, carrying the active control
// context chain as a breadcrumb (spec.md §7 policy).
type Error struct {
	Kind    ErrorKind
	Detail  string
	Ctx     []string // human-readable control-context breadcrumb, outermost first
	FuncIdx int       // -1 if not associated with a specific function
}

func (e *Error) Error() string {
	if len(e.Ctx) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s: %s (in %s)", e.Kind, e.Detail, strings.Join(e.Ctx, " > "))
}

func newErr(kind ErrorKind, funcIdx int, ctx []string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Ctx: ctx, FuncIdx: funcIdx}
}

// fatal reports whether an error kind aborts the whole translation
// rather than just the function currently being translated.
func (k ErrorKind) fatal() bool {
	switch k {
	case NoEntry, BadImport, BadNamedGlobalRef, BadNoMultipleMem, UnsupportedArgType:
		return true
	default:
		return false
	}
}
