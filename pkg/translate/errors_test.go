package translate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFatalClassification(t *testing.T) {
	fatal := []ErrorKind{NoEntry, BadImport, BadNamedGlobalRef, BadNoMultipleMem, UnsupportedArgType}
	for _, k := range fatal {
		require.True(t, k.fatal(), "%s should be fatal", k)
	}

	confined := []ErrorKind{UnsupportedInstr, Unsupported64Bits, ExpectedStack, EmptyStack, BlockResultTooLarge, BadMisalignedI64}
	for _, k := range confined {
		require.False(t, k.fatal(), "%s should be per-function confined", k)
	}
}

func TestErrorMessageIncludesBreadcrumb(t *testing.T) {
	e := newErr(ExpectedStack, 3, []string{"function#3", "block"}, "bad stack for %s", "reasons")
	require.Contains(t, e.Error(), "ExpectedStack")
	require.Contains(t, e.Error(), "bad stack for reasons")
	require.Contains(t, e.Error(), "function#3 > block")
}

func TestErrorMessageWithoutBreadcrumb(t *testing.T) {
	e := newErr(NoEntry, -1, nil, "no entry")
	require.NotContains(t, e.Error(), "(in ")
}
