package tool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateUUIDV7_IsOrderedAndValid(t *testing.T) {
	a := GenerateUUIDV7()
	b := GenerateUUIDV7()
	require.True(t, IsUUID(a))
	require.True(t, IsUUID(b))
	require.NotEqual(t, a, b)
	require.LessOrEqual(t, a[:8], b[:8])
}

func TestIsUUID_Rejects(t *testing.T) {
	require.False(t, IsUUID(""))
	require.False(t, IsUUID("plan-1"))
}
