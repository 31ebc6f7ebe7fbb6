package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	raw, hash, err := GenerateToken()
	require.NoError(t, err)
	require.Len(t, raw, 64)
	require.Len(t, hash, 64)
	require.NotEqual(t, raw, hash)
	require.Equal(t, hash, HashToken(raw))

	other, _, err := GenerateToken()
	require.NoError(t, err)
	require.NotEqual(t, raw, other)
}
