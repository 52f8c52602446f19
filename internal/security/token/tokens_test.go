package tokens

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateOpaqueToken(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 256; i++ {
		tok, err := GenerateOpaqueToken(32)
		require.NoError(t, err)

		raw, err := base64.RawURLEncoding.DecodeString(tok)
		require.NoError(t, err)
		require.Len(t, raw, 32)

		_, dup := seen[tok]
		require.False(t, dup, "duplicate token %q", tok)
		seen[tok] = struct{}{}
	}
}

func TestGenerateOpaqueToken_RejectsLowEntropy(t *testing.T) {
	_, err := GenerateOpaqueToken(8)
	require.Error(t, err)
}

func TestSHA256Base64URL(t *testing.T) {
	// sha256("abc") = ba7816bf...
	require.Equal(t, "ungWv48Bz-pBQUDeXa4iI7ADYaOWF3qctBD_YfIAFa0", SHA256Base64URL("abc"))
	require.NotEqual(t, SHA256Base64URL("a"), SHA256Base64URL("b"))
}
