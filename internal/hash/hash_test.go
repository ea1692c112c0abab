package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassword(t *testing.T) {
	h, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", h)
	assert.True(t, CheckPassword(h, "secret1"))
	assert.False(t, CheckPassword(h, "secret2"))
}

func TestTokenDigest(t *testing.T) {
	a := TokenDigest("token-a")
	assert.Len(t, a, 64)
	assert.Equal(t, a, TokenDigest("token-a"))
	assert.NotEqual(t, a, TokenDigest("token-b"))
}
