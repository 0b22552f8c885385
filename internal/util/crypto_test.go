package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePairingCode(t *testing.T) {
	t.Run("generates 32 character hex string", func(t *testing.T) {
		code, err := GeneratePairingCode()
		require.NoError(t, err)
		assert.Len(t, code, 32)
	})

	t.Run("generates unique codes", func(t *testing.T) {
		code1, _ := GeneratePairingCode()
		code2, _ := GeneratePairingCode()
		assert.NotEqual(t, code1, code2)
	})

	t.Run("generates valid hex", func(t *testing.T) {
		code, _ := GeneratePairingCode()
		for _, c := range code {
			assert.True(t, (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f'))
		}
	})
}

func TestGenerateToken(t *testing.T) {
	t.Run("generates 64 character hex string", func(t *testing.T) {
		token, err := GenerateToken()
		require.NoError(t, err)
		assert.Len(t, token, 64)
	})

	t.Run("generates unique tokens", func(t *testing.T) {
		token1, _ := GenerateToken()
		token2, _ := GenerateToken()
		assert.NotEqual(t, token1, token2)
	})
}

func TestHashToken(t *testing.T) {
	t.Run("returns 64 character hex string", func(t *testing.T) {
		hash := HashToken("test-token")
		assert.Len(t, hash, 64)
	})

	t.Run("same input produces same hash", func(t *testing.T) {
		hash1 := HashToken("test-token")
		hash2 := HashToken("test-token")
		assert.Equal(t, hash1, hash2)
	})

	t.Run("different input produces different hash", func(t *testing.T) {
		hash1 := HashToken("token-1")
		hash2 := HashToken("token-2")
		assert.NotEqual(t, hash1, hash2)
	})
}

func TestMaskCode(t *testing.T) {
	t.Run("keeps only a short prefix", func(t *testing.T) {
		assert.Equal(t, "dead-****", MaskCode("deadbeefdeadbeefdeadbeefdeadbeef"))
	})

	t.Run("fully masks short codes", func(t *testing.T) {
		assert.Equal(t, "****", MaskCode("abc"))
		assert.Equal(t, "****", MaskCode(""))
	})
}
