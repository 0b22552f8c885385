package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairURL(t *testing.T) {
	t.Run("is deterministic", func(t *testing.T) {
		a := PairURL("https://pair.example.com", "abc123")
		b := PairURL("https://pair.example.com", "abc123")
		assert.Equal(t, a, b)
		assert.Equal(t, "https://pair.example.com/pair/confirm?code=abc123", a)
	})

	t.Run("trims trailing slash from base URL", func(t *testing.T) {
		assert.Equal(t,
			"https://pair.example.com/pair/confirm?code=abc123",
			PairURL("https://pair.example.com/", "abc123"))
	})

	t.Run("escapes the code", func(t *testing.T) {
		assert.Equal(t,
			"https://pair.example.com/pair/confirm?code=a%2Fb%26c",
			PairURL("https://pair.example.com", "a/b&c"))
	})

	t.Run("embeds nothing beyond the code", func(t *testing.T) {
		u := PairURL("https://pair.example.com", "abc123")
		assert.NotContains(t, u, "tenant")
		assert.NotContains(t, u, "token")
	})
}

func TestSMSBody(t *testing.T) {
	body := SMSBody("https://pair.example.com", "abc123")
	assert.Contains(t, body, PairURL("https://pair.example.com", "abc123"))
	assert.Contains(t, body, "expires")
}

func TestQRPNG(t *testing.T) {
	t.Run("renders a PNG", func(t *testing.T) {
		png, err := QRPNG("https://pair.example.com", "abc123", 256)
		require.NoError(t, err)
		require.True(t, len(png) > 8)
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
	})

	t.Run("defaults the size", func(t *testing.T) {
		png, err := QRPNG("https://pair.example.com", "abc123", 0)
		require.NoError(t, err)
		assert.NotEmpty(t, png)
	})
}
