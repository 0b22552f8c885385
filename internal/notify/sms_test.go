package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSender(t *testing.T) {
	t.Run("posts recipient and message to the gateway", func(t *testing.T) {
		var got map[string]string
		var auth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusAccepted)
		}))
		defer server.Close()

		sender := NewHTTPSender(server.URL, "gateway-token")
		err := sender.Send(context.Background(), "+15551234567", "Tap to pair")

		require.NoError(t, err)
		assert.Equal(t, "+15551234567", got["to"])
		assert.Equal(t, "Tap to pair", got["message"])
		assert.Equal(t, "Bearer gateway-token", auth)
	})

	t.Run("non-2xx response is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		sender := NewHTTPSender(server.URL, "")
		err := sender.Send(context.Background(), "+15551234567", "Tap to pair")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("unreachable gateway is an error", func(t *testing.T) {
		sender := NewHTTPSender("http://127.0.0.1:0", "")
		err := sender.Send(context.Background(), "+15551234567", "Tap to pair")
		assert.Error(t, err)
	})
}

func TestDisabledSender(t *testing.T) {
	err := DisabledSender{}.Send(context.Background(), "+15551234567", "Tap to pair")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestMaskRecipient(t *testing.T) {
	assert.Equal(t, "****4567", maskRecipient("+15551234567"))
	assert.Equal(t, "****", maskRecipient("123"))
}
