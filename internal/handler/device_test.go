package handler

import (
	"net/http"
	"strings"
	"testing"

	"net/http/httptest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmEndpoint(t *testing.T) {
	t.Run("confirms a pending pairing without any auth", func(t *testing.T) {
		ts := newTestServer(t)
		code := ts.startPairing(t, ts.tokenA)

		rec := ts.do(t, http.MethodPost, "/pair/confirm", "", map[string]any{
			"code":       code,
			"deviceInfo": map[string]string{"name": "iPhone 15", "os": "iOS 18"},
		})
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, true, body["ok"])
		assert.Equal(t, "confirmed", body["status"])
	})

	t.Run("unknown code is indistinguishable from an expired one", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(t, http.MethodPost, "/pair/confirm", "", map[string]any{
			"code": "0123456789abcdef0123456789abcdef",
		})
		require.Equal(t, http.StatusNotFound, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, "NOT_FOUND_OR_EXPIRED", body["code"])
	})

	t.Run("cancelled code reads as not found, not cancelled", func(t *testing.T) {
		ts := newTestServer(t)
		code := ts.startPairing(t, ts.tokenA)

		cancel := ts.do(t, http.MethodDelete, "/pair/"+code, ts.tokenA, nil)
		require.Equal(t, http.StatusOK, cancel.Code)

		rec := ts.do(t, http.MethodPost, "/pair/confirm", "", map[string]any{"code": code})
		require.Equal(t, http.StatusNotFound, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, "NOT_FOUND_OR_EXPIRED", body["code"])
	})

	t.Run("second confirm of the same code conflicts", func(t *testing.T) {
		ts := newTestServer(t)
		code := ts.startPairing(t, ts.tokenA)

		first := ts.do(t, http.MethodPost, "/pair/confirm", "", map[string]any{"code": code})
		require.Equal(t, http.StatusOK, first.Code)

		second := ts.do(t, http.MethodPost, "/pair/confirm", "", map[string]any{"code": code})
		require.Equal(t, http.StatusConflict, second.Code)

		body := decodeBody(t, second)
		assert.Equal(t, "ALREADY_CONFIRMED", body["code"])
	})

	t.Run("missing code is not found", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(t, http.MethodPost, "/pair/confirm", "", map[string]any{})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		ts := newTestServer(t)

		req := httptest.NewRequest(http.MethodPost, "/pair/confirm", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("oversized device info is truncated, not rejected", func(t *testing.T) {
		ts := newTestServer(t)
		code := ts.startPairing(t, ts.tokenA)

		rec := ts.do(t, http.MethodPost, "/pair/confirm", "", map[string]any{
			"code":       code,
			"deviceInfo": map[string]string{"name": strings.Repeat("x", 10000), "os": "iOS 18"},
		})
		require.Equal(t, http.StatusOK, rec.Code)

		status := ts.do(t, http.MethodGet, "/pair/status/"+code, ts.tokenA, nil)
		body := decodeBody(t, status)
		device := body["deviceInfo"].(map[string]any)
		assert.Len(t, device["name"], 200)
	})
}
