package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdeck/pairing-server-go/internal/middleware"
	"github.com/opsdeck/pairing-server-go/internal/model"
	"github.com/opsdeck/pairing-server-go/internal/repository"
	"github.com/opsdeck/pairing-server-go/internal/service"
	"github.com/opsdeck/pairing-server-go/internal/util"
)

const testBaseURL = "https://pair.example.com"

type stubTenantRepo struct {
	tenants map[string]*model.Tenant
}

func (s *stubTenantRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Tenant, error) {
	return s.tenants[tokenHash], nil
}

type recordingSMSSender struct {
	to      string
	message string
	err     error
}

func (s *recordingSMSSender) Send(ctx context.Context, to, message string) error {
	s.to = to
	s.message = message
	return s.err
}

type testServer struct {
	router *chi.Mux
	repo   *repository.MemoryPairingRepository
	svc    *service.PairingService
	sms    *recordingSMSSender
	tokenA string
	tokenB string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	tokenA, err := util.GenerateToken()
	require.NoError(t, err)
	tokenB, err := util.GenerateToken()
	require.NoError(t, err)

	tenantRepo := &stubTenantRepo{tenants: map[string]*model.Tenant{
		util.HashToken(tokenA): {ID: "tenant-a", Name: "Tenant A"},
		util.HashToken(tokenB): {ID: "tenant-b", Name: "Tenant B"},
	}}

	repo := repository.NewMemoryPairingRepository(30 * time.Minute)
	svc := service.NewPairingService(repo, 5*time.Minute, 5)
	sms := &recordingSMSSender{}

	pairingHandler := NewPairingHandler(svc, sms, testBaseURL)
	deviceHandler := NewDeviceHandler(svc)
	tenantAuth := middleware.NewTenantAuthMiddleware(tenantRepo)

	r := chi.NewRouter()
	r.Route("/pair", func(r chi.Router) {
		r.Post("/confirm", deviceHandler.Confirm)

		r.Group(func(r chi.Router) {
			r.Use(tenantAuth.Handler)
			r.Post("/start", pairingHandler.Start)
			r.Get("/status/{code}", pairingHandler.Status)
			r.Get("/{code}/qr.png", pairingHandler.QRImage)
			r.Post("/{code}/sms", pairingHandler.SendSMS)
			r.Delete("/{code}", pairingHandler.Cancel)
		})
	})

	return &testServer{router: r, repo: repo, svc: svc, sms: sms, tokenA: tokenA, tokenB: tokenB}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (ts *testServer) startPairing(t *testing.T, token string) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/pair/start", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	code, ok := body["code"].(string)
	require.True(t, ok)
	return code
}

func TestStartEndpoint(t *testing.T) {
	t.Run("returns a pending pairing with a pair URL", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(t, http.MethodPost, "/pair/start", ts.tokenA, nil)
		require.Equal(t, http.StatusCreated, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, "pending", body["status"])
		assert.NotEmpty(t, body["code"])
		assert.NotEmpty(t, body["expiresAt"])
		assert.Contains(t, body["pairUrl"], testBaseURL+"/pair/confirm?code=")
		assert.NotContains(t, body, "deviceInfo")
	})

	t.Run("rejects requests without a token", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(t, http.MethodPost, "/pair/start", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects an unknown token", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(t, http.MethodPost, "/pair/start", "not-a-real-token", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("enforces the pending cap per tenant", func(t *testing.T) {
		ts := newTestServer(t)

		for i := 0; i < 5; i++ {
			rec := ts.do(t, http.MethodPost, "/pair/start", ts.tokenA, nil)
			require.Equal(t, http.StatusCreated, rec.Code)
		}

		rec := ts.do(t, http.MethodPost, "/pair/start", ts.tokenA, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		// the other tenant is unaffected
		rec = ts.do(t, http.MethodPost, "/pair/start", ts.tokenB, nil)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})
}

func TestStatusEndpoint(t *testing.T) {
	t.Run("reports a pending pairing", func(t *testing.T) {
		ts := newTestServer(t)
		code := ts.startPairing(t, ts.tokenA)

		rec := ts.do(t, http.MethodGet, "/pair/status/"+code, ts.tokenA, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, "pending", body["status"])
		assert.Equal(t, code, body["code"])
	})

	t.Run("another tenant's code reads as not found", func(t *testing.T) {
		ts := newTestServer(t)
		code := ts.startPairing(t, ts.tokenA)

		rec := ts.do(t, http.MethodGet, "/pair/status/"+code, ts.tokenB, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown code is not found", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(t, http.MethodGet, "/pair/status/deadbeef", ts.tokenA, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("confirmed pairing exposes device info", func(t *testing.T) {
		ts := newTestServer(t)
		code := ts.startPairing(t, ts.tokenA)

		confirm := ts.do(t, http.MethodPost, "/pair/confirm", "", map[string]any{
			"code":       code,
			"deviceInfo": map[string]string{"name": "Pixel 9", "os": "Android 15"},
		})
		require.Equal(t, http.StatusOK, confirm.Code)

		rec := ts.do(t, http.MethodGet, "/pair/status/"+code, ts.tokenA, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, "confirmed", body["status"])
		require.Contains(t, body, "deviceInfo")
		device := body["deviceInfo"].(map[string]any)
		assert.Equal(t, "Pixel 9", device["name"])
		assert.Equal(t, "Android 15", device["os"])
		assert.NotEmpty(t, body["confirmedAt"])
	})
}

func TestQRImageEndpoint(t *testing.T) {
	t.Run("returns a PNG for a pending pairing", func(t *testing.T) {
		ts := newTestServer(t)
		code := ts.startPairing(t, ts.tokenA)

		rec := ts.do(t, http.MethodGet, "/pair/"+code+"/qr.png", ts.tokenA, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

		png := rec.Body.Bytes()
		require.Greater(t, len(png), 8)
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
	})

	t.Run("404 once the pairing is confirmed", func(t *testing.T) {
		ts := newTestServer(t)
		code := ts.startPairing(t, ts.tokenA)

		confirm := ts.do(t, http.MethodPost, "/pair/confirm", "", map[string]any{"code": code})
		require.Equal(t, http.StatusOK, confirm.Code)

		rec := ts.do(t, http.MethodGet, "/pair/"+code+"/qr.png", ts.tokenA, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("404 for another tenant", func(t *testing.T) {
		ts := newTestServer(t)
		code := ts.startPairing(t, ts.tokenA)

		rec := ts.do(t, http.MethodGet, "/pair/"+code+"/qr.png", ts.tokenB, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSendSMSEndpoint(t *testing.T) {
	t.Run("sends the pair link to the given number", func(t *testing.T) {
		ts := newTestServer(t)
		code := ts.startPairing(t, ts.tokenA)

		rec := ts.do(t, http.MethodPost, "/pair/"+code+"/sms", ts.tokenA, map[string]string{
			"to": "+15551234567",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, true, body["ok"])
		assert.Equal(t, true, body["smsSent"])
		assert.Equal(t, "+15551234567", ts.sms.to)
		assert.Contains(t, ts.sms.message, testBaseURL+"/pair/confirm?code="+code)
	})

	t.Run("gateway failure reports a warning, not an error", func(t *testing.T) {
		ts := newTestServer(t)
		ts.sms.err = errors.New("gateway unreachable")
		code := ts.startPairing(t, ts.tokenA)

		rec := ts.do(t, http.MethodPost, "/pair/"+code+"/sms", ts.tokenA, map[string]string{
			"to": "+15551234567",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, true, body["ok"])
		assert.Equal(t, false, body["smsSent"])
		assert.NotEmpty(t, body["warning"])
	})

	t.Run("requires a recipient", func(t *testing.T) {
		ts := newTestServer(t)
		code := ts.startPairing(t, ts.tokenA)

		rec := ts.do(t, http.MethodPost, "/pair/"+code+"/sms", ts.tokenA, map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("404 for another tenant's code", func(t *testing.T) {
		ts := newTestServer(t)
		code := ts.startPairing(t, ts.tokenA)

		rec := ts.do(t, http.MethodPost, "/pair/"+code+"/sms", ts.tokenB, map[string]string{
			"to": "+15551234567",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCancelEndpoint(t *testing.T) {
	t.Run("cancels a pending pairing", func(t *testing.T) {
		ts := newTestServer(t)
		code := ts.startPairing(t, ts.tokenA)

		rec := ts.do(t, http.MethodDelete, "/pair/"+code, ts.tokenA, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		status := ts.do(t, http.MethodGet, "/pair/status/"+code, ts.tokenA, nil)
		body := decodeBody(t, status)
		assert.Equal(t, "cancelled", body["status"])
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		ts := newTestServer(t)
		code := ts.startPairing(t, ts.tokenA)

		first := ts.do(t, http.MethodDelete, "/pair/"+code, ts.tokenA, nil)
		require.Equal(t, http.StatusOK, first.Code)

		second := ts.do(t, http.MethodDelete, "/pair/"+code, ts.tokenA, nil)
		assert.Equal(t, http.StatusOK, second.Code)
	})

	t.Run("cancelling an unknown code succeeds quietly", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(t, http.MethodDelete, "/pair/deadbeef", ts.tokenA, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unpairing hides device info again", func(t *testing.T) {
		ts := newTestServer(t)
		code := ts.startPairing(t, ts.tokenA)

		confirm := ts.do(t, http.MethodPost, "/pair/confirm", "", map[string]any{
			"code":       code,
			"deviceInfo": map[string]string{"name": "Pixel 9", "os": "Android 15"},
		})
		require.Equal(t, http.StatusOK, confirm.Code)

		rec := ts.do(t, http.MethodDelete, "/pair/"+code, ts.tokenA, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		status := ts.do(t, http.MethodGet, "/pair/status/"+code, ts.tokenA, nil)
		body := decodeBody(t, status)
		assert.Equal(t, "cancelled", body["status"])
		assert.NotContains(t, body, "deviceInfo")
		assert.NotContains(t, body, "confirmedAt")
	})

	t.Run("another tenant cannot cancel the pairing", func(t *testing.T) {
		ts := newTestServer(t)
		code := ts.startPairing(t, ts.tokenA)

		rec := ts.do(t, http.MethodDelete, "/pair/"+code, ts.tokenB, nil)
		// a no-op for tenant B, invisible either way
		assert.Equal(t, http.StatusOK, rec.Code)

		status := ts.do(t, http.MethodGet, "/pair/status/"+code, ts.tokenA, nil)
		body := decodeBody(t, status)
		assert.Equal(t, "pending", body["status"])
	})
}
