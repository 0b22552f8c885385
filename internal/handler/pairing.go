package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/opsdeck/pairing-server-go/internal/audit"
	"github.com/opsdeck/pairing-server-go/internal/httputil"
	"github.com/opsdeck/pairing-server-go/internal/middleware"
	"github.com/opsdeck/pairing-server-go/internal/model"
	"github.com/opsdeck/pairing-server-go/internal/notify"
	"github.com/opsdeck/pairing-server-go/internal/service"
	"github.com/opsdeck/pairing-server-go/internal/transport"
	"github.com/opsdeck/pairing-server-go/internal/util"
)

// PairingHandler serves the initiator side of the pairing flow: the
// dashboard that starts a pairing, watches it, and delivers the code to
// the device as a link, QR image, or SMS.
type PairingHandler struct {
	pairingService *service.PairingService
	smsSender      notify.SMSSender
	baseURL        string
}

func NewPairingHandler(pairingService *service.PairingService, smsSender notify.SMSSender, baseURL string) *PairingHandler {
	return &PairingHandler{
		pairingService: pairingService,
		smsSender:      smsSender,
		baseURL:        baseURL,
	}
}

// POST /pair/start
func (h *PairingHandler) Start(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	rec, err := h.pairingService.Start(r.Context(), tenant.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventPairStart,
		TenantID: tenant.ID,
		Details:  map[string]interface{}{"code": util.MaskCode(rec.Code)},
	})

	resp := formatPairing(rec)
	resp["pairUrl"] = transport.PairURL(h.baseURL, rec.Code)
	writeJSON(w, http.StatusCreated, resp)
}

// GET /pair/status/{code}
func (h *PairingHandler) Status(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	code := chi.URLParam(r, "code")

	rec, err := h.pairingService.Status(r.Context(), code, tenant.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, formatPairing(rec))
}

// GET /pair/{code}/qr.png
//
// Only a live pending pairing has a QR image. Anything else, including a
// confirmed pairing, is a 404: the image exists solely to hand the code
// to a device that has not paired yet.
func (h *PairingHandler) QRImage(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	code := chi.URLParam(r, "code")

	rec, err := h.pairingService.Status(r.Context(), code, tenant.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if rec.Status != model.PairingStatusPending {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Pairing is no longer pending"})
		return
	}

	size := transport.DefaultQRSize
	if s := r.URL.Query().Get("size"); s != "" {
		if parsed, parseErr := strconv.Atoi(s); parseErr == nil && parsed > 0 && parsed <= 1024 {
			size = parsed
		}
	}

	png, err := transport.QRPNG(h.baseURL, rec.Code, size)
	if err != nil {
		log.Error().Err(err).Str("code", util.MaskCode(code)).Msg("failed to render qr image")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to render QR image"})
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// POST /pair/{code}/sms
func (h *PairingHandler) SendSMS(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	code := chi.URLParam(r, "code")

	var req struct {
		To string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.To == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "to is required"})
		return
	}

	rec, err := h.pairingService.Status(r.Context(), code, tenant.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if rec.Status != model.PairingStatusPending {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Pairing is no longer pending"})
		return
	}

	body := transport.SMSBody(h.baseURL, rec.Code)

	// The pairing itself is already live, so a gateway failure is reported
	// inside a 200 rather than failing the whole request. The dashboard
	// can still show the QR image or the raw link.
	if err := h.smsSender.Send(r.Context(), req.To, body); err != nil {
		log.Warn().Err(err).Str("code", util.MaskCode(code)).Msg("sms delivery failed")
		audit.LogFromRequest(r, audit.Event{
			Type:     audit.EventSMSFailure,
			TenantID: tenant.ID,
			Details:  map[string]interface{}{"code": util.MaskCode(code)},
		})
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"smsSent": false,
			"warning": "SMS delivery failed; share the pairing link another way",
		})
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventSMSSent,
		TenantID: tenant.ID,
		Details:  map[string]interface{}{"code": util.MaskCode(code)},
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"smsSent": true,
	})
}

// DELETE /pair/{code}
func (h *PairingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	code := chi.URLParam(r, "code")

	if err := h.pairingService.Cancel(r.Context(), code, tenant.ID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventPairCancelled,
		TenantID: tenant.ID,
		Details:  map[string]interface{}{"code": util.MaskCode(code)},
	})

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
