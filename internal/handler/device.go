package handler

import (
	"encoding/json"
	"net/http"

	"github.com/opsdeck/pairing-server-go/internal/audit"
	"github.com/opsdeck/pairing-server-go/internal/httputil"
	"github.com/opsdeck/pairing-server-go/internal/model"
	"github.com/opsdeck/pairing-server-go/internal/service"
	"github.com/opsdeck/pairing-server-go/internal/util"
)

// DeviceHandler serves the confirming device's single unauthenticated
// endpoint. The pairing code in the request body is the only credential.
type DeviceHandler struct {
	pairingService *service.PairingService
}

func NewDeviceHandler(pairingService *service.PairingService) *DeviceHandler {
	return &DeviceHandler{pairingService: pairingService}
}

// POST /pair/confirm
func (h *DeviceHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code       string `json:"code"`
		DeviceInfo struct {
			Name string `json:"name"`
			OS   string `json:"os"`
		} `json:"deviceInfo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	device := model.DeviceInfo{Name: req.DeviceInfo.Name, OS: req.DeviceInfo.OS}

	if err := h.pairingService.Confirm(r.Context(), req.Code, device); err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventPairConfirmed,
		Details: map[string]interface{}{"code": util.MaskCode(req.Code)},
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"status": model.PairingStatusConfirmed,
	})
}
