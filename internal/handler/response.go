package handler

import (
	"net/http"
	"time"

	"github.com/opsdeck/pairing-server-go/internal/httputil"
	"github.com/opsdeck/pairing-server-go/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

// formatPairing shapes a record for the initiator. Device metadata is
// only surfaced once the pairing is confirmed.
func formatPairing(rec *model.PairingRecord) map[string]any {
	out := map[string]any{
		"code":      rec.Code,
		"status":    rec.Status,
		"createdAt": rec.CreatedAt.Format(time.RFC3339),
		"expiresAt": rec.ExpiresAt.Format(time.RFC3339),
	}
	if rec.Status == model.PairingStatusConfirmed {
		out["deviceInfo"] = rec.DeviceInfo()
		out["confirmedAt"] = formatTime(rec.ConfirmedAt)
	}
	return out
}
