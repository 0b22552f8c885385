package model

import (
	"time"
)

type PairingStatus string

const (
	PairingStatusPending   PairingStatus = "pending"
	PairingStatusConfirmed PairingStatus = "confirmed"
	PairingStatusExpired   PairingStatus = "expired"
	PairingStatusCancelled PairingStatus = "cancelled"
)

// IsTerminal reports whether no further transition is possible.
func (s PairingStatus) IsTerminal() bool {
	return s == PairingStatusConfirmed || s == PairingStatusExpired || s == PairingStatusCancelled
}

type DeviceInfo struct {
	Name string `json:"name"`
	OS   string `json:"os"`
}

type PairingRecord struct {
	Code        string        `db:"code" json:"code"`
	TenantID    string        `db:"tenant_id" json:"tenantId"`
	Status      PairingStatus `db:"status" json:"status"`
	DeviceName  *string       `db:"device_name" json:"deviceName,omitempty"`
	DeviceOS    *string       `db:"device_os" json:"deviceOs,omitempty"`
	ConfirmedAt *time.Time    `db:"confirmed_at" json:"confirmedAt,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`
	ExpiresAt   time.Time     `db:"expires_at" json:"expiresAt"`
}

// EffectiveStatus derives expiry at read time: a pending record past its
// deadline reads as expired even if no reaper has rewritten the row.
func (r *PairingRecord) EffectiveStatus(now time.Time) PairingStatus {
	if r.Status == PairingStatusPending && now.After(r.ExpiresAt) {
		return PairingStatusExpired
	}
	return r.Status
}

// DeviceInfo returns the confirming device metadata, or nil if the record
// was never confirmed. The contents are display-only and never trusted.
func (r *PairingRecord) DeviceInfo() *DeviceInfo {
	if r.DeviceName == nil && r.DeviceOS == nil {
		return nil
	}
	var info DeviceInfo
	if r.DeviceName != nil {
		info.Name = *r.DeviceName
	}
	if r.DeviceOS != nil {
		info.OS = *r.DeviceOS
	}
	return &info
}

type CreatePairingRecordParams struct {
	Code      string
	TenantID  string
	ExpiresAt time.Time
}
