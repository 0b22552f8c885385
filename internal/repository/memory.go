package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opsdeck/pairing-server-go/internal/model"
)

// MemoryPairingRepository keeps pairing records in a mutex-guarded map.
// It mirrors the Postgres implementation's transition semantics, including
// the compare-and-swap on Confirm, so service and handler tests exercise
// the same contract the production store provides.
type MemoryPairingRepository struct {
	mu        sync.Mutex
	records   map[string]*model.PairingRecord
	retention time.Duration
}

func NewMemoryPairingRepository(retention time.Duration) *MemoryPairingRepository {
	return &MemoryPairingRepository{
		records:   make(map[string]*model.PairingRecord),
		retention: retention,
	}
}

func (r *MemoryPairingRepository) Create(ctx context.Context, params model.CreatePairingRecordParams) (*model.PairingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[params.Code]; exists {
		return nil, fmt.Errorf("pairing code already exists")
	}

	rec := &model.PairingRecord{
		Code:      params.Code,
		TenantID:  params.TenantID,
		Status:    model.PairingStatusPending,
		CreatedAt: time.Now(),
		ExpiresAt: params.ExpiresAt,
	}
	r.records[params.Code] = rec

	clone := *rec
	return &clone, nil
}

func (r *MemoryPairingRepository) FindByCode(ctx context.Context, code string) (*model.PairingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[code]
	if !ok {
		return nil, nil
	}
	clone := *rec
	return &clone, nil
}

func (r *MemoryPairingRepository) CountPendingByTenantID(ctx context.Context, tenantID string, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, rec := range r.records {
		if rec.TenantID == tenantID && rec.Status == model.PairingStatusPending && rec.ExpiresAt.After(now) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryPairingRepository) Confirm(ctx context.Context, code string, device model.DeviceInfo, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[code]
	if !ok || rec.Status != model.PairingStatusPending || !rec.ExpiresAt.After(now) {
		return false, nil
	}

	name, os := device.Name, device.OS
	confirmedAt := now
	rec.Status = model.PairingStatusConfirmed
	rec.DeviceName = &name
	rec.DeviceOS = &os
	rec.ConfirmedAt = &confirmedAt
	return true, nil
}

func (r *MemoryPairingRepository) Cancel(ctx context.Context, code, tenantID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[code]
	if !ok || rec.TenantID != tenantID {
		return false, nil
	}
	if rec.Status != model.PairingStatusPending && rec.Status != model.PairingStatusConfirmed {
		return false, nil
	}
	rec.Status = model.PairingStatusCancelled
	return true, nil
}

func (r *MemoryPairingRepository) DeleteExpired(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.retention)
	var deleted int64
	for code, rec := range r.records {
		stalePending := rec.Status == model.PairingStatusPending && rec.ExpiresAt.Before(cutoff)
		if rec.Status == model.PairingStatusCancelled || stalePending {
			delete(r.records, code)
			deleted++
		}
	}
	return deleted, nil
}
