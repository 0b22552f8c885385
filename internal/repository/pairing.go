package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/opsdeck/pairing-server-go/internal/model"
)

// PairingRepository is the store abstraction for pairing records. The
// Postgres implementation backs production; an in-memory implementation
// (memory.go) backs tests. Expiry is never enforced here on reads, since
// callers derive it from ExpiresAt, but Confirm must refuse codes whose
// deadline has passed so a stale pending row cannot be consumed.
type PairingRepository interface {
	Create(ctx context.Context, params model.CreatePairingRecordParams) (*model.PairingRecord, error)
	FindByCode(ctx context.Context, code string) (*model.PairingRecord, error)
	CountPendingByTenantID(ctx context.Context, tenantID string, now time.Time) (int, error)
	// Confirm atomically transitions pending -> confirmed. Exactly one of
	// any set of concurrent calls for the same code returns true.
	Confirm(ctx context.Context, code string, device model.DeviceInfo, now time.Time) (bool, error)
	// Cancel transitions pending or confirmed -> cancelled, scoped to the
	// owning tenant. Returns false (without error) when nothing matched.
	// Device metadata written by a prior Confirm stays on the row as an
	// audit trail of what was unpaired; readers only surface it for
	// confirmed records.
	Cancel(ctx context.Context, code, tenantID string) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type pairingRepo struct {
	db        *sqlx.DB
	retention time.Duration
}

func NewPairingRepository(db *sqlx.DB, retention time.Duration) PairingRepository {
	return &pairingRepo{db: db, retention: retention}
}

func (r *pairingRepo) Create(ctx context.Context, params model.CreatePairingRecordParams) (*model.PairingRecord, error) {
	var rec model.PairingRecord
	err := r.db.GetContext(ctx, &rec, `
		INSERT INTO pairing_records (code, tenant_id, status, expires_at)
		VALUES ($1, $2, 'pending', $3)
		RETURNING *
	`, params.Code, params.TenantID, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *pairingRepo) FindByCode(ctx context.Context, code string) (*model.PairingRecord, error) {
	var rec model.PairingRecord
	err := r.db.GetContext(ctx, &rec, `
		SELECT * FROM pairing_records WHERE code = $1
	`, code)
	return HandleNotFound(&rec, err)
}

func (r *pairingRepo) CountPendingByTenantID(ctx context.Context, tenantID string, now time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM pairing_records
		WHERE tenant_id = $1 AND status = 'pending' AND expires_at > $2
	`, tenantID, now)
	return count, err
}

func (r *pairingRepo) Confirm(ctx context.Context, code string, device model.DeviceInfo, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE pairing_records SET
			status = 'confirmed',
			device_name = $2,
			device_os = $3,
			confirmed_at = $4
		WHERE code = $1 AND status = 'pending' AND expires_at > $4
	`, code, device.Name, device.OS, now)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *pairingRepo) Cancel(ctx context.Context, code, tenantID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE pairing_records SET status = 'cancelled'
		WHERE code = $1 AND tenant_id = $2 AND status IN ('pending', 'confirmed')
	`, code, tenantID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *pairingRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM pairing_records
		WHERE status = 'cancelled'
		   OR (status = 'pending' AND expires_at < $1)
	`, time.Now().Add(-r.retention))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
