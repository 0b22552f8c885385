package service

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/opsdeck/pairing-server-go/internal/config"
	apperrors "github.com/opsdeck/pairing-server-go/internal/errors"
	"github.com/opsdeck/pairing-server-go/internal/model"
	"github.com/opsdeck/pairing-server-go/internal/repository"
	"github.com/opsdeck/pairing-server-go/internal/util"
)

type PairingService struct {
	repo       repository.PairingRepository
	ttl        time.Duration
	maxPending int
}

func NewPairingService(repo repository.PairingRepository, ttl time.Duration, maxPending int) *PairingService {
	return &PairingService{
		repo:       repo,
		ttl:        ttl,
		maxPending: maxPending,
	}
}

// Start issues a fresh pending pairing record for the tenant. The code is
// the only credential the confirming device will ever present, so it comes
// straight from the CSPRNG and is persisted before anything is returned.
func (s *PairingService) Start(ctx context.Context, tenantID string) (*model.PairingRecord, error) {
	if tenantID == "" {
		return nil, apperrors.InvalidTenant()
	}

	now := time.Now()

	pending, err := s.repo.CountPendingByTenantID(ctx, tenantID, now)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("count pending codes: %w", err))
	}
	if pending >= s.maxPending {
		return nil, apperrors.ValidationError(
			fmt.Sprintf("maximum pending pairing codes (%d) reached", s.maxPending))
	}

	code, err := util.GeneratePairingCode()
	if err != nil {
		return nil, apperrors.Internal("failed to generate pairing code").WithCause(err)
	}

	rec, err := s.repo.Create(ctx, model.CreatePairingRecordParams{
		Code:      code,
		TenantID:  tenantID,
		ExpiresAt: now.Add(s.ttl),
	})
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("create pairing record: %w", err))
	}

	log.Info().
		Str("code", util.MaskCode(code)).
		Str("tenantId", tenantID).
		Time("expiresAt", rec.ExpiresAt).
		Msg("pairing started")

	return rec, nil
}

// Status reads a record on behalf of the initiator. A record owned by a
// different tenant is reported as not found, never as a different error.
// Expiry is derived from the clock, so a pending row past its deadline
// reads as expired even before the reaper runs.
func (s *PairingService) Status(ctx context.Context, code, tenantID string) (*model.PairingRecord, error) {
	if tenantID == "" {
		return nil, apperrors.InvalidTenant()
	}

	rec, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find pairing record: %w", err))
	}
	if rec == nil || rec.TenantID != tenantID {
		return nil, apperrors.NotFound("Pairing")
	}

	rec.Status = rec.EffectiveStatus(time.Now())
	return rec, nil
}

// Confirm redeems a code on behalf of the confirming device. The lookup is
// by code alone; the device carries no tenant context. Failure reasons are
// conflated into NotFoundOrExpired so the endpoint cannot be used to probe
// which codes ever existed. AlreadyConfirmed is distinguished only on an
// exact match of a live confirmed code.
func (s *PairingService) Confirm(ctx context.Context, code string, device model.DeviceInfo) error {
	if code == "" {
		return apperrors.NotFoundOrExpired()
	}

	// deviceInfo is opaque display metadata: capped, never validated or
	// trusted beyond rendering.
	device.Name = truncate(device.Name, config.MaxDeviceInfoLen)
	device.OS = truncate(device.OS, config.MaxDeviceInfoLen)

	ok, err := s.repo.Confirm(ctx, code, device, time.Now())
	if err != nil {
		return apperrors.Database(fmt.Errorf("confirm pairing record: %w", err))
	}
	if !ok {
		rec, findErr := s.repo.FindByCode(ctx, code)
		if findErr == nil && rec != nil && rec.Status == model.PairingStatusConfirmed {
			return apperrors.AlreadyConfirmed()
		}
		return apperrors.NotFoundOrExpired()
	}

	log.Info().
		Str("code", util.MaskCode(code)).
		Str("deviceName", device.Name).
		Str("deviceOs", device.OS).
		Msg("pairing confirmed")

	return nil
}

// Cancel aborts a pending pairing or unpairs a confirmed device. It is
// idempotent from the caller's perspective: a missing, foreign-tenant, or
// already-terminal record is a successful no-op, so a cancel racing a
// confirm never surfaces as an error.
func (s *PairingService) Cancel(ctx context.Context, code, tenantID string) error {
	if tenantID == "" {
		return apperrors.InvalidTenant()
	}

	cancelled, err := s.repo.Cancel(ctx, code, tenantID)
	if err != nil {
		return apperrors.Database(fmt.Errorf("cancel pairing record: %w", err))
	}

	if cancelled {
		log.Info().
			Str("code", util.MaskCode(code)).
			Str("tenantId", tenantID).
			Msg("pairing cancelled")
	}

	return nil
}

// truncate caps s at max bytes without splitting a rune, so the stored
// value is always valid UTF-8 (Postgres rejects anything else).
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	for len(cut) > 0 {
		if r, size := utf8.DecodeLastRuneInString(cut); r != utf8.RuneError || size > 1 {
			break
		}
		cut = cut[:len(cut)-1]
	}
	return cut
}
