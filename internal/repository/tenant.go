package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/opsdeck/pairing-server-go/internal/model"
)

type TenantRepository interface {
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.Tenant, error)
}

type tenantRepo struct {
	db *sqlx.DB
}

func NewTenantRepository(db *sqlx.DB) TenantRepository {
	return &tenantRepo{db: db}
}

func (r *tenantRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Tenant, error) {
	var tenant model.Tenant
	err := r.db.GetContext(ctx, &tenant, `
		SELECT * FROM tenants WHERE token_hash = $1
	`, tokenHash)
	return HandleNotFound(&tenant, err)
}
