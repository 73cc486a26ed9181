package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/pveiga/agendle/internal/model"
	"github.com/pveiga/agendle/libs/db"
)

type TenantRepository struct {
	pool *db.Pool
}

func NewTenantRepository(pool *db.Pool) *TenantRepository {
	return &TenantRepository{pool: pool}
}

func (r *TenantRepository) Create(ctx context.Context, t *model.Tenant) error {
	t.ID = uuid.NewString()
	return r.pool.QueryRow(ctx, `
		INSERT INTO tenants (id, tenant_key, business_name, contact_email, contact_phone, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, t.ID, t.Key, t.BusinessName, t.ContactEmail, t.ContactPhone, t.Active).Scan(&t.CreatedAt)
}

func (r *TenantRepository) FindByKey(ctx context.Context, key string) (model.Tenant, error) {
	var t model.Tenant
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_key, business_name, COALESCE(contact_email, ''), COALESCE(contact_phone, ''), active, created_at
		FROM tenants
		WHERE tenant_key = $1
	`, key).Scan(&t.ID, &t.Key, &t.BusinessName, &t.ContactEmail, &t.ContactPhone, &t.Active, &t.CreatedAt)
	if err != nil {
		return model.Tenant{}, err
	}
	return t, nil
}

func (r *TenantRepository) ListActiveKeys(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT tenant_key FROM tenants WHERE active = true ORDER BY tenant_key ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return keys, nil
}

func (r *TenantRepository) SetActive(ctx context.Context, key string, active bool) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tenants SET active = $2 WHERE tenant_key = $1
	`, key, active)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
