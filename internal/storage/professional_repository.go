package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/pveiga/agendle/internal/model"
	"github.com/pveiga/agendle/libs/db"
)

type ProfessionalRepository struct {
	pool *db.Pool
}

func NewProfessionalRepository(pool *db.Pool) *ProfessionalRepository {
	return &ProfessionalRepository{pool: pool}
}

func (r *ProfessionalRepository) Create(ctx context.Context, p *model.Professional) error {
	p.ID = uuid.NewString()
	return r.pool.QueryRow(ctx, `
		INSERT INTO professionals (id, tenant_key, name, email, phone, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, p.ID, p.TenantID, p.Name, p.Email, p.Phone, p.Active).Scan(&p.CreatedAt)
}

func (r *ProfessionalRepository) Find(ctx context.Context, tenantID, professionalID string) (model.Professional, error) {
	var p model.Professional
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_key, name, COALESCE(email, ''), COALESCE(phone, ''), active, created_at
		FROM professionals
		WHERE id = $1 AND tenant_key = $2
	`, professionalID, tenantID).Scan(&p.ID, &p.TenantID, &p.Name, &p.Email, &p.Phone, &p.Active, &p.CreatedAt)
	if err != nil {
		return model.Professional{}, err
	}
	return p, nil
}

func (r *ProfessionalRepository) ListByTenant(ctx context.Context, tenantID string) ([]model.Professional, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_key, name, COALESCE(email, ''), COALESCE(phone, ''), active, created_at
		FROM professionals
		WHERE tenant_key = $1
		ORDER BY name ASC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pros []model.Professional
	for rows.Next() {
		var p model.Professional
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.Email, &p.Phone, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		pros = append(pros, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return pros, nil
}

func (r *ProfessionalRepository) SetActive(ctx context.Context, tenantID, professionalID string, active bool) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE professionals SET active = $3 WHERE id = $1 AND tenant_key = $2
	`, professionalID, tenantID, active)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ReplaceServiceLinks swaps the full set of services a professional is
// qualified for in one transaction.
func (r *ProfessionalRepository) ReplaceServiceLinks(ctx context.Context, professionalID string, serviceIDs []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		DELETE FROM professional_services WHERE professional_id = $1
	`, professionalID); err != nil {
		return err
	}
	for _, serviceID := range serviceIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO professional_services (professional_id, service_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, professionalID, serviceID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *ProfessionalRepository) Unlink(ctx context.Context, professionalID, serviceID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM professional_services WHERE professional_id = $1 AND service_id = $2
	`, professionalID, serviceID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ProfessionalRepository) LinkedServiceIDs(ctx context.Context, professionalID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT service_id::text FROM professional_services WHERE professional_id = $1
	`, professionalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return ids, nil
}

// QualifiedForAll reports whether the professional is linked to every one of
// the given services. An empty service set counts as unqualified.
func (r *ProfessionalRepository) QualifiedForAll(ctx context.Context, professionalID string, serviceIDs []string) (bool, error) {
	if len(serviceIDs) == 0 {
		return false, nil
	}
	var linked int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT service_id)
		FROM professional_services
		WHERE professional_id = $1 AND service_id = ANY($2)
	`, professionalID, serviceIDs).Scan(&linked)
	if err != nil {
		return false, err
	}
	return linked == len(uniqueStrings(serviceIDs)), nil
}

// ListQualified returns the active professionals linked to every one of the
// given services.
func (r *ProfessionalRepository) ListQualified(ctx context.Context, tenantID string, serviceIDs []string) ([]model.Professional, error) {
	ids := uniqueStrings(serviceIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.tenant_key, p.name, COALESCE(p.email, ''), COALESCE(p.phone, ''), p.active, p.created_at
		FROM professionals p
		JOIN professional_services ps ON ps.professional_id = p.id
		WHERE p.tenant_key = $1
			AND p.active = true
			AND ps.service_id = ANY($2)
		GROUP BY p.id
		HAVING COUNT(DISTINCT ps.service_id) = $3
		ORDER BY p.name ASC
	`, tenantID, ids, len(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pros []model.Professional
	for rows.Next() {
		var p model.Professional
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.Email, &p.Phone, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		pros = append(pros, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return pros, nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
