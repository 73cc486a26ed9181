package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pveiga/agendle/internal/interval"
	"github.com/pveiga/agendle/internal/model"
	"github.com/pveiga/agendle/libs/db"
)

type ServiceRepository struct {
	pool *db.Pool
}

func NewServiceRepository(pool *db.Pool) *ServiceRepository {
	return &ServiceRepository{pool: pool}
}

func (r *ServiceRepository) Create(ctx context.Context, s *model.Service) error {
	s.ID = uuid.NewString()
	return r.pool.QueryRow(ctx, `
		INSERT INTO services (id, tenant_key, name, duration_minutes, price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, s.ID, s.TenantID, s.Name, s.DurationMins, s.Price).Scan(&s.CreatedAt)
}

func (r *ServiceRepository) Find(ctx context.Context, tenantID, serviceID string) (model.Service, error) {
	var s model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_key, name, duration_minutes, price, created_at
		FROM services
		WHERE id = $1 AND tenant_key = $2
	`, serviceID, tenantID).Scan(&s.ID, &s.TenantID, &s.Name, &s.DurationMins, &s.Price, &s.CreatedAt)
	if err != nil {
		return model.Service{}, err
	}
	return s, nil
}

func (r *ServiceRepository) ListByTenant(ctx context.Context, tenantID string) ([]model.Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_key, name, duration_minutes, price, created_at
		FROM services
		WHERE tenant_key = $1
		ORDER BY name ASC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanServices(rows)
}

// ListByIDs resolves the given ids to services, preserving request order and
// silently skipping ids that do not exist for the tenant.
func (r *ServiceRepository) ListByIDs(ctx context.Context, tenantID string, serviceIDs []string) ([]model.Service, error) {
	if len(serviceIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_key, name, duration_minutes, price, created_at
		FROM services
		WHERE tenant_key = $1 AND id = ANY($2)
	`, tenantID, serviceIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found, err := scanServices(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Service, len(found))
	for _, s := range found {
		byID[s.ID] = s
	}
	ordered := make([]model.Service, 0, len(serviceIDs))
	for _, id := range serviceIDs {
		if s, ok := byID[id]; ok {
			ordered = append(ordered, s)
		}
	}
	return ordered, nil
}

func (r *ServiceRepository) Update(ctx context.Context, s *model.Service) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE services
		SET name = $3, duration_minutes = $4, price = $5
		WHERE id = $1 AND tenant_key = $2
	`, s.ID, s.TenantID, s.Name, s.DurationMins, s.Price)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// HasFutureAppointments reports whether any appointment at or after the given
// instant still references the service.
func (r *ServiceRepository) HasFutureAppointments(ctx context.Context, tenantID, serviceID string, today time.Time, now interval.Clock) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointment_services aps
			JOIN appointments a ON a.id = aps.appointment_id
			WHERE aps.service_id = $1
				AND a.tenant_key = $2
				AND (a.appt_date > $3 OR (a.appt_date = $3 AND a.start_minute >= $4))
		)
	`, serviceID, tenantID, today, int(now)).Scan(&exists)
	return exists, err
}

// Delete removes the service together with its professional links and the
// references held by past appointments.
func (r *ServiceRepository) Delete(ctx context.Context, tenantID, serviceID string) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		DELETE FROM professional_services WHERE service_id = $1
	`, serviceID); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM appointment_services WHERE service_id = $1
	`, serviceID); err != nil {
		return false, err
	}
	tag, err := tx.Exec(ctx, `
		DELETE FROM services WHERE id = $1 AND tenant_key = $2
	`, serviceID, tenantID)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanServices(rows pgx.Rows) ([]model.Service, error) {
	var services []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.TenantID, &s.Name, &s.DurationMins, &s.Price, &s.CreatedAt); err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return services, nil
}
