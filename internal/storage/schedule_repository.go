package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pveiga/agendle/internal/interval"
	"github.com/pveiga/agendle/internal/model"
	"github.com/pveiga/agendle/libs/db"
)

// ScheduleRepository persists working hours, day blocks and interval blocks.
type ScheduleRepository struct {
	pool *db.Pool
}

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

func (r *ScheduleRepository) WorkingHours(ctx context.Context, tenantID, professionalID string) (model.WorkingHours, bool, error) {
	var (
		wh          model.WorkingHours
		start, end  int
		slotMinutes int
	)
	err := r.pool.QueryRow(ctx, `
		SELECT tenant_key, COALESCE(professional_id::text, ''), start_minute, end_minute, slot_minutes
		FROM working_hours
		WHERE tenant_key = $1 AND professional_id = $2
	`, tenantID, professionalID).Scan(&wh.TenantID, &wh.ProfessionalID, &start, &end, &slotMinutes)
	if IsNotFound(err) {
		return model.WorkingHours{}, false, nil
	}
	if err != nil {
		return model.WorkingHours{}, false, err
	}
	wh.Start, wh.End, wh.SlotMinutes = interval.Clock(start), interval.Clock(end), slotMinutes
	return wh, true, nil
}

func (r *ScheduleRepository) TenantWorkingHours(ctx context.Context, tenantID string) (model.WorkingHours, bool, error) {
	var (
		wh          model.WorkingHours
		start, end  int
		slotMinutes int
	)
	err := r.pool.QueryRow(ctx, `
		SELECT tenant_key, '', start_minute, end_minute, slot_minutes
		FROM working_hours
		WHERE tenant_key = $1 AND professional_id IS NULL
	`, tenantID).Scan(&wh.TenantID, &wh.ProfessionalID, &start, &end, &slotMinutes)
	if IsNotFound(err) {
		return model.WorkingHours{}, false, nil
	}
	if err != nil {
		return model.WorkingHours{}, false, err
	}
	wh.Start, wh.End, wh.SlotMinutes = interval.Clock(start), interval.Clock(end), slotMinutes
	return wh, true, nil
}

func (r *ScheduleRepository) UpsertWorkingHours(ctx context.Context, wh model.WorkingHours) error {
	if wh.ProfessionalID == "" {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO working_hours (tenant_key, professional_id, start_minute, end_minute, slot_minutes)
			VALUES ($1, NULL, $2, $3, $4)
			ON CONFLICT (tenant_key) WHERE professional_id IS NULL
			DO UPDATE SET start_minute = $2, end_minute = $3, slot_minutes = $4
		`, wh.TenantID, int(wh.Start), int(wh.End), wh.SlotMinutes)
		return err
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO working_hours (tenant_key, professional_id, start_minute, end_minute, slot_minutes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_key, professional_id)
		DO UPDATE SET start_minute = $3, end_minute = $4, slot_minutes = $5
	`, wh.TenantID, wh.ProfessionalID, int(wh.Start), int(wh.End), wh.SlotMinutes)
	return err
}

func (r *ScheduleRepository) DeleteWorkingHours(ctx context.Context, tenantID, professionalID string) (bool, error) {
	var (
		tag pgconn.CommandTag
		err error
	)
	if professionalID == "" {
		tag, err = r.pool.Exec(ctx, `
			DELETE FROM working_hours WHERE tenant_key = $1 AND professional_id IS NULL
		`, tenantID)
	} else {
		tag, err = r.pool.Exec(ctx, `
			DELETE FROM working_hours WHERE tenant_key = $1 AND professional_id = $2
		`, tenantID, professionalID)
	}
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ScheduleRepository) DayBlockExists(ctx context.Context, tenantID string, date time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM day_blocks
			WHERE tenant_key = $1 AND recurring = false AND block_date = $2
		)
	`, tenantID, date).Scan(&exists)
	return exists, err
}

func (r *ScheduleRepository) RecurringDayBlockExists(ctx context.Context, tenantID string, weekday time.Weekday) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM day_blocks
			WHERE tenant_key = $1 AND recurring = true AND weekday = $2
		)
	`, tenantID, int(weekday)).Scan(&exists)
	return exists, err
}

func (r *ScheduleRepository) InsertDayBlock(ctx context.Context, b *model.DayBlock) error {
	b.ID = uuid.NewString()
	if b.Recurring {
		return r.pool.QueryRow(ctx, `
			INSERT INTO day_blocks (id, tenant_key, recurring, weekday, reason)
			VALUES ($1, $2, true, $3, $4)
			RETURNING created_at
		`, b.ID, b.TenantID, int(b.Weekday), b.Reason).Scan(&b.CreatedAt)
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO day_blocks (id, tenant_key, recurring, block_date, reason)
		VALUES ($1, $2, false, $3, $4)
		RETURNING created_at
	`, b.ID, b.TenantID, b.Date, b.Reason).Scan(&b.CreatedAt)
}

func (r *ScheduleRepository) FindDayBlock(ctx context.Context, blockID string) (model.DayBlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_key, recurring, block_date, weekday, COALESCE(reason, ''), created_at
		FROM day_blocks
		WHERE id = $1
	`, blockID)
	if err != nil {
		return model.DayBlock{}, err
	}
	defer rows.Close()
	blocks, err := scanDayBlocks(rows)
	if err != nil {
		return model.DayBlock{}, err
	}
	if len(blocks) == 0 {
		return model.DayBlock{}, pgx.ErrNoRows
	}
	return blocks[0], nil
}

func (r *ScheduleRepository) DeleteDayBlock(ctx context.Context, blockID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM day_blocks WHERE id = $1`, blockID)
	return err
}

func (r *ScheduleRepository) ListDayBlocks(ctx context.Context, tenantID string, recurring bool) ([]model.DayBlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_key, recurring, block_date, weekday, COALESCE(reason, ''), created_at
		FROM day_blocks
		WHERE tenant_key = $1 AND recurring = $2
		ORDER BY created_at ASC
	`, tenantID, recurring)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDayBlocks(rows)
}

// IntervalBlocksFor returns every interval block that applies to the
// professional on the given date, both specific-date and recurring-weekday.
func (r *ScheduleRepository) IntervalBlocksFor(ctx context.Context, tenantID, professionalID string, date time.Time) ([]model.IntervalBlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_key, professional_id::text, recurring, block_date, weekday,
			start_minute, end_minute, COALESCE(reason, ''), created_at
		FROM interval_blocks
		WHERE tenant_key = $1
			AND professional_id = $2
			AND ((recurring = false AND block_date = $3) OR (recurring = true AND weekday = $4))
		ORDER BY start_minute ASC
	`, tenantID, professionalID, date, int(date.Weekday()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIntervalBlocks(rows)
}

func (r *ScheduleRepository) IntervalBlocksOnDate(ctx context.Context, tenantID, professionalID string, date time.Time) ([]model.IntervalBlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_key, professional_id::text, recurring, block_date, weekday,
			start_minute, end_minute, COALESCE(reason, ''), created_at
		FROM interval_blocks
		WHERE tenant_key = $1 AND professional_id = $2 AND recurring = false AND block_date = $3
		ORDER BY start_minute ASC
	`, tenantID, professionalID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIntervalBlocks(rows)
}

func (r *ScheduleRepository) RecurringIntervalBlocks(ctx context.Context, tenantID, professionalID string, weekday time.Weekday) ([]model.IntervalBlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_key, professional_id::text, recurring, block_date, weekday,
			start_minute, end_minute, COALESCE(reason, ''), created_at
		FROM interval_blocks
		WHERE tenant_key = $1 AND professional_id = $2 AND recurring = true AND weekday = $3
		ORDER BY start_minute ASC
	`, tenantID, professionalID, int(weekday))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIntervalBlocks(rows)
}

func (r *ScheduleRepository) InsertIntervalBlock(ctx context.Context, b *model.IntervalBlock) error {
	b.ID = uuid.NewString()
	if b.Recurring {
		return r.pool.QueryRow(ctx, `
			INSERT INTO interval_blocks (id, tenant_key, professional_id, recurring, weekday, start_minute, end_minute, reason)
			VALUES ($1, $2, $3, true, $4, $5, $6, $7)
			RETURNING created_at
		`, b.ID, b.TenantID, b.ProfessionalID, int(b.Weekday), int(b.Start), int(b.End), b.Reason).Scan(&b.CreatedAt)
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO interval_blocks (id, tenant_key, professional_id, recurring, block_date, start_minute, end_minute, reason)
		VALUES ($1, $2, $3, false, $4, $5, $6, $7)
		RETURNING created_at
	`, b.ID, b.TenantID, b.ProfessionalID, b.Date, int(b.Start), int(b.End), b.Reason).Scan(&b.CreatedAt)
}

func (r *ScheduleRepository) FindIntervalBlock(ctx context.Context, blockID string) (model.IntervalBlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_key, professional_id::text, recurring, block_date, weekday,
			start_minute, end_minute, COALESCE(reason, ''), created_at
		FROM interval_blocks
		WHERE id = $1
	`, blockID)
	if err != nil {
		return model.IntervalBlock{}, err
	}
	defer rows.Close()
	blocks, err := scanIntervalBlocks(rows)
	if err != nil {
		return model.IntervalBlock{}, err
	}
	if len(blocks) == 0 {
		return model.IntervalBlock{}, pgx.ErrNoRows
	}
	return blocks[0], nil
}

func (r *ScheduleRepository) DeleteIntervalBlock(ctx context.Context, blockID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM interval_blocks WHERE id = $1`, blockID)
	return err
}

func (r *ScheduleRepository) ListIntervalBlocks(ctx context.Context, tenantID string, recurring bool) ([]model.IntervalBlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_key, professional_id::text, recurring, block_date, weekday,
			start_minute, end_minute, COALESCE(reason, ''), created_at
		FROM interval_blocks
		WHERE tenant_key = $1 AND recurring = $2
		ORDER BY created_at ASC
	`, tenantID, recurring)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIntervalBlocks(rows)
}

func scanDayBlocks(rows pgx.Rows) ([]model.DayBlock, error) {
	var blocks []model.DayBlock
	for rows.Next() {
		var (
			b       model.DayBlock
			date    *time.Time
			weekday *int
		)
		if err := rows.Scan(&b.ID, &b.TenantID, &b.Recurring, &date, &weekday, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		if date != nil {
			b.Date = *date
		}
		if weekday != nil {
			b.Weekday = time.Weekday(*weekday)
		}
		blocks = append(blocks, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return blocks, nil
}

func scanIntervalBlocks(rows pgx.Rows) ([]model.IntervalBlock, error) {
	var blocks []model.IntervalBlock
	for rows.Next() {
		var (
			b          model.IntervalBlock
			date       *time.Time
			weekday    *int
			start, end int
		)
		if err := rows.Scan(&b.ID, &b.TenantID, &b.ProfessionalID, &b.Recurring, &date, &weekday,
			&start, &end, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		if date != nil {
			b.Date = *date
		}
		if weekday != nil {
			b.Weekday = time.Weekday(*weekday)
		}
		b.Start, b.End = interval.Clock(start), interval.Clock(end)
		blocks = append(blocks, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return blocks, nil
}
