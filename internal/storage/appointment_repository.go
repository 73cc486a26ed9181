package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pveiga/agendle/internal/interval"
	"github.com/pveiga/agendle/internal/model"
	"github.com/pveiga/agendle/internal/outbox"
	"github.com/pveiga/agendle/libs/db"
	otelx "github.com/pveiga/agendle/libs/otel"
)

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

// TxView is the view handed to Transact callbacks. Everything runs on one
// transaction holding the professional's day lock, so an overlap check
// followed by an insert cannot race a concurrent booking.
type TxView interface {
	ListForDay(ctx context.Context, tenantID, professionalID string, date time.Time) ([]model.Appointment, error)
	Insert(ctx context.Context, appt *model.Appointment) error
	InsertEvent(ctx context.Context, evt outbox.Event) error
}

type AppointmentTx struct {
	tx pgx.Tx
}

// Transact begins a transaction, takes an advisory lock scoped to the
// professional and date, and runs fn. The lock is released on commit or
// rollback.
func (r *AppointmentRepository) Transact(ctx context.Context, professionalID string, date time.Time, fn func(TxView) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lockKey := professionalID + ":" + date.Format(model.DateLayout)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
		return err
	}
	if err := fn(AppointmentTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (t AppointmentTx) ListForDay(ctx context.Context, tenantID, professionalID string, date time.Time) ([]model.Appointment, error) {
	rows, err := t.tx.Query(ctx, appointmentSelect+`
		WHERE tenant_key = $1 AND professional_id = $2 AND appt_date = $3
		ORDER BY start_minute ASC
	`, tenantID, professionalID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (t AppointmentTx) Insert(ctx context.Context, appt *model.Appointment) error {
	appt.ID = uuid.NewString()
	err := t.tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, tenant_key, professional_id, appt_date, start_minute, end_minute, client_name, client_phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, appt.ID, appt.TenantID, appt.ProfessionalID, appt.Date, int(appt.Start), int(appt.End),
		appt.ClientName, appt.ClientPhone).Scan(&appt.CreatedAt)
	if err != nil {
		return err
	}
	for i, svc := range appt.Services {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO appointment_services (appointment_id, service_id, position)
			VALUES ($1, $2, $3)
		`, appt.ID, svc.ID, i); err != nil {
			return err
		}
	}
	return nil
}

func (t AppointmentTx) InsertEvent(ctx context.Context, evt outbox.Event) error {
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	_, err := t.tx.Exec(ctx, `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, traceparent, tracestate)
	return err
}

const appointmentSelect = `
	SELECT id, tenant_key, professional_id::text, appt_date, start_minute, end_minute,
		client_name, COALESCE(client_phone, ''), reminder_sent, created_at
	FROM appointments
`

func (r *AppointmentRepository) Find(ctx context.Context, tenantID, appointmentID string) (model.Appointment, error) {
	rows, err := r.pool.Query(ctx, appointmentSelect+`
		WHERE id = $1 AND tenant_key = $2
	`, appointmentID, tenantID)
	if err != nil {
		return model.Appointment{}, err
	}
	defer rows.Close()
	appts, err := scanAppointments(rows)
	if err != nil {
		return model.Appointment{}, err
	}
	if len(appts) == 0 {
		return model.Appointment{}, pgx.ErrNoRows
	}
	appt := appts[0]
	if err := r.attachServices(ctx, tenantID, &appt); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepository) Delete(ctx context.Context, tenantID, appointmentID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		DELETE FROM appointment_services WHERE appointment_id = $1
	`, appointmentID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM appointments WHERE id = $1 AND tenant_key = $2
	`, appointmentID, tenantID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// DeleteWithEvent removes the appointment and records the cancellation in the
// outbox on the same transaction.
func (r *AppointmentRepository) DeleteWithEvent(ctx context.Context, tenantID, appointmentID string, evt outbox.Event) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		DELETE FROM appointment_services WHERE appointment_id = $1
	`, appointmentID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM appointments WHERE id = $1 AND tenant_key = $2
	`, appointmentID, tenantID); err != nil {
		return err
	}
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	if _, err := tx.Exec(ctx, `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, traceparent, tracestate); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *AppointmentRepository) ListForDay(ctx context.Context, tenantID, professionalID string, date time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, appointmentSelect+`
		WHERE tenant_key = $1 AND professional_id = $2 AND appt_date = $3
		ORDER BY start_minute ASC
	`, tenantID, professionalID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (r *AppointmentRepository) ListByTenantAndDate(ctx context.Context, tenantID string, date time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, appointmentSelect+`
		WHERE tenant_key = $1 AND appt_date = $2
		ORDER BY start_minute ASC
	`, tenantID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	appts, err := scanAppointments(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachServicesAll(ctx, tenantID, appts); err != nil {
		return nil, err
	}
	return appts, nil
}

func (r *AppointmentRepository) ListByTenant(ctx context.Context, tenantID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, appointmentSelect+`
		WHERE tenant_key = $1
		ORDER BY appt_date DESC, start_minute DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	appts, err := scanAppointments(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachServicesAll(ctx, tenantID, appts); err != nil {
		return nil, err
	}
	return appts, nil
}

// ListFutureByPhone returns upcoming appointments for a phone number in
// ascending chronological order.
func (r *AppointmentRepository) ListFutureByPhone(ctx context.Context, tenantID, phone string, today time.Time, now interval.Clock) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, appointmentSelect+`
		WHERE tenant_key = $1
			AND client_phone = $2
			AND (appt_date > $3 OR (appt_date = $3 AND start_minute >= $4))
		ORDER BY appt_date ASC, start_minute ASC
	`, tenantID, phone, today, int(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	appts, err := scanAppointments(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachServicesAll(ctx, tenantID, appts); err != nil {
		return nil, err
	}
	return appts, nil
}

// ListPastByPhone returns past appointments for a phone number, most recent
// first.
func (r *AppointmentRepository) ListPastByPhone(ctx context.Context, tenantID, phone string, today time.Time, now interval.Clock) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, appointmentSelect+`
		WHERE tenant_key = $1
			AND client_phone = $2
			AND (appt_date < $3 OR (appt_date = $3 AND start_minute < $4))
		ORDER BY appt_date DESC, start_minute DESC
	`, tenantID, phone, today, int(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	appts, err := scanAppointments(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachServicesAll(ctx, tenantID, appts); err != nil {
		return nil, err
	}
	return appts, nil
}

// ListDueReminders returns unsent appointments falling inside the inclusive
// window from (fromDate, from) through (toDate, to), compared date first and
// start minute second.
func (r *AppointmentRepository) ListDueReminders(ctx context.Context, tenantID string, fromDate time.Time, from interval.Clock, toDate time.Time, to interval.Clock) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, appointmentSelect+`
		WHERE tenant_key = $1
			AND reminder_sent = false
			AND (appt_date > $2 OR (appt_date = $2 AND start_minute >= $3))
			AND (appt_date < $4 OR (appt_date = $4 AND start_minute <= $5))
		ORDER BY appt_date ASC, start_minute ASC
	`, tenantID, fromDate, int(from), toDate, int(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	appts, err := scanAppointments(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachServicesAll(ctx, tenantID, appts); err != nil {
		return nil, err
	}
	return appts, nil
}

func (r *AppointmentRepository) MarkReminderSent(ctx context.Context, tenantID, appointmentID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE appointments SET reminder_sent = true WHERE id = $1 AND tenant_key = $2
	`, appointmentID, tenantID)
	return err
}

func (r *AppointmentRepository) attachServices(ctx context.Context, tenantID string, appt *model.Appointment) error {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.tenant_key, s.name, s.duration_minutes, s.price, s.created_at
		FROM appointment_services aps
		JOIN services s ON s.id = aps.service_id
		WHERE aps.appointment_id = $1
		ORDER BY aps.position ASC
	`, appt.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	services, err := scanServices(rows)
	if err != nil {
		return err
	}
	appt.Services = services
	return nil
}

func (r *AppointmentRepository) attachServicesAll(ctx context.Context, tenantID string, appts []model.Appointment) error {
	if len(appts) == 0 {
		return nil
	}
	ids := make([]string, 0, len(appts))
	for _, a := range appts {
		ids = append(ids, a.ID)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT aps.appointment_id, s.id, s.tenant_key, s.name, s.duration_minutes, s.price, s.created_at
		FROM appointment_services aps
		JOIN services s ON s.id = aps.service_id
		WHERE aps.appointment_id = ANY($1)
		ORDER BY aps.appointment_id, aps.position ASC
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	byAppt := make(map[string][]model.Service, len(appts))
	for rows.Next() {
		var (
			apptID string
			s      model.Service
		)
		if err := rows.Scan(&apptID, &s.ID, &s.TenantID, &s.Name, &s.DurationMins, &s.Price, &s.CreatedAt); err != nil {
			return err
		}
		byAppt[apptID] = append(byAppt[apptID], s)
	}
	if rows.Err() != nil {
		return rows.Err()
	}
	for i := range appts {
		appts[i].Services = byAppt[appts[i].ID]
	}
	return nil
}

func scanAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var appts []model.Appointment
	for rows.Next() {
		var (
			appt       model.Appointment
			start, end int
		)
		if err := rows.Scan(&appt.ID, &appt.TenantID, &appt.ProfessionalID, &appt.Date,
			&start, &end, &appt.ClientName, &appt.ClientPhone, &appt.ReminderSent, &appt.CreatedAt); err != nil {
			return nil, err
		}
		appt.Start, appt.End = interval.Clock(start), interval.Clock(end)
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}
