// Package reminder sends WhatsApp reminders ahead of upcoming appointments.
// The sweep is idempotent per appointment: the reminder_sent flag is written
// only after a successful send, so a failed delivery retries on the next
// tick and a sent one never repeats.
package reminder

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pveiga/agendle/internal/interval"
	"github.com/pveiga/agendle/internal/model"
	"github.com/pveiga/agendle/internal/notify"
	"github.com/pveiga/agendle/internal/outbox"
)

type TenantSource interface {
	ListActiveKeys(ctx context.Context) ([]string, error)
}

type AppointmentStore interface {
	ListDueReminders(ctx context.Context, tenantID string, fromDate time.Time, from interval.Clock, toDate time.Time, to interval.Clock) ([]model.Appointment, error)
	MarkReminderSent(ctx context.Context, tenantID, appointmentID string) error
}

type EventSink interface {
	RecordReminded(ctx context.Context, appt model.Appointment, payload []byte) error
}

// OutboxSink records reminded events in the transactional outbox.
type OutboxSink struct {
	Repo *outbox.Repository
}

func (s OutboxSink) RecordReminded(ctx context.Context, appt model.Appointment, payload []byte) error {
	return s.Repo.InsertDirect(ctx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentReminded,
		Payload:       payload,
	})
}

type Sweeper struct {
	tenants   TenantSource
	appts     AppointmentStore
	notifier  notify.Sender
	events    EventSink
	logger    *slog.Logger
	interval  time.Duration
	lookahead time.Duration
	now       func() time.Time
}

type Config struct {
	Interval  time.Duration
	Lookahead time.Duration
}

func NewSweeper(tenants TenantSource, appts AppointmentStore, notifier notify.Sender, events EventSink, logger *slog.Logger, cfg Config) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Lookahead <= 0 {
		cfg.Lookahead = 2 * time.Hour
	}
	return &Sweeper{
		tenants:   tenants,
		appts:     appts,
		notifier:  notifier,
		events:    events,
		logger:    logger,
		interval:  cfg.Interval,
		lookahead: cfg.Lookahead,
		now:       time.Now,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("reminder sweeper started",
		"interval", s.interval.String(),
		"lookahead", s.lookahead.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reminder sweeper stopped")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error("reminder sweep failed", "err", err)
			}
		}
	}
}

// Sweep scans every active tenant for appointments starting inside the
// lookahead window and delivers their reminders.
func (s *Sweeper) Sweep(ctx context.Context) error {
	tenants, err := s.tenants.ListActiveKeys(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	limit := now.Add(s.lookahead)
	fromDate, from := splitInstant(now)
	toDate, to := splitInstant(limit)

	for _, tenantID := range tenants {
		due, err := s.appts.ListDueReminders(ctx, tenantID, fromDate, from, toDate, to)
		if err != nil {
			s.logger.Error("reminder query failed", "tenant_id", tenantID, "err", err)
			continue
		}
		for _, appt := range due {
			s.remind(ctx, appt)
		}
	}
	return nil
}

func (s *Sweeper) remind(ctx context.Context, appt model.Appointment) {
	err := s.notifier.Send(ctx, notify.KindReminder, notify.Message{
		TenantID:   appt.TenantID,
		Phone:      appt.ClientPhone,
		ClientName: appt.ClientName,
		Date:       appt.DateString(),
		Time:       appt.Start.String(),
		Services:   appt.ServiceNames(),
		Amount:     appt.TotalPrice(),
	})
	if err != nil {
		// Flag stays unset, the next sweep retries.
		s.logger.Warn("reminder delivery failed",
			"tenant_id", appt.TenantID,
			"appointment_id", appt.ID,
			"provider", s.notifier.ProviderID(),
			"err", err)
		return
	}
	if err := s.appts.MarkReminderSent(ctx, appt.TenantID, appt.ID); err != nil {
		s.logger.Error("marking reminder sent failed",
			"tenant_id", appt.TenantID,
			"appointment_id", appt.ID,
			"err", err)
		return
	}
	if s.events != nil {
		payload, err := json.Marshal(map[string]string{
			"appointmentId": appt.ID,
			"tenantId":      appt.TenantID,
			"date":          appt.DateString(),
			"start":         appt.Start.String(),
		})
		if err == nil {
			if err := s.events.RecordReminded(ctx, appt, payload); err != nil {
				s.logger.Warn("reminded event not recorded",
					"appointment_id", appt.ID,
					"err", err)
			}
		}
	}
	s.logger.Info("reminder sent",
		"tenant_id", appt.TenantID,
		"appointment_id", appt.ID,
		"date", appt.DateString(),
		"start", appt.Start.String())
}

func splitInstant(t time.Time) (time.Time, interval.Clock) {
	date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return date, interval.Clock(t.Hour()*60 + t.Minute())
}
