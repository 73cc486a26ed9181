// Package booking validates and commits appointments. Every constraint the
// availability read checked is re-checked here, because a reported slot can
// go stale between the read and the commit.
package booking

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pveiga/agendle/internal/apperr"
	"github.com/pveiga/agendle/internal/interval"
	"github.com/pveiga/agendle/internal/model"
	"github.com/pveiga/agendle/internal/notify"
	"github.com/pveiga/agendle/internal/outbox"
	"github.com/pveiga/agendle/internal/storage"
)

type TenantStore interface {
	FindByKey(ctx context.Context, key string) (model.Tenant, error)
}

type ProfessionalStore interface {
	Find(ctx context.Context, tenantID, professionalID string) (model.Professional, error)
	QualifiedForAll(ctx context.Context, professionalID string, serviceIDs []string) (bool, error)
}

type ServiceStore interface {
	ListByIDs(ctx context.Context, tenantID string, serviceIDs []string) ([]model.Service, error)
}

type HoursSource interface {
	Resolve(ctx context.Context, tenantID, professionalID string) (model.WorkingHours, error)
}

type BlockSource interface {
	IsDayBlocked(ctx context.Context, tenantID string, date time.Time) (bool, error)
	BlockedIntervals(ctx context.Context, tenantID, professionalID string, date time.Time) ([]model.IntervalBlock, error)
}

type Ledger interface {
	Transact(ctx context.Context, professionalID string, date time.Time, fn func(tx storage.TxView) error) error
	Find(ctx context.Context, tenantID, appointmentID string) (model.Appointment, error)
	DeleteWithEvent(ctx context.Context, tenantID, appointmentID string, evt outbox.Event) error
	ListByTenantAndDate(ctx context.Context, tenantID string, date time.Time) ([]model.Appointment, error)
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]model.Appointment, error)
	ListFutureByPhone(ctx context.Context, tenantID, phone string, today time.Time, now interval.Clock) ([]model.Appointment, error)
	ListPastByPhone(ctx context.Context, tenantID, phone string, today time.Time, now interval.Clock) ([]model.Appointment, error)
}

type Service struct {
	tenants       TenantStore
	professionals ProfessionalStore
	services      ServiceStore
	hours         HoursSource
	blocks        BlockSource
	ledger        Ledger
	notifier      notify.Sender
	logger        *slog.Logger
	now           func() time.Time
}

func NewService(tenants TenantStore, professionals ProfessionalStore, services ServiceStore,
	hours HoursSource, blocks BlockSource, ledger Ledger, notifier notify.Sender, logger *slog.Logger) *Service {
	return &Service{
		tenants:       tenants,
		professionals: professionals,
		services:      services,
		hours:         hours,
		blocks:        blocks,
		ledger:        ledger,
		notifier:      notifier,
		logger:        logger,
		now:           time.Now,
	}
}

type CreateRequest struct {
	TenantID       string
	ProfessionalID string
	Date           time.Time
	Start          interval.Clock
	ServiceIDs     []string
	ClientName     string
	ClientPhone    string
}

type bookedPayload struct {
	AppointmentID  string   `json:"appointmentId"`
	TenantID       string   `json:"tenantId"`
	ProfessionalID string   `json:"professionalId"`
	Date           string   `json:"date"`
	Start          string   `json:"start"`
	End            string   `json:"end"`
	ClientName     string   `json:"clientName"`
	ClientPhone    string   `json:"clientPhone,omitempty"`
	Services       []string `json:"services,omitempty"`
}

// Create runs the full validation pipeline and commits the appointment. The
// checks run in a fixed order so callers get the most specific failure:
// tenant, professional, day block, services, qualification, hours, interval
// block, and finally the overlap check under the day lock.
func (s *Service) Create(ctx context.Context, req CreateRequest) (model.Appointment, error) {
	tenant, err := s.tenants.FindByKey(ctx, req.TenantID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, apperr.Business("tenant %s is not registered", req.TenantID)
		}
		return model.Appointment{}, err
	}
	if !tenant.Active {
		return model.Appointment{}, apperr.Business("tenant %s is inactive", req.TenantID)
	}

	pro, err := s.professionals.Find(ctx, req.TenantID, req.ProfessionalID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, apperr.Business("professional %s does not belong to tenant %s", req.ProfessionalID, req.TenantID)
		}
		return model.Appointment{}, err
	}
	if !pro.Active {
		return model.Appointment{}, apperr.Business("professional %s is inactive", req.ProfessionalID)
	}

	dayBlocked, err := s.blocks.IsDayBlocked(ctx, req.TenantID, req.Date)
	if err != nil {
		return model.Appointment{}, err
	}
	if dayBlocked {
		return model.Appointment{}, apperr.Business("date closed")
	}

	services, err := s.services.ListByIDs(ctx, req.TenantID, req.ServiceIDs)
	if err != nil {
		return model.Appointment{}, err
	}
	if len(services) != len(req.ServiceIDs) {
		known := make(map[string]bool, len(services))
		for _, svc := range services {
			known[svc.ID] = true
		}
		for _, id := range req.ServiceIDs {
			if !known[id] {
				return model.Appointment{}, apperr.NotFound("service", id)
			}
		}
	}

	qualified, err := s.professionals.QualifiedForAll(ctx, req.ProfessionalID, req.ServiceIDs)
	if err != nil {
		return model.Appointment{}, err
	}
	if !qualified {
		return model.Appointment{}, apperr.Business("professional %s is not qualified for the requested services", req.ProfessionalID)
	}

	duration := 0
	for _, svc := range services {
		duration += svc.DurationMins
	}
	end := req.Start.Add(duration)

	wh, err := s.hours.Resolve(ctx, req.TenantID, req.ProfessionalID)
	if err != nil {
		return model.Appointment{}, err
	}
	if req.Start < wh.Start || end > wh.End {
		return model.Appointment{}, apperr.Business("requested slot %s-%s is outside working hours %s-%s",
			req.Start, end, wh.Start, wh.End)
	}

	intervalBlocks, err := s.blocks.BlockedIntervals(ctx, req.TenantID, req.ProfessionalID, req.Date)
	if err != nil {
		return model.Appointment{}, err
	}
	for _, b := range intervalBlocks {
		if interval.Overlaps(req.Start, end, b.Start, b.End) {
			return model.Appointment{}, apperr.Business("time interval blocked")
		}
	}

	appt := model.Appointment{
		TenantID:       req.TenantID,
		ProfessionalID: req.ProfessionalID,
		Date:           req.Date,
		Start:          req.Start,
		End:            end,
		ClientName:     req.ClientName,
		ClientPhone:    req.ClientPhone,
		Services:       services,
	}

	err = s.ledger.Transact(ctx, req.ProfessionalID, req.Date, func(tx storage.TxView) error {
		existing, err := tx.ListForDay(ctx, req.TenantID, req.ProfessionalID, req.Date)
		if err != nil {
			return err
		}
		for _, other := range existing {
			if interval.Overlaps(appt.Start, appt.End, other.Start, other.End) {
				return apperr.AppointmentConflict(apperr.Conflict{
					RequestedStart: appt.Start,
					RequestedEnd:   appt.End,
					ExistingStart:  other.Start,
					ExistingEnd:    other.End,
					ExistingClient: other.ClientName,
				})
			}
		}
		if err := tx.Insert(ctx, &appt); err != nil {
			return err
		}
		payload, err := json.Marshal(bookedPayload{
			AppointmentID:  appt.ID,
			TenantID:       appt.TenantID,
			ProfessionalID: appt.ProfessionalID,
			Date:           appt.DateString(),
			Start:          appt.Start.String(),
			End:            appt.End.String(),
			ClientName:     appt.ClientName,
			ClientPhone:    appt.ClientPhone,
			Services:       appt.ServiceNames(),
		})
		if err != nil {
			return err
		}
		return tx.InsertEvent(ctx, outbox.Event{
			AggregateType: "appointment",
			AggregateID:   appt.ID,
			EventType:     outbox.EventAppointmentBooked,
			Payload:       payload,
		})
	})
	if err != nil {
		return model.Appointment{}, err
	}

	s.logger.Info("appointment booked",
		"tenant_id", appt.TenantID,
		"professional_id", appt.ProfessionalID,
		"appointment_id", appt.ID,
		"date", appt.DateString(),
		"start", appt.Start.String(),
		"end", appt.End.String())

	// Best-effort notification. Failures are logged and swallowed, the
	// booking is already committed.
	if err := s.notifier.Send(ctx, notify.KindBooked, notify.Message{
		TenantID:     appt.TenantID,
		Phone:        appt.ClientPhone,
		ClientName:   appt.ClientName,
		Professional: pro.Name,
		Date:         appt.DateString(),
		Time:         appt.Start.String(),
		Services:     appt.ServiceNames(),
		Amount:       appt.TotalPrice(),
	}); err != nil {
		s.logger.Warn("booking notification failed",
			"appointment_id", appt.ID,
			"provider", s.notifier.ProviderID(),
			"err", err)
	}
	return appt, nil
}

// Cancel deletes the appointment outright. The confirmation message goes out
// before the delete so the payload still has the client details; a send
// failure does not stop the cancellation.
func (s *Service) Cancel(ctx context.Context, tenantID, appointmentID string) error {
	appt, err := s.ledger.Find(ctx, tenantID, appointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			return apperr.NotFound("appointment", appointmentID)
		}
		return err
	}

	if err := s.notifier.Send(ctx, notify.KindCancelled, notify.Message{
		TenantID:   appt.TenantID,
		Phone:      appt.ClientPhone,
		ClientName: appt.ClientName,
		Date:       appt.DateString(),
		Time:       appt.Start.String(),
		Services:   appt.ServiceNames(),
		Amount:     appt.TotalPrice(),
	}); err != nil {
		s.logger.Warn("cancellation notification failed",
			"appointment_id", appt.ID,
			"provider", s.notifier.ProviderID(),
			"err", err)
	}

	payload, err := json.Marshal(bookedPayload{
		AppointmentID:  appt.ID,
		TenantID:       appt.TenantID,
		ProfessionalID: appt.ProfessionalID,
		Date:           appt.DateString(),
		Start:          appt.Start.String(),
		End:            appt.End.String(),
		ClientName:     appt.ClientName,
	})
	if err != nil {
		return err
	}
	if err := s.ledger.DeleteWithEvent(ctx, tenantID, appointmentID, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentCancelled,
		Payload:       payload,
	}); err != nil {
		return err
	}
	s.logger.Info("appointment cancelled",
		"tenant_id", tenantID,
		"appointment_id", appointmentID)
	return nil
}

func (s *Service) ListByDate(ctx context.Context, tenantID string, date time.Time) ([]model.Appointment, error) {
	return s.ledger.ListByTenantAndDate(ctx, tenantID, date)
}

func (s *Service) List(ctx context.Context, tenantID string, limit int) ([]model.Appointment, error) {
	return s.ledger.ListByTenant(ctx, tenantID, limit)
}

// FutureByPhone lists a client's upcoming appointments in ascending order.
func (s *Service) FutureByPhone(ctx context.Context, tenantID, phone string) ([]model.Appointment, error) {
	today, nowClock := s.clockNow()
	return s.ledger.ListFutureByPhone(ctx, tenantID, phone, today, nowClock)
}

// PastByPhone lists a client's past appointments, most recent first.
func (s *Service) PastByPhone(ctx context.Context, tenantID, phone string) ([]model.Appointment, error) {
	today, nowClock := s.clockNow()
	return s.ledger.ListPastByPhone(ctx, tenantID, phone, today, nowClock)
}

func (s *Service) clockNow() (time.Time, interval.Clock) {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return today, interval.Clock(now.Hour()*60 + now.Minute())
}
