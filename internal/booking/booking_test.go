package booking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pveiga/agendle/internal/apperr"
	"github.com/pveiga/agendle/internal/interval"
	"github.com/pveiga/agendle/internal/model"
	"github.com/pveiga/agendle/internal/notify"
	"github.com/pveiga/agendle/internal/outbox"
	"github.com/pveiga/agendle/internal/schedule"
	"github.com/pveiga/agendle/internal/storage"
)

type world struct {
	tenants       map[string]model.Tenant
	professionals map[string]model.Professional
	services      map[string]model.Service
	links         map[string][]string
	hours         map[string]model.WorkingHours
	dayBlocked    bool
	blocks        []model.IntervalBlock
	appts         []model.Appointment
	events        []outbox.Event
	nextID        int
}

func newWorld() *world {
	w := &world{
		tenants:       make(map[string]model.Tenant),
		professionals: make(map[string]model.Professional),
		services:      make(map[string]model.Service),
		links:         make(map[string][]string),
		hours:         make(map[string]model.WorkingHours),
	}
	w.tenants["salon-1"] = model.Tenant{ID: "t-1", Key: "salon-1", Active: true}
	w.professionals["pro-1"] = model.Professional{ID: "pro-1", TenantID: "salon-1", Name: "Bianca", Active: true}
	w.services["corte"] = model.Service{ID: "corte", TenantID: "salon-1", Name: "Corte", DurationMins: 30, Price: 50}
	w.services["escova"] = model.Service{ID: "escova", TenantID: "salon-1", Name: "Escova", DurationMins: 60, Price: 80}
	w.links["pro-1"] = []string{"corte", "escova"}
	return w
}

func (w *world) FindByKey(_ context.Context, key string) (model.Tenant, error) {
	t, ok := w.tenants[key]
	if !ok {
		return model.Tenant{}, pgx.ErrNoRows
	}
	return t, nil
}

func (w *world) Find(_ context.Context, tenantID, professionalID string) (model.Professional, error) {
	p, ok := w.professionals[professionalID]
	if !ok || p.TenantID != tenantID {
		return model.Professional{}, pgx.ErrNoRows
	}
	return p, nil
}

func (w *world) QualifiedForAll(_ context.Context, professionalID string, serviceIDs []string) (bool, error) {
	if len(serviceIDs) == 0 {
		return false, nil
	}
	linked := make(map[string]bool)
	for _, id := range w.links[professionalID] {
		linked[id] = true
	}
	for _, id := range serviceIDs {
		if !linked[id] {
			return false, nil
		}
	}
	return true, nil
}

func (w *world) ListByIDs(_ context.Context, _ string, serviceIDs []string) ([]model.Service, error) {
	var out []model.Service
	for _, id := range serviceIDs {
		if s, ok := w.services[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (w *world) Resolve(_ context.Context, tenantID, professionalID string) (model.WorkingHours, error) {
	if wh, ok := w.hours[professionalID]; ok {
		return wh, nil
	}
	return schedule.Default(tenantID), nil
}

func (w *world) IsDayBlocked(_ context.Context, _ string, _ time.Time) (bool, error) {
	return w.dayBlocked, nil
}

func (w *world) BlockedIntervals(_ context.Context, _, _ string, _ time.Time) ([]model.IntervalBlock, error) {
	return w.blocks, nil
}

func (w *world) Transact(_ context.Context, _ string, _ time.Time, fn func(tx storage.TxView) error) error {
	return fn(&worldTx{w: w})
}

type worldTx struct {
	w *world
}

func (t *worldTx) ListForDay(_ context.Context, tenantID, professionalID string, date time.Time) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range t.w.appts {
		if a.TenantID == tenantID && a.ProfessionalID == professionalID && a.Date.Equal(date) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (t *worldTx) Insert(_ context.Context, appt *model.Appointment) error {
	t.w.nextID++
	appt.ID = fmt.Sprintf("appt-%d", t.w.nextID)
	appt.CreatedAt = time.Now()
	t.w.appts = append(t.w.appts, *appt)
	return nil
}

func (t *worldTx) InsertEvent(_ context.Context, evt outbox.Event) error {
	t.w.events = append(t.w.events, evt)
	return nil
}

func (w *world) FindAppointment(_ context.Context, tenantID, appointmentID string) (model.Appointment, error) {
	for _, a := range w.appts {
		if a.ID == appointmentID && a.TenantID == tenantID {
			return a, nil
		}
	}
	return model.Appointment{}, pgx.ErrNoRows
}

func (w *world) DeleteWithEvent(_ context.Context, tenantID, appointmentID string, evt outbox.Event) error {
	for i, a := range w.appts {
		if a.ID == appointmentID && a.TenantID == tenantID {
			w.appts = append(w.appts[:i], w.appts[i+1:]...)
			w.events = append(w.events, evt)
			return nil
		}
	}
	return nil
}

func (w *world) ListByTenantAndDate(_ context.Context, tenantID string, date time.Time) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range w.appts {
		if a.TenantID == tenantID && a.Date.Equal(date) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (w *world) ListByTenant(_ context.Context, tenantID string, _ int) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range w.appts {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (w *world) ListFutureByPhone(_ context.Context, tenantID, phone string, today time.Time, now interval.Clock) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range w.appts {
		if a.TenantID == tenantID && a.ClientPhone == phone &&
			(a.Date.After(today) || (a.Date.Equal(today) && a.Start >= now)) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (w *world) ListPastByPhone(_ context.Context, tenantID, phone string, today time.Time, now interval.Clock) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range w.appts {
		if a.TenantID == tenantID && a.ClientPhone == phone &&
			(a.Date.Before(today) || (a.Date.Equal(today) && a.Start < now)) {
			out = append(out, a)
		}
	}
	return out, nil
}

type recordingSender struct {
	sent []notify.Kind
	last notify.Message
	fail bool
}

func (r *recordingSender) Send(_ context.Context, kind notify.Kind, msg notify.Message) error {
	if r.fail {
		return errors.New("bridge down")
	}
	r.sent = append(r.sent, kind)
	r.last = msg
	return nil
}

func (r *recordingSender) ProviderID() string { return "recording" }

// ledgerFacade exposes the world through booking.Ledger.
type ledgerFacade struct {
	*world
}

func (l ledgerFacade) Find(ctx context.Context, tenantID, appointmentID string) (model.Appointment, error) {
	return l.world.FindAppointment(ctx, tenantID, appointmentID)
}

func newTestService(w *world, sender notify.Sender) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(w, w, w, w, w, ledgerFacade{w}, sender, logger)
}

var testDate = time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)

func baseRequest() CreateRequest {
	return CreateRequest{
		TenantID:       "salon-1",
		ProfessionalID: "pro-1",
		Date:           testDate,
		Start:          600,
		ServiceIDs:     []string{"corte"},
		ClientName:     "Ana",
		ClientPhone:    "+5511999990000",
	}
}

func TestCreateHappyPath(t *testing.T) {
	w := newWorld()
	sender := &recordingSender{}
	svc := newTestService(w, sender)

	appt, err := svc.Create(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if appt.ID == "" {
		t.Fatal("appointment id should be assigned")
	}
	if appt.End != 630 {
		t.Fatalf("end = %s, want 10:30 (start plus service duration)", appt.End)
	}
	if len(w.events) != 1 || w.events[0].EventType != outbox.EventAppointmentBooked {
		t.Fatalf("expected one booked event, got %+v", w.events)
	}
	if len(sender.sent) != 1 || sender.sent[0] != notify.KindBooked {
		t.Fatalf("expected one booking notification, got %v", sender.sent)
	}
	if sender.last.Amount != 50 {
		t.Fatalf("amount = %v, want 50 (the service price)", sender.last.Amount)
	}
}

func TestCreateDerivesEndFromAllServices(t *testing.T) {
	w := newWorld()
	sender := &recordingSender{}
	svc := newTestService(w, sender)

	req := baseRequest()
	req.ServiceIDs = []string{"corte", "escova"}
	appt, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sender.last.Amount != 130 {
		t.Fatalf("amount = %v, want 130 (sum of both service prices)", sender.last.Amount)
	}
	if appt.End != 690 {
		t.Fatalf("end = %s, want 11:30 (30 + 60 minutes)", appt.End)
	}
}

func TestCreateValidationOrder(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(w *world, req *CreateRequest)
		kind    apperr.Kind
		message string
	}{
		{
			name:    "unknown tenant",
			mutate:  func(w *world, req *CreateRequest) { req.TenantID = "ghost" },
			message: "tenant ghost is not registered",
		},
		{
			name: "inactive tenant",
			mutate: func(w *world, req *CreateRequest) {
				t := w.tenants["salon-1"]
				t.Active = false
				w.tenants["salon-1"] = t
			},
			message: "tenant salon-1 is inactive",
		},
		{
			name:    "professional from another tenant",
			mutate:  func(w *world, req *CreateRequest) { req.ProfessionalID = "stranger" },
			message: "professional stranger does not belong to tenant salon-1",
		},
		{
			name: "inactive professional",
			mutate: func(w *world, req *CreateRequest) {
				p := w.professionals["pro-1"]
				p.Active = false
				w.professionals["pro-1"] = p
			},
			message: "professional pro-1 is inactive",
		},
		{
			name:    "blocked day",
			mutate:  func(w *world, req *CreateRequest) { w.dayBlocked = true },
			message: "date closed",
		},
		{
			name:    "unknown service",
			mutate:  func(w *world, req *CreateRequest) { req.ServiceIDs = []string{"ghost"} },
			kind:    apperr.KindNotFound,
			message: "service ghost not found",
		},
		{
			name:    "empty services are unqualified",
			mutate:  func(w *world, req *CreateRequest) { req.ServiceIDs = nil },
			message: "professional pro-1 is not qualified for the requested services",
		},
		{
			name: "unqualified professional",
			mutate: func(w *world, req *CreateRequest) {
				w.links["pro-1"] = []string{"escova"}
			},
			message: "professional pro-1 is not qualified for the requested services",
		},
		{
			name:    "before opening",
			mutate:  func(w *world, req *CreateRequest) { req.Start = 480 },
			message: "requested slot 08:00-08:30 is outside working hours 09:00-18:00",
		},
		{
			name: "runs past closing",
			mutate: func(w *world, req *CreateRequest) {
				req.Start = 1070
			},
			message: "requested slot 17:50-18:20 is outside working hours 09:00-18:00",
		},
		{
			name: "blocked interval",
			mutate: func(w *world, req *CreateRequest) {
				w.blocks = []model.IntervalBlock{{Start: 600, End: 660}}
			},
			message: "time interval blocked",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := newWorld()
			svc := newTestService(w, &recordingSender{})
			req := baseRequest()
			tc.mutate(w, &req)

			_, err := svc.Create(context.Background(), req)
			wantKind := tc.kind
			if wantKind == apperr.KindUnknown {
				wantKind = apperr.KindBusiness
			}
			if !apperr.IsKind(err, wantKind) {
				t.Fatalf("expected %s error, got %v", wantKind, err)
			}
			if err.Error() != tc.message {
				t.Fatalf("message = %q, want %q", err.Error(), tc.message)
			}
			if len(w.events) != 0 {
				t.Fatalf("no events should be recorded on rejection, got %+v", w.events)
			}
		})
	}
}

func TestCreateConflictCarriesBothIntervals(t *testing.T) {
	w := newWorld()
	svc := newTestService(w, &recordingSender{})

	first := baseRequest()
	if _, err := svc.Create(context.Background(), first); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	second := baseRequest()
	second.Start = 615
	second.ClientName = "Clara"
	_, err := svc.Create(context.Background(), second)
	if !apperr.IsKind(err, apperr.KindAppointmentConflict) {
		t.Fatalf("expected appointment conflict, got %v", err)
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Conflict == nil {
		t.Fatalf("conflict detail missing: %v", err)
	}
	c := appErr.Conflict
	if c.RequestedStart != 615 || c.RequestedEnd != 645 {
		t.Fatalf("requested interval = %s-%s", c.RequestedStart, c.RequestedEnd)
	}
	if c.ExistingStart != 600 || c.ExistingEnd != 630 || c.ExistingClient != "Ana" {
		t.Fatalf("existing interval = %s-%s for %q", c.ExistingStart, c.ExistingEnd, c.ExistingClient)
	}
}

func TestCreateAdjacentAppointmentsAllowed(t *testing.T) {
	w := newWorld()
	svc := newTestService(w, &recordingSender{})

	if _, err := svc.Create(context.Background(), baseRequest()); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	second := baseRequest()
	second.Start = 630
	if _, err := svc.Create(context.Background(), second); err != nil {
		t.Fatalf("back-to-back booking should succeed: %v", err)
	}
}

func TestCreateNotificationFailureSwallowed(t *testing.T) {
	w := newWorld()
	sender := &recordingSender{fail: true}
	svc := newTestService(w, sender)

	appt, err := svc.Create(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("booking must survive a notification failure: %v", err)
	}
	if appt.ID == "" || len(w.appts) != 1 {
		t.Fatal("appointment should be committed despite the failed send")
	}
}

func TestCancel(t *testing.T) {
	w := newWorld()
	sender := &recordingSender{}
	svc := newTestService(w, sender)

	appt, err := svc.Create(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Cancel(context.Background(), "salon-1", appt.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if len(w.appts) != 0 {
		t.Fatal("appointment should be deleted")
	}
	if sender.sent[len(sender.sent)-1] != notify.KindCancelled {
		t.Fatalf("expected cancellation notification, got %v", sender.sent)
	}
	if sender.last.Amount != 50 {
		t.Fatalf("amount = %v, want 50 (the service price)", sender.last.Amount)
	}
	if w.events[len(w.events)-1].EventType != outbox.EventAppointmentCancelled {
		t.Fatalf("expected cancelled event, got %+v", w.events)
	}
}

func TestCancelMissingAppointment(t *testing.T) {
	w := newWorld()
	sender := &recordingSender{}
	svc := newTestService(w, sender)

	err := svc.Cancel(context.Background(), "salon-1", "ghost")
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(sender.sent) != 0 || len(w.events) != 0 {
		t.Fatal("cancelling a missing appointment must have no side effects")
	}
}

func TestFutureAndPastByPhone(t *testing.T) {
	w := newWorld()
	svc := newTestService(w, &recordingSender{})
	svc.now = func() time.Time {
		return time.Date(2026, 9, 8, 11, 0, 0, 0, time.UTC)
	}

	early := baseRequest()
	early.Start = 540
	if _, err := svc.Create(context.Background(), early); err != nil {
		t.Fatalf("Create: %v", err)
	}
	late := baseRequest()
	late.Start = 720
	if _, err := svc.Create(context.Background(), late); err != nil {
		t.Fatalf("Create: %v", err)
	}

	future, err := svc.FutureByPhone(context.Background(), "salon-1", "+5511999990000")
	if err != nil {
		t.Fatalf("FutureByPhone: %v", err)
	}
	if len(future) != 1 || future[0].Start != 720 {
		t.Fatalf("future = %+v", future)
	}
	past, err := svc.PastByPhone(context.Background(), "salon-1", "+5511999990000")
	if err != nil {
		t.Fatalf("PastByPhone: %v", err)
	}
	if len(past) != 1 || past[0].Start != 540 {
		t.Fatalf("past = %+v", past)
	}
}
