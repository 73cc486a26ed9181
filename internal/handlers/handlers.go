// Package handlers exposes the HTTP surface. Tenant identity arrives through
// the X-Tenant-Id header and is threaded explicitly into every call.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pveiga/agendle/internal/apperr"
	"github.com/pveiga/agendle/internal/availability"
	"github.com/pveiga/agendle/internal/booking"
	"github.com/pveiga/agendle/internal/interval"
	"github.com/pveiga/agendle/internal/model"
	"github.com/pveiga/agendle/internal/schedule"
	"github.com/pveiga/agendle/internal/storage"
)

const tenantHeader = "X-Tenant-Id"

type Handler struct {
	booking       *booking.Service
	calc          *availability.Calculator
	registry      *schedule.Registry
	hours         *schedule.HoursResolver
	tenants       *storage.TenantRepository
	professionals *storage.ProfessionalRepository
	services      *storage.ServiceRepository
	logger        *slog.Logger
}

func New(bookingSvc *booking.Service, calc *availability.Calculator, registry *schedule.Registry,
	hours *schedule.HoursResolver, tenants *storage.TenantRepository,
	professionals *storage.ProfessionalRepository, services *storage.ServiceRepository,
	logger *slog.Logger) *Handler {
	return &Handler{
		booking:       bookingSvc,
		calc:          calc,
		registry:      registry,
		hours:         hours,
		tenants:       tenants,
		professionals: professionals,
		services:      services,
		logger:        logger,
	}
}

// Register wires the routes onto the mux. Public routes additionally go
// through the rate limiter configured in main.
func (h *Handler) Register(mux *http.ServeMux, public func(http.HandlerFunc) http.Handler) {
	if public == nil {
		public = func(fn http.HandlerFunc) http.Handler { return fn }
	}
	mux.Handle("/api/v1/public/slots", public(h.Slots))
	mux.Handle("/api/v1/public/dates", public(h.AvailableDates))
	mux.Handle("/api/v1/public/date-info", public(h.DateInfo))
	mux.Handle("/api/v1/public/book", public(h.Book))

	mux.HandleFunc("/api/v1/tenants", h.Tenants)
	mux.HandleFunc("/api/v1/appointments", h.Appointments)
	mux.HandleFunc("/api/v1/appointments/cancel", h.CancelAppointment)
	mux.HandleFunc("/api/v1/appointments/by-phone", h.AppointmentsByPhone)
	mux.HandleFunc("/api/v1/services", h.Services)
	mux.HandleFunc("/api/v1/services/delete", h.DeleteService)
	mux.HandleFunc("/api/v1/professionals", h.Professionals)
	mux.HandleFunc("/api/v1/professionals/deactivate", h.DeactivateProfessional)
	mux.HandleFunc("/api/v1/professionals/services", h.ProfessionalServices)
	mux.HandleFunc("/api/v1/professionals/qualified", h.QualifiedProfessionals)
	mux.HandleFunc("/api/v1/working-hours", h.WorkingHours)
	mux.HandleFunc("/api/v1/working-hours/delete", h.DeleteWorkingHours)
	mux.HandleFunc("/api/v1/blocks/days", h.DayBlocks)
	mux.HandleFunc("/api/v1/blocks/days/remove", h.RemoveDayBlock)
	mux.HandleFunc("/api/v1/blocks/intervals", h.IntervalBlocks)
	mux.HandleFunc("/api/v1/blocks/intervals/remove", h.RemoveIntervalBlock)
}

func tenantID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(tenantHeader))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

type errorBody struct {
	Error    string          `json:"error"`
	Kind     string          `json:"kind"`
	Conflict *conflictDetail `json:"conflict,omitempty"`
}

type conflictDetail struct {
	RequestedStart string `json:"requestedStart"`
	RequestedEnd   string `json:"requestedEnd"`
	ExistingStart  string `json:"existingStart"`
	ExistingEnd    string `json:"existingEnd"`
	ExistingClient string `json:"existingClient"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindDuplicateBlock, apperr.KindConflictingBlock, apperr.KindAppointmentConflict:
		status = http.StatusConflict
	case apperr.KindBusiness, apperr.KindInvalidInterval:
		status = http.StatusBadRequest
	case apperr.KindForbidden:
		status = http.StatusForbidden
	}

	body := errorBody{Kind: kind.String()}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "err", err)
		body.Error = "internal error"
	} else {
		body.Error = err.Error()
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Conflict != nil {
		body.Conflict = &conflictDetail{
			RequestedStart: appErr.Conflict.RequestedStart.String(),
			RequestedEnd:   appErr.Conflict.RequestedEnd.String(),
			ExistingStart:  appErr.Conflict.ExistingStart.String(),
			ExistingEnd:    appErr.Conflict.ExistingEnd.String(),
			ExistingClient: appErr.Conflict.ExistingClient,
		}
	}
	h.writeJSON(w, status, body)
}

func parseDate(s string) (time.Time, bool) {
	d, err := time.Parse(model.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func parseClockParam(s string) (interval.Clock, bool) {
	c, err := interval.ParseClock(s)
	if err != nil {
		return 0, false
	}
	return c, true
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWeekday(s string) (time.Weekday, bool) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	return d, ok
}

func splitIDs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
