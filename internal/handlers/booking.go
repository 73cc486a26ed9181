package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/pveiga/agendle/internal/booking"
	"github.com/pveiga/agendle/internal/model"
)

type slotsResponse struct {
	Date  string   `json:"date"`
	Slots []string `json:"slots"`
}

func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant := tenantID(r)
	professionalID := strings.TrimSpace(r.URL.Query().Get("professional_id"))
	if tenant == "" || professionalID == "" {
		http.Error(w, "missing tenant or professional_id", http.StatusBadRequest)
		return
	}
	date, ok := parseDate(r.URL.Query().Get("date"))
	if !ok {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	serviceIDs := splitIDs(r.URL.Query().Get("service_ids"))

	slots, err := h.calc.Slots(r.Context(), tenant, professionalID, date, serviceIDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.String())
	}
	h.writeJSON(w, http.StatusOK, slotsResponse{Date: date.Format(model.DateLayout), Slots: out})
}

func (h *Handler) AvailableDates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}
	from, okFrom := parseDate(r.URL.Query().Get("from"))
	to, okTo := parseDate(r.URL.Query().Get("to"))
	if !okFrom || !okTo {
		http.Error(w, "invalid from/to dates", http.StatusBadRequest)
		return
	}
	dates, err := h.registry.AvailableDates(r.Context(), tenant, from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string][]string{"dates": dates})
}

func (h *Handler) DateInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant := tenantID(r)
	professionalID := strings.TrimSpace(r.URL.Query().Get("professional_id"))
	if tenant == "" || professionalID == "" {
		http.Error(w, "missing tenant or professional_id", http.StatusBadRequest)
		return
	}
	date, ok := parseDate(r.URL.Query().Get("date"))
	if !ok {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	info, err := h.calc.DateInfo(r.Context(), tenant, professionalID, date, splitIDs(r.URL.Query().Get("service_ids")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

type bookRequest struct {
	ProfessionalID string   `json:"professional_id"`
	Date           string   `json:"date"`
	Start          string   `json:"start"`
	ServiceIDs     []string `json:"service_ids"`
	ClientName     string   `json:"client_name"`
	ClientPhone    string   `json:"client_phone"`
}

type appointmentItem struct {
	AppointmentID  string   `json:"appointment_id"`
	ProfessionalID string   `json:"professional_id"`
	Date           string   `json:"date"`
	Start          string   `json:"start"`
	End            string   `json:"end"`
	ClientName     string   `json:"client_name"`
	ClientPhone    string   `json:"client_phone,omitempty"`
	Services       []string `json:"services,omitempty"`
	ReminderSent   bool     `json:"reminder_sent"`
}

func toAppointmentItem(a model.Appointment) appointmentItem {
	return appointmentItem{
		AppointmentID:  a.ID,
		ProfessionalID: a.ProfessionalID,
		Date:           a.DateString(),
		Start:          a.Start.String(),
		End:            a.End.String(),
		ClientName:     a.ClientName,
		ClientPhone:    a.ClientPhone,
		Services:       a.ServiceNames(),
		ReminderSent:   a.ReminderSent,
	}
}

func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ProfessionalID = strings.TrimSpace(req.ProfessionalID)
	req.ClientName = strings.TrimSpace(req.ClientName)
	req.ClientPhone = strings.TrimSpace(req.ClientPhone)
	if req.ProfessionalID == "" || req.ClientName == "" {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}
	date, ok := parseDate(req.Date)
	if !ok {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	start, ok := parseClockParam(req.Start)
	if !ok {
		http.Error(w, "invalid start", http.StatusBadRequest)
		return
	}

	appt, err := h.booking.Create(r.Context(), booking.CreateRequest{
		TenantID:       tenant,
		ProfessionalID: req.ProfessionalID,
		Date:           date,
		Start:          start,
		ServiceIDs:     req.ServiceIDs,
		ClientName:     req.ClientName,
		ClientPhone:    req.ClientPhone,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toAppointmentItem(appt))
}

func (h *Handler) Appointments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}

	var (
		appts []model.Appointment
		err   error
	)
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		date, ok := parseDate(dateStr)
		if !ok {
			http.Error(w, "invalid date", http.StatusBadRequest)
			return
		}
		appts, err = h.booking.ListByDate(r.Context(), tenant, date)
	} else {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		appts, err = h.booking.List(r.Context(), tenant, limit)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, toAppointmentItem(a))
	}
	h.writeJSON(w, http.StatusOK, map[string][]appointmentItem{"appointments": items})
}

type cancelRequest struct {
	AppointmentID string `json:"appointment_id"`
}

func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "missing appointment_id", http.StatusBadRequest)
		return
	}
	if err := h.booking.Cancel(r.Context(), tenant, req.AppointmentID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"appointment_id": req.AppointmentID, "status": "cancelled"})
}

func (h *Handler) AppointmentsByPhone(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant := tenantID(r)
	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	if tenant == "" || phone == "" {
		http.Error(w, "missing tenant or phone", http.StatusBadRequest)
		return
	}

	var (
		appts []model.Appointment
		err   error
	)
	switch r.URL.Query().Get("scope") {
	case "past":
		appts, err = h.booking.PastByPhone(r.Context(), tenant, phone)
	default:
		appts, err = h.booking.FutureByPhone(r.Context(), tenant, phone)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, toAppointmentItem(a))
	}
	h.writeJSON(w, http.StatusOK, map[string][]appointmentItem{"appointments": items})
}
