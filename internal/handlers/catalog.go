package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pveiga/agendle/internal/apperr"
	"github.com/pveiga/agendle/internal/interval"
	"github.com/pveiga/agendle/internal/model"
	"github.com/pveiga/agendle/internal/storage"
)

type tenantRequest struct {
	Key          string `json:"key"`
	BusinessName string `json:"business_name"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone"`
}

func (h *Handler) Tenants(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req tenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Key = strings.TrimSpace(req.Key)
	req.BusinessName = strings.TrimSpace(req.BusinessName)
	if req.Key == "" || req.BusinessName == "" {
		http.Error(w, "missing key or business_name", http.StatusBadRequest)
		return
	}
	tenant := model.Tenant{
		Key:          req.Key,
		BusinessName: req.BusinessName,
		ContactEmail: strings.TrimSpace(req.ContactEmail),
		ContactPhone: strings.TrimSpace(req.ContactPhone),
		Active:       true,
	}
	if err := h.tenants.Create(r.Context(), &tenant); err != nil {
		if storage.IsDuplicate(err) {
			http.Error(w, "tenant key already registered", http.StatusConflict)
			return
		}
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"id": tenant.ID, "key": tenant.Key})
}

type serviceBody struct {
	ID           string  `json:"id,omitempty"`
	Name         string  `json:"name"`
	DurationMins int     `json:"duration_minutes"`
	Price        float64 `json:"price"`
}

func (h *Handler) Services(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}
	switch r.Method {
	case http.MethodGet:
		services, err := h.services.ListByTenant(r.Context(), tenant)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		items := make([]serviceBody, 0, len(services))
		for _, s := range services {
			items = append(items, serviceBody{ID: s.ID, Name: s.Name, DurationMins: s.DurationMins, Price: s.Price})
		}
		h.writeJSON(w, http.StatusOK, map[string][]serviceBody{"services": items})
	case http.MethodPost:
		var req serviceBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			http.Error(w, "missing name", http.StatusBadRequest)
			return
		}
		if req.DurationMins <= 0 {
			http.Error(w, "duration_minutes must be positive", http.StatusBadRequest)
			return
		}
		if req.Price < 0 {
			http.Error(w, "price must not be negative", http.StatusBadRequest)
			return
		}
		svc := model.Service{
			TenantID:     tenant,
			Name:         req.Name,
			DurationMins: req.DurationMins,
			Price:        req.Price,
		}
		// An id in the body updates the existing service; identity itself
		// is immutable.
		if req.ID != "" {
			svc.ID = req.ID
			updated, err := h.services.Update(r.Context(), &svc)
			if err != nil {
				h.writeError(w, r, err)
				return
			}
			if !updated {
				h.writeError(w, r, apperr.NotFound("service", req.ID))
				return
			}
			h.writeJSON(w, http.StatusOK, req)
			return
		}
		if err := h.services.Create(r.Context(), &svc); err != nil {
			h.writeError(w, r, err)
			return
		}
		req.ID = svc.ID
		h.writeJSON(w, http.StatusCreated, req)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant := tenantID(r)
	var req struct {
		ServiceID string `json:"service_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	if tenant == "" || req.ServiceID == "" {
		http.Error(w, "missing tenant or service_id", http.StatusBadRequest)
		return
	}

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	nowClock := interval.Clock(now.Hour()*60 + now.Minute())
	referenced, err := h.services.HasFutureAppointments(r.Context(), tenant, req.ServiceID, today, nowClock)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if referenced {
		h.writeError(w, r, apperr.Business("service %s is referenced by a future appointment", req.ServiceID))
		return
	}
	deleted, err := h.services.Delete(r.Context(), tenant, req.ServiceID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !deleted {
		h.writeError(w, r, apperr.NotFound("service", req.ServiceID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type professionalBody struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func (h *Handler) Professionals(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}
	switch r.Method {
	case http.MethodGet:
		pros, err := h.professionals.ListByTenant(r.Context(), tenant)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		items := make([]professionalBody, 0, len(pros))
		for _, p := range pros {
			items = append(items, professionalBody{ID: p.ID, Name: p.Name, Email: p.Email, Phone: p.Phone})
		}
		h.writeJSON(w, http.StatusOK, map[string][]professionalBody{"professionals": items})
	case http.MethodPost:
		var req professionalBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			http.Error(w, "missing name", http.StatusBadRequest)
			return
		}
		pro := model.Professional{
			TenantID: tenant,
			Name:     req.Name,
			Email:    strings.TrimSpace(req.Email),
			Phone:    strings.TrimSpace(req.Phone),
			Active:   true,
		}
		if err := h.professionals.Create(r.Context(), &pro); err != nil {
			h.writeError(w, r, err)
			return
		}
		req.ID = pro.ID
		h.writeJSON(w, http.StatusCreated, req)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) DeactivateProfessional(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant := tenantID(r)
	var req struct {
		ProfessionalID string `json:"professional_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ProfessionalID = strings.TrimSpace(req.ProfessionalID)
	if tenant == "" || req.ProfessionalID == "" {
		http.Error(w, "missing tenant or professional_id", http.StatusBadRequest)
		return
	}
	updated, err := h.professionals.SetActive(r.Context(), tenant, req.ProfessionalID, false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !updated {
		h.writeError(w, r, apperr.NotFound("professional", req.ProfessionalID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ProfessionalServices replaces or trims the set of services a professional
// can perform. POST with service_ids replaces the whole set; POST to the
// same path with unlink_service_id removes a single link.
func (h *Handler) ProfessionalServices(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}
	switch r.Method {
	case http.MethodGet:
		professionalID := strings.TrimSpace(r.URL.Query().Get("professional_id"))
		if professionalID == "" {
			http.Error(w, "missing professional_id", http.StatusBadRequest)
			return
		}
		ids, err := h.professionals.LinkedServiceIDs(r.Context(), professionalID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string][]string{"service_ids": ids})
	case http.MethodPost:
		var req struct {
			ProfessionalID  string   `json:"professional_id"`
			ServiceIDs      []string `json:"service_ids"`
			UnlinkServiceID string   `json:"unlink_service_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.ProfessionalID = strings.TrimSpace(req.ProfessionalID)
		if req.ProfessionalID == "" {
			http.Error(w, "missing professional_id", http.StatusBadRequest)
			return
		}
		if _, err := h.professionals.Find(r.Context(), tenant, req.ProfessionalID); err != nil {
			if storage.IsNotFound(err) {
				h.writeError(w, r, apperr.NotFound("professional", req.ProfessionalID))
				return
			}
			h.writeError(w, r, err)
			return
		}
		if req.UnlinkServiceID != "" {
			removed, err := h.professionals.Unlink(r.Context(), req.ProfessionalID, strings.TrimSpace(req.UnlinkServiceID))
			if err != nil {
				h.writeError(w, r, err)
				return
			}
			if !removed {
				h.writeError(w, r, apperr.NotFound("service link", req.UnlinkServiceID))
				return
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err := h.professionals.ReplaceServiceLinks(r.Context(), req.ProfessionalID, req.ServiceIDs); err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string][]string{"service_ids": req.ServiceIDs})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) QualifiedProfessionals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant := tenantID(r)
	serviceIDs := splitIDs(r.URL.Query().Get("service_ids"))
	if tenant == "" || len(serviceIDs) == 0 {
		http.Error(w, "missing tenant or service_ids", http.StatusBadRequest)
		return
	}
	pros, err := h.professionals.ListQualified(r.Context(), tenant, serviceIDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]professionalBody, 0, len(pros))
	for _, p := range pros {
		items = append(items, professionalBody{ID: p.ID, Name: p.Name, Email: p.Email, Phone: p.Phone})
	}
	h.writeJSON(w, http.StatusOK, map[string][]professionalBody{"professionals": items})
}
