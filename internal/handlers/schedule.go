package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pveiga/agendle/internal/model"
)

type workingHoursBody struct {
	ProfessionalID string `json:"professional_id,omitempty"`
	Start          string `json:"start"`
	End            string `json:"end"`
	SlotMinutes    int    `json:"slot_minutes"`
}

func (h *Handler) WorkingHours(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}
	switch r.Method {
	case http.MethodGet:
		professionalID := strings.TrimSpace(r.URL.Query().Get("professional_id"))
		wh, err := h.hours.Resolve(r.Context(), tenant, professionalID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, workingHoursBody{
			ProfessionalID: wh.ProfessionalID,
			Start:          wh.Start.String(),
			End:            wh.End.String(),
			SlotMinutes:    wh.SlotMinutes,
		})
	case http.MethodPost:
		var req workingHoursBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		start, okStart := parseClockParam(req.Start)
		end, okEnd := parseClockParam(req.End)
		if !okStart || !okEnd {
			http.Error(w, "invalid start/end", http.StatusBadRequest)
			return
		}
		wh := model.WorkingHours{
			TenantID:       tenant,
			ProfessionalID: strings.TrimSpace(req.ProfessionalID),
			Start:          start,
			End:            end,
			SlotMinutes:    req.SlotMinutes,
		}
		if err := h.hours.Configure(r.Context(), wh); err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, req)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) DeleteWorkingHours(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}
	var req struct {
		ProfessionalID string `json:"professional_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := h.hours.Delete(r.Context(), tenant, strings.TrimSpace(req.ProfessionalID)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type dayBlockBody struct {
	Date    string `json:"date,omitempty"`
	Weekday string `json:"weekday,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type dayBlockItem struct {
	ID      string `json:"id"`
	Date    string `json:"date,omitempty"`
	Weekday string `json:"weekday,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func toDayBlockItem(b model.DayBlock) dayBlockItem {
	item := dayBlockItem{ID: b.ID, Reason: b.Reason}
	if b.Recurring {
		item.Weekday = strings.ToLower(b.Weekday.String())
	} else {
		item.Date = b.Date.Format(model.DateLayout)
	}
	return item
}

// DayBlocks lists blocks on GET and creates one on POST. A body carrying a
// date creates a specific-date block; a weekday name creates a recurring one.
func (h *Handler) DayBlocks(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}
	switch r.Method {
	case http.MethodGet:
		recurring := r.URL.Query().Get("recurring") == "true"
		blocks, err := h.registry.ListDayBlocks(r.Context(), tenant, recurring)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		items := make([]dayBlockItem, 0, len(blocks))
		for _, b := range blocks {
			items = append(items, toDayBlockItem(b))
		}
		h.writeJSON(w, http.StatusOK, map[string][]dayBlockItem{"blocks": items})
	case http.MethodPost:
		var req dayBlockBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		var (
			block model.DayBlock
			err   error
		)
		switch {
		case req.Date != "":
			date, ok := parseDate(req.Date)
			if !ok {
				http.Error(w, "invalid date", http.StatusBadRequest)
				return
			}
			block, err = h.registry.BlockDate(r.Context(), tenant, date, req.Reason)
		case req.Weekday != "":
			weekday, ok := parseWeekday(req.Weekday)
			if !ok {
				http.Error(w, "invalid weekday", http.StatusBadRequest)
				return
			}
			block, err = h.registry.BlockWeekday(r.Context(), tenant, weekday, req.Reason)
		default:
			http.Error(w, "either date or weekday is required", http.StatusBadRequest)
			return
		}
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusCreated, toDayBlockItem(block))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type removeBlockRequest struct {
	BlockID string `json:"block_id"`
}

func (h *Handler) RemoveDayBlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant := tenantID(r)
	var req removeBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if tenant == "" || strings.TrimSpace(req.BlockID) == "" {
		http.Error(w, "missing tenant or block_id", http.StatusBadRequest)
		return
	}
	if err := h.registry.UnblockDay(r.Context(), tenant, strings.TrimSpace(req.BlockID)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type intervalBlockBody struct {
	ProfessionalID string `json:"professional_id"`
	Date           string `json:"date,omitempty"`
	Weekday        string `json:"weekday,omitempty"`
	Start          string `json:"start"`
	End            string `json:"end"`
	Reason         string `json:"reason,omitempty"`
}

type intervalBlockItem struct {
	ID             string `json:"id"`
	ProfessionalID string `json:"professional_id"`
	Date           string `json:"date,omitempty"`
	Weekday        string `json:"weekday,omitempty"`
	Start          string `json:"start"`
	End            string `json:"end"`
	Reason         string `json:"reason,omitempty"`
}

func toIntervalBlockItem(b model.IntervalBlock) intervalBlockItem {
	item := intervalBlockItem{
		ID:             b.ID,
		ProfessionalID: b.ProfessionalID,
		Start:          b.Start.String(),
		End:            b.End.String(),
		Reason:         b.Reason,
	}
	if b.Recurring {
		item.Weekday = strings.ToLower(b.Weekday.String())
	} else {
		item.Date = b.Date.Format(model.DateLayout)
	}
	return item
}

func (h *Handler) IntervalBlocks(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}
	switch r.Method {
	case http.MethodGet:
		recurring := r.URL.Query().Get("recurring") == "true"
		blocks, err := h.registry.ListIntervalBlocks(r.Context(), tenant, recurring)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		items := make([]intervalBlockItem, 0, len(blocks))
		for _, b := range blocks {
			items = append(items, toIntervalBlockItem(b))
		}
		h.writeJSON(w, http.StatusOK, map[string][]intervalBlockItem{"blocks": items})
	case http.MethodPost:
		var req intervalBlockBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.ProfessionalID = strings.TrimSpace(req.ProfessionalID)
		if req.ProfessionalID == "" {
			http.Error(w, "missing professional_id", http.StatusBadRequest)
			return
		}
		start, okStart := parseClockParam(req.Start)
		end, okEnd := parseClockParam(req.End)
		if !okStart || !okEnd {
			http.Error(w, "invalid start/end", http.StatusBadRequest)
			return
		}
		var (
			block model.IntervalBlock
			err   error
		)
		switch {
		case req.Date != "":
			date, ok := parseDate(req.Date)
			if !ok {
				http.Error(w, "invalid date", http.StatusBadRequest)
				return
			}
			block, err = h.registry.BlockInterval(r.Context(), tenant, req.ProfessionalID, date, start, end, req.Reason)
		case req.Weekday != "":
			weekday, ok := parseWeekday(req.Weekday)
			if !ok {
				http.Error(w, "invalid weekday", http.StatusBadRequest)
				return
			}
			block, err = h.registry.BlockRecurringInterval(r.Context(), tenant, req.ProfessionalID, weekday, start, end, req.Reason)
		default:
			http.Error(w, "either date or weekday is required", http.StatusBadRequest)
			return
		}
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusCreated, toIntervalBlockItem(block))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) RemoveIntervalBlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant := tenantID(r)
	var req removeBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if tenant == "" || strings.TrimSpace(req.BlockID) == "" {
		http.Error(w, "missing tenant or block_id", http.StatusBadRequest)
		return
	}
	if err := h.registry.UnblockInterval(r.Context(), tenant, strings.TrimSpace(req.BlockID)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
