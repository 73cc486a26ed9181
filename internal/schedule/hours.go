// Package schedule owns the bookable calendar: working hours, day blocks and
// interval blocks.
package schedule

import (
	"context"

	"github.com/pveiga/agendle/internal/apperr"
	"github.com/pveiga/agendle/internal/interval"
	"github.com/pveiga/agendle/internal/model"
)

const (
	DefaultStart       interval.Clock = 9 * 60
	DefaultEnd         interval.Clock = 18 * 60
	DefaultSlotMinutes                = 30

	MinSlotMinutes = 1
	MaxSlotMinutes = 120
)

type HoursStore interface {
	WorkingHours(ctx context.Context, tenantID, professionalID string) (model.WorkingHours, bool, error)
	TenantWorkingHours(ctx context.Context, tenantID string) (model.WorkingHours, bool, error)
	UpsertWorkingHours(ctx context.Context, wh model.WorkingHours) error
	DeleteWorkingHours(ctx context.Context, tenantID, professionalID string) (bool, error)
}

// HoursResolver answers "what window is bookable" with a three-level
// fallback: professional-specific hours, then tenant-wide hours, then the
// built-in default. Resolution always yields a usable window.
type HoursResolver struct {
	store HoursStore
}

func NewHoursResolver(store HoursStore) *HoursResolver {
	return &HoursResolver{store: store}
}

func Default(tenantID string) model.WorkingHours {
	return model.WorkingHours{
		TenantID:    tenantID,
		Start:       DefaultStart,
		End:         DefaultEnd,
		SlotMinutes: DefaultSlotMinutes,
	}
}

func (r *HoursResolver) Resolve(ctx context.Context, tenantID, professionalID string) (model.WorkingHours, error) {
	if professionalID != "" {
		wh, ok, err := r.store.WorkingHours(ctx, tenantID, professionalID)
		if err != nil {
			return model.WorkingHours{}, err
		}
		if ok {
			return wh, nil
		}
	}
	wh, ok, err := r.store.TenantWorkingHours(ctx, tenantID)
	if err != nil {
		return model.WorkingHours{}, err
	}
	if ok {
		return wh, nil
	}
	return Default(tenantID), nil
}

// Configure validates and persists a working-hours window. A window with an
// empty ProfessionalID becomes the tenant-wide fallback.
func (r *HoursResolver) Configure(ctx context.Context, wh model.WorkingHours) error {
	if wh.Start < 0 || wh.End > interval.MinutesPerDay || wh.Start >= wh.End {
		return apperr.Business("working hours must satisfy 00:00 <= start < end <= 24:00, got %s-%s", wh.Start, wh.End)
	}
	if wh.SlotMinutes < MinSlotMinutes || wh.SlotMinutes > MaxSlotMinutes {
		return apperr.Business("slot granularity must be between %d and %d minutes, got %d", MinSlotMinutes, MaxSlotMinutes, wh.SlotMinutes)
	}
	return r.store.UpsertWorkingHours(ctx, wh)
}

func (r *HoursResolver) Delete(ctx context.Context, tenantID, professionalID string) error {
	deleted, err := r.store.DeleteWorkingHours(ctx, tenantID, professionalID)
	if err != nil {
		return err
	}
	if !deleted {
		return apperr.NotFound("working hours for", tenantID+"/"+professionalID)
	}
	return nil
}
