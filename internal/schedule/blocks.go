package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/pveiga/agendle/internal/apperr"
	"github.com/pveiga/agendle/internal/interval"
	"github.com/pveiga/agendle/internal/model"
	"github.com/pveiga/agendle/internal/storage"
)

type BlockStore interface {
	DayBlockExists(ctx context.Context, tenantID string, date time.Time) (bool, error)
	RecurringDayBlockExists(ctx context.Context, tenantID string, weekday time.Weekday) (bool, error)
	InsertDayBlock(ctx context.Context, b *model.DayBlock) error
	FindDayBlock(ctx context.Context, blockID string) (model.DayBlock, error)
	DeleteDayBlock(ctx context.Context, blockID string) error
	ListDayBlocks(ctx context.Context, tenantID string, recurring bool) ([]model.DayBlock, error)

	IntervalBlocksFor(ctx context.Context, tenantID, professionalID string, date time.Time) ([]model.IntervalBlock, error)
	IntervalBlocksOnDate(ctx context.Context, tenantID, professionalID string, date time.Time) ([]model.IntervalBlock, error)
	RecurringIntervalBlocks(ctx context.Context, tenantID, professionalID string, weekday time.Weekday) ([]model.IntervalBlock, error)
	InsertIntervalBlock(ctx context.Context, b *model.IntervalBlock) error
	FindIntervalBlock(ctx context.Context, blockID string) (model.IntervalBlock, error)
	DeleteIntervalBlock(ctx context.Context, blockID string) error
	ListIntervalBlocks(ctx context.Context, tenantID string, recurring bool) ([]model.IntervalBlock, error)
}

// Registry manages calendar blocks for a tenant and answers the two
// questions the rest of the system asks: is this day off, and which parts of
// this professional's day are off.
type Registry struct {
	store  BlockStore
	hours  *HoursResolver
	logger *slog.Logger
}

func NewRegistry(store BlockStore, hours *HoursResolver, logger *slog.Logger) *Registry {
	return &Registry{store: store, hours: hours, logger: logger}
}

// IsDayBlocked reports whether the date is removed from the calendar either
// by a specific-date block or by a recurring weekday block.
func (r *Registry) IsDayBlocked(ctx context.Context, tenantID string, date time.Time) (bool, error) {
	blocked, err := r.store.DayBlockExists(ctx, tenantID, date)
	if err != nil {
		return false, err
	}
	if blocked {
		return true, nil
	}
	return r.store.RecurringDayBlockExists(ctx, tenantID, date.Weekday())
}

func (r *Registry) BlockDate(ctx context.Context, tenantID string, date time.Time, reason string) (model.DayBlock, error) {
	exists, err := r.store.DayBlockExists(ctx, tenantID, date)
	if err != nil {
		return model.DayBlock{}, err
	}
	if exists {
		return model.DayBlock{}, apperr.DuplicateBlock("day %s is already blocked", date.Format(model.DateLayout))
	}
	block := model.DayBlock{TenantID: tenantID, Date: date, Reason: reason}
	if err := r.store.InsertDayBlock(ctx, &block); err != nil {
		if storage.IsDuplicate(err) {
			return model.DayBlock{}, apperr.DuplicateBlock("day %s is already blocked", date.Format(model.DateLayout))
		}
		return model.DayBlock{}, err
	}
	r.logger.Info("day blocked", "tenant_id", tenantID, "date", date.Format(model.DateLayout))
	return block, nil
}

func (r *Registry) BlockWeekday(ctx context.Context, tenantID string, weekday time.Weekday, reason string) (model.DayBlock, error) {
	exists, err := r.store.RecurringDayBlockExists(ctx, tenantID, weekday)
	if err != nil {
		return model.DayBlock{}, err
	}
	if exists {
		return model.DayBlock{}, apperr.DuplicateBlock("weekday %s is already blocked", weekday)
	}
	block := model.DayBlock{TenantID: tenantID, Recurring: true, Weekday: weekday, Reason: reason}
	if err := r.store.InsertDayBlock(ctx, &block); err != nil {
		if storage.IsDuplicate(err) {
			return model.DayBlock{}, apperr.DuplicateBlock("weekday %s is already blocked", weekday)
		}
		return model.DayBlock{}, err
	}
	r.logger.Info("weekday blocked", "tenant_id", tenantID, "weekday", weekday.String())
	return block, nil
}

func (r *Registry) UnblockDay(ctx context.Context, tenantID, blockID string) error {
	block, err := r.store.FindDayBlock(ctx, blockID)
	if err != nil {
		if storage.IsNotFound(err) {
			return apperr.NotFound("day block", blockID)
		}
		return err
	}
	if block.TenantID != tenantID {
		return apperr.Forbidden("day block %s does not belong to tenant %s", blockID, tenantID)
	}
	return r.store.DeleteDayBlock(ctx, blockID)
}

func (r *Registry) ListDayBlocks(ctx context.Context, tenantID string, recurring bool) ([]model.DayBlock, error) {
	return r.store.ListDayBlocks(ctx, tenantID, recurring)
}

// BlockedIntervals returns every interval block applying to the professional
// on the date, specific and recurring combined.
func (r *Registry) BlockedIntervals(ctx context.Context, tenantID, professionalID string, date time.Time) ([]model.IntervalBlock, error) {
	return r.store.IntervalBlocksFor(ctx, tenantID, professionalID, date)
}

func (r *Registry) BlockInterval(ctx context.Context, tenantID, professionalID string, date time.Time, start, end interval.Clock, reason string) (model.IntervalBlock, error) {
	if err := r.validateInterval(ctx, tenantID, professionalID, start, end); err != nil {
		return model.IntervalBlock{}, err
	}
	existing, err := r.store.IntervalBlocksOnDate(ctx, tenantID, professionalID, date)
	if err != nil {
		return model.IntervalBlock{}, err
	}
	recurring, err := r.store.RecurringIntervalBlocks(ctx, tenantID, professionalID, date.Weekday())
	if err != nil {
		return model.IntervalBlock{}, err
	}
	if conflict := firstOverlap(append(existing, recurring...), start, end); conflict != nil {
		return model.IntervalBlock{}, apperr.ConflictingBlock("interval %s-%s overlaps existing block %s-%s", start, end, conflict.Start, conflict.End)
	}
	block := model.IntervalBlock{
		TenantID:       tenantID,
		ProfessionalID: professionalID,
		Date:           date,
		Start:          start,
		End:            end,
		Reason:         reason,
	}
	if err := r.store.InsertIntervalBlock(ctx, &block); err != nil {
		if storage.IsConflict(err) {
			return model.IntervalBlock{}, apperr.ConflictingBlock("interval %s-%s overlaps an existing block", start, end)
		}
		return model.IntervalBlock{}, err
	}
	r.logger.Info("interval blocked",
		"tenant_id", tenantID,
		"professional_id", professionalID,
		"date", date.Format(model.DateLayout),
		"start", start.String(),
		"end", end.String())
	return block, nil
}

func (r *Registry) BlockRecurringInterval(ctx context.Context, tenantID, professionalID string, weekday time.Weekday, start, end interval.Clock, reason string) (model.IntervalBlock, error) {
	if err := r.validateInterval(ctx, tenantID, professionalID, start, end); err != nil {
		return model.IntervalBlock{}, err
	}
	existing, err := r.store.RecurringIntervalBlocks(ctx, tenantID, professionalID, weekday)
	if err != nil {
		return model.IntervalBlock{}, err
	}
	if conflict := firstOverlap(existing, start, end); conflict != nil {
		return model.IntervalBlock{}, apperr.ConflictingBlock("interval %s-%s overlaps existing block %s-%s on %s", start, end, conflict.Start, conflict.End, weekday)
	}
	block := model.IntervalBlock{
		TenantID:       tenantID,
		ProfessionalID: professionalID,
		Recurring:      true,
		Weekday:        weekday,
		Start:          start,
		End:            end,
		Reason:         reason,
	}
	if err := r.store.InsertIntervalBlock(ctx, &block); err != nil {
		if storage.IsConflict(err) {
			return model.IntervalBlock{}, apperr.ConflictingBlock("interval %s-%s overlaps an existing block", start, end)
		}
		return model.IntervalBlock{}, err
	}
	r.logger.Info("recurring interval blocked",
		"tenant_id", tenantID,
		"professional_id", professionalID,
		"weekday", weekday.String(),
		"start", start.String(),
		"end", end.String())
	return block, nil
}

func (r *Registry) UnblockInterval(ctx context.Context, tenantID, blockID string) error {
	block, err := r.store.FindIntervalBlock(ctx, blockID)
	if err != nil {
		if storage.IsNotFound(err) {
			return apperr.NotFound("interval block", blockID)
		}
		return err
	}
	if block.TenantID != tenantID {
		return apperr.Forbidden("interval block %s does not belong to tenant %s", blockID, tenantID)
	}
	return r.store.DeleteIntervalBlock(ctx, blockID)
}

func (r *Registry) ListIntervalBlocks(ctx context.Context, tenantID string, recurring bool) ([]model.IntervalBlock, error) {
	return r.store.ListIntervalBlocks(ctx, tenantID, recurring)
}

// IsIntervalBlocked reports whether [start,end) collides with any block
// applying to the professional on the date.
func (r *Registry) IsIntervalBlocked(ctx context.Context, tenantID, professionalID string, date time.Time, start, end interval.Clock) (bool, error) {
	blocks, err := r.store.IntervalBlocksFor(ctx, tenantID, professionalID, date)
	if err != nil {
		return false, err
	}
	return firstOverlap(blocks, start, end) != nil, nil
}

func (r *Registry) validateInterval(ctx context.Context, tenantID, professionalID string, start, end interval.Clock) error {
	if start < 0 || end > interval.MinutesPerDay || start >= end {
		return apperr.InvalidInterval("interval must satisfy 00:00 <= start < end <= 24:00, got %s-%s", start, end)
	}
	wh, err := r.hours.Resolve(ctx, tenantID, professionalID)
	if err != nil {
		return err
	}
	if start < wh.Start || end > wh.End {
		return apperr.InvalidInterval("interval %s-%s falls outside working hours %s-%s", start, end, wh.Start, wh.End)
	}
	return nil
}

func firstOverlap(blocks []model.IntervalBlock, start, end interval.Clock) *model.IntervalBlock {
	for i := range blocks {
		if interval.Overlaps(start, end, blocks[i].Start, blocks[i].End) {
			return &blocks[i]
		}
	}
	return nil
}
