// Package availability computes bookable start times for a professional on a
// given date, combining working hours, calendar blocks and existing
// appointments.
package availability

import (
	"context"
	"log/slog"
	"time"

	"github.com/pveiga/agendle/internal/interval"
	"github.com/pveiga/agendle/internal/model"
)

type BlockSource interface {
	IsDayBlocked(ctx context.Context, tenantID string, date time.Time) (bool, error)
	BlockedIntervals(ctx context.Context, tenantID, professionalID string, date time.Time) ([]model.IntervalBlock, error)
}

type HoursSource interface {
	Resolve(ctx context.Context, tenantID, professionalID string) (model.WorkingHours, error)
}

type AppointmentSource interface {
	ListForDay(ctx context.Context, tenantID, professionalID string, date time.Time) ([]model.Appointment, error)
}

type ServiceSource interface {
	ListByIDs(ctx context.Context, tenantID string, serviceIDs []string) ([]model.Service, error)
}

type Calculator struct {
	hours    HoursSource
	blocks   BlockSource
	appts    AppointmentSource
	services ServiceSource
	logger   *slog.Logger
}

func NewCalculator(hours HoursSource, blocks BlockSource, appts AppointmentSource, services ServiceSource, logger *slog.Logger) *Calculator {
	return &Calculator{hours: hours, blocks: blocks, appts: appts, services: services, logger: logger}
}

// Slots returns the free start times for the professional on the date. When
// serviceIDs resolve to a positive total duration, starts whose full interval
// would run into a block or past closing are excluded. With no services the
// raw free grid is returned, closing instant included.
func (c *Calculator) Slots(ctx context.Context, tenantID, professionalID string, date time.Time, serviceIDs []string) ([]interval.Clock, error) {
	blocked, err := c.blocks.IsDayBlocked(ctx, tenantID, date)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, nil
	}

	wh, err := c.hours.Resolve(ctx, tenantID, professionalID)
	if err != nil {
		return nil, err
	}
	blocks, err := c.blocks.BlockedIntervals(ctx, tenantID, professionalID, date)
	if err != nil {
		return nil, err
	}
	appts, err := c.appts.ListForDay(ctx, tenantID, professionalID, date)
	if err != nil {
		return nil, err
	}
	duration, err := c.totalDuration(ctx, tenantID, serviceIDs)
	if err != nil {
		return nil, err
	}

	var free []interval.Clock
	for _, slot := range interval.Slots(wh.Start, wh.End, wh.SlotMinutes) {
		if !c.slotFree(slot, duration, wh, blocks, appts) {
			continue
		}
		free = append(free, slot)
	}
	return free, nil
}

func (c *Calculator) slotFree(slot interval.Clock, duration int, wh model.WorkingHours, blocks []model.IntervalBlock, appts []model.Appointment) bool {
	for _, b := range blocks {
		if interval.Contains(slot, b.Start, b.End) {
			return false
		}
	}
	for _, a := range appts {
		if interval.Contains(slot, a.Start, a.End) {
			return false
		}
	}
	if duration <= 0 {
		return true
	}
	end := slot.Add(duration)
	if end > wh.End {
		return false
	}
	for _, b := range blocks {
		// The prospective service may not run into or through a block,
		// and ending exactly where a block starts also disqualifies.
		if end >= b.Start && slot < b.End {
			return false
		}
	}
	for _, a := range appts {
		if interval.Overlaps(slot, end, a.Start, a.End) {
			return false
		}
	}
	return true
}

// totalDuration sums the durations of the requested services. Unknown ids
// are skipped with a warning, matching how the booking flow tolerates stale
// service references in availability queries.
func (c *Calculator) totalDuration(ctx context.Context, tenantID string, serviceIDs []string) (int, error) {
	if len(serviceIDs) == 0 {
		return 0, nil
	}
	services, err := c.services.ListByIDs(ctx, tenantID, serviceIDs)
	if err != nil {
		return 0, err
	}
	if len(services) < len(serviceIDs) {
		c.logger.Warn("availability query referenced unknown services",
			"tenant_id", tenantID,
			"requested", len(serviceIDs),
			"resolved", len(services))
	}
	total := 0
	for _, s := range services {
		total += s.DurationMins
	}
	return total, nil
}

// DateAvailability summarises a single date for calendar views.
type DateAvailability struct {
	Date      string           `json:"date"`
	Blocked   bool             `json:"blocked"`
	FreeSlots []interval.Clock `json:"-"`
	FreeCount int              `json:"freeSlots"`
}

// DateInfo reports whether the date is blocked and how many starts remain
// free for the professional.
func (c *Calculator) DateInfo(ctx context.Context, tenantID, professionalID string, date time.Time, serviceIDs []string) (DateAvailability, error) {
	info := DateAvailability{Date: date.Format(model.DateLayout)}
	blocked, err := c.blocks.IsDayBlocked(ctx, tenantID, date)
	if err != nil {
		return DateAvailability{}, err
	}
	if blocked {
		info.Blocked = true
		return info, nil
	}
	slots, err := c.Slots(ctx, tenantID, professionalID, date, serviceIDs)
	if err != nil {
		return DateAvailability{}, err
	}
	info.FreeSlots = slots
	info.FreeCount = len(slots)
	return info, nil
}
