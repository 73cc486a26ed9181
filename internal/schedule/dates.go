package schedule

import (
	"context"
	"time"

	"github.com/pveiga/agendle/internal/apperr"
	"github.com/pveiga/agendle/internal/model"
)

const maxDateRangeDays = 366

// AvailableDates walks the inclusive [from, to] range and returns the dates
// not removed by a day block.
func (r *Registry) AvailableDates(ctx context.Context, tenantID string, from, to time.Time) ([]string, error) {
	if to.Before(from) {
		return nil, apperr.Business("date range end %s precedes start %s", to.Format(model.DateLayout), from.Format(model.DateLayout))
	}
	if to.Sub(from) > maxDateRangeDays*24*time.Hour {
		return nil, apperr.Business("date range exceeds %d days", maxDateRangeDays)
	}

	var dates []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		blocked, err := r.IsDayBlocked(ctx, tenantID, d)
		if err != nil {
			return nil, err
		}
		if !blocked {
			dates = append(dates, d.Format(model.DateLayout))
		}
	}
	return dates, nil
}
