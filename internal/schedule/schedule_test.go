package schedule

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pveiga/agendle/internal/apperr"
	"github.com/pveiga/agendle/internal/model"
)

type fakeStore struct {
	hours          map[string]model.WorkingHours
	tenantHours    map[string]model.WorkingHours
	dayBlocks      map[string]model.DayBlock
	intervalBlocks map[string]model.IntervalBlock
	nextID         int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		hours:          make(map[string]model.WorkingHours),
		tenantHours:    make(map[string]model.WorkingHours),
		dayBlocks:      make(map[string]model.DayBlock),
		intervalBlocks: make(map[string]model.IntervalBlock),
	}
}

func (f *fakeStore) id() string {
	f.nextID++
	return fmt.Sprintf("id-%d", f.nextID)
}

func (f *fakeStore) WorkingHours(_ context.Context, tenantID, professionalID string) (model.WorkingHours, bool, error) {
	wh, ok := f.hours[tenantID+"/"+professionalID]
	return wh, ok, nil
}

func (f *fakeStore) TenantWorkingHours(_ context.Context, tenantID string) (model.WorkingHours, bool, error) {
	wh, ok := f.tenantHours[tenantID]
	return wh, ok, nil
}

func (f *fakeStore) UpsertWorkingHours(_ context.Context, wh model.WorkingHours) error {
	if wh.ProfessionalID == "" {
		f.tenantHours[wh.TenantID] = wh
	} else {
		f.hours[wh.TenantID+"/"+wh.ProfessionalID] = wh
	}
	return nil
}

func (f *fakeStore) DeleteWorkingHours(_ context.Context, tenantID, professionalID string) (bool, error) {
	if professionalID == "" {
		_, ok := f.tenantHours[tenantID]
		delete(f.tenantHours, tenantID)
		return ok, nil
	}
	key := tenantID + "/" + professionalID
	_, ok := f.hours[key]
	delete(f.hours, key)
	return ok, nil
}

func (f *fakeStore) DayBlockExists(_ context.Context, tenantID string, date time.Time) (bool, error) {
	for _, b := range f.dayBlocks {
		if b.TenantID == tenantID && !b.Recurring && b.Date.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) RecurringDayBlockExists(_ context.Context, tenantID string, weekday time.Weekday) (bool, error) {
	for _, b := range f.dayBlocks {
		if b.TenantID == tenantID && b.Recurring && b.Weekday == weekday {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) InsertDayBlock(_ context.Context, b *model.DayBlock) error {
	b.ID = f.id()
	b.CreatedAt = time.Now()
	f.dayBlocks[b.ID] = *b
	return nil
}

func (f *fakeStore) FindDayBlock(_ context.Context, blockID string) (model.DayBlock, error) {
	b, ok := f.dayBlocks[blockID]
	if !ok {
		return model.DayBlock{}, pgx.ErrNoRows
	}
	return b, nil
}

func (f *fakeStore) DeleteDayBlock(_ context.Context, blockID string) error {
	delete(f.dayBlocks, blockID)
	return nil
}

func (f *fakeStore) ListDayBlocks(_ context.Context, tenantID string, recurring bool) ([]model.DayBlock, error) {
	var out []model.DayBlock
	for _, b := range f.dayBlocks {
		if b.TenantID == tenantID && b.Recurring == recurring {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) IntervalBlocksFor(ctx context.Context, tenantID, professionalID string, date time.Time) ([]model.IntervalBlock, error) {
	specific, _ := f.IntervalBlocksOnDate(ctx, tenantID, professionalID, date)
	recurring, _ := f.RecurringIntervalBlocks(ctx, tenantID, professionalID, date.Weekday())
	return append(specific, recurring...), nil
}

func (f *fakeStore) IntervalBlocksOnDate(_ context.Context, tenantID, professionalID string, date time.Time) ([]model.IntervalBlock, error) {
	var out []model.IntervalBlock
	for _, b := range f.intervalBlocks {
		if b.TenantID == tenantID && b.ProfessionalID == professionalID && !b.Recurring && b.Date.Equal(date) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) RecurringIntervalBlocks(_ context.Context, tenantID, professionalID string, weekday time.Weekday) ([]model.IntervalBlock, error) {
	var out []model.IntervalBlock
	for _, b := range f.intervalBlocks {
		if b.TenantID == tenantID && b.ProfessionalID == professionalID && b.Recurring && b.Weekday == weekday {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertIntervalBlock(_ context.Context, b *model.IntervalBlock) error {
	b.ID = f.id()
	b.CreatedAt = time.Now()
	f.intervalBlocks[b.ID] = *b
	return nil
}

func (f *fakeStore) FindIntervalBlock(_ context.Context, blockID string) (model.IntervalBlock, error) {
	b, ok := f.intervalBlocks[blockID]
	if !ok {
		return model.IntervalBlock{}, pgx.ErrNoRows
	}
	return b, nil
}

func (f *fakeStore) DeleteIntervalBlock(_ context.Context, blockID string) error {
	delete(f.intervalBlocks, blockID)
	return nil
}

func (f *fakeStore) ListIntervalBlocks(_ context.Context, tenantID string, recurring bool) ([]model.IntervalBlock, error) {
	var out []model.IntervalBlock
	for _, b := range f.intervalBlocks {
		if b.TenantID == tenantID && b.Recurring == recurring {
			out = append(out, b)
		}
	}
	return out, nil
}

func testRegistry() (*Registry, *fakeStore) {
	store := newFakeStore()
	hours := NewHoursResolver(store)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRegistry(store, hours, logger), store
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(model.DateLayout, s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

func TestResolveFallsBackToDefault(t *testing.T) {
	store := newFakeStore()
	resolver := NewHoursResolver(store)
	ctx := context.Background()

	wh, err := resolver.Resolve(ctx, "salon-1", "pro-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if wh.Start != DefaultStart || wh.End != DefaultEnd || wh.SlotMinutes != DefaultSlotMinutes {
		t.Fatalf("expected default hours, got %+v", wh)
	}

	// Tenant-wide hours win over the default.
	if err := resolver.Configure(ctx, model.WorkingHours{TenantID: "salon-1", Start: 480, End: 1200, SlotMinutes: 15}); err != nil {
		t.Fatalf("Configure tenant hours: %v", err)
	}
	wh, err = resolver.Resolve(ctx, "salon-1", "pro-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if wh.Start != 480 || wh.SlotMinutes != 15 {
		t.Fatalf("expected tenant hours, got %+v", wh)
	}

	// Professional-specific hours win over tenant hours.
	if err := resolver.Configure(ctx, model.WorkingHours{TenantID: "salon-1", ProfessionalID: "pro-1", Start: 600, End: 900, SlotMinutes: 60}); err != nil {
		t.Fatalf("Configure professional hours: %v", err)
	}
	wh, err = resolver.Resolve(ctx, "salon-1", "pro-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if wh.Start != 600 || wh.End != 900 || wh.SlotMinutes != 60 {
		t.Fatalf("expected professional hours, got %+v", wh)
	}
}

func TestConfigureValidation(t *testing.T) {
	resolver := NewHoursResolver(newFakeStore())
	ctx := context.Background()

	tests := []struct {
		name string
		wh   model.WorkingHours
	}{
		{name: "inverted window", wh: model.WorkingHours{TenantID: "t", Start: 1200, End: 480, SlotMinutes: 30}},
		{name: "empty window", wh: model.WorkingHours{TenantID: "t", Start: 480, End: 480, SlotMinutes: 30}},
		{name: "end past midnight", wh: model.WorkingHours{TenantID: "t", Start: 480, End: 1500, SlotMinutes: 30}},
		{name: "zero granularity", wh: model.WorkingHours{TenantID: "t", Start: 480, End: 1080, SlotMinutes: 0}},
		{name: "granularity too coarse", wh: model.WorkingHours{TenantID: "t", Start: 480, End: 1080, SlotMinutes: 121}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := resolver.Configure(ctx, tc.wh)
			if !apperr.IsKind(err, apperr.KindBusiness) {
				t.Fatalf("expected business error, got %v", err)
			}
		})
	}
}

func TestBlockDateRejectsDuplicate(t *testing.T) {
	registry, _ := testRegistry()
	ctx := context.Background()
	date := mustDate(t, "2026-09-07")

	if _, err := registry.BlockDate(ctx, "salon-1", date, "feriado"); err != nil {
		t.Fatalf("first block: %v", err)
	}
	_, err := registry.BlockDate(ctx, "salon-1", date, "feriado")
	if !apperr.IsKind(err, apperr.KindDuplicateBlock) {
		t.Fatalf("expected duplicate block error, got %v", err)
	}

	// A different tenant can block the same date.
	if _, err := registry.BlockDate(ctx, "salon-2", date, ""); err != nil {
		t.Fatalf("other tenant block: %v", err)
	}
}

func TestIsDayBlockedCoversRecurring(t *testing.T) {
	registry, _ := testRegistry()
	ctx := context.Background()

	if _, err := registry.BlockWeekday(ctx, "salon-1", time.Monday, "fechado"); err != nil {
		t.Fatalf("BlockWeekday: %v", err)
	}

	monday := mustDate(t, "2026-09-07")
	if monday.Weekday() != time.Monday {
		t.Fatalf("fixture broken: %s is %s", monday.Format(model.DateLayout), monday.Weekday())
	}
	blocked, err := registry.IsDayBlocked(ctx, "salon-1", monday)
	if err != nil || !blocked {
		t.Fatalf("monday should be blocked, got %v, %v", blocked, err)
	}
	tuesday := monday.AddDate(0, 0, 1)
	blocked, err = registry.IsDayBlocked(ctx, "salon-1", tuesday)
	if err != nil || blocked {
		t.Fatalf("tuesday should be open, got %v, %v", blocked, err)
	}
}

func TestUnblockDayOwnership(t *testing.T) {
	registry, _ := testRegistry()
	ctx := context.Background()
	date := mustDate(t, "2026-09-07")

	block, err := registry.BlockDate(ctx, "salon-1", date, "")
	if err != nil {
		t.Fatalf("BlockDate: %v", err)
	}

	if err := registry.UnblockDay(ctx, "salon-2", block.ID); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden for foreign tenant, got %v", err)
	}
	if err := registry.UnblockDay(ctx, "salon-1", "missing"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := registry.UnblockDay(ctx, "salon-1", block.ID); err != nil {
		t.Fatalf("UnblockDay: %v", err)
	}
	blocked, err := registry.IsDayBlocked(ctx, "salon-1", date)
	if err != nil || blocked {
		t.Fatalf("date should be open after unblock, got %v, %v", blocked, err)
	}
}

func TestBlockIntervalValidation(t *testing.T) {
	registry, _ := testRegistry()
	ctx := context.Background()
	date := mustDate(t, "2026-09-08")

	// Inverted interval.
	_, err := registry.BlockInterval(ctx, "salon-1", "pro-1", date, 720, 600, "")
	if !apperr.IsKind(err, apperr.KindInvalidInterval) {
		t.Fatalf("expected invalid interval, got %v", err)
	}

	// Outside the default 09:00-18:00 window.
	_, err = registry.BlockInterval(ctx, "salon-1", "pro-1", date, 420, 600, "")
	if !apperr.IsKind(err, apperr.KindInvalidInterval) {
		t.Fatalf("expected invalid interval outside working hours, got %v", err)
	}

	if _, err := registry.BlockInterval(ctx, "salon-1", "pro-1", date, 600, 720, "almoco"); err != nil {
		t.Fatalf("BlockInterval: %v", err)
	}

	// Overlapping block on the same date conflicts.
	_, err = registry.BlockInterval(ctx, "salon-1", "pro-1", date, 660, 780, "")
	if !apperr.IsKind(err, apperr.KindConflictingBlock) {
		t.Fatalf("expected conflicting block, got %v", err)
	}

	// Touching intervals do not conflict.
	if _, err := registry.BlockInterval(ctx, "salon-1", "pro-1", date, 720, 780, ""); err != nil {
		t.Fatalf("adjacent interval should be accepted: %v", err)
	}
}

func TestBlockIntervalConflictsWithRecurring(t *testing.T) {
	registry, _ := testRegistry()
	ctx := context.Background()
	tuesday := mustDate(t, "2026-09-08")

	if _, err := registry.BlockRecurringInterval(ctx, "salon-1", "pro-1", time.Tuesday, 600, 660, "reuniao"); err != nil {
		t.Fatalf("BlockRecurringInterval: %v", err)
	}
	_, err := registry.BlockInterval(ctx, "salon-1", "pro-1", tuesday, 630, 690, "")
	if !apperr.IsKind(err, apperr.KindConflictingBlock) {
		t.Fatalf("specific block should conflict with recurring on same weekday, got %v", err)
	}
}

func TestIsIntervalBlocked(t *testing.T) {
	registry, _ := testRegistry()
	ctx := context.Background()
	date := mustDate(t, "2026-09-08")

	if _, err := registry.BlockInterval(ctx, "salon-1", "pro-1", date, 600, 720, ""); err != nil {
		t.Fatalf("BlockInterval: %v", err)
	}

	blocked, err := registry.IsIntervalBlocked(ctx, "salon-1", "pro-1", date, 660, 690)
	if err != nil || !blocked {
		t.Fatalf("interval inside block should be blocked, got %v, %v", blocked, err)
	}
	blocked, err = registry.IsIntervalBlocked(ctx, "salon-1", "pro-1", date, 720, 780)
	if err != nil || blocked {
		t.Fatalf("touching interval should not be blocked, got %v, %v", blocked, err)
	}
}

func TestAvailableDates(t *testing.T) {
	registry, _ := testRegistry()
	ctx := context.Background()
	from := mustDate(t, "2026-09-07")
	to := mustDate(t, "2026-09-13")

	if _, err := registry.BlockDate(ctx, "salon-1", mustDate(t, "2026-09-09"), ""); err != nil {
		t.Fatalf("BlockDate: %v", err)
	}
	if _, err := registry.BlockWeekday(ctx, "salon-1", time.Sunday, ""); err != nil {
		t.Fatalf("BlockWeekday: %v", err)
	}

	dates, err := registry.AvailableDates(ctx, "salon-1", from, to)
	if err != nil {
		t.Fatalf("AvailableDates: %v", err)
	}
	want := []string{"2026-09-07", "2026-09-08", "2026-09-10", "2026-09-11", "2026-09-12"}
	if len(dates) != len(want) {
		t.Fatalf("got %v, want %v", dates, want)
	}
	for i := range want {
		if dates[i] != want[i] {
			t.Fatalf("got %v, want %v", dates, want)
		}
	}

	if _, err := registry.AvailableDates(ctx, "salon-1", to, from); !apperr.IsKind(err, apperr.KindBusiness) {
		t.Fatalf("inverted range should fail, got %v", err)
	}
}

