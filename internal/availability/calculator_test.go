package availability

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pveiga/agendle/internal/interval"
	"github.com/pveiga/agendle/internal/model"
	"github.com/pveiga/agendle/internal/schedule"
)

type fixture struct {
	hours    model.WorkingHours
	dayOff   bool
	blocks   []model.IntervalBlock
	appts    []model.Appointment
	services map[string]model.Service
}

func (f *fixture) Resolve(_ context.Context, tenantID, _ string) (model.WorkingHours, error) {
	if f.hours.SlotMinutes == 0 {
		return schedule.Default(tenantID), nil
	}
	return f.hours, nil
}

func (f *fixture) IsDayBlocked(_ context.Context, _ string, _ time.Time) (bool, error) {
	return f.dayOff, nil
}

func (f *fixture) BlockedIntervals(_ context.Context, _, _ string, _ time.Time) ([]model.IntervalBlock, error) {
	return f.blocks, nil
}

func (f *fixture) ListForDay(_ context.Context, _, _ string, _ time.Time) ([]model.Appointment, error) {
	return f.appts, nil
}

func (f *fixture) ListByIDs(_ context.Context, _ string, serviceIDs []string) ([]model.Service, error) {
	var out []model.Service
	for _, id := range serviceIDs {
		if s, ok := f.services[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func calculatorFor(f *fixture) *Calculator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCalculator(f, f, f, f, logger)
}

var testDate = time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)

func TestSlotsFullOpenDay(t *testing.T) {
	calc := calculatorFor(&fixture{})
	got, err := calc.Slots(context.Background(), "salon-1", "pro-1", testDate, nil)
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if len(got) != 19 {
		t.Fatalf("expected 19 slots for a default open day, got %d: %v", len(got), got)
	}
	if got[0] != 540 || got[len(got)-1] != 1080 {
		t.Fatalf("expected 09:00 through 18:00 inclusive, got %s..%s", got[0], got[len(got)-1])
	}
}

func TestSlotsBlockedDayIsEmpty(t *testing.T) {
	calc := calculatorFor(&fixture{dayOff: true})
	got, err := calc.Slots(context.Background(), "salon-1", "pro-1", testDate, nil)
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("blocked day should yield no slots, got %v", got)
	}
}

func TestSlotsExcludeExistingAppointment(t *testing.T) {
	calc := calculatorFor(&fixture{
		appts: []model.Appointment{{Start: 600, End: 630}},
	})
	got, err := calc.Slots(context.Background(), "salon-1", "pro-1", testDate, nil)
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	for _, s := range got {
		if s == 600 {
			t.Fatal("10:00 should be excluded by the existing appointment")
		}
	}
	has0930, has1030 := false, false
	for _, s := range got {
		if s == 570 {
			has0930 = true
		}
		if s == 630 {
			has1030 = true
		}
	}
	if !has0930 || !has1030 {
		t.Fatalf("09:30 and 10:30 should remain offerable, got %v", got)
	}
}

func TestSlotsDurationRunsIntoBlock(t *testing.T) {
	f := &fixture{
		blocks:   []model.IntervalBlock{{Start: 720, End: 780}},
		services: map[string]model.Service{"svc-60": {ID: "svc-60", DurationMins: 60}},
	}
	calc := calculatorFor(f)
	got, err := calc.Slots(context.Background(), "salon-1", "pro-1", testDate, []string{"svc-60"})
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	for _, s := range got {
		// 11:30 would end at 12:30, inside the 12:00-13:00 block.
		if s == 690 {
			t.Fatal("11:30 must not be offered when a 60-minute service would run into the 12:00 block")
		}
		// 11:00 ends exactly at block start and is also filtered.
		if s == 660 {
			t.Fatal("11:00 must not be offered when the service would end at the block boundary")
		}
		if interval.Contains(s, 720, 780) {
			t.Fatalf("slot %s lies inside the block", s)
		}
	}
	has1300 := false
	for _, s := range got {
		if s == 780 {
			has1300 = true
		}
	}
	if !has1300 {
		t.Fatalf("13:00 should be offerable again after the block, got %v", got)
	}
}

func TestSlotsDurationTrimsClosing(t *testing.T) {
	f := &fixture{
		services: map[string]model.Service{"svc-90": {ID: "svc-90", DurationMins: 90}},
	}
	calc := calculatorFor(f)
	got, err := calc.Slots(context.Background(), "salon-1", "pro-1", testDate, []string{"svc-90"})
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	last := got[len(got)-1]
	if last != 990 {
		t.Fatalf("last offerable start for a 90-minute service should be 16:30, got %s", last)
	}
}

func TestSlotsUnknownServiceIgnored(t *testing.T) {
	f := &fixture{
		services: map[string]model.Service{"svc-30": {ID: "svc-30", DurationMins: 30}},
	}
	calc := calculatorFor(f)
	got, err := calc.Slots(context.Background(), "salon-1", "pro-1", testDate, []string{"svc-30", "ghost"})
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	// Only the resolved 30-minute duration applies: last start is 17:30.
	if got[len(got)-1] != 1050 {
		t.Fatalf("last slot = %s, want 17:30", got[len(got)-1])
	}
}

func TestSlotsStrictlyAscending(t *testing.T) {
	f := &fixture{
		hours: model.WorkingHours{TenantID: "salon-1", Start: 480, End: 1200, SlotMinutes: 15},
		blocks: []model.IntervalBlock{
			{Start: 600, End: 660},
			{Start: 900, End: 930},
		},
		appts: []model.Appointment{
			{Start: 720, End: 765},
			{Start: 1080, End: 1140},
		},
	}
	calc := calculatorFor(f)
	got, err := calc.Slots(context.Background(), "salon-1", "pro-1", testDate, nil)
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("slots not strictly ascending at %d: %v", i, got)
		}
	}
}

func TestDateInfo(t *testing.T) {
	calc := calculatorFor(&fixture{dayOff: true})
	info, err := calc.DateInfo(context.Background(), "salon-1", "pro-1", testDate, nil)
	if err != nil {
		t.Fatalf("DateInfo: %v", err)
	}
	if !info.Blocked || info.FreeCount != 0 {
		t.Fatalf("expected blocked summary, got %+v", info)
	}

	calc = calculatorFor(&fixture{})
	info, err = calc.DateInfo(context.Background(), "salon-1", "pro-1", testDate, nil)
	if err != nil {
		t.Fatalf("DateInfo: %v", err)
	}
	if info.Blocked || info.FreeCount != 19 {
		t.Fatalf("expected 19 free slots, got %+v", info)
	}
	if info.Date != "2026-09-08" {
		t.Fatalf("date = %q", info.Date)
	}
}
