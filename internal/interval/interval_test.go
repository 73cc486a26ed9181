package interval

import "testing"

func TestParseClock(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Clock
		wantErr bool
	}{
		{name: "morning", in: "09:00", want: 540},
		{name: "midnight", in: "00:00", want: 0},
		{name: "last minute", in: "23:59", want: 1439},
		{name: "padded input", in: " 10:30 ", want: 630},
		{name: "missing colon", in: "0930", wantErr: true},
		{name: "hour out of range", in: "24:00", wantErr: true},
		{name: "minute out of range", in: "10:60", wantErr: true},
		{name: "garbage", in: "ab:cd", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseClock(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseClock(%q) expected error, got %v", tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseClock(%q) unexpected error: %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("ParseClock(%q) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestClockString(t *testing.T) {
	if got := Clock(540).String(); got != "09:00" {
		t.Fatalf("Clock(540).String() = %q, want 09:00", got)
	}
	if got := Clock(1439).String(); got != "23:59" {
		t.Fatalf("Clock(1439).String() = %q, want 23:59", got)
	}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd Clock
		want                       bool
	}{
		{name: "disjoint", aStart: 540, aEnd: 600, bStart: 660, bEnd: 720, want: false},
		{name: "touching endpoints", aStart: 540, aEnd: 600, bStart: 600, bEnd: 660, want: false},
		{name: "partial overlap", aStart: 540, aEnd: 610, bStart: 600, bEnd: 660, want: true},
		{name: "contained", aStart: 540, aEnd: 720, bStart: 600, bEnd: 660, want: true},
		{name: "identical", aStart: 540, aEnd: 600, bStart: 540, bEnd: 600, want: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd); got != tc.want {
				t.Fatalf("Overlaps = %v, want %v", got, tc.want)
			}
			// Overlap is symmetric.
			if got := Overlaps(tc.bStart, tc.bEnd, tc.aStart, tc.aEnd); got != tc.want {
				t.Fatalf("Overlaps (swapped) = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestContains(t *testing.T) {
	if !Contains(540, 540, 600) {
		t.Fatal("start of interval should be contained")
	}
	if Contains(600, 540, 600) {
		t.Fatal("end of half-open interval should not be contained")
	}
	if Contains(539, 540, 600) {
		t.Fatal("point before interval should not be contained")
	}
}

func TestSlots(t *testing.T) {
	got := Slots(540, 1080, 30)
	if len(got) != 19 {
		t.Fatalf("expected 19 slots between 09:00 and 18:00, got %d", len(got))
	}
	if got[0] != 540 {
		t.Fatalf("first slot = %v, want 09:00", got[0])
	}
	if got[len(got)-1] != 1080 {
		t.Fatalf("last slot = %v, want 18:00 (closing instant included)", got[len(got)-1])
	}

	if got := Slots(600, 540, 30); got != nil {
		t.Fatalf("inverted range should produce no slots, got %v", got)
	}
	if got := Slots(540, 600, 0); got != nil {
		t.Fatalf("zero step should produce no slots, got %v", got)
	}
}
