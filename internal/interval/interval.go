package interval

import (
	"fmt"
	"strconv"
	"strings"
)

// Clock is a minute-of-day value in [0, 1440]. Working hours, blocks and
// appointments all carry clock values in the tenant's local zone, so range
// checks never need full timestamps.
type Clock int

const MinutesPerDay = 24 * 60

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c Clock) Add(minutes int) Clock {
	return c + Clock(minutes)
}

// ParseClock parses an "HH:MM" value.
func ParseClock(s string) (Clock, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	return Clock(h*60 + m), nil
}

// Overlaps reports whether the half-open intervals [aStart,aEnd) and
// [bStart,bEnd) intersect. Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd Clock) bool {
	return aStart < bEnd && bStart < aEnd
}

// Contains reports whether point lies within the half-open [start,end).
func Contains(point, start, end Clock) bool {
	return start <= point && point < end
}

// Slots enumerates candidate start times from start up to and including end,
// spaced step minutes apart. The closing instant itself is listed; callers
// that know a service duration trim the tail with their own overrun checks.
func Slots(start, end Clock, step int) []Clock {
	if step <= 0 || end < start {
		return nil
	}
	var slots []Clock
	for s := start; s <= end; s = s.Add(step) {
		slots = append(slots, s)
	}
	return slots
}
