package model

import (
	"time"

	"github.com/pveiga/agendle/internal/interval"
)

const DateLayout = "2006-01-02"

type Tenant struct {
	ID           string
	Key          string
	BusinessName string
	ContactEmail string
	ContactPhone string
	Active       bool
	CreatedAt    time.Time
}

type Professional struct {
	ID        string
	TenantID  string
	Name      string
	Email     string
	Phone     string
	Active    bool
	CreatedAt time.Time
}

type Service struct {
	ID           string
	TenantID     string
	Name         string
	DurationMins int
	Price        float64
	CreatedAt    time.Time
}

// WorkingHours describes the bookable window for a professional, or the
// tenant-wide fallback when ProfessionalID is empty. SlotMinutes is the
// granularity of candidate start times.
type WorkingHours struct {
	TenantID       string
	ProfessionalID string
	Start          interval.Clock
	End            interval.Clock
	SlotMinutes    int
}

// DayBlock removes a whole day from the calendar, either a specific date or
// a recurring weekday. Exactly one of Date and Weekday is meaningful,
// selected by Recurring.
type DayBlock struct {
	ID        string
	TenantID  string
	Recurring bool
	Date      time.Time
	Weekday   time.Weekday
	Reason    string
	CreatedAt time.Time
}

// IntervalBlock removes part of a professional's day, either on a specific
// date or on a recurring weekday.
type IntervalBlock struct {
	ID             string
	TenantID       string
	ProfessionalID string
	Recurring      bool
	Date           time.Time
	Weekday        time.Weekday
	Start          interval.Clock
	End            interval.Clock
	Reason         string
	CreatedAt      time.Time
}

type Appointment struct {
	ID             string
	TenantID       string
	ProfessionalID string
	Date           time.Time
	Start          interval.Clock
	End            interval.Clock
	ClientName     string
	ClientPhone    string
	Services       []Service
	ReminderSent   bool
	CreatedAt      time.Time
}

func (a Appointment) DateString() string {
	return a.Date.Format(DateLayout)
}

// ServiceNames joins the booked service names for notification payloads.
func (a Appointment) ServiceNames() []string {
	names := make([]string, 0, len(a.Services))
	for _, s := range a.Services {
		names = append(names, s.Name)
	}
	return names
}

// TotalPrice sums the booked service prices.
func (a Appointment) TotalPrice() float64 {
	var total float64
	for _, s := range a.Services {
		total += s.Price
	}
	return total
}
