// Package apperr carries the domain error taxonomy. Handlers map kinds to
// HTTP status codes; services construct errors with enough structure for
// clients to render a useful message.
package apperr

import (
	"errors"
	"fmt"

	"github.com/pveiga/agendle/internal/interval"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindBusiness
	KindInvalidInterval
	KindDuplicateBlock
	KindConflictingBlock
	KindAppointmentConflict
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindBusiness:
		return "business_rule"
	case KindInvalidInterval:
		return "invalid_interval"
	case KindDuplicateBlock:
		return "duplicate_block"
	case KindConflictingBlock:
		return "conflicting_block"
	case KindAppointmentConflict:
		return "appointment_conflict"
	case KindForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Conflict describes a booking collision: the requested interval and the
// existing appointment it ran into.
type Conflict struct {
	RequestedStart interval.Clock
	RequestedEnd   interval.Clock
	ExistingStart  interval.Clock
	ExistingEnd    interval.Clock
	ExistingClient string
}

type Error struct {
	Kind     Kind
	Message  string
	Conflict *Conflict
}

func (e *Error) Error() string {
	return e.Message
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(resource, id string) *Error {
	return New(KindNotFound, "%s %s not found", resource, id)
}

func Business(format string, args ...any) *Error {
	return New(KindBusiness, format, args...)
}

func InvalidInterval(format string, args ...any) *Error {
	return New(KindInvalidInterval, format, args...)
}

func DuplicateBlock(format string, args ...any) *Error {
	return New(KindDuplicateBlock, format, args...)
}

func ConflictingBlock(format string, args ...any) *Error {
	return New(KindConflictingBlock, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, format, args...)
}

func AppointmentConflict(c Conflict) *Error {
	return &Error{
		Kind: KindAppointmentConflict,
		Message: fmt.Sprintf("requested interval %s-%s conflicts with existing appointment %s-%s for %s",
			c.RequestedStart, c.RequestedEnd, c.ExistingStart, c.ExistingEnd, c.ExistingClient),
		Conflict: &c,
	}
}

// KindOf extracts the kind from err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
