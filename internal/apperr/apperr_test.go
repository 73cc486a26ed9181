package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := NotFound("appointment", "abc")
	if KindOf(err) != KindNotFound {
		t.Fatalf("KindOf = %v, want not_found", KindOf(err))
	}
	wrapped := fmt.Errorf("cancel: %w", err)
	if KindOf(wrapped) != KindNotFound {
		t.Fatal("KindOf should unwrap")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Fatal("foreign errors should map to unknown")
	}
}

func TestAppointmentConflictMessage(t *testing.T) {
	err := AppointmentConflict(Conflict{
		RequestedStart: 600,
		RequestedEnd:   660,
		ExistingStart:  630,
		ExistingEnd:    690,
		ExistingClient: "Ana",
	})
	want := "requested interval 10:00-11:00 conflicts with existing appointment 10:30-11:30 for Ana"
	if err.Error() != want {
		t.Fatalf("message = %q, want %q", err.Error(), want)
	}
	if err.Conflict == nil || err.Conflict.ExistingClient != "Ana" {
		t.Fatal("conflict detail should be attached")
	}
	if !IsKind(err, KindAppointmentConflict) {
		t.Fatal("kind mismatch")
	}
}
