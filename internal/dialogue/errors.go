package dialogue

import (
	"fmt"

	"dining-concierge/internal/domain"
)

// FailureKind classifies a locally recoverable slot failure.
type FailureKind string

const (
	KindValidation         FailureKind = "ValidationError"
	KindUnsupportedCuisine FailureKind = "UnsupportedCuisine"
	KindParse              FailureKind = "ParseError"
)

// SlotError describes why an answer was rejected. It never leaves the turn as
// an error; the collector turns it into a re-prompt.
type SlotError struct {
	Kind   FailureKind
	Slot   domain.Slot
	Reason string
}

func (e *SlotError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("dialogue: %s for %s (%s)", e.Kind, e.Slot, e.Reason)
}

func slotError(kind FailureKind, slot domain.Slot, reason string) *SlotError {
	return &SlotError{Kind: kind, Slot: slot, Reason: reason}
}
