package domain

import "time"

// ConversationState is the per-session slot-filling state. It is passed into
// and returned from every turn; persistence belongs to the session store.
type ConversationState struct {
	SessionID    string          `json:"sessionId"`
	Slots        map[Slot]string `json:"slots,omitempty"`
	LastPrompted Slot            `json:"lastPromptedSlot,omitempty"`
	Complete     bool            `json:"complete,omitempty"`

	// Bookkeeping owned by the session store, never read by the collector.
	Turns     int       `json:"turns"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// NewConversationState returns an empty state for sessionID.
func NewConversationState(sessionID string) ConversationState {
	return ConversationState{SessionID: sessionID}
}

// Value returns the stored value of slot. Unset slots report false.
func (s ConversationState) Value(slot Slot) (string, bool) {
	v, ok := s.Slots[slot]
	return v, ok
}

// Pending returns the slot currently being elicited. It is the last prompted
// slot while that slot is still unset, otherwise the first unset slot in
// elicitation order. A complete or fully populated state has no pending slot.
func (s ConversationState) Pending() (Slot, bool) {
	if s.Complete {
		return "", false
	}
	if s.LastPrompted.Valid() {
		if _, set := s.Slots[s.LastPrompted]; !set {
			return s.LastPrompted, true
		}
	}
	return s.NextUnset()
}

// NextUnset returns the first unset slot in elicitation order.
func (s ConversationState) NextUnset() (Slot, bool) {
	for _, slot := range slotOrder {
		if _, set := s.Slots[slot]; !set {
			return slot, true
		}
	}
	return "", false
}

// Stage derives the state machine stage from the slots.
func (s ConversationState) Stage() Stage {
	slot, ok := s.Pending()
	if !ok {
		return StageComplete
	}
	return awaiting[slot]
}

// Clone returns a deep copy so callers can mutate without aliasing the slot map.
func (s ConversationState) Clone() ConversationState {
	out := s
	if s.Slots != nil {
		out.Slots = make(map[Slot]string, len(s.Slots))
		for k, v := range s.Slots {
			out.Slots[k] = v
		}
	}
	return out
}
