package domain

// Slot names a single field of a dining request elicited from the user.
type Slot string

const (
	SlotLocation  Slot = "location"
	SlotCuisine   Slot = "cuisine"
	SlotPartySize Slot = "partySize"
	SlotDate      Slot = "date"
	SlotTime      Slot = "time"
	SlotEmail     Slot = "email"
)

var slotOrder = []Slot{SlotLocation, SlotCuisine, SlotPartySize, SlotDate, SlotTime, SlotEmail}

// Slots returns every recognized slot in elicitation order.
func Slots() []Slot {
	out := make([]Slot, len(slotOrder))
	copy(out, slotOrder)
	return out
}

// Valid reports whether s is a recognized slot name.
func (s Slot) Valid() bool {
	for _, known := range slotOrder {
		if s == known {
			return true
		}
	}
	return false
}

// Stage names the state of the collector state machine.
type Stage string

const (
	StageAwaitingLocation  Stage = "AwaitingLocation"
	StageAwaitingCuisine   Stage = "AwaitingCuisine"
	StageAwaitingPartySize Stage = "AwaitingPartySize"
	StageAwaitingDate      Stage = "AwaitingDate"
	StageAwaitingTime      Stage = "AwaitingTime"
	StageAwaitingEmail     Stage = "AwaitingEmail"
	StageComplete          Stage = "Complete"
)

var awaiting = map[Slot]Stage{
	SlotLocation:  StageAwaitingLocation,
	SlotCuisine:   StageAwaitingCuisine,
	SlotPartySize: StageAwaitingPartySize,
	SlotDate:      StageAwaitingDate,
	SlotTime:      StageAwaitingTime,
	SlotEmail:     StageAwaitingEmail,
}
