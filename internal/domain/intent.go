package domain

// Intent is the classified purpose of one utterance.
type Intent int

const (
	IntentGreeting Intent = iota + 1
	IntentThanks
	IntentProvideSlotValue
	// IntentRequestSuggestions opens a search without supplying a slot value
	// ("I need restaurant suggestions").
	IntentRequestSuggestions
)

func (i Intent) String() string {
	switch i {
	case IntentGreeting:
		return "Greeting"
	case IntentThanks:
		return "Thanks"
	case IntentProvideSlotValue:
		return "ProvideSlotValue"
	case IntentRequestSuggestions:
		return "RequestSuggestions"
	default:
		return "Unknown"
	}
}

// Classification is the intent classifier output for one utterance. Value is
// the structured slot extraction when the classifier produced one.
type Classification struct {
	Intent Intent
	Value  string
}

// ClassifyRequest is the classifier input. ExpectedSlot lets runtimes that
// support slot elicitation interpret the answer for the pending slot.
type ClassifyRequest struct {
	SessionID    string
	Utterance    string
	ExpectedSlot Slot
}
