// Package dialogue implements the slot-filling conversation state machine.
//
// HandleTurn is a pure function of its inputs: the classifier output and the
// current time are supplied by the caller, and the returned state is a copy.
package dialogue

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"dining-concierge/internal/domain"
)

// TurnInput is everything one turn depends on besides the prior state.
type TurnInput struct {
	Utterance      string
	Classification domain.Classification
	Now            time.Time
}

// TurnResult is the outcome of one turn. Request is set only on the turn that
// completes the conversation.
type TurnResult struct {
	Response string
	Failure  *SlotError
	Request  *domain.DiningRequest
}

// Collector elicits the slots of a dining request one at a time.
type Collector struct {
	validate *validator.Validate
}

func NewCollector() *Collector {
	return &Collector{validate: newValidator()}
}

// HandleTurn applies one utterance to state and returns the next state and the
// response to show the user.
func (c *Collector) HandleTurn(state domain.ConversationState, in TurnInput) (domain.ConversationState, TurnResult) {
	next := state.Clone()

	switch in.Classification.Intent {
	case domain.IntentGreeting:
		return next, TurnResult{Response: greeting(next)}
	case domain.IntentThanks:
		return next, TurnResult{Response: thanks(next)}
	case domain.IntentRequestSuggestions:
		slot, ok := next.Pending()
		if !ok {
			return next, TurnResult{Response: alreadyComplete}
		}
		next.LastPrompted = slot
		return next, TurnResult{Response: slotPrompt(slot)}
	case domain.IntentProvideSlotValue:
		return c.provideSlotValue(next, in)
	default:
		if slot, ok := next.Pending(); ok {
			return next, TurnResult{Response: fallbackOpener + " " + slotPrompt(slot)}
		}
		return next, TurnResult{Response: fallbackOpener}
	}
}

func (c *Collector) provideSlotValue(next domain.ConversationState, in TurnInput) (domain.ConversationState, TurnResult) {
	slot, ok := next.Pending()
	if !ok {
		return next, TurnResult{Response: alreadyComplete}
	}

	raw := in.Classification.Value
	if strings.TrimSpace(raw) == "" {
		raw = in.Utterance
	}

	value, failure := c.validateSlot(slot, raw, in.Now)
	if failure != nil {
		return next, TurnResult{Response: reprompt(failure), Failure: failure}
	}

	if next.Slots == nil {
		next.Slots = make(map[domain.Slot]string, len(domain.Slots()))
	}
	next.Slots[slot] = value

	if following, ok := next.NextUnset(); ok {
		next.LastPrompted = following
		return next, TurnResult{Response: slotPrompt(following)}
	}

	req := buildRequest(next, in.Now)
	next.LastPrompted = ""
	next.Complete = true
	return next, TurnResult{Response: confirmation(req), Request: &req}
}

// buildRequest converts a fully populated state. Every value was canonicalized
// by validateSlot, so conversions cannot fail.
func buildRequest(s domain.ConversationState, now time.Time) domain.DiningRequest {
	partySize, _ := strconv.Atoi(s.Slots[domain.SlotPartySize])
	return domain.DiningRequest{
		SessionID:   s.SessionID,
		Location:    s.Slots[domain.SlotLocation],
		Cuisine:     domain.Cuisine(s.Slots[domain.SlotCuisine]),
		PartySize:   partySize,
		Date:        s.Slots[domain.SlotDate],
		Time:        s.Slots[domain.SlotTime],
		Email:       s.Slots[domain.SlotEmail],
		RequestedAt: now.UTC(),
	}
}
