package dialogue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dining-concierge/internal/domain"
)

var testNow = time.Date(2025, 11, 1, 15, 0, 0, 0, time.UTC)

func slotValue(text string) TurnInput {
	return TurnInput{
		Utterance:      text,
		Classification: domain.Classification{Intent: domain.IntentProvideSlotValue},
		Now:            testNow,
	}
}

func withIntent(intent domain.Intent, text string) TurnInput {
	return TurnInput{Utterance: text, Classification: domain.Classification{Intent: intent}, Now: testNow}
}

func runTurns(t *testing.T, c *Collector, state domain.ConversationState, inputs ...TurnInput) (domain.ConversationState, []TurnResult) {
	t.Helper()
	results := make([]TurnResult, 0, len(inputs))
	for _, in := range inputs {
		var res TurnResult
		state, res = c.HandleTurn(state, in)
		results = append(results, res)
	}
	return state, results
}

func stateAwaiting(t *testing.T, c *Collector, slot domain.Slot) domain.ConversationState {
	t.Helper()
	answers := map[domain.Slot]string{
		domain.SlotLocation:  "Manhattan",
		domain.SlotCuisine:   "Italian",
		domain.SlotPartySize: "4",
		domain.SlotDate:      "2025-12-01",
		domain.SlotTime:      "19:30",
		domain.SlotEmail:     "a@b.com",
	}
	state := domain.NewConversationState("sess-1")
	for _, s := range domain.Slots() {
		if s == slot {
			break
		}
		var res TurnResult
		state, res = c.HandleTurn(state, slotValue(answers[s]))
		require.Nil(t, res.Failure, "slot %s", s)
	}
	if slot != domain.SlotLocation {
		require.Equal(t, slot, state.LastPrompted)
	}
	return state
}

func TestHandleTurn_FullConversation(t *testing.T) {
	c := NewCollector()
	state, results := runTurns(t, c, domain.NewConversationState("sess-1"),
		withIntent(domain.IntentGreeting, "hi"),
		slotValue("Manhattan"),
		slotValue("Italian"),
		slotValue("4"),
		slotValue("2025-12-01"),
		slotValue("19:30"),
		slotValue("a@b.com"),
	)

	require.Equal(t, "Hi there! I'm your personal dining concierge. Where would you like to eat today?", results[0].Response)
	for _, res := range results[:6] {
		require.Nil(t, res.Request)
		require.Nil(t, res.Failure)
	}

	last := results[6]
	require.NotNil(t, last.Request)
	require.Equal(t, domain.DiningRequest{
		SessionID:   "sess-1",
		Location:    "Manhattan",
		Cuisine:     domain.CuisineItalian,
		PartySize:   4,
		Date:        "2025-12-01",
		Time:        "19:30",
		Email:       "a@b.com",
		RequestedAt: testNow,
	}, *last.Request)
	require.True(t, state.Complete)
	require.Equal(t, domain.StageComplete, state.Stage())
	require.Contains(t, last.Response, "Italian restaurants in Manhattan for 4 people on 2025-12-01 at 19:30")
	require.Contains(t, last.Response, "a@b.com")
}

func TestHandleTurn_StoresCanonicalValuesNotRawUtterances(t *testing.T) {
	c := NewCollector()
	state := domain.NewConversationState("sess-1")
	_, results := runTurns(t, c, state,
		slotValue("  Upper   East Side "),
		slotValue("iTALIAN"),
		slotValue("2"),
		slotValue("December 1, 2025"),
		slotValue("7:30 pm"),
		slotValue("someone@example.com"),
	)
	req := results[5].Request
	require.NotNil(t, req)
	require.Equal(t, "Upper East Side", req.Location)
	require.Equal(t, domain.CuisineItalian, req.Cuisine)
	require.Equal(t, "2025-12-01", req.Date)
	require.Equal(t, "19:30", req.Time)
}

func TestHandleTurn_PrefersClassifierExtraction(t *testing.T) {
	c := NewCollector()
	state := stateAwaiting(t, c, domain.SlotPartySize)
	in := slotValue("we are four people")
	in.Classification.Value = "4"

	next, res := c.HandleTurn(state, in)
	require.Nil(t, res.Failure)
	require.Equal(t, "4", next.Slots[domain.SlotPartySize])
	require.Equal(t, domain.SlotDate, next.LastPrompted)
}

func TestHandleTurn_NegativePartySizeReprompts(t *testing.T) {
	c := NewCollector()
	state := stateAwaiting(t, c, domain.SlotPartySize)

	next, res := c.HandleTurn(state, slotValue("-1"))
	require.NotNil(t, res.Failure)
	require.Equal(t, KindValidation, res.Failure.Kind)
	require.Equal(t, domain.SlotPartySize, next.LastPrompted)
	require.Equal(t, state, next)
	require.Contains(t, res.Response, "How many people")
}

func TestHandleTurn_RepeatedInvalidValueIsAFixedPoint(t *testing.T) {
	c := NewCollector()
	state := stateAwaiting(t, c, domain.SlotPartySize)

	first, res1 := c.HandleTurn(state, slotValue("lots"))
	second, res2 := c.HandleTurn(first, slotValue("lots"))

	require.Equal(t, state, first)
	require.Equal(t, first, second)
	require.Equal(t, res1.Failure.Kind, res2.Failure.Kind)
	require.Equal(t, res1.Response, res2.Response)
}

func TestHandleTurn_ThanksMidFlowLeavesStateUnchanged(t *testing.T) {
	c := NewCollector()
	state := stateAwaiting(t, c, domain.SlotDate)

	next, res := c.HandleTurn(state, withIntent(domain.IntentThanks, "thanks"))
	require.Equal(t, state, next)
	require.Equal(t, domain.SlotDate, next.LastPrompted)
	require.Contains(t, res.Response, "You're welcome!")
	require.Nil(t, res.Request)
}

func TestHandleTurn_GreetingMidFlowResumes(t *testing.T) {
	c := NewCollector()
	state := stateAwaiting(t, c, domain.SlotTime)

	next, res := c.HandleTurn(state, withIntent(domain.IntentGreeting, "hello"))
	require.Equal(t, state, next)
	require.Contains(t, res.Response, "What time would you like to dine?")
}

func TestHandleTurn_SlotFailures(t *testing.T) {
	cases := []struct {
		name  string
		slot  domain.Slot
		input string
		kind  FailureKind
		hint  string
	}{
		{name: "blank location", slot: domain.SlotLocation, input: "   ", kind: KindValidation, hint: "didn't catch a location"},
		{name: "unknown cuisine", slot: domain.SlotCuisine, input: "Martian", kind: KindUnsupportedCuisine, hint: "Italian, Chinese, Japanese"},
		{name: "zero party", slot: domain.SlotPartySize, input: "0", kind: KindValidation, hint: "whole number"},
		{name: "unparseable date", slot: domain.SlotDate, input: "someday", kind: KindParse, hint: "2025-12-01"},
		{name: "past date", slot: domain.SlotDate, input: "2025-10-31", kind: KindValidation, hint: "in the past"},
		{name: "unparseable time", slot: domain.SlotTime, input: "late", kind: KindParse, hint: "7:30 PM"},
		{name: "bad email", slot: domain.SlotEmail, input: "not-an-email", kind: KindValidation, hint: "valid email"},
	}

	c := NewCollector()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := stateAwaiting(t, c, tc.slot)
			next, res := c.HandleTurn(state, slotValue(tc.input))
			require.NotNil(t, res.Failure)
			require.Equal(t, tc.kind, res.Failure.Kind)
			require.Equal(t, tc.slot, res.Failure.Slot)
			require.Contains(t, res.Response, tc.hint)
			require.Equal(t, state, next)
		})
	}
}

func TestHandleTurn_AcceptedFormats(t *testing.T) {
	cases := []struct {
		slot  domain.Slot
		input string
		want  string
	}{
		{domain.SlotDate, "today", "2025-11-01"},
		{domain.SlotDate, "Tomorrow", "2025-11-02"},
		{domain.SlotDate, "12/01/2025", "2025-12-01"},
		{domain.SlotDate, "Dec 1 2025", "2025-12-01"},
		{domain.SlotTime, "7 PM", "19:00"},
		{domain.SlotTime, "7:05AM", "07:05"},
		{domain.SlotTime, "noon", "12:00"},
		{domain.SlotTime, "18:45:00", "18:45"},
	}

	c := NewCollector()
	for _, tc := range cases {
		t.Run(string(tc.slot)+"/"+tc.input, func(t *testing.T) {
			state := stateAwaiting(t, c, tc.slot)
			next, res := c.HandleTurn(state, slotValue(tc.input))
			require.Nil(t, res.Failure)
			require.Equal(t, tc.want, next.Slots[tc.slot])
		})
	}
}

func TestHandleTurn_FillsSlotsInFixedOrder(t *testing.T) {
	c := NewCollector()
	state := domain.NewConversationState("sess-1")

	// A cuisine name given first is treated as the location answer.
	next, res := c.HandleTurn(state, slotValue("Italian"))
	require.Nil(t, res.Failure)
	require.Equal(t, "Italian", next.Slots[domain.SlotLocation])
	_, hasCuisine := next.Value(domain.SlotCuisine)
	require.False(t, hasCuisine)
	require.Equal(t, domain.SlotCuisine, next.LastPrompted)
}

func TestHandleTurn_RequestSuggestionsPromptsPendingSlot(t *testing.T) {
	c := NewCollector()
	next, res := c.HandleTurn(domain.NewConversationState("sess-1"), withIntent(domain.IntentRequestSuggestions, "I need restaurant suggestions"))
	require.Equal(t, domain.SlotLocation, next.LastPrompted)
	require.Empty(t, next.Slots)
	require.Contains(t, res.Response, "Where would you like to dine?")
}

func TestHandleTurn_AfterCompletion(t *testing.T) {
	c := NewCollector()
	state := stateAwaiting(t, c, domain.SlotEmail)
	done, res := c.HandleTurn(state, slotValue("a@b.com"))
	require.NotNil(t, res.Request)

	again, res := c.HandleTurn(done, slotValue("Brooklyn"))
	require.Equal(t, done, again)
	require.Nil(t, res.Request)
	require.Equal(t, alreadyComplete, res.Response)

	_, res = c.HandleTurn(done, withIntent(domain.IntentThanks, "thank you"))
	require.Contains(t, res.Response, "reservation")
}

func TestHandleTurn_UnknownIntentFallsBack(t *testing.T) {
	c := NewCollector()
	state := domain.NewConversationState("sess-1")
	next, res := c.HandleTurn(state, TurnInput{Utterance: "???", Now: testNow})
	require.Equal(t, state, next)
	require.Contains(t, res.Response, "I'm not sure how to help with that.")
}

func TestHandleTurn_IsDeterministic(t *testing.T) {
	c := NewCollector()
	state := stateAwaiting(t, c, domain.SlotEmail)

	a, resA := c.HandleTurn(state, slotValue("a@b.com"))
	b, resB := c.HandleTurn(state, slotValue("a@b.com"))
	require.Equal(t, a, b)
	require.Equal(t, resA, resB)
	_, stillOpen := state.Pending()
	require.True(t, stillOpen, "input state must not be mutated")
}

func TestHandleTurn_DateUsesDinersCalendarDay(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	// 01:00 UTC on Dec 2 is still the evening of Dec 1 in New York.
	now := time.Date(2025, 12, 2, 1, 0, 0, 0, time.UTC).In(newYork)

	c := NewCollector()
	state := stateAwaiting(t, c, domain.SlotDate)

	in := slotValue("2025-12-01")
	in.Now = now
	next, res := c.HandleTurn(state, in)
	require.Nil(t, res.Failure)
	require.Equal(t, "2025-12-01", next.Slots[domain.SlotDate])

	in = slotValue("today")
	in.Now = now
	next, res = c.HandleTurn(state, in)
	require.Nil(t, res.Failure)
	require.Equal(t, "2025-12-01", next.Slots[domain.SlotDate])

	in = slotValue("2025-11-30")
	in.Now = now
	_, res = c.HandleTurn(state, in)
	require.NotNil(t, res.Failure)
	require.Equal(t, KindValidation, res.Failure.Kind)
}

func TestHandleTurn_RecoversFromUnknownLastPrompted(t *testing.T) {
	c := NewCollector()
	state := domain.NewConversationState("sess-1")
	state.LastPrompted = domain.Slot("bogus")

	next, res := c.HandleTurn(state, withIntent(domain.IntentGreeting, "hi"))
	require.Contains(t, res.Response, "Where would you like to eat today?")

	next, res = c.HandleTurn(next, slotValue("Manhattan"))
	require.Nil(t, res.Failure)
	require.Equal(t, "Manhattan", next.Slots[domain.SlotLocation])
	require.Equal(t, domain.SlotCuisine, next.LastPrompted)
}
