package dialogue

import (
	"fmt"
	"strings"

	"dining-concierge/internal/domain"
)

var slotPrompts = map[domain.Slot]string{
	domain.SlotLocation:  "Where would you like to dine? (e.g., Manhattan, Midtown, Upper East Side)",
	domain.SlotCuisine:   "What type of cuisine are you in the mood for? (e.g., Italian, Chinese, Mexican, Japanese, Indian)",
	domain.SlotPartySize: "How many people will be dining? (e.g., 2, 4, 6)",
	domain.SlotDate:      "What date would you like to dine? (e.g., 2025-12-01, tomorrow)",
	domain.SlotTime:      "What time would you like to dine? (e.g., 7:00 PM, 19:30)",
	domain.SlotEmail:     "What's your email address so I can send you the recommendations?",
}

const (
	greetingOpener  = "Hi there! I'm your personal dining concierge. Where would you like to eat today?"
	greetingResume  = "Hi again! Let's pick up where we left off."
	greetingDone    = "Hi again! Your recommendations are on their way. Is there anything else I can help you with?"
	thanksOpener    = "You're welcome!"
	thanksDone      = "You're welcome! Enjoy your meal. If you'd like, I can also help you make a reservation."
	alreadyComplete = "I've already got your request and the recommendations are on their way. Start a new chat to search again."
	fallbackOpener  = "I'm not sure how to help with that. I can assist you with restaurant recommendations."
)

func slotPrompt(slot domain.Slot) string {
	if p, ok := slotPrompts[slot]; ok {
		return p
	}
	return fmt.Sprintf("Please provide %s.", strings.ToLower(string(slot)))
}

func greeting(state domain.ConversationState) string {
	slot, ok := state.Pending()
	switch {
	case !ok:
		return greetingDone
	case slot == domain.SlotLocation && len(state.Slots) == 0:
		return greetingOpener
	default:
		return greetingResume + " " + slotPrompt(slot)
	}
}

func thanks(state domain.ConversationState) string {
	slot, ok := state.Pending()
	if !ok {
		return thanksDone
	}
	return thanksOpener + " " + slotPrompt(slot)
}

func reprompt(err *SlotError) string {
	switch err.Kind {
	case KindUnsupportedCuisine:
		return "Sorry, I don't have recommendations for that cuisine yet. Please choose one of: " + cuisineList() + "."
	case KindParse:
		if err.Slot == domain.SlotDate {
			return "I couldn't understand that date. Please use a format like 2025-12-01. " + slotPrompt(err.Slot)
		}
		return "I couldn't understand that time. Please use a format like 7:30 PM or 19:30. " + slotPrompt(err.Slot)
	}
	switch err.Slot {
	case domain.SlotLocation:
		return "I didn't catch a location. " + slotPrompt(err.Slot)
	case domain.SlotPartySize:
		return "The party size should be a whole number greater than zero. " + slotPrompt(err.Slot)
	case domain.SlotDate:
		return "That date is in the past. Please choose today or a later date. " + slotPrompt(err.Slot)
	case domain.SlotEmail:
		return "That doesn't look like a valid email address. " + slotPrompt(err.Slot)
	default:
		return slotPrompt(err.Slot)
	}
}

func confirmation(r domain.DiningRequest) string {
	people := "people"
	if r.PartySize == 1 {
		people = "person"
	}
	return fmt.Sprintf(
		"Perfect! I've received your request for %s restaurants in %s for %d %s on %s at %s. I'll send the recommendations to %s shortly. Have a great day!",
		r.Cuisine, r.Location, r.PartySize, people, r.Date, r.Time, r.Email,
	)
}

func cuisineList() string {
	cuisines := domain.SupportedCuisines()
	names := make([]string, len(cuisines))
	for i, c := range cuisines {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
