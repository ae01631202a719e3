package dialogue

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"dining-concierge/internal/domain"
)

var dateLayouts = []string{
	domain.DateLayout,
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
}

var timeLayouts = []string{
	domain.TimeLayout,
	"15:04:05",
	"3:04 PM",
	"3:04PM",
	"3 PM",
	"3PM",
}

// validateSlot checks raw against the rule for slot and returns the canonical
// value to store.
func (c *Collector) validateSlot(slot domain.Slot, raw string, now time.Time) (string, *SlotError) {
	raw = strings.TrimSpace(raw)
	switch slot {
	case domain.SlotLocation:
		return validateLocation(raw)
	case domain.SlotCuisine:
		return validateCuisine(raw)
	case domain.SlotPartySize:
		return validatePartySize(raw)
	case domain.SlotDate:
		return validateDate(raw, now)
	case domain.SlotTime:
		return validateTime(raw)
	case domain.SlotEmail:
		return c.validateEmail(raw)
	default:
		return "", slotError(KindValidation, slot, "unknown_slot")
	}
}

func validateLocation(raw string) (string, *SlotError) {
	v := strings.Join(strings.Fields(raw), " ")
	if v == "" {
		return "", slotError(KindValidation, domain.SlotLocation, "empty_location")
	}
	return v, nil
}

func validateCuisine(raw string) (string, *SlotError) {
	c, ok := domain.ParseCuisine(raw)
	if !ok {
		return "", slotError(KindUnsupportedCuisine, domain.SlotCuisine, "unsupported_cuisine")
	}
	return string(c), nil
}

func validatePartySize(raw string) (string, *SlotError) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return "", slotError(KindValidation, domain.SlotPartySize, "not_a_number")
	}
	if n <= 0 {
		return "", slotError(KindValidation, domain.SlotPartySize, "not_positive")
	}
	return strconv.Itoa(n), nil
}

func validateDate(raw string, now time.Time) (string, *SlotError) {
	today := startOfDay(now)
	var d time.Time
	switch strings.ToLower(raw) {
	case "today":
		d = today
	case "tomorrow":
		d = today.AddDate(0, 0, 1)
	default:
		parsed, ok := parseAny(dateLayouts, raw, now.Location())
		if !ok {
			return "", slotError(KindParse, domain.SlotDate, "unparseable_date")
		}
		d = parsed
	}
	if d.Before(today) {
		return "", slotError(KindValidation, domain.SlotDate, "past_date")
	}
	return d.Format(domain.DateLayout), nil
}

func validateTime(raw string) (string, *SlotError) {
	upper := strings.ToUpper(raw)
	switch upper {
	case "NOON":
		return "12:00", nil
	case "MIDNIGHT":
		return "00:00", nil
	}
	t, ok := parseAny(timeLayouts, upper, time.UTC)
	if !ok {
		return "", slotError(KindParse, domain.SlotTime, "unparseable_time")
	}
	return t.Format(domain.TimeLayout), nil
}

func (c *Collector) validateEmail(raw string) (string, *SlotError) {
	if err := c.validate.Var(raw, "required,email"); err != nil {
		return "", slotError(KindValidation, domain.SlotEmail, "invalid_email")
	}
	return raw, nil
}

func parseAny(layouts []string, raw string, loc *time.Location) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}
