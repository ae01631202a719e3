package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// DiningRequest is the validated output of a completed conversation. It is the
// body of every queued notification job and is never mutated after creation.
type DiningRequest struct {
	SessionID   string    `json:"sessionId,omitempty"`
	Location    string    `json:"location"`
	Cuisine     Cuisine   `json:"cuisine"`
	PartySize   int       `json:"partySize"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Email       string    `json:"email"`
	RequestedAt time.Time `json:"requestedAt"`
}

// Check verifies the structural invariants of a request decoded off the queue.
// Past dates are not rejected here; they were valid when the request was made.
func (r DiningRequest) Check() error {
	if strings.TrimSpace(r.Location) == "" {
		return errors.New("domain: dining request: location is empty")
	}
	if _, ok := ParseCuisine(string(r.Cuisine)); !ok {
		return fmt.Errorf("domain: dining request: unsupported cuisine %q", r.Cuisine)
	}
	if r.PartySize <= 0 {
		return fmt.Errorf("domain: dining request: invalid party size %d", r.PartySize)
	}
	if _, err := time.Parse(DateLayout, r.Date); err != nil {
		return fmt.Errorf("domain: dining request: date: %w", err)
	}
	if _, err := time.Parse(TimeLayout, r.Time); err != nil {
		return fmt.Errorf("domain: dining request: time: %w", err)
	}
	if strings.TrimSpace(r.Email) == "" {
		return errors.New("domain: dining request: email is empty")
	}
	return nil
}
