package chat

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used for pickup dates.
const DateLayout = "2006-01-02"

// PickupDetails is the donor's proposal for the handover. It is replaced as a
// whole on every update.
type PickupDetails struct {
	Location            string
	Date                time.Time
	Time                string
	ConfirmedByReceiver bool
	ConfirmedAt         time.Time
}

// ParsePickupDate parses a YYYY-MM-DD date.
func ParsePickupDate(raw string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidPickup)
	}
	return d, nil
}

func (p PickupDetails) summary() string {
	return fmt.Sprintf(
		"📍 Pickup Details:\n• Location: %s\n• Date: %s\n• Time: %s\n\nReceiver, please confirm these details.",
		p.Location, p.Date.Format(DateLayout), p.Time,
	)
}
