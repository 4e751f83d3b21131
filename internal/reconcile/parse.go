package reconcile

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	bookingIDPattern = regexp.MustCompile(`Booking ID:\s*([A-Za-z0-9-]+)`)
	stayPattern      = regexp.MustCompile(`(.+?) - (.+?) \((\d{4}-\d{2}-\d{2}) to (\d{4}-\d{2}-\d{2})\)`)
)

// Remarks is the free text stored on a payment link so the booking id can be
// recovered from the provider side.
func Remarks(bookingID string) string {
	return "Booking ID: " + bookingID
}

// Description is the human readable line item, also parsed back by the sweep.
func Description(label, room, checkIn, checkOut string) string {
	return fmt.Sprintf("%s - %s (%s to %s)", label, room, checkIn, checkOut)
}

func ParseBookingID(text string) (string, bool) {
	m := bookingIDPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

type Stay struct {
	Label    string
	Room     string
	CheckIn  string
	CheckOut string
}

func ParseStay(text string) (Stay, bool) {
	m := stayPattern.FindStringSubmatch(text)
	if m == nil {
		return Stay{}, false
	}
	return Stay{
		Label:    strings.TrimSpace(m[1]),
		Room:     strings.TrimSpace(m[2]),
		CheckIn:  m[3],
		CheckOut: m[4],
	}, true
}
