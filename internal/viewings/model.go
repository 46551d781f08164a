package viewings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a viewing appointment.
type Status string

const (
	StatusPendingOwnerApproval Status = "pending_owner_approval"
	StatusConfirmed            Status = "confirmed"
	StatusDeclined             Status = "declined"
	StatusCancelled            Status = "cancelled"
)

// Terminal reports whether no further transitions are defined from s.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusDeclined || s == StatusCancelled
}

// Active reports whether s blocks the appointment's time range for others.
func (s Status) Active() bool {
	return s == StatusPendingOwnerApproval || s == StatusConfirmed
}

var (
	// ErrSlotTaken indicates the requested range overlaps an active appointment.
	ErrSlotTaken = errors.New("viewings: slot no longer available")
	// ErrNotFound indicates no appointment matched the lookup.
	ErrNotFound = errors.New("viewings: appointment not found")
	// ErrNotPending indicates a status change was attempted on an appointment
	// that already left pending_owner_approval.
	ErrNotPending = errors.New("viewings: appointment not in pending state")
)

// Appointment is a property-viewing booking between a buyer and a property.
// Start and end times are "HH:MM" on the appointment's calendar date; the
// range is half-open, so back-to-back viewings do not conflict.
type Appointment struct {
	ID         uuid.UUID
	PropertyID uuid.UUID
	UserID     uuid.UUID
	Date       time.Time // calendar date, midnight UTC
	StartTime  string
	EndTime    string
	TimeSlotID *uuid.UUID
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// shortIDLen is how many leading hex characters of the UUID owners type in
// chat when referencing an appointment.
const shortIDLen = 8

// ShortID returns the human-typed-friendly prefix of the appointment ID.
func (a *Appointment) ShortID() string {
	s := strings.ReplaceAll(a.ID.String(), "-", "")
	if len(s) > shortIDLen {
		s = s[:shortIDLen]
	}
	return s
}

// TimeSlot is a generic fallback viewing window, used only for properties
// whose owner declared no weekly availability rules.
type TimeSlot struct {
	ID        uuid.UUID
	Label     string
	StartTime string
	EndTime   string
}

// CandidateSlot is a bookable (date, start, end) window offered to a buyer.
type CandidateSlot struct {
	Date       time.Time  `json:"date"`
	Label      string     `json:"label"`
	StartTime  string     `json:"start_time"`
	EndTime    string     `json:"end_time"`
	TimeSlotID *uuid.UUID `json:"time_slot_id,omitempty"`
}

// Describe renders the slot for a numbered chat list.
func (c CandidateSlot) Describe() string {
	return fmt.Sprintf("%s, %s %s–%s",
		c.Date.Weekday(), c.Date.Format("Jan 2"), formatClock(c.StartTime), formatClock(c.EndTime))
}

// minuteOfDay parses an "HH:MM" clock value into minutes since midnight.
func minuteOfDay(clock string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(clock), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("viewings: invalid clock value %q", clock)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("viewings: invalid hour in %q", clock)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("viewings: invalid minute in %q", clock)
	}
	return h*60 + m, nil
}

// rangesOverlap reports whether two half-open [start, end) clock ranges
// intersect. Touching boundaries do not conflict.
func rangesOverlap(aStart, aEnd, bStart, bEnd string) bool {
	as, err1 := minuteOfDay(aStart)
	ae, err2 := minuteOfDay(aEnd)
	bs, err3 := minuteOfDay(bStart)
	be, err4 := minuteOfDay(bEnd)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return false
	}
	return as < be && ae > bs
}

// clockFromMinutes renders minutes since midnight as "HH:MM".
func clockFromMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// formatClock renders "HH:MM" as a 12-hour display string.
func formatClock(clock string) string {
	m, err := minuteOfDay(clock)
	if err != nil {
		return clock
	}
	h := m / 60
	min := m % 60
	suffix := "am"
	switch {
	case h == 0:
		h = 12
	case h == 12:
		suffix = "pm"
	case h > 12:
		h -= 12
		suffix = "pm"
	}
	if min == 0 {
		return fmt.Sprintf("%d%s", h, suffix)
	}
	return fmt.Sprintf("%d:%02d%s", h, min, suffix)
}

// dateOnly truncates t to midnight UTC.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
