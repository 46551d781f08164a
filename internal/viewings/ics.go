package viewings

import (
	"fmt"
	"strings"
	"time"
)

// icsTimestamp is the UTC format iCalendar requires.
const icsTimestamp = "20060102T150405Z"

// BuildCalendarInvite renders a confirmed appointment as a plain-text ICS
// VEVENT block. It is delivered as literal chat text for the user to save
// manually; WhatsApp has no native attachment path here.
func BuildCalendarInvite(appt *Appointment, summary, location string, now time.Time) string {
	start := combineDateClock(appt.Date, appt.StartTime)
	end := combineDateClock(appt.Date, appt.EndTime)

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//PropChat//Viewing Scheduler//EN",
		"BEGIN:VEVENT",
		"UID:" + appt.ID.String() + "@propchat",
		"DTSTAMP:" + now.UTC().Format(icsTimestamp),
		"DTSTART:" + start.Format(icsTimestamp),
		"DTEND:" + end.Format(icsTimestamp),
		"SUMMARY:" + escapeICSText(summary),
		"LOCATION:" + escapeICSText(location),
		"STATUS:CONFIRMED",
		"END:VEVENT",
		"END:VCALENDAR",
	}
	return strings.Join(lines, "\r\n")
}

// combineDateClock merges a calendar date with an "HH:MM" clock into a UTC
// instant. Invalid clocks fall back to midnight.
func combineDateClock(date time.Time, clock string) time.Time {
	mins, err := minuteOfDay(clock)
	if err != nil {
		mins = 0
	}
	y, m, d := date.UTC().Date()
	return time.Date(y, m, d, mins/60, mins%60, 0, 0, time.UTC)
}

// escapeICSText escapes the characters RFC 5545 treats specially in text
// values.
func escapeICSText(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		";", `\;`,
		",", `\,`,
		"\n", `\n`,
	)
	return r.Replace(s)
}

// formatInviteMessage wraps the ICS block in a short chat preamble.
func formatInviteMessage(appt *Appointment, summary, location string, now time.Time) string {
	return fmt.Sprintf(
		"Your viewing is confirmed: %s, %s %s–%s.\n\nSave this to your calendar:\n\n%s",
		appt.Date.Weekday(), appt.Date.Format("January 2"),
		formatClock(appt.StartTime), formatClock(appt.EndTime),
		BuildCalendarInvite(appt, summary, location, now),
	)
}
