package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/propchat/propchat/pkg/logging"
)

// TimePreferences is a buyer's scheduling preference extracted from free
// text. Days use 0=Sunday..6=Saturday; clock values are 24-hour "HH:MM".
type TimePreferences struct {
	DaysOfWeek []int  `json:"days_of_week,omitempty"`
	AfterTime  string `json:"after_time,omitempty"`
	BeforeTime string `json:"before_time,omitempty"`
	Flexible   bool   `json:"flexible,omitempty"`
	Urgent     bool   `json:"urgent,omitempty"`
	Summary    string `json:"summary,omitempty"`
	RawText    string `json:"raw_text,omitempty"`
}

const preferencesPrompt = `Extract scheduling preferences from a buyer's message about when they can attend a property viewing. Respond with JSON only:
{"days_of_week": [<0=Sunday..6=Saturday>], "after_time": "HH:MM or empty", "before_time": "HH:MM or empty", "flexible": <bool>, "urgent": <bool>, "summary": "<short human-readable summary>"}

Message: %s`

// PreferenceParser converts free-text availability into TimePreferences,
// LLM-first with a regex fallback.
type PreferenceParser struct {
	client LLMClient
	logger *logging.Logger
}

func NewPreferenceParser(client LLMClient, logger *logging.Logger) *PreferenceParser {
	if logger == nil {
		logger = logging.Default()
	}
	return &PreferenceParser{client: client, logger: logger}
}

// Parse never fails: on LLM error or malformed output it falls back to the
// regex extractor, which at worst yields a low-information "flexible" result.
func (p *PreferenceParser) Parse(ctx context.Context, message string) (TimePreferences, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return TimePreferences{Flexible: true, Summary: "any day/time"}, nil
	}

	if p.client != nil {
		resp, err := p.client.Complete(ctx, LLMRequest{
			Messages:  []ChatMessage{{Role: ChatRoleUser, Content: fmt.Sprintf(preferencesPrompt, message)}},
			MaxTokens: 150,
		})
		if err == nil {
			if raw := extractJSONObject(resp.Text); raw != "" {
				var prefs TimePreferences
				if jsonErr := json.Unmarshal([]byte(raw), &prefs); jsonErr == nil {
					prefs.RawText = message
					if prefs.Summary == "" {
						prefs.Summary = SummarizePreferences(prefs)
					}
					return prefs, nil
				}
			}
		} else {
			p.logger.Warn("preference parser falling back to regex", "error", err)
		}
	}

	return ExtractTimePreferences(message), nil
}

var weekdayNames = map[string]int{
	"sunday": 0, "sun": 0,
	"monday": 1, "mon": 1,
	"tuesday": 2, "tues": 2, "tue": 2,
	"wednesday": 3, "wed": 3,
	"thursday": 4, "thurs": 4, "thu": 4,
	"friday": 5, "fri": 5,
	"saturday": 6, "sat": 6,
}

var (
	afterTimeRE  = regexp.MustCompile(`(?i)after\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?`)
	beforeTimeRE = regexp.MustCompile(`(?i)(?:before|by)\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?`)
	bareTimeRE   = regexp.MustCompile(`(?i)(?:^|\s)(\d{1,2})(?::(\d{2}))?\s*(am|pm)`)
	urgentRE     = regexp.MustCompile(`(?i)\b(asap|urgent|as soon as|today|right away|this week)\b`)
	flexibleRE   = regexp.MustCompile(`(?i)\b(any ?time|any day|whenever|flexible|no preference)\b`)
)

// ExtractTimePreferences is the deterministic fallback parser. It recognizes
// weekday names and groups, after/before clock constraints, urgency markers,
// and flexibility phrases.
func ExtractTimePreferences(text string) TimePreferences {
	lower := strings.ToLower(text)
	prefs := TimePreferences{RawText: text}

	seen := make(map[int]bool)
	addDay := func(d int) {
		if !seen[d] {
			seen[d] = true
			prefs.DaysOfWeek = append(prefs.DaysOfWeek, d)
		}
	}

	for name, num := range weekdayNames {
		if containsWord(lower, name) {
			addDay(num)
		}
	}
	if strings.Contains(lower, "weekday") {
		for d := 1; d <= 5; d++ {
			addDay(d)
		}
	}
	if strings.Contains(lower, "weekend") {
		addDay(6)
		addDay(0)
	}
	sort.Ints(prefs.DaysOfWeek)

	if m := afterTimeRE.FindStringSubmatch(lower); m != nil {
		prefs.AfterTime = clock24(m[1], m[2], m[3])
	}
	if m := beforeTimeRE.FindStringSubmatch(lower); m != nil {
		prefs.BeforeTime = clock24(m[1], m[2], m[3])
	}
	if prefs.AfterTime == "" && prefs.BeforeTime == "" {
		// A bare "3pm" usually means "3pm or later".
		if m := bareTimeRE.FindStringSubmatch(lower); m != nil {
			prefs.AfterTime = clock24(m[1], m[2], m[3])
		}
	}
	if prefs.AfterTime == "" && prefs.BeforeTime == "" {
		switch {
		case strings.Contains(lower, "morning"):
			prefs.BeforeTime = "12:00"
		case strings.Contains(lower, "afternoon"):
			prefs.AfterTime = "12:00"
		case strings.Contains(lower, "evening"), strings.Contains(lower, "after work"):
			prefs.AfterTime = "17:00"
		}
	}

	prefs.Urgent = urgentRE.MatchString(lower)
	prefs.Flexible = flexibleRE.MatchString(lower) ||
		(len(prefs.DaysOfWeek) == 0 && prefs.AfterTime == "" && prefs.BeforeTime == "")
	prefs.Summary = SummarizePreferences(prefs)
	return prefs
}

func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isLetter(text[i-1])
		afterIdx := i + len(word)
		after := afterIdx >= len(text) || !isLetter(text[afterIdx])
		if before && after {
			return true
		}
		idx = i + len(word)
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// clock24 converts regex hour/minute/meridiem captures to "HH:MM". Ambiguous
// bare hours from 1-7 are read as afternoon, matching how people text about
// viewings.
func clock24(hourStr, minStr, meridiem string) string {
	h := 0
	for _, c := range hourStr {
		h = h*10 + int(c-'0')
	}
	m := 0
	for _, c := range minStr {
		m = m*10 + int(c-'0')
	}
	switch strings.ToLower(meridiem) {
	case "pm":
		if h != 12 {
			h += 12
		}
	case "am":
		if h == 12 {
			h = 0
		}
	default:
		if h >= 1 && h <= 7 {
			h += 12
		}
	}
	if h > 23 || m > 59 {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

var dayDisplay = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// SummarizePreferences renders preferences as a short line for relaying to
// the owner.
func SummarizePreferences(prefs TimePreferences) string {
	var parts []string

	if len(prefs.DaysOfWeek) > 0 {
		names := make([]string, 0, len(prefs.DaysOfWeek))
		for _, d := range prefs.DaysOfWeek {
			if d >= 0 && d <= 6 {
				names = append(names, dayDisplay[d])
			}
		}
		if len(names) > 0 {
			parts = append(parts, strings.Join(names, ", "))
		}
	}
	if prefs.AfterTime != "" {
		parts = append(parts, "after "+prefs.AfterTime)
	}
	if prefs.BeforeTime != "" {
		parts = append(parts, "before "+prefs.BeforeTime)
	}
	if len(parts) == 0 {
		if prefs.RawText != "" && !prefs.Flexible {
			return prefs.RawText
		}
		return "any day/time"
	}
	summary := strings.Join(parts, ", ")
	if prefs.Urgent {
		summary += " (as soon as possible)"
	}
	return summary
}
