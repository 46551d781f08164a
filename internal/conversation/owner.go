package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/propchat/propchat/pkg/logging"
)

// OwnerIntent is what an owner/agent reply means for a viewing request.
type OwnerIntent string

const (
	OwnerIntentConfirm        OwnerIntent = "confirm"
	OwnerIntentDecline        OwnerIntent = "decline"
	OwnerIntentSuggestNewTime OwnerIntent = "suggest_new_time"
	OwnerIntentUnclear        OwnerIntent = "unclear"
)

// OwnerResponse is the parsed form of an owner/agent chat reply.
type OwnerResponse struct {
	Intent            OwnerIntent `json:"intent"`
	AppointmentID     string      `json:"appointmentId,omitempty"`
	NewTimeSuggestion string      `json:"newTimeSuggestion,omitempty"`
}

const ownerPrompt = `An owner or agent replied to a property-viewing request. Requests are referenced by a short hex ID (e.g. "ab12cd34"). Classify the reply. Respond with JSON only:
{"intent": "confirm"|"decline"|"suggest_new_time"|"unclear", "appointmentId": "<short id or empty>", "newTimeSuggestion": "<verbatim time text or empty>"}

Reply: %s`

// OwnerResponseParser interprets owner-side replies, LLM-first with a regex
// fallback.
type OwnerResponseParser struct {
	client LLMClient
	logger *logging.Logger
}

func NewOwnerResponseParser(client LLMClient, logger *logging.Logger) *OwnerResponseParser {
	if logger == nil {
		logger = logging.Default()
	}
	return &OwnerResponseParser{client: client, logger: logger}
}

// Parse never fails: LLM errors degrade to the regex heuristic.
func (p *OwnerResponseParser) Parse(ctx context.Context, message string) (OwnerResponse, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return OwnerResponse{Intent: OwnerIntentUnclear}, nil
	}

	if p.client != nil {
		resp, err := p.client.Complete(ctx, LLMRequest{
			Messages:  []ChatMessage{{Role: ChatRoleUser, Content: fmt.Sprintf(ownerPrompt, message)}},
			MaxTokens: 100,
		})
		if err == nil {
			if raw := extractJSONObject(resp.Text); raw != "" {
				var result OwnerResponse
				if jsonErr := json.Unmarshal([]byte(raw), &result); jsonErr == nil {
					switch result.Intent {
					case OwnerIntentConfirm, OwnerIntentDecline, OwnerIntentSuggestNewTime, OwnerIntentUnclear:
						return result, nil
					}
				}
			}
		} else {
			p.logger.Warn("owner response parser falling back to regex", "error", err)
		}
	}

	return ParseOwnerResponse(message), nil
}

var (
	ownerShortIDRE = regexp.MustCompile(`(?i)\b([0-9a-f]{4,32})\b`)
	ownerConfirmRE = regexp.MustCompile(`(?i)\b(confirm|approve|accept|ok for me|fine by me|works)\b`)
	ownerDeclineRE = regexp.MustCompile(`(?i)\b(decline|reject|refuse|not available|no longer available|can'?t make)\b`)
	ownerSuggestRE = regexp.MustCompile(`(?i)\b(instead|how about|what about|prefer|rather|better|suggest|could do)\b`)
)

// ParseOwnerResponse is the deterministic fallback for owner-reply parsing.
func ParseOwnerResponse(message string) OwnerResponse {
	resp := OwnerResponse{Intent: OwnerIntentUnclear}

	if m := ownerShortIDRE.FindStringSubmatch(message); m != nil {
		resp.AppointmentID = strings.ToLower(m[1])
	}

	switch {
	case ownerDeclineRE.MatchString(message):
		resp.Intent = OwnerIntentDecline
	case ownerSuggestRE.MatchString(message) || ContainsTimeReference(message):
		resp.Intent = OwnerIntentSuggestNewTime
		resp.NewTimeSuggestion = message
	case ownerConfirmRE.MatchString(message):
		resp.Intent = OwnerIntentConfirm
	}

	// "Confirm ab12 but Friday works better" style replies: an explicit
	// confirm verb wins over an incidental time mention.
	if resp.Intent == OwnerIntentSuggestNewTime && ownerConfirmRE.MatchString(message) &&
		strings.Contains(strings.ToLower(message), "confirm") {
		resp.Intent = OwnerIntentConfirm
		resp.NewTimeSuggestion = ""
	}

	return resp
}

// ProposedTime is a concrete viewing window extracted from an owner's free
// text during coordination.
type ProposedTime struct {
	Date      time.Time
	StartTime string
	EndTime   string
}

var proposalWeekdayRE = regexp.MustCompile(`(?i)\b(sunday|monday|tuesday|wednesday|thursday|friday|saturday)\b`)

// ExtractProposedTime finds a (day, time) pair in owner text and resolves it
// to the next matching calendar date after now. The window defaults to one
// hour. Returns false when no concrete day+time can be extracted.
func ExtractProposedTime(message string, now time.Time) (ProposedTime, bool) {
	lower := strings.ToLower(message)

	var date time.Time
	switch {
	case strings.Contains(lower, "tomorrow"):
		date = now.AddDate(0, 0, 1)
	case strings.Contains(lower, "today"):
		date = now
	default:
		m := proposalWeekdayRE.FindStringSubmatch(lower)
		if m == nil {
			return ProposedTime{}, false
		}
		target := weekdayNames[m[1]]
		date = now.AddDate(0, 0, 1)
		for int(date.Weekday()) != target {
			date = date.AddDate(0, 0, 1)
		}
	}

	tm := bareTimeRE.FindStringSubmatch(lower)
	if tm == nil {
		// "at 15:00" style 24-hour times carry no meridiem.
		tm = regexp.MustCompile(`(?i)\bat\s+(\d{1,2})(?::(\d{2}))?\b`).FindStringSubmatch(lower)
		if tm == nil {
			return ProposedTime{}, false
		}
		tm = append(tm, "")
	}
	start := clock24(tm[1], tm[2], tm[3])
	if start == "" {
		return ProposedTime{}, false
	}

	startMins := int(start[0]-'0')*600 + int(start[1]-'0')*60 + int(start[3]-'0')*10 + int(start[4]-'0')
	endMins := startMins + 60
	if endMins >= 24*60 {
		endMins = 24*60 - 1
	}
	end := fmt.Sprintf("%02d:%02d", endMins/60, endMins%60)

	y, mo, d := date.UTC().Date()
	return ProposedTime{
		Date:      time.Date(y, mo, d, 0, 0, 0, 0, time.UTC),
		StartTime: start,
		EndTime:   end,
	}, true
}
