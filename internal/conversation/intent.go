package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/propchat/propchat/pkg/logging"
)

// IntentType labels what the buyer wants from an appointment-shaped message.
type IntentType string

const (
	IntentScheduleViewing IntentType = "schedule_viewing"
	IntentReschedule      IntentType = "reschedule"
	IntentCancel          IntentType = "cancel"
	IntentNone            IntentType = "none"
)

// IntentResult is the contract every intent classifier satisfies.
type IntentResult struct {
	IsAppointmentRequest   bool       `json:"isAppointmentRequest"`
	Confidence             float64    `json:"confidence"`
	IntentType             IntentType `json:"intentType"`
	HasContextualReference bool       `json:"hasContextualReference"`
}

const intentPrompt = `You classify WhatsApp messages sent to a real-estate assistant. Decide whether the message asks to schedule, reschedule, or cancel a property viewing. Respond with JSON only:
{"isAppointmentRequest": <bool>, "confidence": <0.0-1.0>, "intentType": "schedule_viewing"|"reschedule"|"cancel"|"none", "hasContextualReference": <bool>}
hasContextualReference is true when the message refers to a property mentioned earlier ("it", "that one", "the apartment") rather than naming one.

Message: %s`

// IntentClassifier detects appointment requests, LLM-first with a regex
// fallback so a parser failure never reaches the user.
type IntentClassifier struct {
	client LLMClient
	logger *logging.Logger
}

func NewIntentClassifier(client LLMClient, logger *logging.Logger) *IntentClassifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &IntentClassifier{client: client, logger: logger}
}

// Classify returns the intent for a message. Errors from the LLM degrade to
// the regex heuristic; Classify itself never fails.
func (c *IntentClassifier) Classify(ctx context.Context, message string) (IntentResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return IntentResult{IntentType: IntentNone}, nil
	}

	if c.client != nil {
		resp, err := c.client.Complete(ctx, LLMRequest{
			Messages:  []ChatMessage{{Role: ChatRoleUser, Content: fmt.Sprintf(intentPrompt, message)}},
			MaxTokens: 100,
		})
		if err == nil {
			if result, ok := decodeIntentJSON(resp.Text); ok {
				return result, nil
			}
		} else {
			c.logger.Warn("intent classifier falling back to regex", "error", err)
		}
	}

	return DetectAppointmentIntent(message), nil
}

func decodeIntentJSON(raw string) (IntentResult, bool) {
	raw = extractJSONObject(raw)
	if raw == "" {
		return IntentResult{}, false
	}
	var result IntentResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return IntentResult{}, false
	}
	switch result.IntentType {
	case IntentScheduleViewing, IntentReschedule, IntentCancel, IntentNone:
	default:
		result.IntentType = IntentNone
	}
	return result, true
}

// extractJSONObject pulls the outermost {...} out of LLM output that may be
// wrapped in prose or code fences.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

var (
	viewingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(view|viewing|visit|tour|see)\b.*\b(propert|house|flat|apartment|place|listing|it)\b`),
		regexp.MustCompile(`(?i)\b(schedule|book|arrange)\b.*\b(viewing|visit|tour|appointment)\b`),
		regexp.MustCompile(`(?i)\binterested in\b.*\b(propert|house|flat|apartment|listing)\b`),
		regexp.MustCompile(`(?i)\bwhen can i (see|view|visit)\b`),
	}
	reschedulePattern = regexp.MustCompile(`(?i)\b(reschedule|another time|different time|move (the|my) (viewing|appointment))\b`)
	cancelPattern     = regexp.MustCompile(`(?i)\bcancel\b.*\b(viewing|visit|appointment)\b`)
	contextualPattern = regexp.MustCompile(`(?i)\b(it|that one|this one|the (place|propert\w*|apartment|house|flat))\b`)
)

// DetectAppointmentIntent is the deterministic regex heuristic used when the
// LLM is unavailable or returns unparseable output.
func DetectAppointmentIntent(message string) IntentResult {
	switch {
	case cancelPattern.MatchString(message):
		return IntentResult{IsAppointmentRequest: true, Confidence: 0.6, IntentType: IntentCancel,
			HasContextualReference: contextualPattern.MatchString(message)}
	case reschedulePattern.MatchString(message):
		return IntentResult{IsAppointmentRequest: true, Confidence: 0.6, IntentType: IntentReschedule,
			HasContextualReference: contextualPattern.MatchString(message)}
	}
	for _, pat := range viewingPatterns {
		if pat.MatchString(message) {
			return IntentResult{IsAppointmentRequest: true, Confidence: 0.6, IntentType: IntentScheduleViewing,
				HasContextualReference: contextualPattern.MatchString(message)}
		}
	}
	return IntentResult{IntentType: IntentNone, Confidence: 0.5}
}
