package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/propchat/propchat/pkg/logging"
)

// ConfirmationResult is the yes/no classifier contract.
type ConfirmationResult struct {
	IsConfirmation bool    `json:"isConfirmation"`
	Confidence     float64 `json:"confidence"`
}

const confirmationPrompt = `A buyer was proposed a property-viewing time and replied. Decide whether the reply ACCEPTS the proposed time. A reply that suggests a different day or time is NOT a confirmation. Respond with JSON only:
{"isConfirmation": <bool>, "confidence": <0.0-1.0>}

Reply: %s`

// ConfirmationClassifier decides whether a buyer reply accepts a proposed
// viewing time, LLM-first with a regex fallback.
type ConfirmationClassifier struct {
	client LLMClient
	logger *logging.Logger
}

func NewConfirmationClassifier(client LLMClient, logger *logging.Logger) *ConfirmationClassifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &ConfirmationClassifier{client: client, logger: logger}
}

// Classify never fails: LLM errors and malformed output degrade to the
// deterministic heuristic.
func (c *ConfirmationClassifier) Classify(ctx context.Context, message string) (ConfirmationResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return ConfirmationResult{}, nil
	}

	if c.client != nil {
		resp, err := c.client.Complete(ctx, LLMRequest{
			Messages:  []ChatMessage{{Role: ChatRoleUser, Content: fmt.Sprintf(confirmationPrompt, message)}},
			MaxTokens: 50,
		})
		if err == nil {
			if raw := extractJSONObject(resp.Text); raw != "" {
				var result ConfirmationResult
				if jsonErr := json.Unmarshal([]byte(raw), &result); jsonErr == nil {
					return result, nil
				}
			}
		} else {
			c.logger.Warn("confirmation classifier falling back to regex", "error", err)
		}
	}

	if IsLikelyConfirmation(message) {
		return ConfirmationResult{IsConfirmation: true, Confidence: 0.6}, nil
	}
	return ConfirmationResult{Confidence: 0.6}, nil
}

var (
	confirmationPhrases = []string{
		"yes", "yeah", "yep", "yup", "sure", "ok", "okay", "confirm", "confirmed",
		"sounds good", "sounds great", "works for me", "that works", "perfect",
		"great", "deal", "let's do it", "lets do it", "absolutely", "definitely",
		"si", "sí", "d'accord", "👍", "👌", "✅",
	}
	negationPattern = regexp.MustCompile(`(?i)\b(no|not|can'?t|cannot|won'?t|don'?t|another|different|instead|actually|rather|how about|what about|reschedule)\b`)
	timeRefPattern  = regexp.MustCompile(`(?i)(\d{1,2}(:\d{2})?\s*(am|pm)|\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday|tomorrow|morning|afternoon|evening|noon)\b)`)
)

// IsLikelyConfirmation is the regex fallback for confirmation detection. A
// message that negates or names a different day/time is a counter-proposal,
// not a confirmation, no matter how agreeable it sounds.
func IsLikelyConfirmation(message string) bool {
	normalized := strings.ToLower(strings.TrimSpace(message))
	if normalized == "" {
		return false
	}
	if negationPattern.MatchString(normalized) || timeRefPattern.MatchString(normalized) {
		return false
	}
	for _, phrase := range confirmationPhrases {
		if normalized == phrase || strings.HasPrefix(normalized, phrase+" ") ||
			strings.HasPrefix(normalized, phrase+"!") || strings.HasPrefix(normalized, phrase+",") ||
			strings.HasPrefix(normalized, phrase+".") {
			return true
		}
	}
	return false
}

// ContainsTimeReference reports whether the message names a day or clock
// time, which the coordination flow treats as a renegotiation signal.
func ContainsTimeReference(message string) bool {
	return timeRefPattern.MatchString(message)
}
