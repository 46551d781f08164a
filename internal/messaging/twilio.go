package messaging

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// ValidateTwilioSignature validates that a request came from Twilio.
func ValidateTwilioSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}

	if err := r.ParseForm(); err != nil {
		return false
	}

	payload := buildSignaturePayload(webhookURL, r.PostForm)
	expected := computeSignature(payload, authToken)

	return subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) == 1
}

// buildSignaturePayload concatenates the URL with the sorted POST params, per
// Twilio's signing scheme.
func buildSignaturePayload(url string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(url)

	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}

	return payload.String()
}

func computeSignature(data, key string) string {
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// InboundMessage is a parsed incoming WhatsApp webhook. From is bare E.164;
// the channel prefix is stripped on the way in.
type InboundMessage struct {
	MessageSID  string
	AccountSID  string
	From        string
	To          string
	Body        string
	ProfileName string
}

// ParseTwilioWebhook parses an incoming Twilio WhatsApp webhook request.
func ParseTwilioWebhook(r *http.Request) (*InboundMessage, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("messaging: parse webhook form: %w", err)
	}

	return &InboundMessage{
		MessageSID:  r.FormValue("MessageSid"),
		AccountSID:  r.FormValue("AccountSid"),
		From:        StripWhatsAppPrefix(r.FormValue("From")),
		To:          StripWhatsAppPrefix(r.FormValue("To")),
		Body:        r.FormValue("Body"),
		ProfileName: r.FormValue("ProfileName"),
	}, nil
}
