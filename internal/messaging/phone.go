package messaging

import "strings"

const whatsappPrefix = "whatsapp:"

func sanitizePhone(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeE164 ensures the value begins with + and only contains digits afterward.
func NormalizeE164(value string) string {
	value = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(value), whatsappPrefix))
	if value == "" {
		return ""
	}
	digits := sanitizePhone(value)
	if digits == "" {
		return ""
	}
	return "+" + digits
}

// EnsureWhatsAppAddress renders a phone number as the whatsapp:+E164 address
// Twilio's WhatsApp channel expects.
func EnsureWhatsAppAddress(value string) string {
	normalized := NormalizeE164(value)
	if normalized == "" {
		return ""
	}
	return whatsappPrefix + normalized
}

// StripWhatsAppPrefix converts a channel address back to bare E.164 for
// storage and user lookup.
func StripWhatsAppPrefix(value string) string {
	return NormalizeE164(value)
}
