package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioWhatsAppNumber string
	TwilioWebhookSecret  string

	OpenAIAPIKey string
	OpenAIModel  string

	// Viewing coordination knobs.
	LookaheadDays       int
	MaxOfferedSlots     int
	SlotGranularity     time.Duration
	PendingRequestTTL   time.Duration
	StaleApprovalMaxAge time.Duration
	StaleSweepInterval  time.Duration
	StaleSweepEnabled   bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		TwilioAccountSID:     getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:      getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsAppNumber: normalizeWhatsAppNumber(getEnv("TWILIO_WHATSAPP_NUMBER", "")),
		TwilioWebhookSecret:  getEnv("TWILIO_WEBHOOK_SECRET", ""),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		LookaheadDays:       getEnvAsInt("VIEWING_LOOKAHEAD_DAYS", 7),
		MaxOfferedSlots:     getEnvAsInt("VIEWING_MAX_OFFERED_SLOTS", 15),
		SlotGranularity:     getEnvAsDuration("VIEWING_SLOT_GRANULARITY", 0),
		PendingRequestTTL:   getEnvAsDuration("PENDING_REQUEST_TTL", 20*time.Minute),
		StaleApprovalMaxAge: getEnvAsDuration("STALE_APPROVAL_MAX_AGE", 24*time.Hour),
		StaleSweepInterval:  getEnvAsDuration("STALE_SWEEP_INTERVAL", 30*time.Minute),
		StaleSweepEnabled:   getEnvAsBool("STALE_SWEEP_ENABLED", true),
	}
}

// normalizeWhatsAppNumber ensures the configured sender carries the
// channel prefix Twilio expects for WhatsApp traffic.
func normalizeWhatsAppNumber(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "whatsapp:") {
		return raw
	}
	return "whatsapp:" + raw
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
