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
	CallStateTTL  time.Duration

	// NexHealth scheduling system
	NexHealthBaseURL   string
	NexHealthAPIKey    string
	NexHealthSubdomain string
	NexHealthTimeout   time.Duration

	// Voice platform webhook auth
	WebhookJWTSecret string

	// Slot search business rules
	SlotScanDays       int
	SlotMinUseful      int
	LunchWindowStart   string // "13:00" local practice time
	LunchWindowEnd     string // "14:00"
	MaxPresentedSlots  int
	DefaultAppointment time.Duration

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	ToolCallLedgerTable string

	BedrockModelID string
	GeminiAPIKey   string
	GeminiModelID  string
	MatchTimeout   time.Duration

	// Staff follow-up notifications
	NotifyFromEmail string
	NotifyFromName  string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		CallStateTTL:  getEnvAsDuration("CALL_STATE_TTL", 4*time.Hour),

		NexHealthBaseURL:   getEnv("NEXHEALTH_BASE_URL", "https://nexhealth.info"),
		NexHealthAPIKey:    getEnv("NEXHEALTH_API_KEY", ""),
		NexHealthSubdomain: getEnv("NEXHEALTH_SUBDOMAIN", ""),
		NexHealthTimeout:   getEnvAsDuration("NEXHEALTH_TIMEOUT", 15*time.Second),

		WebhookJWTSecret: getEnv("WEBHOOK_JWT_SECRET", ""),

		SlotScanDays:       getEnvAsInt("SLOT_SCAN_DAYS", 5),
		SlotMinUseful:      getEnvAsInt("SLOT_MIN_USEFUL", 2),
		LunchWindowStart:   getEnv("LUNCH_WINDOW_START", "13:00"),
		LunchWindowEnd:     getEnv("LUNCH_WINDOW_END", "14:00"),
		MaxPresentedSlots:  getEnvAsInt("MAX_PRESENTED_SLOTS", 3),
		DefaultAppointment: getEnvAsDuration("DEFAULT_APPOINTMENT_DURATION", 30*time.Minute),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		ToolCallLedgerTable: getEnv("TOOL_CALL_LEDGER_TABLE", "tool_call_ledger"),

		BedrockModelID: getEnv("BEDROCK_MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0"),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:  getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		MatchTimeout:   getEnvAsDuration("MATCH_TIMEOUT", 8*time.Second),

		NotifyFromEmail: getEnv("NOTIFY_FROM_EMAIL", ""),
		NotifyFromName:  getEnv("NOTIFY_FROM_NAME", "Front Desk Assistant"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
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
