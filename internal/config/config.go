package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all agent configuration.
type Config struct {
	APIBaseURL   string
	ExamID       string
	StudentToken string
	StudentLogin string
	HTTPTimeout  time.Duration

	BridgeAddr  string
	BridgeToken string
	GinMode     string
	// AllowedOrigins controls bridge CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string

	LogLevel  string
	LogFormat string

	// RedisURL enables durable answer drafts. Empty disables them.
	RedisURL string
	DraftTTL time.Duration

	ViolationThreshold int
	ViolationQueueSize int
	DevToolsGapPx      int
	DevToolsPoll       time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		APIBaseURL:         getEnv("API_BASE_URL", "http://localhost:8080/api/v1"),
		ExamID:             getEnv("EXAM_ID", ""),
		StudentToken:       getEnv("STUDENT_TOKEN", ""),
		StudentLogin:       getEnv("STUDENT_LOGIN", ""),
		HTTPTimeout:        time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 0)) * time.Second,
		BridgeAddr:         getEnv("BRIDGE_ADDR", "127.0.0.1:7070"),
		BridgeToken:        getEnv("BRIDGE_TOKEN", ""),
		GinMode:            getEnv("GIN_MODE", "release"),
		AllowedOrigins:     parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "pretty"),
		RedisURL:           getEnv("REDIS_URL", ""),
		DraftTTL:           time.Duration(getEnvInt("DRAFT_TTL_HOURS", 24)) * time.Hour,
		ViolationThreshold: getEnvInt("VIOLATION_THRESHOLD", 3),
		ViolationQueueSize: getEnvInt("VIOLATION_QUEUE_SIZE", 64),
		DevToolsGapPx:      getEnvInt("DEVTOOLS_GAP_PX", 160),
		DevToolsPoll:       time.Duration(getEnvInt("DEVTOOLS_POLL_MS", 1000)) * time.Millisecond,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
