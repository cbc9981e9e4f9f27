package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderSynthetic = "synthetic"
	ProviderGemini    = "gemini"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Frontend
	FrontendURL string

	// Smart replies. The inference API key itself is not captured here; it
	// is resolved per request from APIKeyEnv.
	Provider          string
	APIKeyEnv         string
	SyntheticBaseURL  string
	GeminiModel       string
	InferenceTimeout  time.Duration
	RequestsPerMinute int

	// Auth (optional)
	JWTSecret string

	// Redis (optional)
	RedisURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	provider := strings.ToLower(getEnvOrDefault("SMART_REPLY_PROVIDER", ProviderSynthetic))
	if provider != ProviderGemini {
		provider = ProviderSynthetic
	}

	cfg := &Config{
		Port:              getEnvOrDefault("PORT", "8080"),
		Env:               getEnvOrDefault("ENV", "development"),
		FrontendURL:       getEnvOrDefault("FRONTEND_URL", "http://localhost:3000"),
		Provider:          provider,
		APIKeyEnv:         apiKeyEnvFor(provider),
		SyntheticBaseURL:  getEnvOrDefault("SYNTHETIC_BASE_URL", "https://api.synthetic.new/openai/v1"),
		GeminiModel:       getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		InferenceTimeout:  getEnvAsDurationOrDefault("SMART_REPLY_TIMEOUT", 8*time.Second),
		RequestsPerMinute: getEnvAsIntOrDefault("SMART_REPLY_RATE_PER_MIN", 60),
		JWTSecret:         getEnvOrDefault("AUTH_JWT_SECRET", ""),
		RedisURL:          getEnvOrDefault("REDIS_URL", ""),
	}

	if getEnvOrDefault("AUTH_REQUIRED", "false") == "true" {
		cfg.JWTSecret = mustGetEnv("AUTH_JWT_SECRET")
	}

	return cfg
}

func apiKeyEnvFor(provider string) string {
	if provider == ProviderGemini {
		return "GEMINI_API_KEY"
	}
	return "SYNTHETIC_API_KEY"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvAsDurationOrDefault accepts Go durations ("5s") or bare seconds ("5").
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(val); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}
