package config

import (
	"os"
	"testing"
	"time"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "TEST_INT_1", "42", 10, 42},
		{"uses default for empty", "TEST_INT_2", "", 10, 10},
		{"uses default for non-numeric", "TEST_INT_3", "abc", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvAsIntOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, result)
			}
		})
	}
}

func TestMustGetEnv_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for missing required env var")
		}
	}()

	os.Unsetenv("NONEXISTENT_REQUIRED_VAR")
	mustGetEnv("NONEXISTENT_REQUIRED_VAR")
}

func TestMustGetEnv_ReturnsValue(t *testing.T) {
	os.Setenv("TEST_REQUIRED", "value123")
	defer os.Unsetenv("TEST_REQUIRED")

	result := mustGetEnv("TEST_REQUIRED")
	if result != "value123" {
		t.Errorf("Expected 'value123', got %q", result)
	}
}

func TestGetEnvAsDurationOrDefault(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected time.Duration
	}{
		{"go duration", "250ms", 250 * time.Millisecond},
		{"bare seconds", "5", 5 * time.Second},
		{"empty uses default", "", 8 * time.Second},
		{"garbage uses default", "soon", 8 * time.Second},
		{"negative uses default", "-3s", 8 * time.Second},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tc.envValue)

			result := getEnvAsDurationOrDefault("TEST_DURATION", 8*time.Second)
			if result != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, result)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "SMART_REPLY_PROVIDER", "SMART_REPLY_TIMEOUT", "AUTH_REQUIRED", "AUTH_JWT_SECRET", "REDIS_URL"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Expected port 8080, got %q", cfg.Port)
	}
	if cfg.Provider != ProviderSynthetic || cfg.APIKeyEnv != "SYNTHETIC_API_KEY" {
		t.Errorf("Expected synthetic provider keyed by SYNTHETIC_API_KEY, got %q/%q", cfg.Provider, cfg.APIKeyEnv)
	}
	if cfg.InferenceTimeout != 8*time.Second {
		t.Errorf("Expected 8s inference timeout, got %v", cfg.InferenceTimeout)
	}
	if cfg.JWTSecret != "" || cfg.RedisURL != "" {
		t.Errorf("Expected optional auth and redis to be unset")
	}
}

func TestLoad_GeminiProvider(t *testing.T) {
	t.Setenv("SMART_REPLY_PROVIDER", "Gemini")

	cfg := Load()
	if cfg.Provider != ProviderGemini || cfg.APIKeyEnv != "GEMINI_API_KEY" {
		t.Errorf("Expected gemini provider keyed by GEMINI_API_KEY, got %q/%q", cfg.Provider, cfg.APIKeyEnv)
	}
}

func TestLoad_UnknownProviderFallsBackToSynthetic(t *testing.T) {
	t.Setenv("SMART_REPLY_PROVIDER", "mystery")

	if cfg := Load(); cfg.Provider != ProviderSynthetic {
		t.Errorf("Expected synthetic provider, got %q", cfg.Provider)
	}
}

func TestLoad_AuthRequiredWithoutSecretPanics(t *testing.T) {
	t.Setenv("AUTH_REQUIRED", "true")
	t.Setenv("AUTH_JWT_SECRET", "")

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic when AUTH_REQUIRED is set without a secret")
		}
	}()
	Load()
}
