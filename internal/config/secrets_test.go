package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestGetEnvironment(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		expected string
	}{
		{
			name:     "defaults to development",
			envVars:  map[string]string{},
			expected: "development",
		},
		{
			name:     "GO_ENV takes precedence",
			envVars:  map[string]string{"GO_ENV": "production", "APP_ENV": "staging"},
			expected: "production",
		},
		{
			name:     "APP_ENV used when GO_ENV not set",
			envVars:  map[string]string{"APP_ENV": "staging"},
			expected: "staging",
		},
		{
			name:     "ENVIRONMENT used as fallback",
			envVars:  map[string]string{"ENVIRONMENT": "Test"},
			expected: "test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t, "GO_ENV", "APP_ENV", "ENVIRONMENT", "ENV")
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			if got := GetEnvironment(); got != tt.expected {
				t.Errorf("GetEnvironment() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIsProductionEnvironment(t *testing.T) {
	tests := []struct {
		envValue string
		expected bool
	}{
		{"production", true},
		{"prod", true},
		{"development", false},
		{"staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.envValue, func(t *testing.T) {
			clearEnv(t, "GO_ENV", "APP_ENV", "ENVIRONMENT", "ENV")
			t.Setenv("GO_ENV", tt.envValue)
			assert.Equal(t, tt.expected, IsProductionEnvironment())
		})
	}
}

func TestValidateE2BKey(t *testing.T) {
	assert.ErrorIs(t, ValidateE2BKey(""), ErrKeyMissing)
	assert.ErrorIs(t, ValidateE2BKey("sk-abc"), ErrKeyMalformed)
	assert.NoError(t, ValidateE2BKey("e2b_abc"))
	assert.NoError(t, ValidateE2BKey("E2b_abc"))

	assert.ErrorIs(t, ValidateE2BKeyStrict("E2b_abc"), ErrKeyMalformed)
	assert.NoError(t, ValidateE2BKeyStrict("e2b_abc"))
}

func TestIsCanonicalE2BKey(t *testing.T) {
	assert.True(t, IsCanonicalE2BKey("e2b_0123456789abcdef0123456789abcdef"))
	assert.True(t, IsCanonicalE2BKey("E2B_0123456789ABCDEF0123456789ABCDEF"))
	assert.False(t, IsCanonicalE2BKey("e2b_short"))
	assert.False(t, IsCanonicalE2BKey("e2b_0123456789abcdef0123456789abcdef-"))
}

func TestInspectKey(t *testing.T) {
	reqs := VendorKeys()
	byEnv := make(map[string]KeyRequirement)
	for _, r := range reqs {
		byEnv[r.EnvVar] = r
	}

	t.Setenv(EnvFirecrawlAPIKey, "fc-123456")
	status := InspectKey(byEnv[EnvFirecrawlAPIKey])
	assert.True(t, status.Exists)
	assert.Equal(t, 9, status.Length)
	assert.Equal(t, "Valid", status.Format)

	t.Setenv(EnvGoogleAPIKey, "bogus")
	assert.Equal(t, "Invalid", InspectKey(byEnv[EnvGoogleAPIKey]).Format)

	clearEnv(t, EnvGroqAPIKey)
	groq := InspectKey(byEnv[EnvGroqAPIKey])
	assert.False(t, groq.Exists)
	assert.Empty(t, groq.Format)
}

func TestValidateKeys(t *testing.T) {
	clearEnv(t, EnvE2BAPIKey, EnvFirecrawlAPIKey, EnvAvalAIAPIKey, EnvGoogleAPIKey, EnvGroqAPIKey)
	t.Setenv(EnvE2BAPIKey, "e2b_ok")
	t.Setenv(EnvAvalAIAPIKey, "wrong-prefix")

	result := ValidateKeys()
	assert.True(t, result.HasErrors())
	assert.Equal(t, []string{EnvFirecrawlAPIKey}, result.Missing)
	assert.Len(t, result.Invalid, 1)
	assert.Contains(t, result.Error(), "AVALAI_API_KEY")
	assert.Len(t, result.Warnings, 2)
}

func TestRedactKey(t *testing.T) {
	assert.Equal(t, "NOT_SET", RedactKey("", 10))
	assert.Equal(t, "fc-1234567...", RedactKey("fc-1234567890", 10))
	assert.Equal(t, "abc...", RedactKey("abc", 10))
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t, "PORT", EnvDefaultModel, "E2B_TIMEOUT_MINUTES", "E2B_CREATE_TIMEOUT", "VITE_PORT")
	t.Setenv("PACKAGE_INSTALL_TIMEOUT", "90000")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "gpt-5-mini", cfg.DefaultModel)
	assert.Equal(t, 15*time.Minute, cfg.E2B.SandboxTimeout)
	assert.Equal(t, 30*time.Second, cfg.E2B.CreateTimeout)
	assert.Equal(t, 5173, cfg.E2B.VitePort)
	assert.Equal(t, 90*time.Second, cfg.Packages.InstallTimeout)
	assert.True(t, cfg.Packages.UseLegacyPeerDeps)
}
