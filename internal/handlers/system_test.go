package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"open-lovable/internal/ai"
	"open-lovable/internal/config"
)

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
	services := body["services"].(map[string]any)
	assert.Equal(t, true, services["ai"])
	assert.Equal(t, false, services["requestLog"])
}

func TestDebugReportsKeys(t *testing.T) {
	t.Setenv(config.EnvE2BAPIKey, testE2BKey)
	t.Setenv(config.EnvFirecrawlAPIKey, "not-a-firecrawl-key")
	t.Setenv(config.EnvAvalAIAPIKey, "")
	t.Setenv(config.EnvGoogleAPIKey, "")
	t.Setenv(config.EnvGroqAPIKey, "gsk_123")
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/debug", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)

	assert.Equal(t, "critical", body["status"])
	assert.Equal(t, []any{"AVALAI_API_KEY missing"}, body["issues"])
	assert.Equal(t, "1 critical issues found", body["message"])

	environment := body["environment"].(map[string]any)
	e2b := environment[config.EnvE2BAPIKey].(map[string]any)
	assert.Equal(t, true, e2b["exists"])
	assert.EqualValues(t, len(testE2BKey), e2b["length"])
	assert.Equal(t, "Valid", e2b["format"])

	firecrawl := environment[config.EnvFirecrawlAPIKey].(map[string]any)
	assert.Equal(t, "Invalid", firecrawl["format"])

	groq := environment[config.EnvGroqAPIKey].(map[string]any)
	assert.Equal(t, true, groq["exists"])
	assert.NotContains(t, groq, "format")

	assert.Equal(t, config.EnvDevelopment, environment["NODE_ENV"])
}

func TestDebugHealthy(t *testing.T) {
	t.Setenv(config.EnvE2BAPIKey, testE2BKey)
	t.Setenv(config.EnvFirecrawlAPIKey, "fc-123")
	t.Setenv(config.EnvAvalAIAPIKey, "aa-123")
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/debug", "")
	body := decodeBody(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, []any{}, body["issues"])
	assert.Equal(t, "All environment variables configured", body["message"])
}

func TestTestEnvRedactsKeys(t *testing.T) {
	env := newTestEnv(t, func(c *config.AppConfig) {
		c.AvalAIAPIKey = ""
		c.Environment = ""
	})

	w := env.do(http.MethodGet, "/api/test-env", "")
	require.Equal(t, http.StatusOK, w.Code)
	environment := decodeBody(t, w)["environment"].(map[string]any)
	assert.Equal(t, "e2b_012345...", environment[config.EnvE2BAPIKey])
	assert.Equal(t, "fc-test...", environment[config.EnvFirecrawlAPIKey])
	assert.Equal(t, "NOT_SET", environment[config.EnvAvalAIAPIKey])
	assert.Equal(t, "NOT_SET", environment["NODE_ENV"])
}

type fakeUsage map[ai.Provider]ai.ProviderUsage

func (f fakeUsage) Usage() map[ai.Provider]ai.ProviderUsage { return f }

func TestGetSystemInfo(t *testing.T) {
	env := newTestEnv(t)
	env.handler.usage = fakeUsage{ai.ProviderAvalAI: {Provider: ai.ProviderAvalAI, RequestCount: 3}}

	w := env.do(http.MethodGet, "/api/system", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)

	assert.Equal(t, "open-lovable", data["service"].(map[string]any)["name"])
	aiInfo := data["ai"].(map[string]any)
	usage := aiInfo["provider_usage"].(map[string]any)
	assert.EqualValues(t, 3, usage["avalai"].(map[string]any)["request_count"])
	assert.Equal(t, false, data["sandbox"].(map[string]any)["active"])
}
