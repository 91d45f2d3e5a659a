package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"open-lovable/internal/scrape"
	"open-lovable/internal/storage"
)

const testPage = `<html><head><title>Acme</title><meta name="description" content="Rockets and more"></head>` +
	`<body><h1>Welcome</h1><script>track()</script></body></html>`

func TestScrapeScreenshotValidation(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{`{}`, `{"url":"   "}`, `{"url":"\t\n"}`} {
		w := env.do(http.MethodPost, "/api/scrape-screenshot", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "URL is required", decodeBody(t, w)["error"])
	}
	assert.Empty(t, env.scraper.shots)

	env.scraper.configured = false
	w := env.do(http.MethodPost, "/api/scrape-screenshot", `{"url":"https://acme.io"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "MISSING_FIRECRAWL_KEY", decodeBody(t, w)["code"])
	assert.Empty(t, env.scraper.shots)
}

func TestScrapeScreenshotErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
		errMsg string
	}{
		{"unauthorized", &scrape.APIError{Status: http.StatusForbidden, Body: "bad key"}, http.StatusUnauthorized, "FIRECRAWL_UNAUTHORIZED", ""},
		{"rate limited", &scrape.APIError{Status: http.StatusTooManyRequests, Body: "slow down"}, http.StatusTooManyRequests, "", "Firecrawl API error (429)"},
		{"no screenshot", scrape.ErrNoScreenshot, http.StatusBadGateway, "", "Failed to capture screenshot"},
		{"network", errors.New("dial tcp: refused"), http.StatusInternalServerError, "", "Failed to capture screenshot"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.scraper.err = tc.err

			w := env.do(http.MethodPost, "/api/scrape-screenshot", `{"url":"https://acme.io"}`)
			assert.Equal(t, tc.status, w.Code)
			body := decodeBody(t, w)
			if tc.code != "" {
				assert.Equal(t, tc.code, body["code"])
			}
			if tc.errMsg != "" {
				assert.Equal(t, tc.errMsg, body["error"])
			}
		})
	}
}

func TestScrapeScreenshotArchives(t *testing.T) {
	env := newTestEnv(t)
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	env.handler.screenshots = storage.NewScreenshotArchive(local)

	shot := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("PNG"))
	env.scraper.doc = &scrape.Document{Screenshot: shot, Metadata: map[string]any{"title": "Acme"}}

	w := env.do(http.MethodPost, "/api/scrape-screenshot", `{"url":"https://acme.io"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, shot, body["screenshot"])
	assert.Equal(t, map[string]any{"title": "Acme"}, body["metadata"])

	location, ok := body["archivedAs"].(string)
	require.True(t, ok)
	data, err := os.ReadFile(location)
	require.NoError(t, err)
	assert.Equal(t, "PNG", string(data))
}

func TestScrapeURLEnhanced(t *testing.T) {
	env := newTestEnv(t)
	env.scraper.doc = &scrape.Document{HTML: testPage}

	w := env.do(http.MethodPost, "/api/scrape-url-enhanced", `{"url":"acme.io","options":{"waitFor":5000}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "https://acme.io", body["url"])
	assert.Equal(t, false, body["cached"])

	data := body["data"].(map[string]any)
	assert.Contains(t, data["markdown"], "Welcome")
	assert.NotContains(t, data["markdown"], "track()")
	metadata := data["metadata"].(map[string]any)
	assert.Equal(t, "Acme", metadata["title"])
	assert.Equal(t, "Rockets and more", metadata["description"])

	require.Len(t, env.scraper.requests, 1)
	req := env.scraper.requests[0]
	assert.Equal(t, []string{"markdown", "html"}, req.Formats)
	assert.Equal(t, []string{"title", "meta"}, req.IncludeTags)
	assert.Equal(t, []string{"script", "style"}, req.ExcludeTags)
	assert.EqualValues(t, 5000, req.Body()["waitFor"])

	w = env.do(http.MethodPost, "/api/scrape-url-enhanced", `{"url":"acme.io","options":{"waitFor":5000}}`)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, true, body["cached"])
	assert.Len(t, env.scraper.requests, 1)
}

func TestScrapeURLEnhancedErrors(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{`{}`, `{"url":"   "}`} {
		w := env.do(http.MethodPost, "/api/scrape-url-enhanced", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Empty(t, env.scraper.requests)

	env.scraper.err = &scrape.APIError{Status: http.StatusUnauthorized, Body: "Invalid token"}
	w := env.do(http.MethodPost, "/api/scrape-url-enhanced", `{"url":"https://acme.io"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	env.scraper.err = errors.New("page crashed")
	w = env.do(http.MethodPost, "/api/scrape-url-enhanced", `{"url":"https://acme.io"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Enhanced scraping failed", body["error"])
	assert.Equal(t, "page crashed", body["details"])

	env.scraper.configured = false
	w = env.do(http.MethodPost, "/api/scrape-url-enhanced", `{"url":"https://acme.io"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "FIRECRAWL_API_KEY not configured in environment variables", decodeBody(t, w)["error"])
}

func TestPurgeScrapeCache(t *testing.T) {
	env := newTestEnv(t)
	env.scraper.doc = &scrape.Document{HTML: testPage}

	scrapeOnce := func(url string) bool {
		w := env.do(http.MethodPost, "/api/scrape-url-enhanced", `{"url":"`+url+`"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		return decodeBody(t, w)["cached"].(bool)
	}

	assert.False(t, scrapeOnce("acme.io"))
	assert.False(t, scrapeOnce("other.io"))
	assert.True(t, scrapeOnce("acme.io"))

	w := env.do(http.MethodDelete, "/api/scrape-cache?url=acme.io", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://acme.io", decodeBody(t, w)["purged"])
	assert.False(t, scrapeOnce("acme.io"))
	assert.True(t, scrapeOnce("other.io"))

	w = env.do(http.MethodDelete, "/api/scrape-cache", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "all", decodeBody(t, w)["purged"])
	assert.False(t, scrapeOnce("other.io"))
	assert.Len(t, env.scraper.requests, 4)
}
