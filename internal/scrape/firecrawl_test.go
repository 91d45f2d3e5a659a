package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	firecrawl "github.com/mendableai/firecrawl-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"open-lovable/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.FirecrawlConfig{APIKey: "fc-test", BaseURL: srv.URL, Timeout: 5 * time.Second})
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"example.com", "https://example.com"},
		{"  http://example.com  ", "http://example.com"},
		{"https://example.com/a", "https://example.com/a"},
		{"   ", ""},
	}
	for _, tt := range tests {
		tc := tt
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, NormalizeURL(tc.in))
		})
	}
}

func TestRequestBodyMergesExtra(t *testing.T) {
	t.Parallel()
	body := Request{
		URL:         "https://example.com",
		Formats:     []string{"markdown", "html"},
		ExcludeTags: []string{"script", "style"},
		WaitFor:     3000,
		Extra:       map[string]any{"waitFor": 500, "onlyMainContent": true, "url": "https://evil.example"},
	}.Body()

	assert.Equal(t, 500, body["waitFor"])
	assert.Equal(t, true, body["onlyMainContent"])
	assert.Equal(t, "https://example.com", body["url"])
	assert.NotContains(t, body, "includeTags")
	assert.NotContains(t, body, "blockAds")
}

func TestScreenshot(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/scrape", r.URL.Path)
		assert.Equal(t, "Bearer fc-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"success":true,"data":{"screenshot":"https://cdn.example/shot.png","metadata":{"title":"Example"}}}`)
	})

	doc, err := c.Screenshot(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/shot.png", doc.Screenshot)
	assert.Equal(t, "Example", doc.Title())

	assert.Equal(t, []any{"screenshot"}, got["formats"])
	assert.EqualValues(t, 3000, got["waitFor"])
	assert.EqualValues(t, 30000, got["timeout"])
	assert.Equal(t, true, got["blockAds"])
	assert.Equal(t, []any{map[string]any{"type": "wait", "milliseconds": float64(2000)}}, got["actions"])
}

func TestScreenshotMissing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"data":{"markdown":"# hi"}}`)
	})
	_, err := c.Screenshot(context.Background(), "https://example.com")
	assert.ErrorIs(t, err, ErrNoScreenshot)

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":false,"error":"blocked"}`)
	})
	_, err = c.Screenshot(context.Background(), "https://example.com")
	assert.ErrorIs(t, err, ErrNoScreenshot)
}

func TestScrapeErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":"Unauthorized: Invalid token"}`)
	})
	_, err := c.Scrape(context.Background(), Request{URL: "https://example.com", BlockAds: true})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.True(t, IsUnauthorized(err))

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `rate limited`)
	})
	_, err = c.Scrape(context.Background(), Request{URL: "https://example.com", BlockAds: true})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Firecrawl API error (429): rate limited", apiErr.Error())
	assert.False(t, IsUnauthorized(err))

	_, err = NewClient(config.FirecrawlConfig{}).Scrape(context.Background(), Request{URL: "https://example.com"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	assert.True(t, IsUnauthorized(errors.New("Request failed: Unauthorized")))
	assert.False(t, IsUnauthorized(nil))
}

func TestEnrich(t *testing.T) {
	t.Parallel()
	doc := &Document{HTML: `<html><head><title> Acme </title>
<meta name="description" content="Rockets and more"></head>
<body><script>var x = 1;</script><h1>Welcome</h1><p>Hello <strong>world</strong></p></body></html>`}

	require.NoError(t, Enrich(doc))
	assert.Equal(t, "Acme", doc.Title())
	assert.Equal(t, "Rockets and more", doc.Description())
	assert.Contains(t, doc.Markdown, "# Welcome")
	assert.Contains(t, doc.Markdown, "Hello **world**")
	assert.NotContains(t, doc.Markdown, "var x")

	kept := &Document{
		HTML:     `<html><head><title>Other</title></head><body><p>x</p></body></html>`,
		Markdown: "existing",
		Metadata: map[string]any{"title": "Kept", "description": "Kept too"},
	}
	require.NoError(t, Enrich(kept))
	assert.Equal(t, "Kept", kept.Title())
	assert.Equal(t, "existing", kept.Markdown)

	assert.NoError(t, Enrich(&Document{}))
	assert.NoError(t, Enrich(nil))
}

type fakeSDK struct {
	calls  int
	params *firecrawl.ScrapeParams
	doc    *Document
}

func (f *fakeSDK) scrape(_ context.Context, _ string, params *firecrawl.ScrapeParams) (*Document, error) {
	f.calls++
	f.params = params
	return f.doc, nil
}

func TestScrapeRoutesBetweenSDKAndREST(t *testing.T) {
	restCalls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		restCalls++
		fmt.Fprint(w, `{"success":true,"data":{"markdown":"from rest"}}`)
	})
	sdk := &fakeSDK{doc: &Document{Markdown: "from sdk"}}
	c.sdk = sdk

	doc, err := c.Scrape(context.Background(), Request{
		URL:         "https://example.com",
		Formats:     []string{"markdown", "html"},
		IncludeTags: []string{"title", "meta"},
		ExcludeTags: []string{"script", "style"},
		WaitFor:     3000,
		Extra:       map[string]any{"waitFor": float64(5000)},
	})
	require.NoError(t, err)
	assert.Equal(t, "from sdk", doc.Markdown)
	require.Equal(t, 1, sdk.calls)
	sent := paramsJSON(t, sdk.params)
	assert.Equal(t, []any{"markdown", "html"}, sent["formats"])
	assert.Equal(t, []any{"title", "meta"}, sent["includeTags"])
	assert.Equal(t, []any{"script", "style"}, sent["excludeTags"])
	assert.EqualValues(t, 5000, sent["waitFor"])
	assert.Zero(t, restCalls)

	for _, req := range []Request{
		{URL: "https://example.com", BlockAds: true},
		{URL: "https://example.com", Actions: []Action{{Type: "wait", Milliseconds: 100}}},
		{URL: "https://example.com", Extra: map[string]any{"mobile": true}},
	} {
		doc, err = c.Scrape(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "from rest", doc.Markdown)
	}
	assert.Equal(t, 1, sdk.calls)
	assert.Equal(t, 3, restCalls)
}

func paramsJSON(t *testing.T, params *firecrawl.ScrapeParams) map[string]any {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestSDKParams(t *testing.T) {
	t.Parallel()
	params, ok := sdkParams(Request{URL: "https://example.com", Timeout: 30000, Extra: map[string]any{"onlyMainContent": true}})
	require.True(t, ok)
	sent := paramsJSON(t, params)
	assert.EqualValues(t, 30000, sent["timeout"])
	assert.Equal(t, true, sent["onlyMainContent"])
	assert.NotContains(t, sent, "url")

	_, ok = sdkParams(Request{URL: "https://example.com", Extra: map[string]any{"actions": []any{}}})
	assert.False(t, ok)
}

func TestSDKError(t *testing.T) {
	t.Parallel()
	var apiErr *APIError

	err := sdkError(errors.New("Unexpected error during scrape URL: Status code 401. Unauthorized: Invalid token"))
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.True(t, IsUnauthorized(err))

	err = sdkError(errors.New("Payment Required: Failed to scrape URL. Insufficient credits"))
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusPaymentRequired, apiErr.Status)

	err = sdkError(errors.New("dial tcp: connection refused"))
	assert.False(t, errors.As(err, &apiErr))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestFromSDKDocument(t *testing.T) {
	t.Parallel()
	var in firecrawl.FirecrawlDocument
	require.NoError(t, json.Unmarshal([]byte(`{"markdown":"# hi","html":"<h1>hi</h1>","metadata":{"title":"Example"}}`), &in))

	doc, err := fromSDKDocument(&in)
	require.NoError(t, err)
	assert.Equal(t, "# hi", doc.Markdown)
	assert.Equal(t, "<h1>hi</h1>", doc.HTML)
	assert.Equal(t, "Example", doc.Title())

	_, err = fromSDKDocument(nil)
	assert.Error(t, err)
}
