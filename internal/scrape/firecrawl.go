// Package scrape wraps the Firecrawl scraping API used for screenshots and
// page content extraction.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"open-lovable/internal/config"
	"open-lovable/internal/metrics"
)

// ErrMissingAPIKey is returned when no Firecrawl key is configured
var ErrMissingAPIKey = errors.New("FIRECRAWL_API_KEY not configured")

// ErrNoScreenshot is returned when Firecrawl answers without a screenshot
var ErrNoScreenshot = errors.New("failed to capture screenshot")

// APIError is a non-2xx answer from Firecrawl
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Firecrawl API error (%d): %s", e.Status, strings.TrimSpace(e.Body))
}

// Unauthorized reports whether Firecrawl rejected the key
func (e *APIError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// IsUnauthorized reports whether err is a Firecrawl authorization failure
func IsUnauthorized(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Unauthorized() {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Unauthorized") || strings.Contains(msg, "Invalid token")
}

// Action is a browser action performed before capture
type Action struct {
	Type         string `json:"type"`
	Milliseconds int    `json:"milliseconds,omitempty"`
	Selector     string `json:"selector,omitempty"`
}

// Request is a /v1/scrape call. Extra keys override the typed fields.
type Request struct {
	URL         string
	Formats     []string
	IncludeTags []string
	ExcludeTags []string
	WaitFor     int
	Timeout     int
	BlockAds    bool
	Actions     []Action
	Extra       map[string]any
}

// Body renders the request as the JSON object Firecrawl expects
func (r Request) Body() map[string]any {
	body := map[string]any{}
	if len(r.Formats) > 0 {
		body["formats"] = r.Formats
	}
	if len(r.IncludeTags) > 0 {
		body["includeTags"] = r.IncludeTags
	}
	if len(r.ExcludeTags) > 0 {
		body["excludeTags"] = r.ExcludeTags
	}
	if r.WaitFor > 0 {
		body["waitFor"] = r.WaitFor
	}
	if r.Timeout > 0 {
		body["timeout"] = r.Timeout
	}
	if r.BlockAds {
		body["blockAds"] = true
	}
	if len(r.Actions) > 0 {
		body["actions"] = r.Actions
	}
	for k, v := range r.Extra {
		body[k] = v
	}
	body["url"] = r.URL
	return body
}

// Document is the scraped page
type Document struct {
	Markdown   string         `json:"markdown,omitempty"`
	HTML       string         `json:"html,omitempty"`
	RawHTML    string         `json:"rawHtml,omitempty"`
	Screenshot string         `json:"screenshot,omitempty"`
	Links      []string       `json:"links,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Warning    string         `json:"warning,omitempty"`
}

// Title returns the metadata title, if any
func (d *Document) Title() string {
	s, _ := d.Metadata["title"].(string)
	return s
}

// Description returns the metadata description, if any
func (d *Document) Description() string {
	s, _ := d.Metadata["description"].(string)
	return s
}

type scrapeResponse struct {
	Success bool      `json:"success"`
	Data    *Document `json:"data"`
	Error   string    `json:"error"`
}

// Scraper is what the handlers need from Firecrawl
type Scraper interface {
	Scrape(ctx context.Context, req Request) (*Document, error)
	Screenshot(ctx context.Context, url string) (*Document, error)
	Configured() bool
}

// Client calls Firecrawl. Content scrapes go through the official SDK;
// requests it cannot express (actions, blockAds, unknown options) use the
// REST endpoint directly.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	sdk        sdkScraper
}

// NewClient creates a Firecrawl client
func NewClient(cfg config.FirecrawlConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &Client{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	if c.apiKey != "" {
		c.sdk = newSDKScraper(c.apiKey, c.baseURL)
	}
	return c
}

// Configured reports whether an API key is present
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Scrape fetches one page
func (c *Client) Scrape(ctx context.Context, req Request) (doc *Document, err error) {
	if c.sdk == nil || !c.Configured() {
		return c.scrape(ctx, "content", req)
	}
	params, ok := sdkParams(req)
	if !ok {
		return c.scrape(ctx, "content", req)
	}

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.Get().RecordScrape("content", status, time.Since(start))
	}()
	return c.sdk.scrape(ctx, req.URL, params)
}

// Screenshot captures a page screenshot after letting it settle
func (c *Client) Screenshot(ctx context.Context, url string) (*Document, error) {
	doc, err := c.scrape(ctx, "screenshot", Request{
		URL:      url,
		Formats:  []string{"screenshot"},
		WaitFor:  3000,
		Timeout:  30000,
		BlockAds: true,
		Actions:  []Action{{Type: "wait", Milliseconds: 2000}},
	})
	if err != nil {
		return nil, err
	}
	if doc.Screenshot == "" {
		return nil, ErrNoScreenshot
	}
	return doc, nil
}

func (c *Client) scrape(ctx context.Context, kind string, req Request) (doc *Document, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.Get().RecordScrape(kind, status, time.Since(start))
	}()

	if !c.Configured() {
		return nil, ErrMissingAPIKey
	}

	payload, err := json.Marshal(req.Body())
	if err != nil {
		return nil, fmt.Errorf("failed to encode scrape request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/scrape", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("firecrawl request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read firecrawl response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Body: string(raw)}
	}

	var out scrapeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode firecrawl response: %w", err)
	}
	if !out.Success || out.Data == nil {
		msg := out.Error
		if msg == "" {
			msg = "scrape was not successful"
		}
		if kind == "screenshot" {
			return nil, fmt.Errorf("%w: %s", ErrNoScreenshot, msg)
		}
		return nil, errors.New(msg)
	}
	return out.Data, nil
}

// NormalizeURL trims the input and adds https:// when no scheme is given
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	return u
}
