package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	firecrawl "github.com/mendableai/firecrawl-go/v2"
	"go.uber.org/zap"

	"open-lovable/internal/logging"
)

// sdkKeys are the request fields firecrawl.ScrapeParams can carry
var sdkKeys = map[string]bool{
	"url":             true,
	"formats":         true,
	"includeTags":     true,
	"excludeTags":     true,
	"onlyMainContent": true,
	"waitFor":         true,
	"timeout":         true,
}

type sdkScraper interface {
	scrape(ctx context.Context, url string, params *firecrawl.ScrapeParams) (*Document, error)
}

type firecrawlSDK struct {
	app *firecrawl.FirecrawlApp
}

func newSDKScraper(apiKey, baseURL string) sdkScraper {
	app, err := firecrawl.NewFirecrawlApp(apiKey, baseURL)
	if err != nil {
		logging.L().Warn("firecrawl SDK unavailable, using REST", zap.Error(err))
		return nil
	}
	return &firecrawlSDK{app: app}
}

// scrape runs ScrapeURL, which takes no context, and stops waiting when ctx ends
func (s *firecrawlSDK) scrape(ctx context.Context, url string, params *firecrawl.ScrapeParams) (*Document, error) {
	type result struct {
		doc *firecrawl.FirecrawlDocument
		err error
	}
	done := make(chan result, 1)
	go func() {
		doc, err := s.app.ScrapeURL(url, params)
		done <- result{doc, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, sdkError(r.err)
		}
		return fromSDKDocument(r.doc)
	}
}

// sdkParams maps req onto ScrapeParams; ok is false when req uses a field
// the SDK has no slot for.
func sdkParams(req Request) (*firecrawl.ScrapeParams, bool) {
	if req.BlockAds || len(req.Actions) > 0 {
		return nil, false
	}
	body := req.Body()
	for k := range body {
		if !sdkKeys[k] {
			return nil, false
		}
	}
	delete(body, "url")

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, false
	}
	var params firecrawl.ScrapeParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false
	}
	return &params, true
}

func fromSDKDocument(doc *firecrawl.FirecrawlDocument) (*Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("firecrawl returned no document")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode firecrawl document: %w", err)
	}
	var out Document
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode firecrawl document: %w", err)
	}
	return &out, nil
}

var statusCodePattern = regexp.MustCompile(`[Ss]tatus code:? (\d{3})`)

// sdkStatusPrefixes are the messages the SDK uses instead of a status code
var sdkStatusPrefixes = map[string]int{
	"Payment Required":      402,
	"Request Timeout":       408,
	"Conflict":              409,
	"Internal Server Error": 500,
}

// sdkError recovers the HTTP status from the SDK's string errors so callers
// can keep classifying with *APIError.
func sdkError(err error) error {
	msg := err.Error()
	status := 0
	if m := statusCodePattern.FindStringSubmatch(msg); m != nil {
		status, _ = strconv.Atoi(m[1])
	}
	if status == 0 {
		for prefix, code := range sdkStatusPrefixes {
			if strings.HasPrefix(msg, prefix) {
				status = code
				break
			}
		}
	}
	if status == 0 {
		return fmt.Errorf("firecrawl request failed: %w", err)
	}
	return &APIError{Status: status, Body: msg}
}
