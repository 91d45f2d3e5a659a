// Open Lovable Scrape Handlers
// Firecrawl screenshot and enhanced scrape endpoints

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"open-lovable/internal/scrape"
)

// ScrapeScreenshotRequest is the scrape-screenshot body
type ScrapeScreenshotRequest struct {
	URL string `json:"url"`
}

// ScrapeScreenshot handles POST /api/scrape-screenshot
func (h *Handler) ScrapeScreenshot(c *gin.Context) {
	log := routeLog(c, "scrape-screenshot")

	var req ScrapeScreenshotRequest
	err := decodeJSON(c, &req, true)
	req.URL = strings.TrimSpace(req.URL)
	if err != nil || req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL is required"})
		return
	}

	if h.scraper == nil || !h.scraper.Configured() {
		log.Error("FIRECRAWL_API_KEY not configured")
		c.JSON(http.StatusUnauthorized, StandardResponse{
			Success: false,
			Error:   "Firecrawl API key not configured",
			Code:    "MISSING_FIRECRAWL_KEY",
		})
		return
	}

	doc, err := h.scraper.Screenshot(c.Request.Context(), req.URL)
	if err != nil {
		log.Error("screenshot failed", zap.String("url", req.URL), zap.Error(err))
		var apiErr *scrape.APIError
		switch {
		case errors.As(err, &apiErr) && apiErr.Unauthorized():
			c.JSON(http.StatusUnauthorized, StandardResponse{
				Success: false,
				Error:   "Firecrawl authorization failed",
				Code:    "FIRECRAWL_UNAUTHORIZED",
				Details: apiErr.Body,
			})
		case errors.As(err, &apiErr):
			c.JSON(apiErr.Status, StandardResponse{
				Success: false,
				Error:   fmt.Sprintf("Firecrawl API error (%d)", apiErr.Status),
				Details: apiErr.Body,
			})
		case errors.Is(err, scrape.ErrNoScreenshot):
			c.JSON(http.StatusBadGateway, StandardResponse{
				Success: false,
				Error:   "Failed to capture screenshot",
			})
		default:
			c.JSON(http.StatusInternalServerError, StandardResponse{
				Success: false,
				Error:   "Failed to capture screenshot",
				Details: h.details(err),
			})
		}
		return
	}

	resp := gin.H{
		"success":    true,
		"screenshot": doc.Screenshot,
		"metadata":   doc.Metadata,
	}
	if h.screenshots != nil {
		location, err := h.screenshots.Save(c.Request.Context(), req.URL, doc.Screenshot)
		if err != nil {
			log.Warn("failed to archive screenshot", zap.Error(err))
		} else {
			resp["archivedAs"] = location
		}
	}
	c.JSON(http.StatusOK, resp)
}

// ScrapeURLRequest is the scrape-url-enhanced body
type ScrapeURLRequest struct {
	URL     string         `json:"url"`
	Options map[string]any `json:"options,omitempty"`
}

// ScrapeURLEnhanced handles POST /api/scrape-url-enhanced
func (h *Handler) ScrapeURLEnhanced(c *gin.Context) {
	log := routeLog(c, "scrape-url-enhanced")

	if h.scraper == nil || !h.scraper.Configured() {
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "FIRECRAWL_API_KEY not configured in environment variables",
		})
		return
	}

	var req ScrapeURLRequest
	url := ""
	if err := decodeJSON(c, &req, true); err == nil {
		url = scrape.NormalizeURL(req.URL)
	}
	if url == "" {
		c.JSON(http.StatusBadRequest, StandardResponse{Success: false, Error: "URL is required"})
		return
	}
	ctx := c.Request.Context()

	var cached scrape.Document
	if h.scrapeCache.Get(ctx, url, req.Options, &cached) {
		log.Debug("scrape cache hit", zap.String("url", url))
		c.JSON(http.StatusOK, gin.H{"success": true, "data": cached, "url": url, "cached": true})
		return
	}

	start := time.Now()
	doc, err := h.scraper.Scrape(ctx, scrape.Request{
		URL:         url,
		Formats:     []string{"markdown", "html"},
		IncludeTags: []string{"title", "meta"},
		ExcludeTags: []string{"script", "style"},
		WaitFor:     3000,
		Extra:       req.Options,
	})
	if err != nil {
		log.Error("enhanced scrape failed", zap.String("url", url), zap.Error(err))
		if scrape.IsUnauthorized(err) {
			c.JSON(http.StatusUnauthorized, StandardResponse{
				Success: false,
				Error:   "Invalid Firecrawl API key. Check environment variables.",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "Enhanced scraping failed",
			Details: h.details(err),
		})
		return
	}

	if err := scrape.Enrich(doc); err != nil {
		log.Warn("failed to enrich scraped page", zap.Error(err))
	}
	if err := h.scrapeCache.Set(ctx, url, req.Options, doc); err != nil {
		log.Warn("failed to cache scraped page", zap.Error(err))
	}

	log.Info("page scraped",
		zap.String("url", url),
		zap.Int("markdown_chars", len(doc.Markdown)),
		zap.Duration("duration", time.Since(start)),
	)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": doc, "url": url, "cached": false})
}

// PurgeScrapeCache handles DELETE /api/scrape-cache. With ?url= only that
// page's cached results are dropped.
func (h *Handler) PurgeScrapeCache(c *gin.Context) {
	log := routeLog(c, "scrape-cache")
	ctx := c.Request.Context()

	target := "all"
	var err error
	if raw := c.Query("url"); strings.TrimSpace(raw) != "" {
		target = scrape.NormalizeURL(raw)
		err = h.scrapeCache.Invalidate(ctx, target)
	} else {
		err = h.scrapeCache.Purge(ctx)
	}
	if err != nil {
		log.Error("failed to purge scrape cache", zap.String("target", target), zap.Error(err))
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "Failed to purge scrape cache",
			Details: h.details(err),
		})
		return
	}

	log.Info("scrape cache purged", zap.String("target", target))
	c.JSON(http.StatusOK, gin.H{"success": true, "purged": target, "cache": h.scrapeCache.Stats()})
}
