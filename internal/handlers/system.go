// Open Lovable System Handlers
// Health checks, environment diagnostics and runtime information

package handlers

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"open-lovable/internal/config"
)

// Server start time for uptime calculation
var startTime = time.Now()

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	services := gin.H{
		"ai":         h.cfg.HasAIProvider(),
		"e2b":        h.cfg.E2B.APIKey != "",
		"firecrawl":  h.scraper != nil && h.scraper.Configured(),
		"requestLog": h.requestLog.Enabled(),
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"services":  services,
	})
}

// Debug handles GET /api/debug and reports which vendor keys are present
func (h *Handler) Debug(c *gin.Context) {
	routeLog(c, "debug").Info("environment check requested")

	env := gin.H{}
	var issues []string
	for _, req := range config.VendorKeys() {
		status := config.InspectKey(req)
		env[req.EnvVar] = status
		if req.Critical && !status.Exists {
			issues = append(issues, req.EnvVar+" missing")
		}
	}
	env["NODE_ENV"] = h.cfg.Environment
	env["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)

	status := "healthy"
	message := "All environment variables configured"
	if len(issues) > 0 {
		status = "critical"
		message = fmt.Sprintf("%d critical issues found", len(issues))
	} else {
		issues = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      status,
		"environment": env,
		"issues":      issues,
		"message":     message,
	})
}

// TestEnv handles GET /api/test-env with redacted key prefixes
func (h *Handler) TestEnv(c *gin.Context) {
	environment := h.cfg.Environment
	if environment == "" {
		environment = "NOT_SET"
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"environment": gin.H{
			config.EnvE2BAPIKey:       config.RedactKey(h.cfg.E2B.APIKey, 10),
			config.EnvFirecrawlAPIKey: config.RedactKey(h.cfg.Firecrawl.APIKey, 10),
			config.EnvAvalAIAPIKey:    config.RedactKey(h.cfg.AvalAIAPIKey, 10),
			"NODE_ENV":                environment,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// GetSystemInfo handles GET /api/system
func (h *Handler) GetSystemInfo(c *gin.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	info := gin.H{
		"service": gin.H{
			"name":        "open-lovable",
			"environment": h.cfg.Environment,
			"uptime":      time.Since(startTime).String(),
		},
		"runtime": gin.H{
			"go_version":   runtime.Version(),
			"goroutines":   runtime.NumGoroutine(),
			"cpu_count":    runtime.NumCPU(),
			"memory_alloc": memStats.Alloc,
			"memory_sys":   memStats.Sys,
			"gc_runs":      memStats.NumGC,
		},
		"ai": gin.H{
			"providers": h.providers,
			"sessions":  h.sessions.Len(),
		},
		"scrape_cache": h.scrapeCache.Stats(),
		"request_log":  h.requestLog.Enabled(),
	}
	if h.usage != nil {
		info["ai"].(gin.H)["provider_usage"] = h.usage.Usage()
	}
	if h.sandboxes != nil {
		info["sandbox"] = h.sandboxes.Status()
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": info})
}
