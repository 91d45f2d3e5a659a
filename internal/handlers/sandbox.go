// Open Lovable Sandbox Handlers
// E2B sandbox lifecycle and package installation endpoints

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"open-lovable/internal/config"
	"open-lovable/internal/sandbox"
)

var createSandboxErrors = []errorRule{
	{match: []string{"401", "Unauthorized"}, status: http.StatusUnauthorized, code: "E2B_UNAUTHORIZED", message: "Unauthorized: Invalid E2B API key"},
	{match: []string{"timeout"}, status: http.StatusRequestTimeout, code: "E2B_TIMEOUT", message: "Sandbox creation timeout"},
}

var createSandboxFailed = errorRule{status: http.StatusInternalServerError, code: "E2B_CREATION_FAILED", message: "Sandbox creation failed"}

// CreateSandboxRequest is the create-ai-sandbox body
type CreateSandboxRequest struct {
	Template string `json:"template,omitempty"`
	// Scaffold defaults to true
	Scaffold *bool `json:"scaffold,omitempty"`
}

// CreateSandbox handles POST /api/create-ai-sandbox
func (h *Handler) CreateSandbox(c *gin.Context) {
	log := routeLog(c, "create-ai-sandbox")

	key := h.cfg.E2B.APIKey
	if err := config.ValidateE2BKey(key); err != nil {
		if errors.Is(err, config.ErrKeyMissing) {
			log.Error("E2B_API_KEY missing")
			c.JSON(http.StatusInternalServerError, StandardResponse{
				Success: false,
				Error:   "E2B_API_KEY not configured",
				Code:    "MISSING_API_KEY",
			})
			return
		}
		log.Error("invalid API key format")
		c.JSON(http.StatusUnauthorized, StandardResponse{
			Success: false,
			Error:   "Invalid E2B API key format",
			Code:    "INVALID_API_KEY_FORMAT",
		})
		return
	}
	log.Debug("API key validated", zap.Int("length", len(key)))

	var req CreateSandboxRequest
	if err := decodeJSON(c, &req, true); err != nil {
		c.JSON(http.StatusBadRequest, StandardResponse{
			Success: false,
			Error:   "Invalid JSON body",
			Code:    "INVALID_JSON",
		})
		return
	}
	scaffold := req.Scaffold == nil || *req.Scaffold

	log.Info("creating sandbox", zap.String("template", req.Template), zap.Bool("scaffold", scaffold))
	info, err := h.sandboxes.Create(c.Request.Context(), sandbox.CreateOptions{
		Template: req.Template,
		Scaffold: scaffold,
	})
	if err != nil {
		log.Error("sandbox creation failed", zap.Error(err))
		rule := classifyError(err, createSandboxErrors, createSandboxFailed)
		resp := StandardResponse{Success: false, Error: rule.message, Code: rule.code}
		if rule.code == createSandboxFailed.code {
			resp.Details = h.details(err)
		}
		c.JSON(rule.status, resp)
		return
	}

	log.Info("sandbox created", zap.String("sandbox_id", info.SandboxID))
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"sandboxId": info.SandboxID,
		"url":       info.URL,
		"template":  info.Template,
		"files":     h.sandboxes.Files(),
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// SandboxStatus handles GET /api/sandbox-status
func (h *Handler) SandboxStatus(c *gin.Context) {
	st := h.sandboxes.Status()
	message := "No active sandbox"
	if st.Active {
		message = "Sandbox active"
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"active":  st.Active,
		"sandbox": st,
		"message": message,
	})
}

// KillSandbox handles POST /api/kill-sandbox
func (h *Handler) KillSandbox(c *gin.Context) {
	log := routeLog(c, "kill-sandbox")

	active := h.sandboxes.Active()
	err := h.sandboxes.Kill(c.Request.Context())
	if errors.Is(err, sandbox.ErrNoActiveSandbox) {
		c.JSON(http.StatusOK, gin.H{"success": true, "sandboxKilled": false, "message": "No active sandbox"})
		return
	}
	if err != nil {
		log.Error("failed to kill sandbox", zap.Error(err))
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "Failed to kill sandbox",
			Code:    "E2B_KILL_FAILED",
			Details: h.details(err),
		})
		return
	}

	resp := gin.H{"success": true, "sandboxKilled": true, "message": "Sandbox cleaned up successfully"}
	if active != nil {
		resp["sandboxId"] = active.ID
	}
	c.JSON(http.StatusOK, resp)
}

// TestE2B handles GET /api/test-e2b. It creates a sandbox outside the
// manager and kills it straight away.
func (h *Handler) TestE2B(c *gin.Context) {
	log := routeLog(c, "test-e2b")

	key := h.cfg.E2B.APIKey
	if key == "" {
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "E2B_API_KEY not configured",
			Code:    "MISSING_API_KEY",
		})
		return
	}
	if !config.IsCanonicalE2BKey(key) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":        false,
			"error":          "Invalid E2B API key format",
			"code":           "INVALID_FORMAT",
			"expectedFormat": "e2b_xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx",
			"actualLength":   len(key),
			"startsWithE2b":  strings.HasPrefix(strings.ToLower(key), "e2b_"),
		})
		return
	}

	timeout := h.cfg.E2B.CreateTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	info, err := h.e2b.Create(ctx, h.cfg.E2B.Template, time.Minute)
	if err == nil {
		if killErr := h.e2b.Kill(context.WithoutCancel(ctx), info.SandboxID); killErr != nil {
			log.Warn("failed to kill test sandbox", zap.String("sandbox_id", info.SandboxID), zap.Error(killErr))
		}
	}
	if err != nil {
		log.Error("E2B key test failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     "E2B API key test failed",
			"code":      "API_TEST_FAILED",
			"details":   err.Error(),
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "E2B API key is valid and working",
		"sandboxId": info.SandboxID,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// InstallPackagesRequest is the install-packages body. Packages stays
// untyped so non-string entries can be dropped instead of failing the decode.
type InstallPackagesRequest struct {
	Packages  []interface{} `json:"packages"`
	SandboxID string        `json:"sandboxId,omitempty"`
}

// InstallPackages handles POST /api/install-packages and streams progress
// as server-sent events
func (h *Handler) InstallPackages(c *gin.Context) {
	log := routeLog(c, "install-packages")

	var req InstallPackagesRequest
	if err := decodeJSON(c, &req, false); err != nil || len(req.Packages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Packages array is required"})
		return
	}

	names := make([]string, 0, len(req.Packages))
	for _, p := range req.Packages {
		if s, ok := p.(string); ok {
			names = append(names, s)
		}
	}
	packages := sandbox.NormalizePackages(names)
	if len(packages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No valid package names provided"})
		return
	}
	if len(packages) != len(req.Packages) {
		log.Info("cleaned package list", zap.Int("original", len(req.Packages)), zap.Strings("cleaned", packages))
	}

	sb := h.sandboxes.Active()
	if sb == nil && req.SandboxID != "" {
		var ok bool
		if sb, ok = h.reconnect(c, req.SandboxID); !ok {
			return
		}
	}
	if sb == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No active sandbox available"})
		return
	}

	log.Info("installing packages", zap.String("sandbox_id", sb.ID), zap.Strings("packages", packages))

	stream := newSSEStream(c, "install-packages")
	err := h.sandboxes.Installer().Install(c.Request.Context(), sb, packages, func(ev sandbox.Event) error {
		return stream.send(ev)
	})
	if err != nil {
		log.Warn("package install failed", zap.Error(err))
		stream.finish("error")
		return
	}
	stream.finish("complete")
}

// reconnect attaches to sandboxID after the key checks; it writes the error
// response itself and reports false on failure
func (h *Handler) reconnect(c *gin.Context, sandboxID string) (*sandbox.Sandbox, bool) {
	log := routeLog(c, "install-packages")
	log.Info("reconnecting to sandbox", zap.String("sandbox_id", sandboxID))

	if err := config.ValidateE2BKeyStrict(h.cfg.E2B.APIKey); err != nil {
		if errors.Is(err, config.ErrKeyMissing) {
			log.Error("E2B_API_KEY not found in environment variables")
			c.JSON(http.StatusUnauthorized, StandardResponse{
				Success: false,
				Error:   "E2B API key not configured",
				Code:    "MISSING_E2B_KEY",
			})
			return nil, false
		}
		log.Error("E2B_API_KEY appears malformed")
		c.JSON(http.StatusUnauthorized, StandardResponse{
			Success: false,
			Error:   "Invalid E2B API key format. It should start with \"e2b_\"",
			Code:    "MALFORMED_E2B_KEY",
		})
		return nil, false
	}

	sb, err := h.sandboxes.Attach(c.Request.Context(), sandboxID)
	if err != nil {
		log.Error("failed to reconnect to sandbox", zap.Error(err))
		if sandbox.IsUnauthorized(err) {
			c.JSON(http.StatusUnauthorized, StandardResponse{
				Success: false,
				Error:   "E2B authorization failed. Check E2B_API_KEY.",
				Code:    "E2B_UNAUTHORIZED",
			})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "Failed to reconnect to sandbox: " + err.Error(),
			Code:    "E2B_CONNECT_FAILED",
		})
		return nil, false
	}
	return sb, true
}
