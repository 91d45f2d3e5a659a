// Open Lovable AI Handlers
// Chat, code generation, smart routing, conversation state and edit intent endpoints

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"open-lovable/internal/ai"
	"open-lovable/pkg/models"
)

// AIChatRequest is the ai-chat body. Messages stays raw so shape errors can
// be told apart from missing fields.
type AIChatRequest struct {
	Model       string          `json:"model"`
	Messages    json.RawMessage `json:"messages"`
	MaxTokens   *int            `json:"maxTokens,omitempty"`
	Temperature *float32        `json:"temperature,omitempty"`
}

// AIChat handles POST /api/ai-chat
func (h *Handler) AIChat(c *gin.Context) {
	log := routeLog(c, "ai-chat")
	start := time.Now()

	var req AIChatRequest
	if err := decodeJSON(c, &req, false); err != nil {
		c.JSON(http.StatusBadRequest, StandardResponse{
			Success: false,
			Error:   "Invalid JSON body",
			Code:    "INVALID_JSON",
		})
		return
	}

	raw := strings.TrimSpace(string(req.Messages))
	if req.Model == "" || raw == "" || raw == "null" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Model and messages are required", "code": "MISSING_PARAMS"})
		return
	}

	var messages []ai.ChatMessage
	if err := json.Unmarshal(req.Messages, &messages); err != nil || len(messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Messages must be a non-empty array", "code": "INVALID_MESSAGES"})
		return
	}

	opts := ai.ChatOptions{
		Model:       ai.CatalogID(req.Model),
		Messages:    messages,
		MaxTokens:   4000,
		Temperature: req.Temperature,
	}
	if req.MaxTokens != nil {
		opts.MaxTokens = *req.MaxTokens
	}

	log.Info("using model", zap.String("model", req.Model))
	result, err := h.chat.GetResponse(c.Request.Context(), opts)

	entry := &models.AIRequestLog{
		RequestID:      requestID(c),
		SessionID:      sessionID(c),
		Route:          "ai-chat",
		RequestedModel: req.Model,
		PromptChars:    promptChars(messages),
		DurationMs:     time.Since(start).Milliseconds(),
		Success:        err == nil,
	}
	if err != nil {
		entry.Error = err.Error()
		h.requestLog.Record(c.Request.Context(), entry)

		log.Error("AI request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "AI request failed",
			"code":    "AI_REQUEST_FAILED",
			"message": err.Error(),
		})
		return
	}

	entry.ServedModel = result.ServedModel
	entry.Provider = string(result.Provider)
	entry.Tier = string(result.Tier)
	entry.ResponseChars = len(result.Content)
	if result.Usage != nil {
		entry.TokensUsed = result.Usage.TotalTokens
	}
	h.requestLog.Record(c.Request.Context(), entry)

	log.Info("AI response generated", zap.String("served_model", result.ServedModel))
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"response":    result.Content,
		"model":       req.Model,
		"servedModel": result.ServedModel,
		"provider":    result.Provider,
		"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// GenerateCodeRequest is the generate-ai-code-stream body
type GenerateCodeRequest struct {
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model"`
	Stream      bool     `json:"stream"`
	IsEdit      bool     `json:"isEdit"`
	EditType    string   `json:"editType,omitempty"`
	TargetFiles []string `json:"targetFiles,omitempty"`
}

// GenerateCodeStream handles POST /api/generate-ai-code-stream
func (h *Handler) GenerateCodeStream(c *gin.Context) {
	log := routeLog(c, "generate-ai-code-stream")

	if !h.cfg.HasAIProvider() {
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "No AI API keys configured",
			Code:    "MISSING_AI_KEYS",
		})
		return
	}

	req := GenerateCodeRequest{Model: "gpt-4"}
	if err := decodeJSON(c, &req, false); err != nil {
		c.JSON(http.StatusBadRequest, StandardResponse{
			Success: false,
			Error:   "Invalid JSON body",
			Code:    "INVALID_JSON",
		})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		c.JSON(http.StatusBadRequest, StandardResponse{
			Success: false,
			Error:   "Prompt is required",
			Code:    "MISSING_PROMPT",
		})
		return
	}
	if req.Model == "" {
		req.Model = "gpt-4"
	}

	log.Info("processing", zap.String("model", req.Model), zap.Bool("stream", req.Stream), zap.Bool("is_edit", req.IsEdit))

	conv := h.sessions.Get(sessionID(c))
	prompt := withConversationContext(req.Prompt, conv.RecentMessages(recentContextMessages))
	conv.AddMessage(ai.RoleUser, req.Prompt, map[string]any{"model": req.Model, "isEdit": req.IsEdit})

	opts := ai.GenerateOptions{MaxTokens: 4000}
	start := time.Now()

	var (
		result *ai.RouteResult
		err    error
	)
	if req.Stream {
		stream := newSSEStream(c, "generate-ai-code-stream")
		result, err = h.router.Stream(c.Request.Context(), prompt, req.Model, ai.TaskCodeGeneration, opts, func(delta string) error {
			return stream.send(gin.H{"type": "stream", "text": delta})
		})
		if err != nil {
			log.Error("all providers failed", zap.Error(err))
			_ = stream.send(gin.H{"type": "error", "error": streamError(err)})
			stream.finish("error")
		} else {
			_ = stream.send(gin.H{
				"type":     "complete",
				"model":    result.Model,
				"provider": result.Provider,
				"tier":     result.Tier,
			})
			stream.finish("complete")
		}
	} else {
		result, err = h.router.Generate(c.Request.Context(), prompt, req.Model, ai.TaskCodeGeneration, opts)
		if err != nil {
			log.Error("all providers failed", zap.Error(err))
			resp := StandardResponse{
				Success: false,
				Error:   "All AI providers failed",
				Code:    "ALL_AI_PROVIDERS_FAILED",
			}
			var allFailed *ai.AllModelsFailedError
			if errors.As(err, &allFailed) {
				resp.Details = h.details(errors.New(allFailed.Detail()))
			} else {
				resp.Error = "AI code generation failed"
				resp.Code = "AI_GENERATION_FAILED"
				resp.Details = h.details(err)
			}
			c.JSON(http.StatusInternalServerError, resp)
		} else {
			c.JSON(http.StatusOK, gin.H{
				"success":   true,
				"response":  result.Content,
				"model":     result.Model,
				"provider":  result.Provider,
				"tier":      result.Tier,
				"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
			})
		}
	}

	outcome := "failure"
	if err == nil {
		outcome = "success"
		conv.AddMessage(ai.RoleAssistant, result.Content, map[string]any{
			"model":    result.Model,
			"provider": string(result.Provider),
		})
		if !req.IsEdit {
			conv.AddMajorChange(clip(req.Prompt, majorChangeLen), req.TargetFiles)
		}
	}
	if req.IsEdit {
		editType := req.EditType
		if editType == "" {
			editType = "UPDATE_COMPONENT"
		}
		conv.AddEdit(req.Prompt, editType, req.TargetFiles, outcome)
	}

	h.recordRoute(c, "generate-ai-code-stream", req.Model, len(req.Prompt), req.Stream, time.Since(start), result, err)
}

const (
	recentContextMessages = 6
	contextMessageLen     = 500
	majorChangeLen        = 200
)

// withConversationContext prefixes prompt with the latest session messages
func withConversationContext(prompt string, history []ai.ConversationMessage) string {
	if len(history) == 0 {
		return prompt
	}
	var b strings.Builder
	b.WriteString("## Recent Conversation\n")
	for _, m := range history {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(clip(m.Content, contextMessageLen))
		b.WriteString("\n")
	}
	b.WriteString("\n## Current Request\n")
	b.WriteString(prompt)
	return b.String()
}

// clip cuts s to at most n runes
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// streamError is the message sent in a stream error event
func streamError(err error) string {
	var allFailed *ai.AllModelsFailedError
	if errors.As(err, &allFailed) {
		return "All AI providers failed"
	}
	return err.Error()
}

// TestSmartAIRequest is the test-smart-ai body
type TestSmartAIRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

// TestSmartAI handles POST /api/test-smart-ai
func (h *Handler) TestSmartAI(c *gin.Context) {
	log := routeLog(c, "test-smart-ai")

	req := TestSmartAIRequest{Model: "gemini-pro"}
	if err := decodeJSON(c, &req, false); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Prompt is required"})
		return
	}
	if req.Model == "" {
		req.Model = "gemini-pro"
	}

	log.Info("testing", zap.String("model", req.Model), zap.Strings("candidates", h.router.Candidates(req.Model, ai.TaskGeneralChat)))

	start := time.Now()
	result, err := h.router.Generate(c.Request.Context(), req.Prompt, req.Model, ai.TaskGeneralChat, ai.GenerateOptions{MaxTokens: 1000})
	h.recordRoute(c, "test-smart-ai", req.Model, len(req.Prompt), false, time.Since(start), result, err)
	if err != nil {
		log.Error("smart AI test failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"model":    result.Model,
		"tier":     result.Tier,
		"provider": result.Provider,
		"response": result.Content,
		"attempts": result.Attempts,
	})
}

// recordRoute writes one request log entry for a routed call
func (h *Handler) recordRoute(c *gin.Context, route, requested string, promptLen int, streamed bool, d time.Duration, result *ai.RouteResult, err error) {
	entry := &models.AIRequestLog{
		RequestID:      requestID(c),
		SessionID:      sessionID(c),
		Route:          route,
		RequestedModel: requested,
		Streamed:       streamed,
		PromptChars:    promptLen,
		DurationMs:     d.Milliseconds(),
		Success:        err == nil,
		Attempts:       1,
	}
	if err != nil {
		entry.Error = err.Error()
		var allFailed *ai.AllModelsFailedError
		if errors.As(err, &allFailed) {
			entry.Attempts = len(allFailed.Attempts)
		}
	}
	if result != nil {
		entry.ServedModel = result.Model
		entry.Provider = string(result.Provider)
		entry.Tier = string(result.Tier)
		entry.Attempts = result.Attempts
		entry.ResponseChars = len(result.Content)
		if result.Usage != nil {
			entry.TokensUsed = result.Usage.TotalTokens
		}
	}
	h.requestLog.Record(c.Request.Context(), entry)
}

func promptChars(messages []ai.ChatMessage) int {
	n := 0
	for _, m := range messages {
		n += len(m.Content)
	}
	return n
}

// SmartAIStats handles GET /api/smart-ai/stats
func (h *Handler) SmartAIStats(c *gin.Context) {
	cfg := h.router.Config()
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"stats":        h.router.Stats(),
		"models":       cfg.TierGroups(),
		"defaultModel": cfg.DefaultModel,
		"fallbacks":    cfg.FallbackModels,
	})
}

// SmartAIReset handles POST /api/smart-ai/reset
func (h *Handler) SmartAIReset(c *gin.Context) {
	h.router.Reset()
	routeLog(c, "smart-ai").Info("model failure table reset")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Model statistics reset"})
}

// GetModels handles GET /api/models
func (h *Handler) GetModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"defaultModel":    h.cfg.DefaultModel,
		"models":          ai.Catalog,
		"categories":      ai.CategoryGroups(),
		"availableModels": ai.AvailableModels(),
		"uiCategories":    ai.UICategories(),
		"recommendations": ai.ModelRecommendations,
		"routing":         h.router.Config().TierGroups(),
		"providers":       h.providers,
	})
}

// GetConversationState handles GET /api/conversation-state
func (h *Handler) GetConversationState(c *gin.Context) {
	conv, ok := h.sessions.Lookup(sessionID(c))
	if !ok {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"state":   nil,
			"message": "No active conversation",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "state": conv.Snapshot()})
}

// ConversationStateRequest is the conversation-state POST body
type ConversationStateRequest struct {
	Action string `json:"action"`
	Data   struct {
		UserPreferences map[string]any `json:"userPreferences"`
		InitialState    string         `json:"initialState"`
	} `json:"data"`
}

// UpdateConversationState handles POST /api/conversation-state
func (h *Handler) UpdateConversationState(c *gin.Context) {
	log := routeLog(c, "conversation-state")
	id := sessionID(c)

	var req ConversationStateRequest
	if err := decodeJSON(c, &req, false); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid JSON body"})
		return
	}

	switch req.Action {
	case "reset":
		conv := h.sessions.Reset(id)
		log.Info("conversation reset", zap.String("session_id", id))
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Conversation state reset", "state": conv.Snapshot()})
	case "clear-old":
		conv, ok := h.sessions.Lookup(id)
		if !ok {
			conv = h.sessions.Get(id)
		}
		conv.ClearOld()
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Old conversation data cleared", "state": conv.Snapshot()})
	case "update":
		conv := h.sessions.Get(id)
		conv.Update(req.Data.UserPreferences, req.Data.InitialState)
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Conversation state updated", "state": conv.Snapshot()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid action. Use \"reset\", \"clear-old\" or \"update\""})
	}
}

// AnalyzeEditIntentRequest is the analyze-edit-intent body
type AnalyzeEditIntentRequest struct {
	Prompt   string           `json:"prompt"`
	Manifest *ai.FileManifest `json:"manifest"`
	Model    string           `json:"model,omitempty"`
}

// AnalyzeEditIntent handles POST /api/analyze-edit-intent
func (h *Handler) AnalyzeEditIntent(c *gin.Context) {
	log := routeLog(c, "analyze-edit-intent")

	var req AnalyzeEditIntentRequest
	if err := decodeJSON(c, &req, false); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid JSON body"})
		return
	}
	if req.Prompt == "" || req.Manifest == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "prompt and manifest are required"})
		return
	}

	plan, err := h.intent.Analyze(c.Request.Context(), req.Prompt, req.Manifest)
	if err != nil {
		if errors.Is(err, ai.ErrNoValidFiles) {
			log.Warn("no valid files found in manifest")
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No valid files found in manifest"})
			return
		}
		log.Error("edit intent analysis failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	log.Info("search plan created", zap.String("edit_type", plan.EditType), zap.Int("terms", len(plan.SearchTerms)))
	c.JSON(http.StatusOK, gin.H{"success": true, "searchPlan": plan})
}

// GetAIRequests handles GET /api/ai-requests
func (h *Handler) GetAIRequests(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	requests, err := h.requestLog.Recent(c.Request.Context(), limit)
	if err != nil {
		routeLog(c, "ai-requests").Error("failed to load request log", zap.Error(err))
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "Failed to load AI request log",
			Code:    "REQUEST_LOG_FAILED",
		})
		return
	}
	usage, err := h.requestLog.UsageByModel(c.Request.Context())
	if err != nil {
		routeLog(c, "ai-requests").Error("failed to aggregate request log", zap.Error(err))
		c.JSON(http.StatusInternalServerError, StandardResponse{
			Success: false,
			Error:   "Failed to load AI request log",
			Code:    "REQUEST_LOG_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"enabled":  h.requestLog.Enabled(),
		"requests": requests,
		"usage":    usage,
	})
}
