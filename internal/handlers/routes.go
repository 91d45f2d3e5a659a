package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes registers every API endpoint under the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	// AI generation
	rg.POST("/ai-chat", h.AIChat)
	rg.POST("/generate-ai-code-stream", h.GenerateCodeStream)
	rg.POST("/test-smart-ai", h.TestSmartAI)
	rg.POST("/analyze-edit-intent", h.AnalyzeEditIntent)
	rg.GET("/models", h.GetModels)
	rg.GET("/ai-requests", h.GetAIRequests)

	smart := rg.Group("/smart-ai")
	{
		smart.GET("/stats", h.SmartAIStats)
		smart.POST("/reset", h.SmartAIReset)
	}

	rg.GET("/conversation-state", h.GetConversationState)
	rg.POST("/conversation-state", h.UpdateConversationState)

	// Sandbox lifecycle
	rg.POST("/create-ai-sandbox", h.CreateSandbox)
	rg.GET("/sandbox-status", h.SandboxStatus)
	rg.POST("/kill-sandbox", h.KillSandbox)
	rg.POST("/install-packages", h.InstallPackages)
	rg.GET("/test-e2b", h.TestE2B)

	// Scraping
	rg.POST("/scrape-screenshot", h.ScrapeScreenshot)
	rg.POST("/scrape-url-enhanced", h.ScrapeURLEnhanced)
	rg.DELETE("/scrape-cache", h.PurgeScrapeCache)

	// Diagnostics
	rg.GET("/debug", h.Debug)
	rg.GET("/test-env", h.TestEnv)
	rg.GET("/system", h.GetSystemInfo)
}
