package models

import (
	"time"
)

// AIRequestLog records one call to an AI route
type AIRequestLog struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`

	// Request identification
	RequestID string `json:"request_id" gorm:"index"` // X-Request-ID of the HTTP call
	SessionID string `json:"session_id" gorm:"index"`
	Route     string `json:"route" gorm:"not null"` // ai-chat, generate-ai-code-stream, ...

	// Routing outcome
	RequestedModel string `json:"requested_model"`
	ServedModel    string `json:"served_model"`
	Provider       string `json:"provider"` // avalai, google, groq
	Tier           string `json:"tier"`     // free, premium
	Attempts       int    `json:"attempts" gorm:"default:1"`
	Streamed       bool   `json:"streamed"`

	PromptChars   int   `json:"prompt_chars"`
	ResponseChars int   `json:"response_chars"`
	TokensUsed    int   `json:"tokens_used" gorm:"default:0"`
	DurationMs    int64 `json:"duration_ms"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty" gorm:"type:text"`
}

// TableName pins the table name
func (AIRequestLog) TableName() string {
	return "ai_request_logs"
}

// ModelUsage aggregates logged requests per served model
type ModelUsage struct {
	ServedModel   string  `json:"served_model"`
	Requests      int64   `json:"requests"`
	Failures      int64   `json:"failures"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}
