package ai

import (
	"context"
	"sync"
	"time"
)

// Provider identifies an upstream AI vendor
type Provider string

const (
	ProviderAvalAI Provider = "avalai"
	ProviderGoogle Provider = "google"
	ProviderGroq   Provider = "groq"
)

// Tier is the free/premium classification of a model
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Category groups catalog models for the model picker
type Category string

const (
	CategoryLatest         Category = "latest"
	CategoryReasoning      Category = "reasoning"
	CategoryCreative       Category = "creative"
	CategoryCoding         Category = "coding"
	CategoryMultimodal     Category = "multimodal"
	CategoryUtility        Category = "utility"
	CategoryConversational Category = "conversational"
	CategoryLegacy         Category = "legacy"
)

// Chat roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single chat turn sent to a provider
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a provider-level completion request. Model is the upstream
// model name the vendor understands, not a catalog or routing id.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature"`
	// Raw sends a lone user message to text-prompt providers without a role prefix
	Raw bool `json:"-"`
}

// DefaultTemperature applies when a caller leaves the temperature unset
const DefaultTemperature float32 = 0.7

func temperatureOr(t *float32) float32 {
	if t == nil {
		return DefaultTemperature
	}
	return *t
}

// Usage represents token usage for a completion
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse represents a response from a provider
type ChatResponse struct {
	Content  string        `json:"content"`
	Model    string        `json:"model"`
	Provider Provider      `json:"provider"`
	Usage    *Usage        `json:"usage,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Client is implemented by every provider
type Client interface {
	// Provider returns the provider identifier
	Provider() Provider

	// Chat issues a single non-streaming completion
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// StreamClient is implemented by providers that can stream completions.
// onDelta is called for every text fragment; returning an error aborts the stream.
type StreamClient interface {
	Client
	ChatStream(ctx context.Context, req *ChatRequest, onDelta func(string) error) (*ChatResponse, error)
}

// ProviderUsage tracks usage statistics for a provider
type ProviderUsage struct {
	Provider     Provider  `json:"provider"`
	RequestCount int64     `json:"request_count"`
	TotalTokens  int64     `json:"total_tokens"`
	AvgLatency   float64   `json:"avg_latency"`
	ErrorCount   int64     `json:"error_count"`
	LastUsed     time.Time `json:"last_used"`
}

// usageTracker is embedded by provider clients
type usageTracker struct {
	mu    sync.Mutex
	usage ProviderUsage
}

func (u *usageTracker) recordSuccess(tokens int, d time.Duration) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.usage.RequestCount++
	u.usage.TotalTokens += int64(tokens)
	u.usage.AvgLatency = (u.usage.AvgLatency*float64(u.usage.RequestCount-1) + d.Seconds()) / float64(u.usage.RequestCount)
	u.usage.LastUsed = time.Now()
}

func (u *usageTracker) recordError() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.usage.ErrorCount++
	u.usage.LastUsed = time.Now()
}

// GetUsage returns a copy of the current usage statistics
func (u *usageTracker) GetUsage() ProviderUsage {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.usage
}
