package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// geminiAliases maps retired model names to their current equivalent
var geminiAliases = map[string]string{
	"gemini-pro": "gemini-1.5-pro",
}

// GeminiClient implements the Google Generative AI client
type GeminiClient struct {
	usageTracker
	client *genai.Client
}

// NewGeminiClient creates a Gemini client authenticated with apiKey
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(normalizeAPIKey(apiKey)))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	c := &GeminiClient{client: client}
	c.usage.Provider = ProviderGoogle
	return c, nil
}

// Provider returns the provider identifier
func (g *GeminiClient) Provider() Provider {
	return ProviderGoogle
}

// Chat issues a single completion
func (g *GeminiClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	resp, err := g.model(req).GenerateContent(ctx, genai.Text(geminiPrompt(req)))
	if err != nil {
		g.recordError()
		return nil, fmt.Errorf("google request failed: %w", err)
	}

	content := geminiText(resp)
	usage := geminiUsage(resp)
	tokens := 0
	if usage != nil {
		tokens = usage.TotalTokens
	}
	g.recordSuccess(tokens, time.Since(start))

	return &ChatResponse{
		Content:  content,
		Model:    geminiModelName(req.Model),
		Provider: ProviderGoogle,
		Usage:    usage,
		Duration: time.Since(start),
	}, nil
}

// ChatStream streams a completion, calling onDelta for every text part
func (g *GeminiClient) ChatStream(ctx context.Context, req *ChatRequest, onDelta func(string) error) (*ChatResponse, error) {
	start := time.Now()

	iter := g.model(req).GenerateContentStream(ctx, genai.Text(geminiPrompt(req)))
	var content strings.Builder
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			g.recordError()
			return nil, fmt.Errorf("google stream failed: %w", err)
		}
		if text := geminiText(resp); text != "" {
			content.WriteString(text)
			if err := onDelta(text); err != nil {
				return nil, err
			}
		}
	}

	g.recordSuccess(0, time.Since(start))

	return &ChatResponse{
		Content:  content.String(),
		Model:    geminiModelName(req.Model),
		Provider: ProviderGoogle,
		Duration: time.Since(start),
	}, nil
}

// Close releases the underlying gRPC connection
func (g *GeminiClient) Close() error {
	return g.client.Close()
}

func (g *GeminiClient) model(req *ChatRequest) *genai.GenerativeModel {
	model := g.client.GenerativeModel(geminiModelName(req.Model))
	model.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	return model
}

func geminiModelName(name string) string {
	if alias, ok := geminiAliases[name]; ok {
		return alias
	}
	return name
}

// geminiPrompt flattens a conversation into "role: content" lines. Raw
// requests holding a single user message are sent verbatim.
func geminiPrompt(req *ChatRequest) string {
	if req.Raw && len(req.Messages) == 1 && req.Messages[0].Role == RoleUser {
		return req.Messages[0].Content
	}
	lines := make([]string, 0, len(req.Messages))
	for _, m := range req.Messages {
		lines = append(lines, m.Role+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return b.String()
}

func geminiUsage(resp *genai.GenerateContentResponse) *Usage {
	if resp == nil || resp.UsageMetadata == nil {
		return nil
	}
	return &Usage{
		PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
		CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
	}
}
