package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAICompatClient talks to any OpenAI-compatible chat completions API.
// AvalAI and Groq are both served through it with different base URLs.
type OpenAICompatClient struct {
	usageTracker
	provider Provider
	client   *openai.Client
}

// NewOpenAICompatClient creates a client for provider rooted at baseURL
func NewOpenAICompatClient(provider Provider, apiKey, baseURL string, timeout time.Duration) *OpenAICompatClient {
	cfg := openai.DefaultConfig(normalizeAPIKey(apiKey))
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	c := &OpenAICompatClient{
		provider: provider,
		client:   openai.NewClientWithConfig(cfg),
	}
	c.usage.Provider = provider
	return c
}

// Provider returns the provider identifier
func (c *OpenAICompatClient) Provider() Provider {
	return c.provider
}

// Chat issues a single completion
func (c *OpenAICompatClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(req))
	if err != nil {
		c.recordError()
		return nil, c.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		c.recordError()
		return nil, fmt.Errorf("%s returned no choices", c.provider)
	}

	c.recordSuccess(resp.Usage.TotalTokens, time.Since(start))

	return &ChatResponse{
		Content:  resp.Choices[0].Message.Content,
		Model:    req.Model,
		Provider: c.provider,
		Usage: &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Duration: time.Since(start),
	}, nil
}

// ChatStream streams a completion, calling onDelta for every content fragment
func (c *OpenAICompatClient) ChatStream(ctx context.Context, req *ChatRequest, onDelta func(string) error) (*ChatResponse, error) {
	start := time.Now()

	stream, err := c.client.CreateChatCompletionStream(ctx, c.buildRequest(req))
	if err != nil {
		c.recordError()
		return nil, c.wrapError(err)
	}
	defer stream.Close()

	var content strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.recordError()
			return nil, c.wrapError(err)
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			content.WriteString(choice.Delta.Content)
			if err := onDelta(choice.Delta.Content); err != nil {
				return nil, err
			}
		}
	}

	c.recordSuccess(0, time.Since(start))

	return &ChatResponse{
		Content:  content.String(),
		Model:    req.Model,
		Provider: c.provider,
		Duration: time.Since(start),
	}, nil
}

func (c *OpenAICompatClient) buildRequest(req *ChatRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	temperature := req.Temperature
	if temperature == 0 {
		// go-openai omits a zero temperature, which the vendor reads as 1
		temperature = math.SmallestNonzeroFloat32
	}
	return openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: temperature,
	}
}

// wrapError keeps the vendor status code visible in the message so callers
// can classify failures without importing the SDK.
func (c *OpenAICompatClient) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s API error (status %d): %s: %w", c.provider, apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%s request failed (status %d): %w", c.provider, reqErr.HTTPStatusCode, err)
	}
	return fmt.Errorf("%s request failed: %w", c.provider, err)
}
