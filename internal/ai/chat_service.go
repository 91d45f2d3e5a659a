package ai

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"open-lovable/internal/logging"
)

// ErrModelNotFound is returned for ids missing from the catalog
var ErrModelNotFound = errors.New("model not found")

// noResponse is returned as content when a provider answers with nothing
const noResponse = "No response generated"

// ChatOptions is a catalog-level chat request
type ChatOptions struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	// Temperature is nil for DefaultTemperature; 0 is sent as is
	Temperature *float32
}

// ChatResult is the answer to a catalog-level chat request
type ChatResult struct {
	Content     string   `json:"content"`
	Model       string   `json:"model"`
	ServedModel string   `json:"servedModel"`
	Provider    Provider `json:"provider"`
	Tier        Tier     `json:"tier"`
	Usage       *Usage   `json:"usage,omitempty"`
}

// ChatService answers chat requests addressed by catalog model id, falling
// back once to DefaultModelID when the requested model fails.
type ChatService struct {
	clients ClientSource
}

// NewChatService creates a chat service over clients
func NewChatService(clients ClientSource) *ChatService {
	return &ChatService{clients: clients}
}

// GetResponse sends the conversation to the requested model
func (s *ChatService) GetResponse(ctx context.Context, opts ChatOptions) (*ChatResult, error) {
	model, ok := FindModel(opts.Model)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, opts.Model)
	}

	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4000
	}
	limit := model.MaxTokens
	if limit <= 0 {
		limit = 4000
	}

	result, err := s.send(ctx, model, opts, min(opts.MaxTokens, limit))
	if err == nil {
		return result, nil
	}

	logging.L().Warn("chat request failed",
		zap.String("model", model.ID), zap.String("provider", string(model.Provider)), zap.Error(err))

	if model.ID != DefaultModelID {
		logging.L().Info("falling back to default model", zap.String("from", model.ID), zap.String("to", DefaultModelID))
		fallback := opts
		fallback.Model = DefaultModelID
		return s.GetResponse(ctx, fallback)
	}
	return nil, fmt.Errorf("AI request failed: %w", err)
}

func (s *ChatService) send(ctx context.Context, model AIModel, opts ChatOptions, maxTokens int) (*ChatResult, error) {
	client, ok := s.clients.Get(model.Provider)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, model.Provider)
	}

	resp, err := client.Chat(ctx, &ChatRequest{
		Model:       model.ID,
		Messages:    opts.Messages,
		MaxTokens:   maxTokens,
		Temperature: temperatureOr(opts.Temperature),
	})
	if err != nil {
		return nil, err
	}

	content := resp.Content
	if content == "" {
		content = noResponse
	}
	return &ChatResult{
		Content:     content,
		Model:       opts.Model,
		ServedModel: model.ID,
		Provider:    model.Provider,
		Tier:        model.Tier,
		Usage:       resp.Usage,
	}, nil
}

// ModelByID returns the catalog entry for id
func (s *ChatService) ModelByID(id string) (AIModel, bool) {
	return FindModel(id)
}

// FreeModels returns the free-tier catalog
func (s *ChatService) FreeModels() []AIModel {
	return FreeModels()
}

// PremiumModels returns the premium-tier catalog
func (s *ChatService) PremiumModels() []AIModel {
	return PremiumModels()
}
