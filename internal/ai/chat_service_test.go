package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetResponseCapsMaxTokens(t *testing.T) {
	avalai := newFakeClient(ProviderAvalAI)
	avalai.replies["o1-mini"] = "reasoned"

	svc := NewChatService(NewRegistry(avalai))
	result, err := svc.GetResponse(context.Background(), ChatOptions{
		Model:     "o1-mini",
		Messages:  []ChatMessage{{Role: RoleUser, Content: "why"}},
		MaxTokens: 9000,
	})
	require.NoError(t, err)
	assert.Equal(t, "reasoned", result.Content)
	assert.Equal(t, "o1-mini", result.ServedModel)
	assert.Equal(t, TierFree, result.Tier)

	call := avalai.lastCall()
	assert.Equal(t, 4000, call.MaxTokens)
	assert.InDelta(t, 0.7, call.Temperature, 0.001)
}

func TestGetResponseKeepsSmallerMaxTokens(t *testing.T) {
	avalai := newFakeClient(ProviderAvalAI)
	avalai.replies["gpt-5"] = "ok"

	svc := NewChatService(NewRegistry(avalai))
	_, err := svc.GetResponse(context.Background(), ChatOptions{Model: "gpt-5", MaxTokens: 256})
	require.NoError(t, err)
	assert.Equal(t, 256, avalai.lastCall().MaxTokens)
}

func TestGetResponseUnknownModel(t *testing.T) {
	avalai := newFakeClient(ProviderAvalAI)
	svc := NewChatService(NewRegistry(avalai))

	_, err := svc.GetResponse(context.Background(), ChatOptions{Model: "nope"})
	require.ErrorIs(t, err, ErrModelNotFound)
	assert.Equal(t, 0, avalai.callCount())
}

func TestGetResponseEmptyContent(t *testing.T) {
	avalai := newFakeClient(ProviderAvalAI)
	svc := NewChatService(NewRegistry(avalai))

	result, err := svc.GetResponse(context.Background(), ChatOptions{Model: "gpt-5-mini"})
	require.NoError(t, err)
	assert.Equal(t, "No response generated", result.Content)
}

func TestGetResponseFallsBackToDefaultModel(t *testing.T) {
	google := newFakeClient(ProviderGoogle)
	google.failures["gemini-pro"] = errors.New("404 model retired")
	avalai := newFakeClient(ProviderAvalAI)
	avalai.replies[DefaultModelID] = "fallback answer"

	svc := NewChatService(NewRegistry(google, avalai))
	result, err := svc.GetResponse(context.Background(), ChatOptions{Model: "gemini-pro"})
	require.NoError(t, err)
	assert.Equal(t, "fallback answer", result.Content)
	assert.Equal(t, DefaultModelID, result.ServedModel)
	assert.Equal(t, 1, google.callCount())
}

func TestGetResponseDefaultModelFailure(t *testing.T) {
	avalai := newFakeClient(ProviderAvalAI)
	avalai.failures["deepseek-coder"] = errors.New("timeout")
	avalai.failures[DefaultModelID] = errors.New("401 invalid api key")

	svc := NewChatService(NewRegistry(avalai))
	_, err := svc.GetResponse(context.Background(), ChatOptions{Model: "deepseek-coder"})
	require.Error(t, err)
	assert.Equal(t, "AI request failed: 401 invalid api key", err.Error())
	assert.Equal(t, 2, avalai.callCount())
}

func TestGetResponseMissingProviderFallsBack(t *testing.T) {
	svc := NewChatService(NewRegistry())
	_, err := svc.GetResponse(context.Background(), ChatOptions{Model: "gemini-1.5-flash"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Contains(t, err.Error(), "AI request failed")
}

func TestGetResponseKeepsZeroTemperature(t *testing.T) {
	avalai := newFakeClient(ProviderAvalAI)
	avalai.replies["gpt-5-mini"] = "deterministic"

	zero := float32(0)
	svc := NewChatService(NewRegistry(avalai))
	_, err := svc.GetResponse(context.Background(), ChatOptions{
		Model:       "gpt-5-mini",
		Messages:    []ChatMessage{{Role: RoleUser, Content: "hi"}},
		Temperature: &zero,
	})
	require.NoError(t, err)
	assert.Zero(t, avalai.lastCall().Temperature)
	assert.False(t, avalai.lastCall().Raw)
}
