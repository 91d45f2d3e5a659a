package ai

import (
	"context"
	"sync"
)

// fakeClient answers from a per-upstream-model script
type fakeClient struct {
	provider Provider

	mu       sync.Mutex
	replies  map[string]string
	failures map[string]error
	calls    []ChatRequest
}

func newFakeClient(p Provider) *fakeClient {
	return &fakeClient{
		provider: p,
		replies:  make(map[string]string),
		failures: make(map[string]error),
	}
}

func (f *fakeClient) Provider() Provider { return f.provider }

func (f *fakeClient) Chat(_ context.Context, req *ChatRequest) (*ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, *req)
	if err, ok := f.failures[req.Model]; ok {
		return nil, err
	}
	return &ChatResponse{
		Content:  f.replies[req.Model],
		Model:    req.Model,
		Provider: f.provider,
		Usage:    &Usage{TotalTokens: 7},
	}, nil
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeClient) lastCall() ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// fakeStreamClient emits its reply in fixed chunks and can fail mid-stream
type fakeStreamClient struct {
	*fakeClient
	chunks    []string
	failAfter int
	streamErr error
}

func (f *fakeStreamClient) ChatStream(ctx context.Context, req *ChatRequest, onDelta func(string) error) (*ChatResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, *req)
	f.mu.Unlock()

	content := ""
	for i, chunk := range f.chunks {
		if f.streamErr != nil && i == f.failAfter {
			return nil, f.streamErr
		}
		content += chunk
		if err := onDelta(chunk); err != nil {
			return nil, err
		}
	}
	if f.streamErr != nil && f.failAfter >= len(f.chunks) {
		return nil, f.streamErr
	}
	return &ChatResponse{Content: content, Model: req.Model, Provider: f.provider}, nil
}
