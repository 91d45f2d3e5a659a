package ai

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"open-lovable/internal/config"
)

// ErrProviderUnavailable is returned when no client is configured for a provider
var ErrProviderUnavailable = errors.New("provider not configured")

// ClientSource resolves provider clients. *Registry implements it; tests pass fakes.
type ClientSource interface {
	Get(p Provider) (Client, bool)
}

// Registry holds one client per configured provider
type Registry struct {
	mu      sync.RWMutex
	clients map[Provider]Client
}

// NewRegistry builds a registry from ready-made clients
func NewRegistry(clients ...Client) *Registry {
	r := &Registry{clients: make(map[Provider]Client, len(clients))}
	for _, c := range clients {
		r.clients[c.Provider()] = c
	}
	return r
}

// NewRegistryFromConfig creates clients for every provider with a key set.
// Providers without keys are simply absent.
func NewRegistryFromConfig(ctx context.Context, cfg *config.AppConfig) (*Registry, error) {
	r := NewRegistry()
	if cfg.AvalAIAPIKey != "" {
		r.Register(NewOpenAICompatClient(ProviderAvalAI, cfg.AvalAIAPIKey, cfg.AvalAIBaseURL, cfg.AIRequestTimeout))
	}
	if cfg.GroqAPIKey != "" {
		r.Register(NewOpenAICompatClient(ProviderGroq, cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.AIRequestTimeout))
	}
	if cfg.GoogleAPIKey != "" {
		gemini, err := NewGeminiClient(ctx, cfg.GoogleAPIKey)
		if err != nil {
			return nil, err
		}
		r.Register(gemini)
	}
	return r, nil
}

// Register adds or replaces the client for its provider
func (r *Registry) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.Provider()] = c
}

// Get returns the client for p
func (r *Registry) Get(p Provider) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[p]
	return c, ok
}

// Providers returns the configured providers in sorted order
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.clients))
	for p := range r.clients {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Usage returns usage statistics for clients that track them
func (r *Registry) Usage() map[Provider]ProviderUsage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[Provider]ProviderUsage)
	for p, c := range r.clients {
		if u, ok := c.(interface{ GetUsage() ProviderUsage }); ok {
			out[p] = u.GetUsage()
		}
	}
	return out
}

// Close releases clients that hold connections
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, c := range r.clients {
		if closer, ok := c.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
