package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"open-lovable/internal/logging"
)

const (
	// failureThreshold is the error count above which a model is rested
	failureThreshold = 3
	// failureCooldown is how long a failing model is skipped
	failureCooldown = 5 * time.Minute
)

// Recorder receives per-attempt routing outcomes. metrics.AIMetricsRecorder implements it.
type Recorder interface {
	RecordRequest(provider, model string, success bool, duration time.Duration, tokens int)
	RecordFallback(fromModel, toModel, reason string)
}

type noopRecorder struct{}

func (noopRecorder) RecordRequest(string, string, bool, time.Duration, int) {}
func (noopRecorder) RecordFallback(string, string, string)                  {}

// ModelHealth is the failure-table entry for a routable model
type ModelHealth struct {
	Success    bool      `json:"success"`
	LastUsed   time.Time `json:"lastUsed"`
	ErrorCount int       `json:"errorCount"`
}

// GenerateOptions tunes a routed completion
type GenerateOptions struct {
	MaxTokens   int
	// Temperature is nil for DefaultTemperature; 0 is sent as is
	Temperature *float32
}

// RouteResult is the outcome of a successful routed completion
type RouteResult struct {
	Content       string   `json:"content"`
	Model         string   `json:"model"`
	UpstreamModel string   `json:"upstreamModel"`
	Tier          Tier     `json:"tier"`
	Provider      Provider `json:"provider"`
	Usage         *Usage   `json:"usage,omitempty"`
	Attempts      int      `json:"attempts"`
}

// AttemptError records why a single candidate failed
type AttemptError struct {
	Model string
	Err   error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("%s: %v", e.Model, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// AllModelsFailedError is returned when no candidate produced a response
type AllModelsFailedError struct {
	Attempts []*AttemptError
	Skipped  []string
}

func (e *AllModelsFailedError) Error() string {
	return "All AI models failed to respond"
}

// Unwrap exposes every attempt error to errors.Is / errors.As
func (e *AllModelsFailedError) Unwrap() []error {
	out := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		out = append(out, a)
	}
	return out
}

// Detail joins the attempt errors for logs and error payloads
func (e *AllModelsFailedError) Detail() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Error())
	}
	return strings.Join(parts, "; ")
}

// SmartRouter walks an ordered list of candidate models, resting models
// that keep failing, until one of them answers.
type SmartRouter struct {
	clients  ClientSource
	config   *RoutingConfig
	recorder Recorder
	now      func() time.Time

	mu      sync.Mutex
	history map[string]*ModelHealth
}

// RouterOption customizes a SmartRouter
type RouterOption func(*SmartRouter)

// WithRoutingConfig replaces the built-in routing table
func WithRoutingConfig(cfg *RoutingConfig) RouterOption {
	return func(r *SmartRouter) { r.config = cfg }
}

// WithRecorder attaches a metrics recorder
func WithRecorder(rec Recorder) RouterOption {
	return func(r *SmartRouter) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) RouterOption {
	return func(r *SmartRouter) { r.now = now }
}

// NewSmartRouter creates a router over clients
func NewSmartRouter(clients ClientSource, opts ...RouterOption) *SmartRouter {
	r := &SmartRouter{
		clients:  clients,
		config:   DefaultRoutingConfig(),
		recorder: noopRecorder{},
		now:      time.Now,
		history:  make(map[string]*ModelHealth),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the routing table in use
func (r *SmartRouter) Config() *RoutingConfig {
	return r.config
}

// Candidates returns the ordered, de-duplicated list of models to try.
// A routable preferred model goes first.
func (r *SmartRouter) Candidates(preferred, task string) []string {
	recommended := r.config.Recommended(task)
	out := make([]string, 0, len(recommended)+1)
	seen := make(map[string]bool, len(recommended)+1)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	if preferred != "" {
		if _, ok := r.config.Target(preferred); ok {
			add(preferred)
		}
	}
	for _, id := range recommended {
		add(id)
	}
	return out
}

// Generate returns the first successful completion among the candidates
func (r *SmartRouter) Generate(ctx context.Context, prompt, preferred, task string, opts GenerateOptions) (*RouteResult, error) {
	return r.walk(ctx, prompt, preferred, task, opts, func(ctx context.Context, c Client, req *ChatRequest) (*ChatResponse, error) {
		return c.Chat(ctx, req)
	})
}

// Stream is Generate for streaming providers. onDelta receives text as it
// arrives; once a candidate has emitted text, its failure is final.
func (r *SmartRouter) Stream(ctx context.Context, prompt, preferred, task string, opts GenerateOptions, onDelta func(string) error) (*RouteResult, error) {
	var emitted bool
	result, err := r.walk(ctx, prompt, preferred, task, opts, func(ctx context.Context, c Client, req *ChatRequest) (*ChatResponse, error) {
		sc, ok := c.(StreamClient)
		if !ok {
			resp, err := c.Chat(ctx, req)
			if err != nil || resp == nil || resp.Content == "" {
				return resp, err
			}
			emitted = true
			if err := onDelta(resp.Content); err != nil {
				return nil, &streamAbortedError{err: err}
			}
			return resp, nil
		}
		resp, err := sc.ChatStream(ctx, req, func(delta string) error {
			emitted = true
			return onDelta(delta)
		})
		if err != nil && emitted {
			return nil, &streamAbortedError{err: err}
		}
		return resp, err
	})
	var aborted *streamAbortedError
	if errors.As(err, &aborted) {
		return nil, aborted.err
	}
	return result, err
}

type streamAbortedError struct {
	err error
}

func (e *streamAbortedError) Error() string { return e.err.Error() }
func (e *streamAbortedError) Unwrap() error { return e.err }

type callFunc func(ctx context.Context, c Client, req *ChatRequest) (*ChatResponse, error)

func (r *SmartRouter) walk(ctx context.Context, prompt, preferred, task string, opts GenerateOptions, call callFunc) (*RouteResult, error) {
	log := logging.L().With(zap.String("component", "smart-router"))
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 8000
	}

	candidates := r.Candidates(preferred, task)
	log.Debug("trying models in order", zap.Strings("models", candidates))

	failed := &AllModelsFailedError{}
	previous := ""
	for _, id := range candidates {
		if err := ctx.Err(); err != nil {
			failed.Attempts = append(failed.Attempts, &AttemptError{Model: id, Err: err})
			break
		}
		target, ok := r.config.Target(id)
		if !ok {
			log.Warn("model not configured, skipping", zap.String("model", id))
			continue
		}
		client, ok := r.clients.Get(target.Provider)
		if !ok {
			log.Debug("provider not configured, skipping",
				zap.String("model", id), zap.String("provider", string(target.Provider)))
			failed.Skipped = append(failed.Skipped, id)
			continue
		}
		if r.resting(id) {
			log.Info("skipping model due to recent failures", zap.String("model", id))
			failed.Skipped = append(failed.Skipped, id)
			continue
		}
		if previous != "" {
			r.recorder.RecordFallback(previous, id, "error")
		}

		start := r.now()
		resp, err := call(ctx, client, &ChatRequest{
			Model:       target.Upstream,
			Messages:    []ChatMessage{{Role: RoleUser, Content: prompt}},
			MaxTokens:   opts.MaxTokens,
			Temperature: temperatureOr(opts.Temperature),
			Raw:         true,
		})
		if err == nil && (resp == nil || resp.Content == "") {
			err = errors.New("empty response")
		}
		duration := r.now().Sub(start)

		if err != nil {
			// a caller that went away says nothing about the model
			if ctxErr := ctx.Err(); ctxErr != nil {
				log.Info("request cancelled, stopping", zap.String("model", id), zap.Error(err))
				failed.Attempts = append(failed.Attempts, &AttemptError{Model: id, Err: ctxErr})
				break
			}

			r.recordFailure(id)
			r.recorder.RecordRequest(string(target.Provider), id, false, duration, 0)
			log.Warn("model failed, trying next", zap.String("model", id), zap.Error(err))

			var aborted *streamAbortedError
			if errors.As(err, &aborted) {
				return nil, err
			}
			failed.Attempts = append(failed.Attempts, &AttemptError{Model: id, Err: err})
			previous = id
			continue
		}

		r.recordSuccess(id)
		tokens := 0
		if resp.Usage != nil {
			tokens = resp.Usage.TotalTokens
		}
		r.recorder.RecordRequest(string(target.Provider), id, true, duration, tokens)
		log.Info("model succeeded", zap.String("model", id), zap.Duration("duration", duration))

		return &RouteResult{
			Content:       resp.Content,
			Model:         id,
			UpstreamModel: target.Upstream,
			Tier:          target.Tier,
			Provider:      target.Provider,
			Usage:         resp.Usage,
			Attempts:      len(failed.Attempts) + 1,
		}, nil
	}

	return nil, failed
}

func (r *SmartRouter) resting(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.history[id]
	return ok && h.ErrorCount > failureThreshold && r.now().Sub(h.LastUsed) < failureCooldown
}

func (r *SmartRouter) recordSuccess(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.entry(id)
	h.Success = true
	h.LastUsed = r.now()
	if h.ErrorCount > 0 {
		h.ErrorCount--
	}
}

func (r *SmartRouter) recordFailure(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.entry(id)
	h.Success = false
	h.LastUsed = r.now()
	h.ErrorCount++
}

// entry must be called with mu held
func (r *SmartRouter) entry(id string) *ModelHealth {
	h, ok := r.history[id]
	if !ok {
		h = &ModelHealth{}
		r.history[id] = h
	}
	return h
}

// Stats returns a snapshot of the failure table
func (r *SmartRouter) Stats() map[string]ModelHealth {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]ModelHealth, len(r.history))
	for id, h := range r.history {
		out[id] = *h
	}
	return out
}

// Reset clears the failure table
func (r *SmartRouter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = make(map[string]*ModelHealth)
}
