package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"open-lovable/internal/ai"
	"open-lovable/internal/config"
	"open-lovable/internal/sandbox"
	"open-lovable/internal/scrape"
)

const testE2BKey = "e2b_0123456789abcdef0123456789abcdef"

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Environment:  config.EnvDevelopment,
		DefaultModel: ai.DefaultModelID,
		AvalAIAPIKey: "aa-test-key",
		E2B: config.E2BConfig{
			APIKey:         testE2BKey,
			Template:       "base",
			SandboxTimeout: time.Hour,
			CreateTimeout:  5 * time.Second,
			VitePort:       5173,
		},
		Firecrawl:      config.FirecrawlConfig{APIKey: "fc-test"},
		Packages:       config.PackageConfig{UseLegacyPeerDeps: true, AutoRestartVite: true},
		ScrapeCacheTTL: time.Minute,
	}
}

// fakeChat records the options of every chat call
type fakeChat struct {
	result *ai.ChatResult
	err    error
	calls  []ai.ChatOptions
}

func (f *fakeChat) GetResponse(_ context.Context, opts ai.ChatOptions) (*ai.ChatResult, error) {
	f.calls = append(f.calls, opts)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type routeCall struct {
	prompt    string
	preferred string
	task      string
	opts      ai.GenerateOptions
	streamed  bool
}

// fakeRouter answers every call with result or err; Stream emits deltas first
type fakeRouter struct {
	result *ai.RouteResult
	err    error
	deltas []string
	calls  []routeCall
	resets int
}

func (f *fakeRouter) Generate(_ context.Context, prompt, preferred, task string, opts ai.GenerateOptions) (*ai.RouteResult, error) {
	f.calls = append(f.calls, routeCall{prompt: prompt, preferred: preferred, task: task, opts: opts})
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeRouter) Stream(_ context.Context, prompt, preferred, task string, opts ai.GenerateOptions, onDelta func(string) error) (*ai.RouteResult, error) {
	f.calls = append(f.calls, routeCall{prompt: prompt, preferred: preferred, task: task, opts: opts, streamed: true})
	for _, d := range f.deltas {
		if err := onDelta(d); err != nil {
			return nil, err
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeRouter) Candidates(preferred, _ string) []string { return []string{preferred} }

func (f *fakeRouter) Stats() map[string]ai.ModelHealth {
	return map[string]ai.ModelHealth{"gemini-pro": {Success: false, ErrorCount: 2}}
}

func (f *fakeRouter) Reset() { f.resets++ }

func (f *fakeRouter) Config() *ai.RoutingConfig { return ai.DefaultRoutingConfig() }

type e2bScript struct {
	marker string
	exec   *sandbox.Execution
}

// fakeE2B is an in-memory sandbox.API; RunCode answers with the first
// script whose marker the code contains
type fakeE2B struct {
	mu        sync.Mutex
	nextID    int
	running   map[string]string
	killed    []string
	createErr error
	getErr    error
	scripts   []e2bScript
	ran       []string
}

func newFakeE2B() *fakeE2B {
	return &fakeE2B{running: make(map[string]string)}
}

func (f *fakeE2B) Create(_ context.Context, template string, _ time.Duration) (*sandbox.SandboxInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	id := fmt.Sprintf("sb%d", f.nextID)
	f.running[id] = template
	return &sandbox.SandboxInfo{SandboxID: id, TemplateID: template}, nil
}

func (f *fakeE2B) Get(_ context.Context, id string) (*sandbox.SandboxInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	template, ok := f.running[id]
	if !ok {
		return nil, &sandbox.APIError{Status: http.StatusNotFound, Body: "sandbox not found"}
	}
	return &sandbox.SandboxInfo{SandboxID: id, TemplateID: template}, nil
}

func (f *fakeE2B) Kill(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, id)
	delete(f.running, id)
	return nil
}

func (f *fakeE2B) SetTimeout(context.Context, string, time.Duration) error { return nil }

func (f *fakeE2B) RunCode(_ context.Context, _ string, code string) (*sandbox.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ran = append(f.ran, code)
	for _, s := range f.scripts {
		if strings.Contains(code, s.marker) {
			return s.exec, nil
		}
	}
	return &sandbox.Execution{}, nil
}

func (f *fakeE2B) Host(id string, port int) string {
	return fmt.Sprintf("%d-%s.e2b.app", port, id)
}

func (f *fakeE2B) killedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.killed...)
}

// fakeScraper serves canned Firecrawl answers
type fakeScraper struct {
	configured bool
	doc        *scrape.Document
	err        error
	requests   []scrape.Request
	shots      []string
}

func (f *fakeScraper) Configured() bool { return f.configured }

func (f *fakeScraper) Scrape(_ context.Context, req scrape.Request) (*scrape.Document, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	doc := *f.doc
	return &doc, nil
}

func (f *fakeScraper) Screenshot(_ context.Context, url string) (*scrape.Document, error) {
	f.shots = append(f.shots, url)
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

type testEnv struct {
	handler *Handler
	engine  *gin.Engine
	cfg     *config.AppConfig
	chat    *fakeChat
	router  *fakeRouter
	e2b     *fakeE2B
	scraper *fakeScraper
	manager *sandbox.Manager
}

func newTestEnv(t *testing.T, mutate ...func(*config.AppConfig)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	env := &testEnv{
		cfg:     cfg,
		chat:    &fakeChat{},
		router:  &fakeRouter{},
		e2b:     newFakeE2B(),
		scraper: &fakeScraper{configured: true},
	}
	env.manager = sandbox.NewManager(env.e2b, cfg.E2B, cfg.Packages)
	t.Cleanup(func() { _ = env.manager.Close(context.Background()) })

	env.handler = NewHandler(Deps{
		Config:    cfg,
		Chat:      env.chat,
		Router:    env.router,
		Intent:    ai.NewIntentAnalyzer(ai.NewRegistry()),
		Providers: []ai.Provider{ai.ProviderAvalAI},
		Sandboxes: env.manager,
		E2B:       env.e2b,
		Scraper:   env.scraper,
	})

	env.engine = gin.New()
	env.engine.GET("/health", env.handler.Health)
	env.handler.RegisterRoutes(env.engine.Group("/api"))
	return env
}

func (e *testEnv) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

// sseEvents splits a text/event-stream body into decoded data frames
func sseEvents(t *testing.T, w *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var events []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(w.Body.Bytes()))
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var ev map[string]any
		require.NoError(t, json.Unmarshal([]byte(data), &ev), data)
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	return events
}

func eventTypes(events []map[string]any) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, fmt.Sprint(ev["type"]))
	}
	return out
}
