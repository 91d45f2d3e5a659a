// Open Lovable API Handlers
// Route handlers that validate input, call one vendor and shape the JSON envelope

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"open-lovable/internal/ai"
	"open-lovable/internal/cache"
	"open-lovable/internal/config"
	"open-lovable/internal/db"
	"open-lovable/internal/logging"
	"open-lovable/internal/metrics"
	"open-lovable/internal/middleware"
	"open-lovable/internal/sandbox"
	"open-lovable/internal/scrape"
	"open-lovable/internal/storage"
)

// sessionHeader selects the conversation a request belongs to
const sessionHeader = "X-Session-ID"

// errInvalidJSON is returned by decodeJSON for unparseable bodies
var errInvalidJSON = errors.New("invalid JSON body")

// ChatResponder answers catalog-addressed chat requests. *ai.ChatService implements it.
type ChatResponder interface {
	GetResponse(ctx context.Context, opts ai.ChatOptions) (*ai.ChatResult, error)
}

// ModelRouter walks fallback candidates. *ai.SmartRouter implements it.
type ModelRouter interface {
	Generate(ctx context.Context, prompt, preferred, task string, opts ai.GenerateOptions) (*ai.RouteResult, error)
	Stream(ctx context.Context, prompt, preferred, task string, opts ai.GenerateOptions, onDelta func(string) error) (*ai.RouteResult, error)
	Candidates(preferred, task string) []string
	Stats() map[string]ai.ModelHealth
	Reset()
	Config() *ai.RoutingConfig
}

// EditIntentAnalyzer plans code searches for edits. *ai.IntentAnalyzer implements it.
type EditIntentAnalyzer interface {
	Analyze(ctx context.Context, prompt string, manifest *ai.FileManifest) (*ai.SearchPlan, error)
}

// UsageSource reports per-provider usage. *ai.Registry implements it.
type UsageSource interface {
	Usage() map[ai.Provider]ai.ProviderUsage
}

// Deps holds everything the handlers talk to. Optional parts may be nil.
type Deps struct {
	Config      *config.AppConfig
	Chat        ChatResponder
	Router      ModelRouter
	Intent      EditIntentAnalyzer
	Sessions    *ai.SessionStore
	Providers   []ai.Provider
	Usage       UsageSource
	Sandboxes   *sandbox.Manager
	E2B         sandbox.API
	Scraper     scrape.Scraper
	ScrapeCache *cache.ScrapeCache
	Screenshots *storage.ScreenshotArchive
	RequestLog  *db.RequestLogger
}

// Handler contains all the dependencies for API handlers
type Handler struct {
	cfg         *config.AppConfig
	chat        ChatResponder
	router      ModelRouter
	intent      EditIntentAnalyzer
	sessions    *ai.SessionStore
	providers   []ai.Provider
	usage       UsageSource
	sandboxes   *sandbox.Manager
	e2b         sandbox.API
	scraper     scrape.Scraper
	scrapeCache *cache.ScrapeCache
	screenshots *storage.ScreenshotArchive
	requestLog  *db.RequestLogger
}

// NewHandler creates a new handler instance
func NewHandler(deps Deps) *Handler {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Load()
	}
	sessions := deps.Sessions
	if sessions == nil {
		sessions = ai.NewSessionStore()
	}
	scrapeCache := deps.ScrapeCache
	if scrapeCache == nil {
		scrapeCache = cache.NewScrapeCache(cache.NewRedisCache(&cache.CacheConfig{Name: "scrape"}), cfg.ScrapeCacheTTL)
	}
	return &Handler{
		cfg:         cfg,
		chat:        deps.Chat,
		router:      deps.Router,
		intent:      deps.Intent,
		sessions:    sessions,
		providers:   deps.Providers,
		usage:       deps.Usage,
		sandboxes:   deps.Sandboxes,
		e2b:         deps.E2B,
		scraper:     deps.Scraper,
		scrapeCache: scrapeCache,
		screenshots: deps.Screenshots,
		requestLog:  deps.RequestLog,
	}
}

// StandardResponse represents a standard API error response
type StandardResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// errorRule maps error message substrings to a response
type errorRule struct {
	match   []string
	status  int
	code    string
	message string
}

// classifyError returns the first rule with a substring of err's message,
// compared case-insensitively, or fallback
func classifyError(err error, rules []errorRule, fallback errorRule) errorRule {
	if err == nil {
		return fallback
	}
	msg := strings.ToLower(err.Error())
	for _, rule := range rules {
		for _, m := range rule.match {
			if strings.Contains(msg, strings.ToLower(m)) {
				return rule
			}
		}
	}
	return fallback
}

// decodeJSON reads the body into dest. An empty body decodes as {} when
// allowEmpty is set.
func decodeJSON(c *gin.Context, dest interface{}, allowEmpty bool) error {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidJSON, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		if allowEmpty {
			return nil
		}
		return errInvalidJSON
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%w: %v", errInvalidJSON, err)
	}
	return nil
}

// details returns err's message in development and a generic text otherwise
func (h *Handler) details(err error) string {
	env := strings.ToLower(h.cfg.Environment)
	if env == "" || env == config.EnvDevelopment || env == "dev" {
		return err.Error()
	}
	return "Internal server error"
}

func sessionID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(sessionHeader)); id != "" {
		return id
	}
	return ai.DefaultSessionID
}

func requestID(c *gin.Context) string {
	return c.GetString(middleware.RequestIDKey)
}

func routeLog(c *gin.Context, route string) *zap.Logger {
	return logging.Route(route).With(zap.String("request_id", requestID(c)))
}

// sseStream writes server-sent events as "data: {json}\n\n" frames
type sseStream struct {
	c       *gin.Context
	route   string
	started bool
}

func newSSEStream(c *gin.Context, route string) *sseStream {
	return &sseStream{c: c, route: route}
}

func (s *sseStream) start() {
	if s.started {
		return
	}
	s.started = true
	h := s.c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.c.Status(http.StatusOK)
}

// send writes one event; it fails once the client has gone away
func (s *sseStream) send(event interface{}) error {
	if err := s.c.Request.Context().Err(); err != nil {
		return err
	}
	s.start()
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.c.Writer, "data: %s\n\n", data); err != nil {
		return err
	}
	s.c.Writer.Flush()
	return nil
}

// finish records how the stream ended
func (s *sseStream) finish(outcome string) {
	if s.c.Request.Context().Err() != nil {
		outcome = "client_gone"
	}
	metrics.RecordStreamOutcome(s.route, outcome)
}
