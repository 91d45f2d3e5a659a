// Package sandbox provisions E2B cloud sandboxes, scaffolds the Vite app
// inside them and installs npm packages on request.
package sandbox

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"open-lovable/internal/config"
)

// codeInterpreterPort is the in-sandbox port of the code execution service
const codeInterpreterPort = 49999

// APIError is a non-2xx answer from the E2B API or the in-sandbox executor
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 300 {
		body = body[:300]
	}
	return fmt.Sprintf("e2b API error %d: %s", e.Status, body)
}

// Unauthorized reports whether the API rejected the key
func (e *APIError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// IsUnauthorized reports whether err is an E2B authorization failure
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Unauthorized()
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "401") || strings.Contains(msg, "unauthor") || strings.Contains(msg, "invalid api key")
}

// IsNotFound reports whether err is an E2B 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// SandboxInfo is the API view of a running sandbox
type SandboxInfo struct {
	SandboxID   string    `json:"sandboxID"`
	TemplateID  string    `json:"templateID"`
	ClientID    string    `json:"clientID,omitempty"`
	Alias       string    `json:"alias,omitempty"`
	EnvdVersion string    `json:"envdVersion,omitempty"`
	StartedAt   time.Time `json:"startedAt,omitempty"`
	EndAt       time.Time `json:"endAt,omitempty"`
}

// Result is a rich output of an executed cell
type Result struct {
	Text         string `json:"text,omitempty"`
	IsMainResult bool   `json:"is_main_result,omitempty"`
}

// ExecutionError is a Python exception raised by executed code
type ExecutionError struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Traceback string `json:"traceback"`
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Value)
}

// Execution collects everything a code run produced
type Execution struct {
	Stdout  []string
	Stderr  []string
	Results []Result
	Error   *ExecutionError
}

// Text returns stdout followed by result texts
func (e *Execution) Text() string {
	var b strings.Builder
	for _, s := range e.Stdout {
		b.WriteString(s)
	}
	for _, r := range e.Results {
		if r.Text != "" {
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
				b.WriteByte('\n')
			}
			b.WriteString(r.Text)
		}
	}
	return b.String()
}

// API is the subset of E2B the manager depends on
type API interface {
	Create(ctx context.Context, template string, timeout time.Duration) (*SandboxInfo, error)
	Get(ctx context.Context, sandboxID string) (*SandboxInfo, error)
	Kill(ctx context.Context, sandboxID string) error
	SetTimeout(ctx context.Context, sandboxID string, timeout time.Duration) error
	RunCode(ctx context.Context, sandboxID, code string) (*Execution, error)
	Host(sandboxID string, port int) string
}

// Client talks to the E2B REST API and the code interpreter inside sandboxes
type Client struct {
	apiKey     string
	apiURL     string
	domain     string
	httpClient *http.Client
	codeURL    func(sandboxID string) string
}

// ClientOption customizes a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithCodeURL overrides how the code interpreter endpoint is derived
func WithCodeURL(fn func(sandboxID string) string) ClientOption {
	return func(c *Client) { c.codeURL = fn }
}

// NewClient creates an E2B client
func NewClient(cfg config.E2BConfig, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		domain:     cfg.Domain,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	c.codeURL = func(id string) string {
		return "https://" + c.Host(id, codeInterpreterPort) + "/execute"
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Host returns the public hostname for port inside the sandbox
func (c *Client) Host(sandboxID string, port int) string {
	return fmt.Sprintf("%d-%s.%s", port, sandboxID, c.domain)
}

// Create starts a sandbox from template that the platform kills after timeout
func (c *Client) Create(ctx context.Context, template string, timeout time.Duration) (*SandboxInfo, error) {
	body := map[string]any{
		"templateID": template,
		"timeout":    int(timeout.Seconds()),
	}
	var info SandboxInfo
	if err := c.do(ctx, http.MethodPost, "/sandboxes", body, &info); err != nil {
		return nil, err
	}
	if info.SandboxID == "" {
		return nil, errors.New("e2b returned no sandbox id")
	}
	return &info, nil
}

// Get fetches a running sandbox; used to reconnect by id
func (c *Client) Get(ctx context.Context, sandboxID string) (*SandboxInfo, error) {
	var info SandboxInfo
	if err := c.do(ctx, http.MethodGet, "/sandboxes/"+sandboxID, nil, &info); err != nil {
		return nil, err
	}
	if info.SandboxID == "" {
		info.SandboxID = sandboxID
	}
	return &info, nil
}

// Kill terminates a sandbox
func (c *Client) Kill(ctx context.Context, sandboxID string) error {
	return c.do(ctx, http.MethodDelete, "/sandboxes/"+sandboxID, nil, nil)
}

// SetTimeout resets the platform-side lifetime of a sandbox
func (c *Client) SetTimeout(ctx context.Context, sandboxID string, timeout time.Duration) error {
	body := map[string]any{"timeout": int(timeout.Seconds())}
	return c.do(ctx, http.MethodPost, "/sandboxes/"+sandboxID+"/timeout", body, nil)
}

// RunCode executes Python code in the sandbox's code interpreter
func (c *Client) RunCode(ctx context.Context, sandboxID, code string) (*Execution, error) {
	payload, err := json.Marshal(map[string]string{"code": code, "language": "python"})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal code request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.codeURL(sandboxID), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute code: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return parseExecution(resp.Body)
}

// executionEvent is one NDJSON line from the code interpreter
type executionEvent struct {
	Type         string `json:"type"`
	Text         string `json:"text"`
	IsMainResult bool   `json:"is_main_result"`
	Name         string `json:"name"`
	Value        string `json:"value"`
	Traceback    string `json:"traceback"`
}

func parseExecution(r io.Reader) (*Execution, error) {
	exec := &Execution{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev executionEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("failed to decode execution event: %w", err)
		}
		switch ev.Type {
		case "stdout":
			exec.Stdout = append(exec.Stdout, ev.Text)
		case "stderr":
			exec.Stderr = append(exec.Stderr, ev.Text)
		case "result":
			exec.Results = append(exec.Results, Result{Text: ev.Text, IsMainResult: ev.IsMainResult})
		case "error":
			exec.Error = &ExecutionError{Name: ev.Name, Value: ev.Value, Traceback: ev.Traceback}
		case "end_of_execution":
			return exec, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read execution stream: %w", err)
	}
	return exec, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("e2b request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: string(data)}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}
