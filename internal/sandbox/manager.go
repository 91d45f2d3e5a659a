package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"open-lovable/internal/config"
	"open-lovable/internal/logging"
	"open-lovable/internal/metrics"
)

var (
	// ErrNoActiveSandbox is returned when an operation needs a sandbox and none is held
	ErrNoActiveSandbox = errors.New("no active sandbox")
	// ErrCreateTimeout is returned when sandbox creation exceeds the create timeout
	ErrCreateTimeout = errors.New("sandbox creation timeout")
)

// Sandbox is a handle on a running E2B sandbox
type Sandbox struct {
	ID        string
	Template  string
	CreatedAt time.Time
	api       API
}

// RunCode executes Python inside the sandbox
func (s *Sandbox) RunCode(ctx context.Context, code string) (*Execution, error) {
	return s.api.RunCode(ctx, s.ID, code)
}

// Host returns the public hostname for port
func (s *Sandbox) Host(port int) string {
	return s.api.Host(s.ID, port)
}

// CreateOptions configures Manager.Create
type CreateOptions struct {
	Template string
	// Scaffold writes the Vite app and starts the dev server after creation
	Scaffold bool
}

// Info describes a created sandbox
type Info struct {
	SandboxID string    `json:"sandboxId"`
	URL       string    `json:"url"`
	Template  string    `json:"template"`
	CreatedAt time.Time `json:"createdAt"`
}

// Status is the state reported by the status endpoint
type Status struct {
	Active    bool       `json:"active"`
	SandboxID string     `json:"sandboxId,omitempty"`
	URL       string     `json:"url,omitempty"`
	Template  string     `json:"template,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Files     []string   `json:"files,omitempty"`
}

// Manager owns the single active sandbox. Create and Kill are serialized;
// readers only take the state lock.
type Manager struct {
	api API
	cfg config.E2BConfig
	pkg config.PackageConfig

	ops sync.Mutex

	mu        sync.Mutex
	active    *Sandbox
	files     map[string]bool
	timer     *time.Timer
	expiresAt time.Time

	afterFunc func(d time.Duration, f func()) *time.Timer
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewManager creates a manager over api
func NewManager(api API, cfg config.E2BConfig, pkg config.PackageConfig) *Manager {
	return &Manager{
		api:       api,
		cfg:       cfg,
		pkg:       pkg,
		files:     make(map[string]bool),
		afterFunc: time.AfterFunc,
		sleep:     sleepContext,
	}
}

// Create replaces the active sandbox with a new one
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*Info, error) {
	m.ops.Lock()
	defer m.ops.Unlock()

	log := logging.L().With(zap.String("component", "sandbox-manager"))
	start := time.Now()

	template := opts.Template
	if template == "" {
		template = m.cfg.Template
	}

	if old := m.detach(); old != nil {
		log.Info("killing existing sandbox", zap.String("sandbox_id", old.ID))
		if err := m.killRemote(ctx, old.ID); err != nil {
			log.Warn("failed to kill existing sandbox", zap.String("sandbox_id", old.ID), zap.Error(err))
		}
	}

	createCtx, cancel := context.WithTimeout(ctx, m.cfg.CreateTimeout)
	defer cancel()

	info, err := m.api.Create(createCtx, template, m.cfg.SandboxTimeout)
	if err != nil {
		metrics.Get().RecordSandboxOperation("create", "error", time.Since(start))
		if errors.Is(createCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s: %v", ErrCreateTimeout, m.cfg.CreateTimeout, err)
		}
		return nil, err
	}

	sb := &Sandbox{
		ID:        info.SandboxID,
		Template:  template,
		CreatedAt: time.Now(),
		api:       m.api,
	}
	log.Info("sandbox created", zap.String("sandbox_id", sb.ID), zap.String("template", template))

	files := map[string]bool{}
	if opts.Scaffold {
		written, err := m.scaffold(ctx, sb)
		if err != nil {
			metrics.Get().RecordSandboxOperation("create", "error", time.Since(start))
			if killErr := m.killRemote(context.Background(), sb.ID); killErr != nil {
				log.Warn("failed to kill sandbox after setup failure", zap.String("sandbox_id", sb.ID), zap.Error(killErr))
			}
			return nil, err
		}
		for _, p := range written {
			files[p] = true
		}
	}

	m.mu.Lock()
	m.active = sb
	m.files = files
	m.expiresAt = sb.CreatedAt.Add(m.cfg.SandboxTimeout)
	id := sb.ID
	m.timer = m.afterFunc(m.cfg.SandboxTimeout, func() { m.expire(id) })
	m.mu.Unlock()

	metrics.Get().RecordSandboxOperation("create", "success", time.Since(start))
	metrics.Get().SetActiveSandboxes(1)

	return &Info{
		SandboxID: sb.ID,
		URL:       "https://" + sb.Host(m.cfg.VitePort),
		Template:  template,
		CreatedAt: sb.CreatedAt,
	}, nil
}

// Attach reconnects to an existing sandbox and makes it active. The previous
// active sandbox, if any, is left running.
func (m *Manager) Attach(ctx context.Context, sandboxID string) (*Sandbox, error) {
	m.ops.Lock()
	defer m.ops.Unlock()

	start := time.Now()
	info, err := m.api.Get(ctx, sandboxID)
	if err != nil {
		metrics.Get().RecordSandboxOperation("connect", "error", time.Since(start))
		return nil, err
	}
	metrics.Get().RecordSandboxOperation("connect", "success", time.Since(start))

	sb := &Sandbox{
		ID:        info.SandboxID,
		Template:  info.TemplateID,
		CreatedAt: info.StartedAt,
		api:       m.api,
	}
	if sb.CreatedAt.IsZero() {
		sb.CreatedAt = time.Now()
	}

	m.mu.Lock()
	m.stopTimerLocked()
	m.active = sb
	m.files = make(map[string]bool)
	m.expiresAt = info.EndAt
	m.mu.Unlock()

	metrics.Get().SetActiveSandboxes(1)
	logging.L().Info("reconnected to sandbox", zap.String("sandbox_id", sb.ID))
	return sb, nil
}

// Active returns the active sandbox or nil
func (m *Manager) Active() *Sandbox {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Kill terminates the active sandbox
func (m *Manager) Kill(ctx context.Context) error {
	m.ops.Lock()
	defer m.ops.Unlock()

	sb := m.detach()
	if sb == nil {
		return ErrNoActiveSandbox
	}
	return m.killRemote(ctx, sb.ID)
}

// Status reports the active sandbox
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return Status{}
	}
	created := m.active.CreatedAt
	st := Status{
		Active:    true,
		SandboxID: m.active.ID,
		URL:       "https://" + m.active.Host(m.cfg.VitePort),
		Template:  m.active.Template,
		CreatedAt: &created,
		Files:     m.sortedFilesLocked(),
	}
	if !m.expiresAt.IsZero() {
		expires := m.expiresAt
		st.ExpiresAt = &expires
	}
	return st
}

// Files returns the tracked sandbox file paths
func (m *Manager) Files() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedFilesLocked()
}

// Installer returns a package installer configured like this manager
func (m *Manager) Installer() *Installer {
	return NewInstaller(m.pkg)
}

// Close kills the active sandbox; used on shutdown
func (m *Manager) Close(ctx context.Context) error {
	err := m.Kill(ctx)
	if errors.Is(err, ErrNoActiveSandbox) {
		return nil
	}
	return err
}

func (m *Manager) scaffold(ctx context.Context, sb *Sandbox) ([]string, error) {
	script, err := SetupScript(m.cfg.VitePort, m.pkg.UseLegacyPeerDeps)
	if err != nil {
		return nil, err
	}
	exec, err := sb.RunCode(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("failed to set up app: %w", err)
	}
	if exec.Error != nil {
		return nil, fmt.Errorf("failed to set up app: %w", exec.Error)
	}

	var written []string
	for _, line := range strings.Split(exec.Text(), "\n") {
		if rel, ok := strings.CutPrefix(strings.TrimSpace(line), "FILE_WRITTEN:"); ok {
			written = append(written, AppDir+"/"+rel)
		}
	}

	vite, err := sb.RunCode(ctx, StartViteScript())
	if err != nil {
		return nil, fmt.Errorf("failed to start vite: %w", err)
	}
	if vite.Error != nil {
		return nil, fmt.Errorf("failed to start vite: %w", vite.Error)
	}
	if err := m.sleep(ctx, m.cfg.ViteStartupDelay); err != nil {
		return nil, err
	}
	return written, nil
}

func (m *Manager) expire(id string) {
	m.mu.Lock()
	if m.active == nil || m.active.ID != id {
		m.mu.Unlock()
		return
	}
	m.active = nil
	m.files = make(map[string]bool)
	m.timer = nil
	m.expiresAt = time.Time{}
	m.mu.Unlock()

	logging.L().Info("sandbox lifetime reached, killing", zap.String("sandbox_id", id))
	metrics.RecordSandboxExpiry()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := m.killRemote(ctx, id); err != nil {
		logging.L().Warn("failed to kill expired sandbox", zap.String("sandbox_id", id), zap.Error(err))
	}
}

// detach clears the active sandbox and returns it
func (m *Manager) detach() *Sandbox {
	m.mu.Lock()
	defer m.mu.Unlock()
	sb := m.active
	m.stopTimerLocked()
	m.active = nil
	m.files = make(map[string]bool)
	m.expiresAt = time.Time{}
	return sb
}

func (m *Manager) killRemote(ctx context.Context, id string) error {
	start := time.Now()
	err := m.api.Kill(ctx, id)
	if err != nil && IsNotFound(err) {
		err = nil
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.Get().RecordSandboxOperation("kill", status, time.Since(start))
	metrics.Get().SetActiveSandboxes(0)
	return err
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) sortedFilesLocked() []string {
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
