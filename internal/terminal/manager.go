package terminal

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arpitjain799/jupyter-server-terminals/internal/logging"
	"github.com/arpitjain799/jupyter-server-terminals/internal/monitoring"
)

// Config carries the fixed manager-wide settings. All of them are set at
// construction and never mutated per-session.
type Config struct {
	// Command is the shell argv. Empty falls back to $SHELL, then /bin/bash.
	Command []string
	// Env holds extra environment variables layered over the server's own.
	Env map[string]string
	// RootDir anchors relative cwd values and is the fallback when a
	// requested cwd does not exist. Empty means the process default.
	RootDir string
	// Rows and Cols set the initial PTY window size.
	Rows uint16
	Cols uint16
	// BufferChunks and BufferBytes cap the per-session replay buffer.
	BufferChunks int
	BufferBytes  int
	// TerminateGrace bounds how long delete waits between SIGTERM and
	// SIGKILL.
	TerminateGrace time.Duration
}

// Manager is the session registry: it owns creation, lookup, deletion and
// name allocation. The registry lock only guards entry insert/remove and
// name allocation; per-session I/O serializes on each session's own lock,
// so sessions proceed fully independently.
type Manager struct {
	cfg     Config
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
	order    []string // insertion order for List
}

// Options carries per-creation overrides.
type Options struct {
	// Name requests a specific registry name; empty allocates the
	// smallest unused positive integer.
	Name string
	// Cwd is the requested working directory, absolute or relative to
	// the configured root. A missing directory is not an error: the
	// session falls back to the root dir (observable only through the
	// shell's own prompt).
	Cwd string
	// Command and Env override the manager defaults for this session.
	Command []string
	Env     map[string]string
}

// NewManager creates a session registry.
func NewManager(cfg Config, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewDefault()
	}
	if cfg.Rows == 0 {
		cfg.Rows = 24
	}
	if cfg.Cols == 0 {
		cfg.Cols = 80
	}
	if cfg.TerminateGrace <= 0 {
		cfg.TerminateGrace = 2 * time.Second
	}
	return &Manager{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// WithMetrics attaches a metrics collector.
func (m *Manager) WithMetrics(mt *monitoring.Metrics) *Manager {
	m.metrics = mt
	return m
}

// Create spawns a shell under a PTY and registers it under an allocated
// (or requested) name. Returns the session descriptor.
func (m *Manager) Create(opts Options) (Info, error) {
	argv := opts.Command
	if len(argv) == 0 {
		argv = defaultCommand(m.cfg.Command)
	}
	cwd := m.resolveCwd(opts.Cwd)
	env := m.buildEnv(opts.Env)

	m.mu.Lock()
	defer m.mu.Unlock()

	name := opts.Name
	if name == "" {
		name = nextName(m.sessions)
	} else if _, exists := m.sessions[name]; exists {
		return Info{}, fmt.Errorf("%w: name %q already in use", ErrInvalidRequest, name)
	}

	handle, err := Spawn(argv, env, cwd, Winsize{Rows: m.cfg.Rows, Cols: m.cfg.Cols})
	if err != nil {
		return Info{}, err
	}

	s := &Session{
		name:         name,
		cwd:          cwd,
		handle:       handle,
		buffer:       NewBuffer(m.cfg.BufferChunks, m.cfg.BufferBytes),
		logger:       m.logger,
		clients:      make(map[Client]struct{}),
		lastActivity: time.Now(),
		onExit:       m.remove,
	}
	m.sessions[name] = s
	m.order = append(m.order, name)
	go s.readLoop()

	if m.metrics != nil {
		m.metrics.TerminalsCreated.Inc()
		m.metrics.TerminalsActive.Set(float64(len(m.sessions)))
	}
	m.logger.Info("terminal created",
		zap.String("name", name),
		zap.String("cwd", cwd),
		zap.Strings("command", argv),
	)
	return s.Info(), nil
}

// Get returns the live session registered under name.
func (m *Manager) Get(name string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return s, nil
}

// List returns descriptors for all live sessions in insertion order.
func (m *Manager) List() []Info {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.order))
	for _, name := range m.order {
		if s, ok := m.sessions[name]; ok {
			sessions = append(sessions, s)
		}
	}
	m.mu.Unlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	return infos
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Delete terminates the session's process (graceful signal, forced kill
// after the grace period) and then removes the registry entry, in that
// order. Deleting an unknown or already-deleted name returns ErrNotFound.
func (m *Manager) Delete(name string) error {
	m.mu.Lock()
	s, ok := m.sessions[name]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	s.shutdown(m.cfg.TerminateGrace)
	m.remove(s)
	m.logger.Info("terminal deleted", zap.String("name", name))
	return nil
}

// Shutdown terminates every live session. Used at server stop so no shell
// process outlives the server.
func (m *Manager) Shutdown() {
	for _, info := range m.List() {
		if err := m.Delete(info.Name); err != nil {
			m.logger.Warn("failed to delete terminal during shutdown",
				zap.String("name", info.Name), zap.Error(err))
		}
	}
}

// remove drops the registry entry for s, if it is still the registered
// holder of its name. Idempotent: both the explicit-delete path and the
// process-exit path funnel through here.
func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[s.name]; !ok || cur != s {
		return
	}
	delete(m.sessions, s.name)
	for i, name := range m.order {
		if name == s.name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.metrics != nil {
		m.metrics.TerminalsActive.Set(float64(len(m.sessions)))
	}
}

// resolveCwd maps a requested working directory onto a usable one.
// Relative paths resolve against the configured root. A missing directory
// silently degrades to the root dir — creation must not fail over it.
func (m *Manager) resolveCwd(requested string) string {
	if requested == "" {
		return m.cfg.RootDir
	}
	path := requested
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.cfg.RootDir, path)
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return path
	}
	m.logger.Warn("requested cwd does not exist, falling back",
		zap.String("requested", requested),
		zap.String("fallback", m.cfg.RootDir),
	)
	return m.cfg.RootDir
}

// buildEnv layers the manager's configured environment and per-session
// overrides on top of the server's own.
func (m *Manager) buildEnv(extra map[string]string) []string {
	env := os.Environ()
	env = append(env, "TERM=xterm-256color")
	for k, v := range m.cfg.Env {
		env = append(env, k+"="+v)
	}
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

// nextName returns the smallest positive integer, as a string, not used
// by any live session. Scanning instead of counting keeps names low and
// reusable under churn, so client-side terminal tabs stay stable.
func nextName(sessions map[string]*Session) string {
	for i := 1; ; i++ {
		name := strconv.Itoa(i)
		if _, ok := sessions[name]; !ok {
			return name
		}
	}
}

// defaultCommand picks the shell argv: configured command, then $SHELL,
// then /bin/bash.
func defaultCommand(configured []string) []string {
	if len(configured) > 0 {
		return configured
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		return []string{shell}
	}
	return []string{"/bin/bash"}
}
