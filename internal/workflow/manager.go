package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/notifications"
	"clipper/internal/queue"
	"clipper/internal/stage"
)

// Manager coordinates queue processing using registered stage handlers.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service

	handlers map[queue.Status]stage.Handler

	pollInterval      time.Duration
	retryInterval     time.Duration
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// NewManager constructs a workflow manager with the given stage handlers.
// Handlers are registered by the stage name they report.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service, handlers ...stage.Handler) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	m := &Manager{
		cfg:               cfg,
		store:             store,
		logger:            logging.NewComponentLogger(logger, "workflow-manager"),
		notifier:          notifier,
		handlers:          make(map[queue.Status]stage.Handler, len(queue.StageOrder)),
		pollInterval:      time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		retryInterval:     time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		heartbeatInterval: time.Duration(cfg.Workflow.HeartbeatInterval) * time.Second,
		heartbeatTimeout:  time.Duration(cfg.Workflow.HeartbeatTimeout) * time.Second,
	}
	for _, handler := range handlers {
		m.handlers[handler.Name()] = handler
	}
	return m
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("workflow already running")
	}
	for _, stageName := range queue.StageOrder {
		if _, ok := m.handlers[stageName]; !ok {
			return fmt.Errorf("no handler registered for stage %s", stageName)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for the in-flight job to
// observe cancellation.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Running reports whether the manager's run loop is active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// LastError returns the most recent processing error, if any.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// Health aggregates the registered handlers' readiness checks in stage order.
func (m *Manager) Health(ctx context.Context) []stage.Health {
	checks := make([]stage.Health, 0, len(queue.StageOrder))
	for _, stageName := range queue.StageOrder {
		handler, ok := m.handlers[stageName]
		if !ok {
			checks = append(checks, stage.Unhealthy(string(stageName), "no handler registered"))
			continue
		}
		checks = append(checks, handler.HealthCheck(ctx))
	}
	return checks
}
