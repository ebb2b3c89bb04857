package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"clipper/internal/config"
	"clipper/internal/ledger"
	"clipper/internal/logging"
	"clipper/internal/notifications"
	"clipper/internal/queue"
	"clipper/internal/validation"
	"clipper/internal/workflow"
)

// Daemon coordinates the background services and enforces single-instance
// execution through a file lock.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *queue.Store
	decisions *ledger.Store
	workflow  *workflow.Manager
	recovery  *workflow.RecoveryScanner
	sweeper   *validation.Sweeper

	api *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	JobDBPath    string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, decisions *ledger.Store, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || decisions == nil || wf == nil {
		return nil, errors.New("daemon requires config, stores, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	pool := validation.NewPool(cfg.Paths.PoolDir)
	lockPath := filepath.Join(cfg.Paths.LogDir, "clipperd.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		decisions: decisions,
		workflow:  wf,
		recovery:  workflow.NewRecoveryScanner(cfg, store, logger),
		sweeper:   validation.NewSweeper(pool, decisions, logger),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}

	server, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = server
	return d, nil
}

// Start acquires the instance lock and launches every background service.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another clipper daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			d.workflow.Stop()
			cancel()
			_ = d.lock.Unlock()
			return err
		}
	}

	d.cancel = cancel
	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		d.recovery.Run(runCtx)
	}()
	go func() {
		defer d.wg.Done()
		d.maintenanceLoop(runCtx)
	}()

	d.running.Store(true)
	d.logger.Info("clipper daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background processing and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	d.wg.Wait()
	if d.api != nil {
		d.api.stop()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("clipper daemon stopped")
}

// Close stops the daemon and releases its stores.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.decisions != nil {
		errs = append(errs, d.decisions.Close())
	}
	if d.store != nil {
		errs = append(errs, d.store.Close())
	}
	return errors.Join(errs...)
}

// Submit validates and enqueues a new job.
func (d *Daemon) Submit(ctx context.Context, query, audioPath string) (*queue.Job, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query is required")
	}
	trimmed := strings.TrimSpace(audioPath)
	if trimmed == "" {
		return nil, errors.New("audio path is required")
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve audio path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat audio file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("audio path %q is a directory", absPath)
	}

	job, err := d.store.NewJob(ctx, query, absPath)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	d.logger.Info("job submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("query", query),
	)
	return job, nil
}

// ListJobs returns jobs filtered by optional statuses.
func (d *Daemon) ListJobs(ctx context.Context, statuses []queue.Status) ([]*queue.Job, error) {
	return d.store.List(ctx, 0, statuses...)
}

// GetJob returns one job, nil when absent.
func (d *Daemon) GetJob(ctx context.Context, id string) (*queue.Job, error) {
	return d.store.GetByID(ctx, id)
}

// Cancel flags a job for cancellation. Returns false when the job is missing
// or already terminal.
func (d *Daemon) Cancel(ctx context.Context, id string) (bool, error) {
	return d.store.RequestCancel(ctx, id)
}

// Remove deletes a job record and its checkpoint.
func (d *Daemon) Remove(ctx context.Context, id string) (bool, error) {
	job, err := d.store.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	if job.IsProcessing() {
		return false, fmt.Errorf("job %s is processing; cancel it first", id)
	}
	return d.store.Delete(ctx, id)
}

// RetryFailed requeues failed jobs, all of them when ids is empty.
func (d *Daemon) RetryFailed(ctx context.Context, ids []string) (int64, error) {
	return d.store.RetryFailed(ctx, ids...)
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// LedgerStats returns permanent clip decision counts.
func (d *Daemon) LedgerStats(ctx context.Context) (ledger.Stats, error) {
	return d.decisions.Stats(ctx)
}

// StageHealth reports each stage handler's readiness.
func (d *Daemon) StageHealth(ctx context.Context) []stageHealthView {
	checks := d.workflow.Health(ctx)
	out := make([]stageHealthView, 0, len(checks))
	for _, check := range checks {
		out = append(out, stageHealthView{
			Name:   check.Name,
			Ready:  check.Ready,
			Detail: check.Detail,
		})
	}
	return out
}

type stageHealthView struct {
	Name   string
	Ready  bool
	Detail string
}

// TestNotification sends a test push through the configured notifier.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		JobDBPath:    d.store.Path(),
		LockFilePath: d.lockPath,
	}
}

// APIAddr reports the bound API listener address, empty when disabled.
func (d *Daemon) APIAddr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}
