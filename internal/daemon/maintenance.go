package daemon

import (
	"context"
	"log/slog"
	"time"

	"clipper/internal/logging"
	"clipper/internal/queue"
)

// maintenanceLoop periodically purges expired jobs and checkpoints and
// sweeps orphaned files out of the pool working directories.
func (d *Daemon) maintenanceLoop(ctx context.Context) {
	interval := time.Duration(d.cfg.Workflow.SweepInterval) * time.Second
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger := d.logger.With(logging.String(logging.FieldComponent, "daemon-maintenance"))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runMaintenance(ctx, logger)
		}
	}
}

func (d *Daemon) runMaintenance(ctx context.Context, logger *slog.Logger) {
	purged, err := d.store.PurgeExpired(ctx)
	if err != nil {
		logger.Warn("expiry purge failed", logging.Error(err))
	} else if purged > 0 {
		logger.Info("purged expired jobs", logging.Int64("count", purged))
	}

	active, err := d.activeJobIDs(ctx)
	if err != nil {
		logger.Warn("pool sweep skipped, could not list active jobs", logging.Error(err))
		return
	}
	maxAge := time.Duration(d.cfg.Workflow.SweepMaxAge) * time.Second
	result, err := d.sweeper.Sweep(ctx, active, maxAge)
	if err != nil {
		logger.Warn("pool sweep failed", logging.Error(err))
		return
	}
	if result.OrphanedValidating > 0 || result.OrphanedWorking > 0 {
		logger.Info("pool sweep removed orphans",
			logging.Int("validating", result.OrphanedValidating),
			logging.Int("working", result.OrphanedWorking),
		)
	}
}

func (d *Daemon) activeJobIDs(ctx context.Context) (map[string]bool, error) {
	statuses := append([]queue.Status{queue.StatusQueued}, queue.StageOrder...)
	jobs, err := d.store.List(ctx, 0, statuses...)
	if err != nil {
		return nil, err
	}
	active := make(map[string]bool, len(jobs))
	for _, job := range jobs {
		active[job.ID] = true
	}
	return active, nil
}
