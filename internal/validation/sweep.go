package validation

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clipper/internal/fileutil"
	"clipper/internal/ledger"
	"clipper/internal/logging"
)

// LedgerReader is the read side of the decision ledger used by the sweep.
type LedgerReader interface {
	Decision(ctx context.Context, clipID string) (*ledger.Entry, error)
}

// SweepResult counts what a pool sweep removed.
type SweepResult struct {
	OrphanedValidating int
	OrphanedWorking    int
}

// Sweeper reclaims pool files abandoned by dead jobs: validating-tagged
// files whose owning job is no longer active, and raw/transform files old
// enough that no decision will ever be made for them.
type Sweeper struct {
	pool   Pool
	ledger LedgerReader
	logger *slog.Logger
}

// NewSweeper builds a sweeper over the pool.
func NewSweeper(pool Pool, ledger LedgerReader, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		pool:   pool,
		ledger: ledger,
		logger: logging.NewComponentLogger(logger, "pool-sweep"),
	}
}

// Sweep removes abandoned files older than maxAge. activeJobs holds the ids
// of jobs currently holding a lease; their validating files are never
// touched regardless of age.
func (s *Sweeper) Sweep(ctx context.Context, activeJobs map[string]bool, maxAge time.Duration) (SweepResult, error) {
	var result SweepResult
	cutoff := time.Now().Add(-maxAge)

	entries, err := os.ReadDir(s.pool.ValidatingDir())
	if err != nil && !os.IsNotExist(err) {
		return result, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		jobID, clipID, ok := parseValidatingName(entry.Name())
		if !ok {
			continue
		}
		if activeJobs[jobID] {
			continue
		}
		path := filepath.Join(s.pool.ValidatingDir(), entry.Name())
		if !olderThan(path, cutoff) {
			continue
		}
		if err := fileutil.RemoveIfExists(path); err != nil {
			s.logger.Warn("remove orphaned validating file", logging.String("path", path), logging.Error(err))
			continue
		}
		result.OrphanedValidating++
		s.logger.Info("removed orphaned validating file",
			logging.String(logging.FieldJobID, jobID),
			logging.String(logging.FieldClipID, clipID),
		)
	}

	for _, dir := range []string{s.pool.RawDir(), s.pool.TransformDir()} {
		removed, sweepErr := s.sweepUndecided(ctx, dir, cutoff)
		if sweepErr != nil {
			return result, sweepErr
		}
		result.OrphanedWorking += removed
	}
	return result, nil
}

func (s *Sweeper) sweepUndecided(ctx context.Context, dir string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		clipID := strings.TrimSuffix(name, filepath.Ext(name))
		path := filepath.Join(dir, name)
		if !olderThan(path, cutoff) {
			continue
		}
		entry, err := s.ledger.Decision(ctx, clipID)
		if err != nil {
			return removed, err
		}
		if entry != nil {
			// Only undecided leftovers are swept; the pipeline owns
			// cleanup for clips it has already judged.
			continue
		}
		if err := fileutil.RemoveIfExists(path); err != nil {
			s.logger.Warn("remove orphaned working file", logging.String("path", path), logging.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

func olderThan(path string, cutoff time.Time) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.ModTime().Before(cutoff)
}
