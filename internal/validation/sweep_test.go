package validation_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"clipper/internal/fileutil"
	"clipper/internal/ledger"
	"clipper/internal/validation"
)

func writeAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestSweepRemovesOrphanedValidatingFiles(t *testing.T) {
	root := t.TempDir()
	pool := validation.NewPool(root)
	store, err := ledger.Open(root)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	sweeper := validation.NewSweeper(pool, store, nil)

	deadJobFile := pool.ValidatingPath("dead-job", "clip-1")
	liveJobFile := pool.ValidatingPath("live-job", "clip-2")
	freshFile := pool.ValidatingPath("gone-job", "clip-3")
	writeAged(t, deadJobFile, 2*time.Hour)
	writeAged(t, liveJobFile, 2*time.Hour)
	writeAged(t, freshFile, time.Minute)

	result, err := sweeper.Sweep(context.Background(), map[string]bool{"live-job": true}, time.Hour)
	if err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}
	if result.OrphanedValidating != 1 {
		t.Fatalf("removed %d validating files, want 1", result.OrphanedValidating)
	}
	if fileutil.Exists(deadJobFile) {
		t.Fatal("dead job's validating file survived")
	}
	if !fileutil.Exists(liveJobFile) {
		t.Fatal("active job's validating file removed")
	}
	if !fileutil.Exists(freshFile) {
		t.Fatal("fresh file removed before threshold")
	}
}

func TestSweepRemovesUndecidedWorkingFiles(t *testing.T) {
	root := t.TempDir()
	pool := validation.NewPool(root)
	store, err := ledger.Open(root)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.AddApproved(context.Background(), "decided", nil); err != nil {
		t.Fatalf("AddApproved: %v", err)
	}
	sweeper := validation.NewSweeper(pool, store, nil)

	undecidedRaw := filepath.Join(pool.RawDir(), "undecided.webm")
	decidedRaw := filepath.Join(pool.RawDir(), "decided.webm")
	undecidedTransform := pool.TransformPath("undecided")
	writeAged(t, undecidedRaw, 2*time.Hour)
	writeAged(t, decidedRaw, 2*time.Hour)
	writeAged(t, undecidedTransform, 2*time.Hour)

	result, err := sweeper.Sweep(context.Background(), nil, time.Hour)
	if err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}
	if result.OrphanedWorking != 2 {
		t.Fatalf("removed %d working files, want 2", result.OrphanedWorking)
	}
	if fileutil.Exists(undecidedRaw) || fileutil.Exists(undecidedTransform) {
		t.Fatal("undecided leftovers survived")
	}
	if !fileutil.Exists(decidedRaw) {
		t.Fatal("decided clip's leftover removed by the sweep")
	}
}
