package ledger_test

import (
	"context"
	"errors"
	"testing"

	"clipper/internal/ledger"
)

func openLedger(t *testing.T) *ledger.Store {
	t.Helper()
	store, err := ledger.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close returned error: %v", err)
		}
	})
	return store
}

func TestDecisionUnknownClip(t *testing.T) {
	store := openLedger(t)
	ctx := context.Background()

	entry, err := store.Decision(ctx, "clip-unknown")
	if err != nil {
		t.Fatalf("Decision returned error: %v", err)
	}
	if entry != nil {
		t.Fatalf("expected nil entry for unjudged clip, got %+v", entry)
	}
	rejected, err := store.IsRejected(ctx, "clip-unknown")
	if err != nil {
		t.Fatalf("IsRejected returned error: %v", err)
	}
	if rejected {
		t.Fatal("unjudged clip reported rejected")
	}
}

func TestApproveThenLookup(t *testing.T) {
	store := openLedger(t)
	ctx := context.Background()

	if err := store.AddApproved(ctx, "clip-1", map[string]string{"source": "shorts"}); err != nil {
		t.Fatalf("AddApproved returned error: %v", err)
	}
	approved, err := store.IsApproved(ctx, "clip-1")
	if err != nil {
		t.Fatalf("IsApproved returned error: %v", err)
	}
	if !approved {
		t.Fatal("expected clip-1 approved")
	}
	entry, err := store.Decision(ctx, "clip-1")
	if err != nil {
		t.Fatalf("Decision returned error: %v", err)
	}
	if entry.Decision != ledger.DecisionApproved {
		t.Fatalf("decision = %q, want approved", entry.Decision)
	}
	if entry.Metadata["source"] != "shorts" {
		t.Fatalf("metadata not persisted: %+v", entry.Metadata)
	}
	if entry.DecidedAt.IsZero() {
		t.Fatal("DecidedAt not recorded")
	}
}

func TestRejectionIsPermanent(t *testing.T) {
	store := openLedger(t)
	ctx := context.Background()

	if err := store.AddRejected(ctx, "clip-2", "no_speech", 0.92, nil); err != nil {
		t.Fatalf("AddRejected returned error: %v", err)
	}
	err := store.AddApproved(ctx, "clip-2", nil)
	if !errors.Is(err, ledger.ErrRejectedClip) {
		t.Fatalf("AddApproved on rejected clip returned %v, want ErrRejectedClip", err)
	}
	rejected, err := store.IsRejected(ctx, "clip-2")
	if err != nil {
		t.Fatalf("IsRejected returned error: %v", err)
	}
	if !rejected {
		t.Fatal("rejection was lost after failed approval")
	}
	entry, err := store.Decision(ctx, "clip-2")
	if err != nil {
		t.Fatalf("Decision returned error: %v", err)
	}
	if entry.Reason != "no_speech" || entry.Confidence != 0.92 {
		t.Fatalf("rejection detail not preserved: %+v", entry)
	}
}

func TestRejectionDemotesApproval(t *testing.T) {
	store := openLedger(t)
	ctx := context.Background()

	if err := store.AddApproved(ctx, "clip-3", nil); err != nil {
		t.Fatalf("AddApproved returned error: %v", err)
	}
	if err := store.AddRejected(ctx, "clip-3", "manual_review", 1, nil); err != nil {
		t.Fatalf("AddRejected returned error: %v", err)
	}
	entry, err := store.Decision(ctx, "clip-3")
	if err != nil {
		t.Fatalf("Decision returned error: %v", err)
	}
	if entry.Decision != ledger.DecisionRejected {
		t.Fatalf("decision = %q, want rejected after demotion", entry.Decision)
	}
}

func TestStats(t *testing.T) {
	store := openLedger(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := store.AddApproved(ctx, id, nil); err != nil {
			t.Fatalf("AddApproved(%s) returned error: %v", id, err)
		}
	}
	if err := store.AddRejected(ctx, "d", "black_frames", 0.7, nil); err != nil {
		t.Fatalf("AddRejected returned error: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.Approved != 3 || stats.Rejected != 1 {
		t.Fatalf("stats = %+v, want 3 approved / 1 rejected", stats)
	}
}
