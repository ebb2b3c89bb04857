package selection_test

import (
	"errors"
	"math/rand"
	"testing"

	"clipper/internal/selection"
)

func clips(durations ...float64) []selection.Clip {
	out := make([]selection.Clip, len(durations))
	for i, d := range durations {
		out[i] = selection.Clip{
			ID:       string(rune('a' + i)),
			Path:     "/pool/approved/clip.mp4",
			Duration: d,
		}
	}
	return out
}

func TestPlanStopsAtClipCrossingTarget(t *testing.T) {
	planner := selection.NewPlanner(rand.New(rand.NewSource(3)))
	plan, err := planner.Plan(clips(10, 15, 8, 20), 30)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if plan.TotalDuration < 30 {
		t.Fatalf("total duration = %v, want >= 30", plan.TotalDuration)
	}
	if plan.Shortfall {
		t.Fatal("plan flagged shortfall with target reached")
	}
	// The clip that crossed the target ends the plan; without it the
	// running total must still be short.
	last := plan.Clips[len(plan.Clips)-1]
	if plan.TotalDuration-last.Duration >= 30 {
		t.Fatalf("plan kept accumulating past the target: %+v", plan.Clips)
	}
}

func TestPlanNilSourceStillShuffles(t *testing.T) {
	pool := clips(1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1)

	planner := selection.NewPlanner(nil)
	leading := map[string]bool{}
	for i := 0; i < 64; i++ {
		plan, err := planner.Plan(pool, 2)
		if err != nil {
			t.Fatalf("Plan returned error: %v", err)
		}
		leading[plan.Clips[0].ID] = true
	}
	if len(leading) < 2 {
		t.Fatalf("first clip identical across runs, leading = %v", leading)
	}
}

func TestPlanShortfallWhenPoolExhausted(t *testing.T) {
	planner := selection.NewPlanner(nil)
	plan, err := planner.Plan(clips(5, 5), 30)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if !plan.Shortfall {
		t.Fatal("expected shortfall with 10s of pool for a 30s target")
	}
	if len(plan.Clips) != 2 || plan.TotalDuration != 10 {
		t.Fatalf("plan = %d clips / %vs, want all clips selected", len(plan.Clips), plan.TotalDuration)
	}
}

func TestPlanEmptyPool(t *testing.T) {
	planner := selection.NewPlanner(rand.New(rand.NewSource(1)))
	_, err := planner.Plan(nil, 30)
	if !errors.Is(err, selection.ErrNoCandidates) {
		t.Fatalf("Plan returned %v, want ErrNoCandidates", err)
	}
}

func TestPlanShufflesDeterministicallyPerSeed(t *testing.T) {
	pool := clips(10, 15, 8, 20, 6, 12)

	first, err := selection.NewPlanner(rand.New(rand.NewSource(42))).Plan(pool, 25)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	second, err := selection.NewPlanner(rand.New(rand.NewSource(42))).Plan(pool, 25)
	if err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	if len(first.Clips) != len(second.Clips) {
		t.Fatalf("same seed produced different plan sizes: %d vs %d", len(first.Clips), len(second.Clips))
	}
	for i := range first.Clips {
		if first.Clips[i].ID != second.Clips[i].ID {
			t.Fatalf("same seed produced different orders at %d: %s vs %s", i, first.Clips[i].ID, second.Clips[i].ID)
		}
	}
	if first.TotalDuration < 25 && !first.Shortfall {
		t.Fatalf("plan under target without shortfall: %v", first.TotalDuration)
	}
}

func TestPlanDoesNotMutateInput(t *testing.T) {
	pool := clips(10, 15, 8, 20)
	snapshot := make([]selection.Clip, len(pool))
	copy(snapshot, pool)

	if _, err := selection.NewPlanner(rand.New(rand.NewSource(7))).Plan(pool, 30); err != nil {
		t.Fatalf("Plan returned error: %v", err)
	}
	for i := range pool {
		if pool[i] != snapshot[i] {
			t.Fatalf("input pool mutated at %d", i)
		}
	}
}
