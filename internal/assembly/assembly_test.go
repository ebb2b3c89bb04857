package assembly_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"clipper/internal/assembly"
	"clipper/internal/queue"
	"clipper/internal/selection"
	"clipper/internal/services"
	"clipper/internal/services/mediakit"
	"clipper/internal/testsupport"
)

// fakeToolkit creates output files locally and reports configurable probe
// durations per path.
type fakeToolkit struct {
	durations map[string]float64
	concats   [][]string
	composes  []string
	trims     []float64
	failOp    string
	failErr   error
}

func (f *fakeToolkit) touch(path string) error {
	return os.WriteFile(path, []byte("mp4"), 0o644)
}

func (f *fakeToolkit) Probe(_ context.Context, path string) (mediakit.ProbeResult, error) {
	if f.failOp == "probe" {
		return mediakit.ProbeResult{}, f.failErr
	}
	return mediakit.ProbeResult{Duration: f.durations[path], Width: 1080, Height: 1920}, nil
}

func (f *fakeToolkit) Concat(_ context.Context, parts []string, dst string) error {
	if f.failOp == "concat" {
		return f.failErr
	}
	f.concats = append(f.concats, parts)
	return f.touch(dst)
}

func (f *fakeToolkit) Compose(_ context.Context, video, audio, subtitles, dst string) error {
	if f.failOp == "compose" {
		return f.failErr
	}
	f.composes = append(f.composes, subtitles)
	return f.touch(dst)
}

func (f *fakeToolkit) Trim(_ context.Context, src, dst string, seconds float64) error {
	if f.failOp == "trim" {
		return f.failErr
	}
	f.trims = append(f.trims, seconds)
	return f.touch(dst)
}

func (f *fakeToolkit) Healthy(context.Context) error { return nil }

func planJob(t *testing.T, durations ...float64) (*queue.Job, *selection.Plan) {
	t.Helper()
	workDir := t.TempDir()
	job := &queue.Job{ID: "job-1", WorkDir: workDir, AudioDuration: 42, TargetDuration: 43}

	plan := &selection.Plan{}
	for i, d := range durations {
		path := filepath.Join(workDir, "pool", string(rune('a'+i))+".mp4")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte("clip"), 0o644); err != nil {
			t.Fatalf("write clip: %v", err)
		}
		plan.Clips = append(plan.Clips, selection.Clip{ID: string(rune('a' + i)), Path: path, Duration: d})
		plan.TotalDuration += d
	}
	if err := selection.SavePlan(selection.PlanPath(workDir), plan); err != nil {
		t.Fatalf("save plan: %v", err)
	}
	return job, plan
}

func TestAssemblerConcatsPlannedClips(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job, plan := planJob(t, 20, 18, 12)
	toolkit := &fakeToolkit{durations: map[string]float64{
		filepath.Join(job.WorkDir, "assembled.mp4"): plan.TotalDuration,
	}}
	handler := assembly.NewAssemblerWithDependencies(cfg, store, nil, toolkit)
	ctx := context.Background()

	if err := handler.Execute(ctx, job); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if job.AssembledFile == "" {
		t.Fatal("assembled file not recorded")
	}
	if len(toolkit.concats) != 1 || len(toolkit.concats[0]) != 3 {
		t.Fatalf("concat calls = %v", toolkit.concats)
	}
	if done, _ := handler.Done(ctx, job); !done {
		t.Fatal("Done not satisfied after assembly")
	}
}

func TestAssemblerRejectsDurationDrift(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job, _ := planJob(t, 20, 18, 12) // plan totals 50
	toolkit := &fakeToolkit{durations: map[string]float64{
		filepath.Join(job.WorkDir, "assembled.mp4"): 40, // 10s drift, tolerance 2
	}}
	handler := assembly.NewAssemblerWithDependencies(cfg, store, nil, toolkit)

	err := handler.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrProcessing) {
		t.Fatalf("Execute returned %v, want processing error", err)
	}
}

func TestAssemblerRequiresPlan(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := assembly.NewAssemblerWithDependencies(cfg, store, nil, &fakeToolkit{})
	job := &queue.Job{ID: "job-2", WorkDir: t.TempDir()}

	err := handler.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("Execute returned %v, want validation error", err)
	}
}

func composedJob(t *testing.T) *queue.Job {
	t.Helper()
	job, _ := planJob(t, 20, 18, 12)
	job.AssembledFile = filepath.Join(job.WorkDir, "assembled.mp4")
	if err := os.WriteFile(job.AssembledFile, []byte("mp4"), 0o644); err != nil {
		t.Fatalf("write assembled: %v", err)
	}
	job.AudioPath = filepath.Join(job.WorkDir, "audio.wav")
	if err := os.WriteFile(job.AudioPath, []byte("wav"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return job
}

func TestComposerBurnsSubtitlesWhenPresent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := composedJob(t)
	subtitlePath := filepath.Join(job.WorkDir, "subtitles.ass")
	if err := os.WriteFile(subtitlePath, []byte("[Events]"), 0o644); err != nil {
		t.Fatalf("write subtitles: %v", err)
	}
	toolkit := &fakeToolkit{}
	handler := assembly.NewComposerWithDependencies(cfg, store, nil, toolkit)

	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if job.ComposedFile == "" {
		t.Fatal("composed file not recorded")
	}
	if len(toolkit.composes) != 1 || toolkit.composes[0] != subtitlePath {
		t.Fatalf("compose subtitle args = %v", toolkit.composes)
	}
}

func TestComposerProceedsWithoutSubtitles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := composedJob(t)
	toolkit := &fakeToolkit{}
	handler := assembly.NewComposerWithDependencies(cfg, store, nil, toolkit)

	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if toolkit.composes[0] != "" {
		t.Fatalf("subtitle path sent despite missing file: %q", toolkit.composes[0])
	}
}

func trimJob(t *testing.T) *queue.Job {
	t.Helper()
	job := composedJob(t)
	job.ComposedFile = filepath.Join(job.WorkDir, "composed.mp4")
	if err := os.WriteFile(job.ComposedFile, []byte("mp4"), 0o644); err != nil {
		t.Fatalf("write composed: %v", err)
	}
	return job
}

func TestTrimmerAcceptsWithinTolerance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := trimJob(t) // audio 42, target 43
	toolkit := &fakeToolkit{durations: map[string]float64{
		filepath.Join(job.WorkDir, "final.mp4"): 43.4,
	}}
	handler := assembly.NewTrimmerWithDependencies(cfg, store, nil, toolkit)

	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if job.FinalFile == "" {
		t.Fatal("final file not recorded")
	}
	if len(toolkit.trims) != 1 || toolkit.trims[0] != 43 {
		t.Fatalf("trim seconds = %v, want target duration", toolkit.trims)
	}
}

func TestTrimmerRejectsBeyondTolerance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := trimJob(t)
	toolkit := &fakeToolkit{durations: map[string]float64{
		filepath.Join(job.WorkDir, "final.mp4"): 48, // 5s over a 43s target
	}}
	handler := assembly.NewTrimmerWithDependencies(cfg, store, nil, toolkit)

	err := handler.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrProcessing) {
		t.Fatalf("Execute returned %v, want processing error", err)
	}
}

func TestTrimmerRejectsTruncatedNarration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := trimJob(t) // audio 42, keyframe tolerance 0.5 -> floor 41.5
	toolkit := &fakeToolkit{durations: map[string]float64{
		filepath.Join(job.WorkDir, "final.mp4"): 41.2,
	}}
	handler := assembly.NewTrimmerWithDependencies(cfg, store, nil, toolkit)

	err := handler.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrProcessing) {
		t.Fatalf("Execute returned %v, want processing error for truncation", err)
	}
}
