package subtitles_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipper/internal/queue"
	"clipper/internal/services"
	"clipper/internal/services/detector"
	"clipper/internal/services/transcriber"
	"clipper/internal/subtitles"
	"clipper/internal/testsupport"
)

type fakeVAD struct {
	speech []detector.SpeechSegment
	ok     bool
	err    error
}

func (f *fakeVAD) DetectSpeech(context.Context, string) ([]detector.SpeechSegment, bool, error) {
	return f.speech, f.ok, f.err
}

func seedJob(t *testing.T, segments []transcriber.Segment) *queue.Job {
	t.Helper()
	workDir := t.TempDir()
	job := &queue.Job{ID: "job-1", WorkDir: workDir, AudioPath: filepath.Join(workDir, "audio.wav")}
	if err := os.WriteFile(job.AudioPath, []byte("wav"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	job.TranscriptPath = filepath.Join(workDir, "transcript.json")
	if err := transcriber.SaveSegments(job.TranscriptPath, segments); err != nil {
		t.Fatalf("save transcript: %v", err)
	}
	return job
}

func TestExecuteWritesAlignedSubtitles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	vad := &fakeVAD{speech: []detector.SpeechSegment{{Start: 1.0, End: 3.0}}, ok: true}
	handler := subtitles.NewHandlerWithDependencies(cfg, nil, vad)
	job := seedJob(t, []transcriber.Segment{{Start: 1.2, End: 2.9, Text: "hello world"}})
	ctx := context.Background()

	if done, _ := handler.Done(ctx, job); done {
		t.Fatal("Done before subtitle file exists")
	}
	if err := handler.Execute(ctx, job); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	data, err := os.ReadFile(subtitles.OutputPath(job.WorkDir))
	if err != nil {
		t.Fatalf("read subtitle file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "[Events]") {
		t.Fatal("missing ASS events section")
	}
	// Cue snapped to the detected speech region.
	if !strings.Contains(content, "Dialogue: 0,0:00:01.00,0:00:03.00,Default,,0,0,0,,hello world") {
		t.Fatalf("dialogue line missing or unaligned:\n%s", content)
	}
	if warning := job.StageState(queue.StatusGeneratingSubtitles).Warning; warning != "" {
		t.Fatalf("unexpected stage warning %q with working VAD", warning)
	}
	if done, _ := handler.Done(ctx, job); !done {
		t.Fatal("Done not satisfied after writing")
	}
}

func TestExecuteDegradesWithoutVAD(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	handler := subtitles.NewHandlerWithDependencies(cfg, nil, &fakeVAD{ok: false})
	job := seedJob(t, []transcriber.Segment{{Start: 0.5, End: 2.0, Text: "unaligned"}})

	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if warning := job.StageState(queue.StatusGeneratingSubtitles).Warning; warning == "" {
		t.Fatal("no warning recorded when VAD unavailable")
	}
	data, err := os.ReadFile(subtitles.OutputPath(job.WorkDir))
	if err != nil {
		t.Fatalf("read subtitle file: %v", err)
	}
	if !strings.Contains(string(data), "0:00:00.50,0:00:02.00") {
		t.Fatalf("cue timing changed without VAD:\n%s", data)
	}
}

func TestExecuteRequiresTranscript(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	handler := subtitles.NewHandlerWithDependencies(cfg, nil, &fakeVAD{})
	job := &queue.Job{ID: "job-2", WorkDir: t.TempDir()}

	err := handler.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("Execute returned %v, want validation error", err)
	}
}
