package audioanalysis_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"clipper/internal/audioanalysis"
	"clipper/internal/logging"
	"clipper/internal/services"
	"clipper/internal/services/mediakit"
	"clipper/internal/services/transcriber"
	"clipper/internal/testsupport"
)

type fakeProber struct {
	duration float64
	err      error
}

func (f *fakeProber) Probe(context.Context, string) (mediakit.ProbeResult, error) {
	if f.err != nil {
		return mediakit.ProbeResult{}, f.err
	}
	return mediakit.ProbeResult{Duration: f.duration}, nil
}

func (f *fakeProber) Healthy(context.Context) error { return nil }

type fakeTranscriber struct {
	segments []transcriber.Segment
	err      error
}

func (f *fakeTranscriber) Transcribe(context.Context, string, string) ([]transcriber.Segment, error) {
	return f.segments, f.err
}

func (f *fakeTranscriber) Healthy(context.Context) error { return nil }

func TestAnalyzerMeasuresAudioAndSavesTranscript(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	audioPath := testsupport.WriteFile(t, filepath.Join(testsupport.BaseDir(cfg), "audio.wav"), "pcm")
	job := testsupport.NewJob(t, store, "city timelapse", audioPath)
	job.WorkDir = filepath.Join(cfg.Paths.WorkDir, job.ID)
	testsupport.WriteFile(t, filepath.Join(job.WorkDir, ".keep"), "")

	segments := []transcriber.Segment{
		{Start: 0, End: 2.5, Text: "hello world", Words: []transcriber.Word{
			{Word: "hello", Start: 0, End: 1.1},
			{Word: "world", Start: 1.2, End: 2.5},
		}},
	}
	analyzer := audioanalysis.NewAnalyzerWithDependencies(cfg, store, logging.NewNop(),
		&fakeProber{duration: 42}, &fakeTranscriber{segments: segments})

	if err := analyzer.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if job.AudioDuration != 42 {
		t.Fatalf("audio duration = %v, want 42", job.AudioDuration)
	}
	if want := 42 + cfg.Pipeline.PaddingSeconds; job.TargetDuration != want {
		t.Fatalf("target duration = %v, want %v", job.TargetDuration, want)
	}
	loaded, err := transcriber.LoadSegments(job.TranscriptPath)
	if err != nil {
		t.Fatalf("LoadSegments: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Text != "hello world" {
		t.Fatalf("unexpected transcript: %+v", loaded)
	}

	done, err := analyzer.Done(context.Background(), job)
	if err != nil {
		t.Fatalf("Done: %v", err)
	}
	if !done {
		t.Fatal("expected Done after successful execution")
	}
}

func TestAnalyzerRejectsZeroDurationAudio(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	audioPath := testsupport.WriteFile(t, filepath.Join(testsupport.BaseDir(cfg), "audio.wav"), "pcm")
	job := testsupport.NewJob(t, store, "city timelapse", audioPath)
	job.WorkDir = filepath.Join(cfg.Paths.WorkDir, job.ID)

	analyzer := audioanalysis.NewAnalyzerWithDependencies(cfg, store, logging.NewNop(),
		&fakeProber{duration: 0}, &fakeTranscriber{})

	err := analyzer.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrProcessing) {
		t.Fatalf("expected processing error, got %v", err)
	}
}

func TestAnalyzerRequiresAudioFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job := testsupport.NewJob(t, store, "city timelapse", filepath.Join(testsupport.BaseDir(cfg), "missing.wav"))
	analyzer := audioanalysis.NewAnalyzerWithDependencies(cfg, store, logging.NewNop(),
		&fakeProber{duration: 42}, &fakeTranscriber{})

	err := analyzer.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
