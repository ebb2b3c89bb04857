package detector_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clipper/internal/services/detector"
	"clipper/internal/services/remotejob"
)

func newDetector(t *testing.T, handler http.HandlerFunc) *detector.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return detector.NewClient(srv.URL,
		remotejob.WithPolling(time.Millisecond, time.Second))
}

func TestDetectDecodesFrameCounts(t *testing.T) {
	client := newDetector(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			fmt.Fprint(w, `{"id":"d-1"}`)
			return
		}
		fmt.Fprint(w, `{"status":"done","result":{"has_unwanted_content":true,"confidence":0.93,"frames_processed":120,"frames_with_content":110}}`)
	})

	result, err := client.Detect(context.Background(), "/pool/validating/job_clip_PROCESSING_.mp4")
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if !result.UnwantedContent || result.FramesProcessed != 120 || result.FramesWithContent != 110 {
		t.Fatalf("unexpected detection: %+v", result)
	}
}

func TestDetectSpeechFallsBackToSecondEngine(t *testing.T) {
	var engines []string
	client := newDetector(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var payload map[string]any
			_ = json.NewDecoder(r.Body).Decode(&payload)
			engine, _ := payload["engine"].(string)
			engines = append(engines, engine)
			if engine == detector.EnginePrimary {
				http.Error(w, "model load failed", http.StatusInternalServerError)
				return
			}
			fmt.Fprint(w, `{"id":"d-2"}`)
			return
		}
		fmt.Fprint(w, `{"status":"done","result":{"segments":[{"start":0.5,"end":3.2}]}}`)
	})

	segments, ok, err := client.DetectSpeech(context.Background(), "/in/audio.wav")
	if err != nil {
		t.Fatalf("DetectSpeech returned error: %v", err)
	}
	if !ok {
		t.Fatal("fallback engine succeeded but ok=false")
	}
	if len(segments) != 1 || segments[0].Start != 0.5 {
		t.Fatalf("segments = %+v", segments)
	}
	if len(engines) != 2 || engines[0] != detector.EnginePrimary || engines[1] != detector.EngineFallback {
		t.Fatalf("engine order = %v", engines)
	}
}

func TestDetectSpeechDegradesWhenBothEnginesFail(t *testing.T) {
	client := newDetector(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "vad unavailable", http.StatusServiceUnavailable)
	})

	segments, ok, err := client.DetectSpeech(context.Background(), "/in/audio.wav")
	if err != nil {
		t.Fatalf("DetectSpeech returned error: %v, want graceful degradation", err)
	}
	if ok || segments != nil {
		t.Fatalf("expected ok=false with no segments, got ok=%v segments=%v", ok, segments)
	}
}
