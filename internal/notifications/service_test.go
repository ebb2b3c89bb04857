package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clipper/internal/config"
	"clipper/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyJobCompleted(context.Background(), "job-1", "city timelapse", "/out/final.mp4", 90*time.Second); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	var captured struct {
		title    string
		tags     string
		priority string
		body     string
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		captured.title = r.Header.Get("Title")
		captured.tags = r.Header.Get("Tags")
		captured.priority = r.Header.Get("Priority")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		captured.body = string(body)
		_ = r.Body.Close()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.RequestTimeout = 5
	cfg.Notifications.JobCompleted = true
	cfg.Notifications.JobFailed = true
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyJobCompleted(context.Background(), "job-1", "ocean waves", "/out/final.mp4", 95*time.Second); err != nil {
		t.Fatalf("notification returned error: %v", err)
	}
	if captured.title != "Clipper - Complete" {
		t.Fatalf("expected completion title, got %q", captured.title)
	}
	if captured.body != "Video ready: ocean waves (1m35s)\nFile: /out/final.mp4" {
		t.Fatalf("unexpected completion message: %q", captured.body)
	}
	if captured.tags != "clipper,job,completed" {
		t.Fatalf("unexpected tags: %q", captured.tags)
	}
	if captured.priority != "high" {
		t.Fatalf("expected high priority, got %q", captured.priority)
	}

	if err := svc.NotifyJobFailed(context.Background(), "job-2", "ocean waves", "assembled duration outside tolerance"); err != nil {
		t.Fatalf("notification returned error: %v", err)
	}
	if captured.title != "Clipper - Failed" {
		t.Fatalf("expected failure title, got %q", captured.title)
	}
	if captured.body != "Job failed: ocean waves\nassembled duration outside tolerance\nJob: job-2" {
		t.Fatalf("unexpected failure message: %q", captured.body)
	}
}

func TestNtfyServiceIgnoresSuppressedEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.JobCompleted = false
	cfg.Notifications.JobFailed = false
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyJobCompleted(context.Background(), "job-1", "quiet", "", time.Minute); err != nil {
		t.Fatalf("expected no error for suppressed event, got %v", err)
	}
	if err := svc.NotifyJobFailed(context.Background(), "job-1", "quiet", "boom"); err != nil {
		t.Fatalf("expected no error for suppressed event, got %v", err)
	}
}
