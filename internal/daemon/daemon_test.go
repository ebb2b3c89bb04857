package daemon_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"clipper/internal/api"
	"clipper/internal/config"
	"clipper/internal/daemon"
	"clipper/internal/ledger"
	"clipper/internal/logging"
	"clipper/internal/notifications"
	"clipper/internal/queue"
	"clipper/internal/stage"
	"clipper/internal/testsupport"
	"clipper/internal/workflow"
)

type noopStage struct {
	name queue.Status
}

func (s noopStage) Name() queue.Status { return s.name }

func (noopStage) Done(context.Context, *queue.Job) (bool, error) { return false, nil }

func (noopStage) Execute(context.Context, *queue.Job) error { return nil }

func (s noopStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(string(s.name))
}

func newTestDaemon(t *testing.T, opts ...testsupport.ConfigOption) *daemon.Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	decisions, err := ledger.Open(cfg.Paths.PoolDir)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() { decisions.Close() })

	handlers := make([]stage.Handler, 0, len(queue.StageOrder))
	for _, name := range queue.StageOrder {
		handlers = append(handlers, noopStage{name: name})
	}
	manager := workflow.NewManager(cfg, store, logging.NewNop(), notifications.NewService(cfg), handlers...)

	d, err := daemon.New(cfg, store, decisions, logging.NewNop(), manager)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	d := newTestDaemon(t)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	if d.APIAddr() == "" {
		t.Fatal("expected api server to be listening")
	}
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
	d.Stop()
	if status := d.Status(context.Background()); status.Running {
		t.Fatal("expected daemon stopped")
	}
}

func TestDaemonAPISubmitAndTrackJob(t *testing.T) {
	d := newTestDaemon(t)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	audioPath := testsupport.WriteFile(t, filepath.Join(t.TempDir(), "audio.wav"), "pcm")
	client := api.NewClient(d.APIAddr(), "")

	submitted, err := client.Submit(context.Background(), "city timelapse", audioPath)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if submitted.ID == "" {
		t.Fatal("expected job id")
	}

	deadline := time.Now().Add(10 * time.Second)
	var detail api.JobDetail
	for time.Now().Before(deadline) {
		detail, err = client.GetJob(context.Background(), submitted.ID)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if detail.Status == string(queue.StatusCompleted) {
			break
		}
		time.Sleep(25 * time.Millisecond)
	}
	if detail.Status != string(queue.StatusCompleted) {
		t.Fatalf("job status = %s, want completed", detail.Status)
	}
	if len(detail.Stages) != len(queue.StageOrder) {
		t.Fatalf("stage views = %d, want %d", len(detail.Stages), len(queue.StageOrder))
	}

	jobs, err := client.ListJobs(context.Background(), string(queue.StatusCompleted))
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != submitted.ID {
		t.Fatalf("unexpected job list: %+v", jobs)
	}

	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running {
		t.Fatal("expected daemon running")
	}
	if status.Queue.Completed != 1 {
		t.Fatalf("completed count = %d, want 1", status.Queue.Completed)
	}
	if len(status.Stages) != len(queue.StageOrder) {
		t.Fatalf("stage health count = %d, want %d", len(status.Stages), len(queue.StageOrder))
	}

	health, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if !health.Database.IntegrityCheck {
		t.Fatalf("expected database integrity, got %+v", health.Database)
	}

	removed, err := client.RetryFailed(context.Background())
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if removed != 0 {
		t.Fatalf("retried = %d, want 0", removed)
	}
	if err := client.Remove(context.Background(), submitted.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := client.GetJob(context.Background(), submitted.ID); err == nil {
		t.Fatal("expected removed job to be missing")
	}
}

func TestDaemonAPIRejectsBadToken(t *testing.T) {
	d := newTestDaemon(t, func(cfg *config.Config) {
		cfg.Paths.APIToken = "secret"
	})
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	unauthorized := api.NewClient(d.APIAddr(), "wrong")
	if _, err := unauthorized.Status(context.Background()); err == nil {
		t.Fatal("expected unauthorized error")
	}

	authorized := api.NewClient(d.APIAddr(), "secret")
	if _, err := authorized.Status(context.Background()); err != nil {
		t.Fatalf("Status with token: %v", err)
	}
}
