package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

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

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	daemon     *daemon.Daemon
	apiAddr    string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
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
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon start: %v", err)
	}
	t.Cleanup(d.Stop)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		apiAddr:    d.APIAddr(),
		configPath: configPath,
	}
}

func runCLI(t *testing.T, args []string, server, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--server", server}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nwork_dir = %q\npool_dir = %q\nlog_dir = %q\napi_bind = %q\n\n"+
			"[services]\nmediakit_url = %q\nshorts_url = %q\ndownloader_url = %q\ntranscriber_url = %q\ndetector_url = %q\n",
		cfg.Paths.WorkDir,
		cfg.Paths.PoolDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
		cfg.Services.MediaKitURL,
		cfg.Services.ShortsURL,
		cfg.Services.DownloaderURL,
		cfg.Services.TranscriberURL,
		cfg.Services.DetectorURL,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
