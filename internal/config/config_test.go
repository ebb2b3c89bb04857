package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig(t *testing.T) Config {
	t.Helper()
	base := t.TempDir()
	cfg := Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.PoolDir = filepath.Join(base, "pool")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Services.MediaKitURL = "http://127.0.0.1:8601"
	cfg.Services.ShortsURL = "http://127.0.0.1:8602"
	cfg.Services.DownloaderURL = "http://127.0.0.1:8603"
	cfg.Services.TranscriberURL = "http://127.0.0.1:8604"
	cfg.Services.DetectorURL = "http://127.0.0.1:8605"
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := validConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRequiresServiceURLs(t *testing.T) {
	cfg := validConfig(t)
	cfg.Services.DetectorURL = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "services.detector_url") {
		t.Fatalf("expected detector_url error, got %v", err)
	}
}

func TestValidateHeartbeatOrdering(t *testing.T) {
	cfg := validConfig(t)
	cfg.Workflow.HeartbeatTimeout = cfg.Workflow.HeartbeatInterval
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected heartbeat ordering error")
	}
}

func TestValidateCheckpointTTLOutlivesJobTTL(t *testing.T) {
	cfg := validConfig(t)
	cfg.Workflow.CheckpointTTLHours = cfg.Workflow.JobTTLHours - 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected checkpoint TTL error")
	}
}

func TestLoadParsesFileAndNormalizes(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "clipper.toml")
	content := `
[paths]
work_dir = "` + filepath.Join(base, "work") + `"
pool_dir = "` + filepath.Join(base, "pool") + `"
log_dir = "` + filepath.Join(base, "logs") + `"

[services]
mediakit_url = "http://mediakit.local/"
shorts_url = "http://shorts.local"
downloader_url = "http://dl.local"
transcriber_url = "http://stt.local"
detector_url = "http://detect.local"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatalf("expected resolved existing path, got %q exists=%v", resolved, exists)
	}
	if cfg.Services.MediaKitURL != "http://mediakit.local" {
		t.Fatalf("trailing slash not trimmed: %q", cfg.Services.MediaKitURL)
	}
	if cfg.Workflow.HeartbeatInterval != defaultHeartbeatInterval {
		t.Fatalf("defaults not applied: %d", cfg.Workflow.HeartbeatInterval)
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := validConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WorkDir, cfg.Paths.PoolDir, cfg.Paths.LogDir} {
		if _, err := os.Stat(dir); err != nil {
			t.Fatalf("directory %s missing: %v", dir, err)
		}
	}
}
