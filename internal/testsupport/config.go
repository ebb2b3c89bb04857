package testsupport

import (
	"path/filepath"
	"testing"

	"clipper/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.PoolDir = filepath.Join(base, "pool")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Services.MediaKitURL = "http://127.0.0.1:1"
	cfg.Services.ShortsURL = "http://127.0.0.1:1"
	cfg.Services.DownloaderURL = "http://127.0.0.1:1"
	cfg.Services.TranscriberURL = "http://127.0.0.1:1"
	cfg.Services.DetectorURL = "http://127.0.0.1:1"
	cfg.Services.PollInterval = 1
	cfg.Workflow.QueuePollInterval = 1

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithServiceURL points every collaborator endpoint at the given base URL,
// typically an httptest server.
func WithServiceURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Services.MediaKitURL = url
		cfg.Services.ShortsURL = url
		cfg.Services.DownloaderURL = url
		cfg.Services.TranscriberURL = url
		cfg.Services.DetectorURL = url
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}
