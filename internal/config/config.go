package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	// WorkDir holds per-job staging directories.
	WorkDir string `toml:"work_dir"`
	// PoolDir is the shared candidate pool root (raw/transform/validating/approved).
	PoolDir  string `toml:"pool_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Services contains endpoints for the external collaborators.
type Services struct {
	MediaKitURL    string `toml:"mediakit_url"`
	ShortsURL      string `toml:"shorts_url"`
	DownloaderURL  string `toml:"downloader_url"`
	TranscriberURL string `toml:"transcriber_url"`
	DetectorURL    string `toml:"detector_url"`
	// RequestTimeout bounds a single HTTP request, in seconds.
	RequestTimeout int `toml:"request_timeout"`
	// PollInterval is the async-job polling cadence, in seconds.
	PollInterval int `toml:"poll_interval"`
	// PollTimeout bounds one submit-and-poll cycle, in seconds. Zero disables it.
	PollTimeout int `toml:"poll_timeout"`
}

// Pipeline contains tunables for candidate selection and assembly.
type Pipeline struct {
	// PaddingSeconds is the trailing padding added to the audio duration
	// when computing the target video duration.
	PaddingSeconds float64 `toml:"padding_seconds"`
	// DurationTolerance is the allowed deviation between the final asset
	// duration and audio+padding, in seconds.
	DurationTolerance float64 `toml:"duration_tolerance"`
	// KeyframeTolerance is the allowed shortfall below the audio duration
	// before a trim result is fatal, in seconds.
	KeyframeTolerance float64 `toml:"keyframe_tolerance"`
	MaxCandidates     int     `toml:"max_candidates"`
	TargetAspect      string  `toml:"target_aspect"`
	Language          string  `toml:"language"`
}

// Workflow contains daemon timing and recovery intervals.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	// RecoveryInterval is the orphan scan cadence, in seconds.
	RecoveryInterval int `toml:"recovery_interval"`
	// StaleThreshold is the age beyond which a non-terminal job is an
	// orphan candidate, in seconds.
	StaleThreshold int `toml:"stale_threshold"`
	// JobTTLHours controls job record expiry.
	JobTTLHours int `toml:"job_ttl_hours"`
	// CheckpointTTLHours controls checkpoint expiry. Kept longer than the
	// job TTL so recovery can outlive transient job unavailability.
	CheckpointTTLHours int `toml:"checkpoint_ttl_hours"`
	// SweepInterval is the validation-pool sweep cadence, in seconds.
	SweepInterval int `toml:"sweep_interval"`
	// SweepMaxAge is the age after which unclaimed in-flight validation
	// files are purged, in seconds.
	SweepMaxAge int `toml:"sweep_max_age"`
	// BackoffBase and BackoffMax bound the capped-exponential retry delay,
	// in seconds.
	BackoffBase int `toml:"backoff_base"`
	BackoffMax  int `toml:"backoff_max"`
	// BackoffCeiling is the optional overall wall-clock ceiling for a
	// retried call, in seconds. Zero retries forever.
	BackoffCeiling int `toml:"backoff_ceiling"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobCompleted   bool   `toml:"job_completed"`
	JobFailed      bool   `toml:"job_failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for clipper.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Services      Services      `toml:"services"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipper/config.toml")
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string { return sampleConfig }

// ExpandPath resolves a leading ~ against the user's home directory.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon requires.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.WorkDir,
		c.Paths.PoolDir,
		c.Paths.LogDir,
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if path == "~" {
			return home, nil
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}
