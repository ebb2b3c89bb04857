package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateServices(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		return errors.New("paths.work_dir must be set")
	}
	if strings.TrimSpace(c.Paths.PoolDir) == "" {
		return errors.New("paths.pool_dir must be set")
	}
	return nil
}

func (c *Config) validateServices() error {
	required := map[string]string{
		"services.mediakit_url":    c.Services.MediaKitURL,
		"services.shorts_url":      c.Services.ShortsURL,
		"services.downloader_url":  c.Services.DownloaderURL,
		"services.transcriber_url": c.Services.TranscriberURL,
		"services.detector_url":    c.Services.DetectorURL,
	}
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			defaultPath, err := DefaultConfigPath()
			if err != nil {
				defaultPath = "~/.config/clipper/config.toml"
			}
			return fmt.Errorf("%s is required. Edit %s (create with 'clipper config init')", key, defaultPath)
		}
	}
	if c.Services.RequestTimeout <= 0 {
		return errors.New("services.request_timeout must be positive")
	}
	if c.Services.PollInterval <= 0 {
		return errors.New("services.poll_interval must be positive")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.PaddingSeconds < 0 {
		return errors.New("pipeline.padding_seconds must not be negative")
	}
	if c.Pipeline.DurationTolerance <= 0 {
		return errors.New("pipeline.duration_tolerance must be positive")
	}
	if c.Pipeline.KeyframeTolerance < 0 {
		return errors.New("pipeline.keyframe_tolerance must not be negative")
	}
	if c.Pipeline.MaxCandidates <= 0 {
		return errors.New("pipeline.max_candidates must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	positive := map[string]int{
		"workflow.queue_poll_interval": c.Workflow.QueuePollInterval,
		"workflow.heartbeat_interval":  c.Workflow.HeartbeatInterval,
		"workflow.heartbeat_timeout":   c.Workflow.HeartbeatTimeout,
		"workflow.recovery_interval":   c.Workflow.RecoveryInterval,
		"workflow.stale_threshold":     c.Workflow.StaleThreshold,
		"workflow.job_ttl_hours":       c.Workflow.JobTTLHours,
		"workflow.backoff_base":        c.Workflow.BackoffBase,
		"workflow.backoff_max":         c.Workflow.BackoffMax,
	}
	for key, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must exceed workflow.heartbeat_interval")
	}
	if c.Workflow.CheckpointTTLHours < c.Workflow.JobTTLHours {
		return errors.New("workflow.checkpoint_ttl_hours must not be below workflow.job_ttl_hours")
	}
	if c.Workflow.BackoffCeiling < 0 {
		return errors.New("workflow.backoff_ceiling must not be negative")
	}
	return nil
}
