package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServices()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.PoolDir, err = expandPath(c.Paths.PoolDir); err != nil {
		return fmt.Errorf("paths.pool_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeServices() {
	c.Services.MediaKitURL = strings.TrimRight(strings.TrimSpace(c.Services.MediaKitURL), "/")
	c.Services.ShortsURL = strings.TrimRight(strings.TrimSpace(c.Services.ShortsURL), "/")
	c.Services.DownloaderURL = strings.TrimRight(strings.TrimSpace(c.Services.DownloaderURL), "/")
	c.Services.TranscriberURL = strings.TrimRight(strings.TrimSpace(c.Services.TranscriberURL), "/")
	c.Services.DetectorURL = strings.TrimRight(strings.TrimSpace(c.Services.DetectorURL), "/")
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFmt
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
