// Package config loads, validates, and normalizes the TOML configuration
// shared by the daemon and CLI. Load applies defaults first, then the config
// file, then normalization (tilde expansion, URL trimming) and validation.
package config
