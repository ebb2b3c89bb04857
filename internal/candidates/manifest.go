package candidates

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"clipper/internal/fileutil"
)

// Clip states within a manifest.
const (
	ClipPending  = "pending"
	ClipApproved = "approved"
	ClipRejected = "rejected"
	ClipReused   = "reused"
)

// Clip is one candidate tracked across the fetch and download stages.
type Clip struct {
	ClipID   string  `json:"clip_id"`
	Title    string  `json:"title,omitempty"`
	Duration float64 `json:"duration"`
	// State is pending until the download stage settles the clip.
	State string `json:"state"`
	// LocalPath points at the approved pool file once settled.
	LocalPath string `json:"local_path,omitempty"`
	// MeasuredDuration is the duration of the validated local file, which
	// can differ from the provider's advertised duration.
	MeasuredDuration float64 `json:"measured_duration,omitempty"`
	Reason           string  `json:"reason,omitempty"`
}

// Manifest is the per-job candidate list written into the work directory.
type Manifest struct {
	JobID     string    `json:"job_id"`
	Query     string    `json:"query"`
	CreatedAt time.Time `json:"created_at"`
	Clips     []Clip    `json:"clips"`
}

// Settled reports whether every clip reached a terminal state.
func (m *Manifest) Settled() bool {
	for _, clip := range m.Clips {
		if clip.State == ClipPending || clip.State == "" {
			return false
		}
	}
	return true
}

// Usable returns the clips available for selection, with their measured
// durations.
func (m *Manifest) Usable() []Clip {
	out := make([]Clip, 0, len(m.Clips))
	for _, clip := range m.Clips {
		if (clip.State == ClipApproved || clip.State == ClipReused) && clip.LocalPath != "" {
			out = append(out, clip)
		}
	}
	return out
}

// Save writes the manifest atomically.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return fileutil.WriteAtomic(path, data, 0o644)
}

// LoadManifest reads a manifest written by Save.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &manifest, nil
}
