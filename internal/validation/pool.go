package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const processingSuffix = "_PROCESSING_.mp4"

// Pool models the shared candidate directory tree. Every clip moves through
// raw, transform, and validating before landing in approved; all moves are
// single renames, so a clip is observable in exactly one directory at a time.
type Pool struct {
	Root string
}

// NewPool returns a pool rooted at dir.
func NewPool(dir string) Pool {
	return Pool{Root: dir}
}

func (p Pool) RawDir() string        { return filepath.Join(p.Root, "raw") }
func (p Pool) TransformDir() string  { return filepath.Join(p.Root, "transform") }
func (p Pool) ValidatingDir() string { return filepath.Join(p.Root, "validating") }
func (p Pool) ApprovedDir() string   { return filepath.Join(p.Root, "approved") }

// EnsureDirectories creates the pool tree.
func (p Pool) EnsureDirectories() error {
	for _, dir := range []string{p.RawDir(), p.TransformDir(), p.ValidatingDir(), p.ApprovedDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure pool directory %s: %w", dir, err)
		}
	}
	return nil
}

// TransformPath is the normalized working copy for a clip.
func (p Pool) TransformPath(clipID string) string {
	return filepath.Join(p.TransformDir(), clipID+".mp4")
}

// ValidatingPath tags the working file with the owning job so the sweep can
// tell an in-flight validation from an orphan.
func (p Pool) ValidatingPath(jobID, clipID string) string {
	return filepath.Join(p.ValidatingDir(), jobID+"_"+clipID+processingSuffix)
}

// ApprovedPath is the final resting place of an accepted clip.
func (p Pool) ApprovedPath(clipID string) string {
	return filepath.Join(p.ApprovedDir(), clipID+".mp4")
}

// RawFiles returns any files in raw/ belonging to the clip, extension
// unknown because the downloader picks it.
func (p Pool) RawFiles(clipID string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(p.RawDir(), clipID+".*"))
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// parseValidatingName splits a validating filename into its owning job id
// and clip id. Job ids are UUIDs and never contain underscores, so the
// first underscore is the separator even when clip ids contain their own.
func parseValidatingName(name string) (jobID, clipID string, ok bool) {
	if !strings.HasSuffix(name, processingSuffix) {
		return "", "", false
	}
	trimmed := strings.TrimSuffix(name, processingSuffix)
	jobID, clipID, ok = strings.Cut(trimmed, "_")
	if !ok || jobID == "" || clipID == "" {
		return "", "", false
	}
	return jobID, clipID, true
}
