package transcriber

import (
	"encoding/json"
	"fmt"
	"os"

	"clipper/internal/fileutil"
)

type transcriptPayload struct {
	Segments []Segment `json:"segments"`
}

// SaveSegments writes a transcript to disk atomically so a crash mid-write
// never leaves a truncated file for the subtitle stage.
func SaveSegments(path string, segments []Segment) error {
	data, err := json.MarshalIndent(transcriptPayload{Segments: segments}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	return fileutil.WriteAtomic(path, data, 0o644)
}

// LoadSegments reads a transcript produced by SaveSegments.
func LoadSegments(path string) ([]Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var payload transcriptPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse transcript %s: %w", path, err)
	}
	return payload.Segments, nil
}
