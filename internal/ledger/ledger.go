package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Decision is the permanent verdict recorded for a clip.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// ErrRejectedClip is returned when a caller tries to approve a clip that was
// already rejected. Rejection is a permanent negative cache.
var ErrRejectedClip = errors.New("clip is permanently rejected")

// Entry is a recorded decision for a clip id.
type Entry struct {
	ClipID     string
	Decision   Decision
	Reason     string
	Confidence float64
	DecidedAt  time.Time
	Metadata   map[string]string
}

// Stats aggregates ledger counts.
type Stats struct {
	Approved int
	Rejected int
}

// Store is the approved/rejected clip registry backed by SQLite. It lives
// alongside the shared candidate pool because its lifecycle spans all jobs.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database in the pool directory.
func Open(poolDir string) (*Store, error) {
	if err := os.MkdirAll(poolDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure pool directory: %w", err)
	}
	dbPath := filepath.Join(poolDir, "ledger.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS asset_decisions (
        clip_id TEXT PRIMARY KEY,
        decision TEXT NOT NULL,
        reason TEXT,
        confidence REAL NOT NULL DEFAULT 0,
        decided_at TEXT NOT NULL,
        metadata_json TEXT
    )`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create asset_decisions: %w", err)
	}
	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Decision returns the recorded entry for a clip, nil when unjudged.
func (s *Store) Decision(ctx context.Context, clipID string) (*Entry, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT clip_id, decision, reason, confidence, decided_at, metadata_json
         FROM asset_decisions WHERE clip_id = ?`,
		clipID,
	)
	var (
		entry       Entry
		decision    string
		reason      sql.NullString
		decidedRaw  string
		metadataRaw sql.NullString
	)
	if err := row.Scan(&entry.ClipID, &decision, &reason, &entry.Confidence, &decidedRaw, &metadataRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load decision: %w", err)
	}
	entry.Decision = Decision(decision)
	entry.Reason = reason.String
	if decided, err := time.Parse(time.RFC3339Nano, decidedRaw); err == nil {
		entry.DecidedAt = decided
	}
	if metadataRaw.Valid && metadataRaw.String != "" {
		if err := json.Unmarshal([]byte(metadataRaw.String), &entry.Metadata); err != nil {
			return nil, fmt.Errorf("decode decision metadata: %w", err)
		}
	}
	return &entry, nil
}

// IsRejected reports whether a clip id carries a permanent rejection.
func (s *Store) IsRejected(ctx context.Context, clipID string) (bool, error) {
	entry, err := s.Decision(ctx, clipID)
	if err != nil {
		return false, err
	}
	return entry != nil && entry.Decision == DecisionRejected, nil
}

// IsApproved reports whether a clip id was accepted by a previous validation.
func (s *Store) IsApproved(ctx context.Context, clipID string) (bool, error) {
	entry, err := s.Decision(ctx, clipID)
	if err != nil {
		return false, err
	}
	return entry != nil && entry.Decision == DecisionApproved, nil
}

// AddApproved records an approval. Approving an already-rejected clip is an
// error: rejection is permanent.
func (s *Store) AddApproved(ctx context.Context, clipID string, metadata map[string]string) error {
	rejected, err := s.IsRejected(ctx, clipID)
	if err != nil {
		return err
	}
	if rejected {
		return fmt.Errorf("%w: %s", ErrRejectedClip, clipID)
	}
	return s.upsert(ctx, Entry{
		ClipID:     clipID,
		Decision:   DecisionApproved,
		Confidence: 1,
		Metadata:   metadata,
	})
}

// AddRejected records a rejection with the detector's reason and confidence.
// A rejection may overwrite a prior approval (demotion); the reverse never
// happens.
func (s *Store) AddRejected(ctx context.Context, clipID, reason string, confidence float64, metadata map[string]string) error {
	return s.upsert(ctx, Entry{
		ClipID:     clipID,
		Decision:   DecisionRejected,
		Reason:     reason,
		Confidence: confidence,
		Metadata:   metadata,
	})
}

func (s *Store) upsert(ctx context.Context, entry Entry) error {
	var metadataJSON any
	if len(entry.Metadata) > 0 {
		data, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal decision metadata: %w", err)
		}
		metadataJSON = string(data)
	}
	var reason any
	if entry.Reason != "" {
		reason = entry.Reason
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO asset_decisions (clip_id, decision, reason, confidence, decided_at, metadata_json)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(clip_id) DO UPDATE SET
             decision = excluded.decision,
             reason = excluded.reason,
             confidence = excluded.confidence,
             decided_at = excluded.decided_at,
             metadata_json = excluded.metadata_json`,
		entry.ClipID,
		entry.Decision,
		reason,
		entry.Confidence,
		time.Now().UTC().Format(time.RFC3339Nano),
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}

// Stats returns approved/rejected counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT decision, COUNT(1) FROM asset_decisions GROUP BY decision`)
	if err != nil {
		return Stats{}, fmt.Errorf("ledger stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var decision string
		var count int
		if err := rows.Scan(&decision, &count); err != nil {
			return Stats{}, err
		}
		switch Decision(decision) {
		case DecisionApproved:
			stats.Approved = count
		case DecisionRejected:
			stats.Rejected = count
		}
	}
	return stats, rows.Err()
}
