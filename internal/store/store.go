// Package store archives generated digests in a local SQLite database so
// an operator can inspect past runs and tell processed-but-undelivered
// digests apart from delivered ones.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"bookdigest/internal/core"
)

// Store represents the SQLite-backed digest archive.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if necessary) the archive database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "bookdigest.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:   db,
		path: dbPath,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the necessary tables
func (s *Store) initialize() error {
	digestsTable := `
	CREATE TABLE IF NOT EXISTS digests (
		id TEXT PRIMARY KEY,
		date_generated DATETIME,
		total_count INTEGER,
		dropped_count INTEGER,
		input_tokens INTEGER,
		output_tokens INTEGER,
		models_used TEXT,
		payload TEXT,
		delivered INTEGER DEFAULT 0
	);`

	if _, err := s.db.Exec(digestsTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveDigest archives a digest. Digests are saved before delivery is
// attempted, with delivered updated afterwards via MarkDelivered.
func (s *Store) SaveDigest(digest core.Digest) error {
	payload, err := json.Marshal(digest)
	if err != nil {
		return fmt.Errorf("failed to marshal digest: %w", err)
	}

	query := `
	INSERT OR REPLACE INTO digests
	(id, date_generated, total_count, dropped_count, input_tokens, output_tokens, models_used, payload, delivered)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`

	_, err = s.db.Exec(query,
		digest.ID,
		digest.Date.UTC(),
		digest.TotalCount,
		digest.DroppedCount,
		digest.Usage.InputTokens,
		digest.Usage.OutputTokens,
		strings.Join(digest.ModelsUsed, ","),
		string(payload),
	)
	return err
}

// MarkDelivered records that the digest's notification went out.
func (s *Store) MarkDelivered(digestID string) error {
	res, err := s.db.Exec("UPDATE digests SET delivered = 1 WHERE id = ?", digestID)
	if err != nil {
		return fmt.Errorf("failed to mark digest delivered: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("digest %s not found", digestID)
	}
	return nil
}

// GetDigest retrieves one archived digest by ID. Returns nil when absent.
func (s *Store) GetDigest(digestID string) (*core.Digest, bool, error) {
	row := s.db.QueryRow("SELECT payload, delivered FROM digests WHERE id = ?", digestID)
	return scanDigest(row)
}

// GetLatestDigest retrieves the most recently generated digest.
func (s *Store) GetLatestDigest() (*core.Digest, bool, error) {
	row := s.db.QueryRow("SELECT payload, delivered FROM digests ORDER BY date_generated DESC LIMIT 1")
	return scanDigest(row)
}

func scanDigest(row *sql.Row) (*core.Digest, bool, error) {
	var payload string
	var delivered int

	err := row.Scan(&payload, &delivered)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to scan digest: %w", err)
	}

	var digest core.Digest
	if err := json.Unmarshal([]byte(payload), &digest); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal digest: %w", err)
	}
	return &digest, delivered == 1, nil
}

// DigestRecord is a one-row archive listing entry.
type DigestRecord struct {
	ID           string
	Date         time.Time
	TotalCount   int
	DroppedCount int
	ModelsUsed   string
	Delivered    bool
}

// ListDigests returns archive entries newest first, up to limit.
func (s *Store) ListDigests(limit int) ([]DigestRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
	SELECT id, date_generated, total_count, dropped_count, models_used, delivered
	FROM digests ORDER BY date_generated DESC LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list digests: %w", err)
	}
	defer rows.Close()

	var records []DigestRecord
	for rows.Next() {
		var rec DigestRecord
		var delivered int
		if err := rows.Scan(&rec.ID, &rec.Date, &rec.TotalCount, &rec.DroppedCount, &rec.ModelsUsed, &delivered); err != nil {
			return nil, fmt.Errorf("failed to scan digest row: %w", err)
		}
		rec.Delivered = delivered == 1
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ArchiveStats represents archive statistics
type ArchiveStats struct {
	DigestCount      int
	UndeliveredCount int
	TotalBookmarks   int
	ArchiveSize      int64
	LastUpdated      time.Time
}

// GetArchiveStats returns statistics about the archive
func (s *Store) GetArchiveStats() (*ArchiveStats, error) {
	stats := &ArchiveStats{}

	queries := map[string]*int{
		"SELECT COUNT(*) FROM digests":                      &stats.DigestCount,
		"SELECT COUNT(*) FROM digests WHERE delivered = 0":  &stats.UndeliveredCount,
		"SELECT COALESCE(SUM(total_count), 0) FROM digests": &stats.TotalBookmarks,
	}

	for query, target := range queries {
		if err := s.db.QueryRow(query).Scan(target); err != nil {
			return nil, fmt.Errorf("failed to get count: %w", err)
		}
	}

	if fileInfo, err := os.Stat(s.path); err == nil {
		stats.ArchiveSize = fileInfo.Size()
		stats.LastUpdated = fileInfo.ModTime()
	}

	return stats, nil
}

// ClearArchive removes all archived digests.
func (s *Store) ClearArchive() error {
	if _, err := s.db.Exec("DELETE FROM digests"); err != nil {
		return fmt.Errorf("failed to clear digests table: %w", err)
	}
	if _, err := s.db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}

// CleanupOldDigests removes archived digests older than maxAge.
func (s *Store) CleanupOldDigests(maxAge time.Duration) error {
	cutoff := time.Now().UTC().Add(-maxAge)
	_, err := s.db.Exec("DELETE FROM digests WHERE date_generated < ?", cutoff)
	if err != nil {
		return fmt.Errorf("failed to clean old digests: %w", err)
	}
	return nil
}
