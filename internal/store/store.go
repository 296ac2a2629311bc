package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/shaunagostinho/vedirect-dash/internal/vedirect"
)

// Config holds history store configuration.
type Config struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path" validate:"required_if=Enabled true"`
	// IntervalSec is the minimum spacing of saved records per device.
	IntervalSec int `yaml:"interval_sec" json:"intervalSec" validate:"gte=0"`
	// RetentionDays bounds history age. 0 keeps everything.
	RetentionDays int `yaml:"retention_days" json:"retentionDays" validate:"gte=0"`
}

// Entry is one stored record.
type Entry struct {
	ID        string           `json:"id"`
	Device    string           `json:"device"`
	Class     string           `json:"class"`
	Product   string           `json:"product,omitempty"`
	Summary   vedirect.Summary `json:"summary"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Store keeps record history in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		device TEXT NOT NULL,
		class TEXT NOT NULL,
		product TEXT,
		summary TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_device_created ON records(device, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("store: create schema: %w", err)
	}
	return nil
}

// Save persists the summary of rec.
func (s *Store) Save(device string, rec vedirect.Record, at time.Time) error {
	summary := vedirect.Summarize(rec)
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", device, err)
	}

	query := `INSERT INTO records (id, device, class, product, summary, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err = s.db.Exec(query, uuid.NewString(), device, summary.Class.String(), summary.Product, string(data), at.UnixMilli())
	if err != nil {
		return fmt.Errorf("store: save %s: %w", device, err)
	}
	return nil
}

// Recent returns up to limit entries for device, newest first.
func (s *Store) Recent(device string, limit int) ([]Entry, error) {
	query := `SELECT id, device, class, product, summary, created_at FROM records WHERE device = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`
	rows, err := s.db.Query(query, device, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query %s: %w", device, err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			product sql.NullString
			summary string
			ms      int64
		)
		if err := rows.Scan(&e.ID, &e.Device, &e.Class, &product, &summary, &ms); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(summary), &e.Summary); err != nil {
			return nil, fmt.Errorf("store: decode %s: %w", e.ID, err)
		}
		e.Product = product.String
		e.CreatedAt = time.UnixMilli(ms)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes entries older than before and reports how many went.
func (s *Store) Prune(before time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM records WHERE created_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("store: prune: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
