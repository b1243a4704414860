// Package sqlite provides an embedded record store backed by a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/rulecrawler/internal/crawler"
)

const schema = `CREATE TABLE IF NOT EXISTS crawl_records (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	depth INTEGER NOT NULL,
	priority INTEGER NOT NULL,
	data TEXT NOT NULL,
	crawled_at TEXT NOT NULL
)`

// RecordStore writes crawl records into a single SQLite table.
type RecordStore struct {
	db *sql.DB
}

// Open creates the parent directory and database file when missing.
func Open(ctx context.Context, path string) (*RecordStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}
	return &RecordStore{db: db}, nil
}

// SaveRecord inserts a record row. Re-delivered IDs are ignored.
func (s *RecordStore) SaveRecord(ctx context.Context, rec crawler.StoredRecord) error {
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("marshal record data: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO crawl_records (id, url, depth, priority, data, crawled_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.URL,
		rec.Depth,
		int64(rec.Priority), //nolint:gosec // priorities are bounded by 1e9
		string(data),
		rec.CrawledAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Records returns every stored record ordered by crawl time.
func (s *RecordStore) Records(ctx context.Context) ([]crawler.StoredRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, depth, priority, data, crawled_at FROM crawl_records ORDER BY crawled_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []crawler.StoredRecord
	for rows.Next() {
		var (
			rec       crawler.StoredRecord
			priority  int64
			data      string
			crawledAt string
		)
		if err := rows.Scan(&rec.ID, &rec.URL, &rec.Depth, &priority, &data, &crawledAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Priority = uint64(priority) //nolint:gosec // written from a uint64
		if err := json.Unmarshal([]byte(data), &rec.Data); err != nil {
			return nil, fmt.Errorf("decode record data: %w", err)
		}
		if rec.CrawledAt, err = time.Parse(time.RFC3339Nano, crawledAt); err != nil {
			return nil, fmt.Errorf("parse crawled_at: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *RecordStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}
