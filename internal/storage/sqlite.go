package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"linkdispatch/internal/dispatcher"
	"linkdispatch/internal/model"
	"linkdispatch/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Archive backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// RecordDelivery archives one delivered record.
func (s *SQLite) RecordDelivery(ctx context.Context, task, target string, rec model.Record) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries
		   (task, target, message_id, source_id, source_group, sender, title, url, content, message_time, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task, target, rec.MessageID, rec.SourceID, rec.SourceGroup,
		rec.Sender, rec.Title, rec.URL, rec.Content, rec.Time, now,
	)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

// RecordCycle archives the summary of one completed sync cycle.
func (s *SQLite) RecordCycle(ctx context.Context, stats dispatcher.CycleStats) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cycles (started_at, sources, tasks, processed, delivered, skipped, failed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		stats.StartedAt.UTC().Format(timeLayout), stats.Sources, stats.Tasks,
		stats.Processed, stats.Delivered, stats.Skipped, stats.Failed, now,
	)
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}
	return nil
}

// RecentDeliveries returns the newest archived deliveries, newest first.
func (s *SQLite) RecentDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task, target, message_id, source_id, source_group, sender, title, url, content, message_time, created_at
		 FROM deliveries ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		var created string
		err := rows.Scan(&d.ID, &d.Task, &d.Target, &d.MessageID, &d.SourceID, &d.SourceGroup,
			&d.Sender, &d.Title, &d.URL, &d.Content, &d.MessageTime, &created)
		if err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		d.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, d)
	}
	return out, rows.Err()
}
