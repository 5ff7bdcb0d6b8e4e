// Package db keeps a history of typed scans in SQLite.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/scanwedge/internal/monitoring"
	"github.com/banshee-data/scanwedge/internal/session"
)

var logf = monitoring.Tagged("db")

type DB struct {
	*sql.DB
}

// pragmas are applied on open. The single connection keeps them in force
// for every statement.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
}

// OpenDB opens path without touching the schema.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return &DB{sqlDB}, nil
}

// NewDB opens path and migrates it to the latest schema.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(Migrations()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Scan is one row of the history.
type Scan struct {
	ID         string    `json:"id"`
	ScannedAt  time.Time `json:"scanned_at"`
	Reason     string    `json:"reason"`
	Payload    []byte    `json:"payload"`
	Text       string    `json:"text"`
	RawBytes   int       `json:"raw_bytes"`
	CodePoints int       `json:"code_points"`
	EmitMillis float64   `json:"emit_ms"`
	EmitError  string    `json:"emit_error,omitempty"`
}

func (s *Scan) String() string {
	return fmt.Sprintf("%s %s %s %q", s.ID, s.ScannedAt.Format(time.RFC3339), s.Reason, s.Text)
}

func toUnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(f float64) time.Time {
	return time.Unix(0, int64(f*1e9)).UTC()
}

// RecordScan stores a typed scan. emitErr is the typing or ack failure, if any.
func (db *DB) RecordScan(res session.ScanResult, emitErr error) error {
	var errText sql.NullString
	if emitErr != nil {
		errText = sql.NullString{String: emitErr.Error(), Valid: true}
	}
	payload := res.Payload
	if payload == nil {
		payload = []byte{}
	}
	_, err := db.Exec(`
		INSERT INTO scans (
			scan_id, scanned_at, reason, payload, payload_text,
			raw_bytes, code_points, emit_ms, emit_error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID,
		toUnixSeconds(res.At),
		res.Reason.String(),
		payload,
		res.Text,
		len(res.Raw),
		len(res.CodePoints),
		float64(res.EmitDuration)/float64(time.Millisecond),
		errText,
	)
	if err != nil {
		return fmt.Errorf("insert scan %s: %w", res.ID, err)
	}
	return nil
}

// RecentScans returns up to limit scans, newest first.
func (db *DB) RecentScans(limit int) ([]Scan, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT scan_id, scanned_at, reason, payload, payload_text,
		       raw_bytes, code_points, emit_ms, emit_error
		FROM scans
		ORDER BY scanned_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scans []Scan
	for rows.Next() {
		var (
			s         Scan
			scannedAt float64
			emitErr   sql.NullString
		)
		if err := rows.Scan(&s.ID, &scannedAt, &s.Reason, &s.Payload, &s.Text,
			&s.RawBytes, &s.CodePoints, &s.EmitMillis, &emitErr); err != nil {
			return nil, err
		}
		s.ScannedAt = fromUnixSeconds(scannedAt)
		s.EmitError = emitErr.String
		scans = append(scans, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return scans, nil
}

// MinuteCount is the number of scans that started in one minute.
type MinuteCount struct {
	Minute time.Time `json:"minute"`
	Count  int       `json:"count"`
}

// ScanCountsByMinute buckets scans at or after since into minutes, oldest
// first. Minutes without scans are omitted.
func (db *DB) ScanCountsByMinute(since time.Time) ([]MinuteCount, error) {
	rows, err := db.Query(`
		SELECT CAST(scanned_at / 60 AS INTEGER) * 60 AS minute, COUNT(*)
		FROM scans
		WHERE scanned_at >= ?
		GROUP BY minute
		ORDER BY minute ASC`, toUnixSeconds(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MinuteCount
	for rows.Next() {
		var minute int64
		var count int
		if err := rows.Scan(&minute, &count); err != nil {
			return nil, err
		}
		out = append(out, MinuteCount{Minute: time.Unix(minute, 0).UTC(), Count: count})
	}
	return out, rows.Err()
}

// Observer returns a session observer that records every completed scan.
// Insert failures are logged; history must never stall typing.
func (db *DB) Observer() session.Observer {
	return session.ObserverFuncs{
		Complete: func(res session.ScanResult, err error) {
			if rerr := db.RecordScan(res, err); rerr != nil {
				logf("%v", rerr)
			}
		},
	}
}
