package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"airline_ops/internal/fleet"
	"airline_ops/internal/models"

	_ "modernc.org/sqlite"
)

// LedgerEntry is one tick's cash movement.
type LedgerEntry struct {
	Tick       int       `json:"tick"`
	Cash       float64   `json:"cash"`
	Delta      float64   `json:"delta"`
	Revenue    float64   `json:"revenue"`
	Cost       float64   `json:"cost"`
	Lease      float64   `json:"lease"`
	Flights    int       `json:"flights"`
	RecordedAt time.Time `json:"recorded_at"`
}

// EventRecord is a recent-event message kept past the in-memory window.
type EventRecord struct {
	Tick       int       `json:"tick"`
	Message    string    `json:"message"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Ledger is the SQLite history of ticks and events.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// OpenLedger opens (creating if needed) the ledger database at path.
func OpenLedger(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	// One writer; sqlite serializes anyway.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping ledger: %w", err)
	}
	if err := createSchemas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}
	return &Ledger{db: db, now: time.Now}, nil
}

func createSchemas(db *sql.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS ledger (
			tick INTEGER PRIMARY KEY,
			cash REAL NOT NULL,
			delta REAL NOT NULL,
			revenue REAL NOT NULL,
			cost REAL NOT NULL,
			lease REAL NOT NULL,
			flights INTEGER NOT NULL DEFAULT 0,
			recorded_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			message TEXT NOT NULL,
			recorded_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);`,
	}
	for _, query := range schemas {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Persist records the tick and any events it produced in one transaction.
// A tick replayed after loading an older save replaces its earlier row.
func (l *Ledger) Persist(ctx context.Context, _ models.GameState, res fleet.TickResult) error {
	at := l.now().Unix()
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO ledger (tick, cash, delta, revenue, cost, lease, flights, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.Tick, res.Cash, res.Delta, res.Revenue, res.Cost, res.Lease, res.Flights, at)
	if err != nil {
		return fmt.Errorf("failed to record tick %d: %w", res.Tick, err)
	}
	for _, msg := range res.Events {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO events (tick, message, recorded_at) VALUES (?, ?, ?)`, res.Tick, msg, at); err != nil {
			return fmt.Errorf("failed to record event: %w", err)
		}
	}
	return tx.Commit()
}

// Recent returns up to limit ledger rows, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT tick, cash, delta, revenue, cost, lease, flights, recorded_at
		FROM ledger ORDER BY tick DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []LedgerEntry{}
	for rows.Next() {
		var e LedgerEntry
		var at int64
		if err := rows.Scan(&e.Tick, &e.Cash, &e.Delta, &e.Revenue, &e.Cost, &e.Lease, &e.Flights, &at); err != nil {
			return nil, err
		}
		e.RecordedAt = time.Unix(at, 0).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecentEvents returns up to limit event messages, newest first.
func (l *Ledger) RecentEvents(ctx context.Context, limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT tick, message, recorded_at FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []EventRecord{}
	for rows.Next() {
		var e EventRecord
		var at int64
		if err := rows.Scan(&e.Tick, &e.Message, &at); err != nil {
			return nil, err
		}
		e.RecordedAt = time.Unix(at, 0).UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}
