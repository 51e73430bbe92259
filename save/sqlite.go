package save

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS saves (
	slot     TEXT PRIMARY KEY,
	id       TEXT NOT NULL,
	graph    TEXT NOT NULL,
	saved_at INTEGER NOT NULL,
	data     BLOB NOT NULL
)`

// SQLiteStore keeps records in a single SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path. ":memory:" gives a
// private in-memory store.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("save: open %s: %w", path, err)
	}
	// one connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("save: create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, rec *Record) error {
	if err := checkSlot(rec.Slot); err != nil {
		return err
	}
	data, err := Encode(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO saves (slot, id, graph, saved_at, data) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(slot) DO UPDATE SET id = excluded.id, graph = excluded.graph,
	saved_at = excluded.saved_at, data = excluded.data`,
		rec.Slot, rec.ID.String(), rec.Graph, rec.SavedAt.UnixNano(), data)
	if err != nil {
		return fmt.Errorf("save: write %s: %w", rec.Slot, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, slot string) (*Record, error) {
	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM saves WHERE slot = ?`, slot).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, slot)
	}
	if err != nil {
		return nil, fmt.Errorf("save: read %s: %w", slot, err)
	}
	return Decode(data)
}

func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT slot FROM saves ORDER BY slot`)
	if err != nil {
		return nil, fmt.Errorf("save: list: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, fmt.Errorf("save: list: %w", err)
		}
		out = append(out, slot)
	}
	return out, rows.Err()
}

// Summary is the metadata of a saved slot.
type Summary struct {
	Slot    string
	ID      uuid.UUID
	Graph   string
	SavedAt time.Time
}

// Summaries lists slot metadata, newest first, without decoding snapshots.
func (s *SQLiteStore) Summaries(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT slot, id, graph, saved_at FROM saves ORDER BY saved_at DESC, slot`)
	if err != nil {
		return nil, fmt.Errorf("save: list: %w", err)
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var (
			sum   Summary
			id    string
			stamp int64
		)
		if err := rows.Scan(&sum.Slot, &id, &sum.Graph, &stamp); err != nil {
			return nil, fmt.Errorf("save: list: %w", err)
		}
		if sum.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("save: slot %s: %w", sum.Slot, err)
		}
		sum.SavedAt = time.Unix(0, stamp).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, slot string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saves WHERE slot = ?`, slot)
	if err != nil {
		return fmt.Errorf("save: delete %s: %w", slot, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, slot)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
