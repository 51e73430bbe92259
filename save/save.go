// Package save persists motion graph instance snapshots in save slots.
package save

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/milk9111/motiongraph/motion"
)

// Version is the current record format.
const Version = 1

var (
	ErrNotFound      = errors.New("save: slot not found")
	ErrVersion       = errors.New("save: unsupported record version")
	ErrGraphMismatch = errors.New("save: record belongs to another graph")
	ErrInvalidSlot   = errors.New("save: invalid slot name")
)

// Record is one saved instance.
type Record struct {
	Version  int              `json:"version"`
	ID       uuid.UUID        `json:"id"`
	Slot     string           `json:"slot"`
	Graph    string           `json:"graph"`
	SavedAt  time.Time        `json:"saved_at"`
	Snapshot *motion.Snapshot `json:"snapshot"`
}

// Store keeps records by slot. Saving to a used slot replaces its record.
type Store interface {
	Save(ctx context.Context, rec *Record) error
	Load(ctx context.Context, slot string) (*Record, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, slot string) error
	Close() error
}

// Capture snapshots in into a new record for slot.
func Capture(in *motion.Instance, slot string) (*Record, error) {
	snap, err := in.Snapshot()
	if err != nil {
		return nil, err
	}
	return &Record{
		Version:  Version,
		ID:       uuid.New(),
		Slot:     slot,
		Graph:    snap.Graph,
		SavedAt:  time.Now().UTC(),
		Snapshot: snap,
	}, nil
}

// Apply restores rec into in.
func Apply(in *motion.Instance, rec *Record) error {
	if rec.Graph != in.Graph().Name {
		return fmt.Errorf("%w: %q, instance runs %q", ErrGraphMismatch, rec.Graph, in.Graph().Name)
	}
	return in.Restore(rec.Snapshot)
}

func Encode(rec *Record) ([]byte, error) {
	if rec.Version == 0 {
		rec.Version = Version
	}
	return json.MarshalIndent(rec, "", "  ")
}

func Decode(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("save: decode: %w", err)
	}
	if rec.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, rec.Version)
	}
	if rec.Snapshot == nil {
		return nil, errors.New("save: record without snapshot")
	}
	return &rec, nil
}

func checkSlot(slot string) error {
	if slot == "" || len(slot) > 64 {
		return fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	for _, r := range slot {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
		}
	}
	return nil
}

// Open returns the store for a configured backend: "sqlite" opens a database
// file and "file" a directory of JSON records.
func Open(ctx context.Context, backend, path string) (Store, error) {
	switch backend {
	case "sqlite":
		return OpenSQLite(ctx, path)
	case "file":
		return NewFileStore(path)
	}
	return nil, fmt.Errorf("save: unknown backend %q", backend)
}
