// Package store persists session memory snapshots in SQLite.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rcliao/response-guard/internal/memory"
)

// ErrNotFound is returned when a session has no stored snapshot.
var ErrNotFound = errors.New("session not found")

// Tier names the memory tier a stored record belongs to.
type Tier string

const (
	TierShort Tier = "short"
	TierLong  Tier = "long"
)

// SessionInfo describes one stored session.
type SessionInfo struct {
	ID          string    `json:"id"`
	ShortTerm   int       `json:"short_term"`
	LongTerm    int       `json:"long_term"`
	Summaries   int       `json:"summaries"`
	LastUpdated time.Time `json:"last_updated"`
	SavedAt     time.Time `json:"saved_at"`
}

// SessionExport is one session in an export file.
type SessionExport struct {
	ID       string          `json:"id"`
	Snapshot memory.Snapshot `json:"snapshot"`
}

// Store defines the snapshot storage interface.
type Store interface {
	// Save replaces the stored snapshot of a session.
	Save(ctx context.Context, sessionID string, snap memory.Snapshot) error

	// Load returns the stored snapshot, or an empty one for an unknown session.
	Load(ctx context.Context, sessionID string) (memory.Snapshot, error)

	// ListSessions lists stored sessions, most recently saved first.
	ListSessions(ctx context.Context, limit int) ([]SessionInfo, error)

	// DeleteSession removes a session and its records.
	DeleteSession(ctx context.Context, sessionID string) error

	// Close closes the store.
	Close() error
}
