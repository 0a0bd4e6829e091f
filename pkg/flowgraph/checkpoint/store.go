// Package checkpoint provides persistent session snapshots so a suspended
// or interrupted session can continue after a process restart.
package checkpoint

import (
	"errors"
	"time"
)

// Store persists checkpoints keyed by (session, node).
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores a checkpoint for a session at a specific node.
	// Overwrites if a checkpoint for (sessionID, nodeID) already exists and
	// moves it to the end of the session's sequence.
	Save(sessionID, nodeID string, data []byte) error

	// Load retrieves a checkpoint.
	// Returns ErrNotFound if checkpoint doesn't exist.
	Load(sessionID, nodeID string) ([]byte, error)

	// List returns all checkpoints for a session, ordered by sequence.
	// Returns empty slice (not error) if the session has no checkpoints.
	List(sessionID string) ([]Info, error)

	// Delete removes a specific checkpoint.
	// Returns nil if checkpoint doesn't exist.
	Delete(sessionID, nodeID string) error

	// DeleteSession removes all checkpoints for a session.
	// Returns nil if the session has no checkpoints.
	DeleteSession(sessionID string) error

	// Prune removes every session whose newest checkpoint is older than before.
	// Returns the number of sessions removed.
	Prune(before time.Time) (int, error)

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides metadata without loading full state.
type Info struct {
	SessionID string
	NodeID    string
	Sequence  int
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")
)

// Latest loads the newest checkpoint of a session.
// Returns ErrNotFound when the session has none.
func Latest(s Store, sessionID string) (*Checkpoint, error) {
	infos, err := s.List(sessionID)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, ErrNotFound
	}

	data, err := s.Load(sessionID, infos[len(infos)-1].NodeID)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}
