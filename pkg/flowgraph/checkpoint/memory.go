package checkpoint

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps checkpoints in process memory.
// Sessions are lost when the process exits; use it for tests and the CLI.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
	closed   bool
	now      func() time.Time
}

type memorySession struct {
	nextSeq int
	nodes   map[string]memoryEntry
}

type memoryEntry struct {
	data      []byte
	sequence  int
	timestamp time.Time
}

// NewMemoryStore creates a new in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memorySession),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Save implements Store.
func (m *MemoryStore) Save(sessionID, nodeID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	sess := m.sessions[sessionID]
	if sess == nil {
		sess = &memorySession{nodes: make(map[string]memoryEntry)}
		m.sessions[sessionID] = sess
	}
	sess.nextSeq++

	stored := make([]byte, len(data))
	copy(stored, data)

	sess.nodes[nodeID] = memoryEntry{
		data:      stored,
		sequence:  sess.nextSeq,
		timestamp: m.now(),
	}
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(sessionID, nodeID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	entry, ok := sess.nodes[nodeID]
	if !ok {
		return nil, ErrNotFound
	}

	result := make([]byte, len(entry.data))
	copy(result, entry.data)
	return result, nil
}

// List implements Store.
func (m *MemoryStore) List(sessionID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}

	infos := make([]Info, 0, len(sess.nodes))
	for nodeID, entry := range sess.nodes {
		infos = append(infos, Info{
			SessionID: sessionID,
			NodeID:    nodeID,
			Sequence:  entry.sequence,
			Timestamp: entry.timestamp,
			Size:      int64(len(entry.data)),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Sequence < infos[j].Sequence
	})
	return infos, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(sessionID, nodeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	if sess, ok := m.sessions[sessionID]; ok {
		delete(sess.nodes, nodeID)
		if len(sess.nodes) == 0 {
			delete(m.sessions, sessionID)
		}
	}
	return nil
}

// DeleteSession implements Store.
func (m *MemoryStore) DeleteSession(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.sessions, sessionID)
	return nil
}

// Prune implements Store.
func (m *MemoryStore) Prune(before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrStoreClosed
	}

	removed := 0
	for id, sess := range m.sessions {
		var newest time.Time
		for _, entry := range sess.nodes {
			if entry.timestamp.After(newest) {
				newest = entry.timestamp
			}
		}
		if newest.Before(before) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.sessions = nil
	return nil
}

// Len returns the total number of checkpoints across all sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, sess := range m.sessions {
		count += len(sess.nodes)
	}
	return count
}
