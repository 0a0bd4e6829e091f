package checkpoint

import (
	"encoding/json"
	"time"
)

// Version is the current checkpoint format version.
// Increment when making breaking changes to checkpoint structure.
//
// Version 2 added session status and the pending interrupt record.
const Version = 2

// Status is the lifecycle position of a session as recorded in its latest checkpoint.
type Status string

const (
	// StatusRunning means the session advanced past NodeID and continues at NextNode.
	StatusRunning Status = "running"
	// StatusSuspended means NodeID requested external input and is waiting for it.
	StatusSuspended Status = "suspended"
	// StatusCompleted means the session reached END.
	StatusCompleted Status = "completed"
	// StatusFailed means NodeID returned an error and the session stopped there.
	StatusFailed Status = "failed"
)

// Terminal reports whether no further stage can run for this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Interrupt is the pending request for external input saved with a suspended session.
type Interrupt struct {
	NodeID  string          `json:"node_id"`
	Payload json.RawMessage `json:"payload"`
}

// Checkpoint is the persisted snapshot of a session.
// The latest checkpoint by sequence is the session's current position.
type Checkpoint struct {
	Version   int       `json:"version"`
	SessionID string    `json:"session_id"`
	NodeID    string    `json:"node_id"`
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`

	State    json.RawMessage `json:"state"`
	NextNode string          `json:"next_node"`
	Status   Status          `json:"status"`

	Interrupt *Interrupt `json:"interrupt,omitempty"`
	Error     string     `json:"error,omitempty"`

	Attempt    int    `json:"attempt"`
	PrevNodeID string `json:"prev_node_id,omitempty"`
}

// Marshal serializes a checkpoint to JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a checkpoint from JSON.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// New creates a running checkpoint for a session after nodeID finished.
// State must already be JSON-serialized.
func New(sessionID, nodeID string, sequence int, state []byte, nextNode string) *Checkpoint {
	return &Checkpoint{
		Version:   Version,
		SessionID: sessionID,
		NodeID:    nodeID,
		Sequence:  sequence,
		Timestamp: time.Now().UTC(),
		State:     state,
		NextNode:  nextNode,
		Status:    StatusRunning,
		Attempt:   1,
	}
}

// WithAttempt sets the attempt number for retry tracking.
func (c *Checkpoint) WithAttempt(attempt int) *Checkpoint {
	c.Attempt = attempt
	return c
}

// WithPrevNode sets the previous node ID for debugging.
func (c *Checkpoint) WithPrevNode(prevNodeID string) *Checkpoint {
	c.PrevNodeID = prevNodeID
	return c
}

// Suspended marks the checkpoint as waiting on input requested by NodeID.
// NextNode is reset to NodeID because resuming replays the stage.
func (c *Checkpoint) Suspended(payload json.RawMessage) *Checkpoint {
	c.Status = StatusSuspended
	c.NextNode = c.NodeID
	c.Interrupt = &Interrupt{NodeID: c.NodeID, Payload: payload}
	return c
}

// Failed marks the checkpoint as stopped at NodeID with the given error text.
func (c *Checkpoint) Failed(msg string) *Checkpoint {
	c.Status = StatusFailed
	c.NextNode = c.NodeID
	c.Error = msg
	return c
}

// Completed marks the checkpoint as the final one of the session.
func (c *Checkpoint) Completed() *Checkpoint {
	c.Status = StatusCompleted
	return c
}
