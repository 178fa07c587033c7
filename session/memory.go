// Package session owns per-session state: the ephemeral document context and
// the scoped conversation memory. All mutation goes through Session methods
// under its lock, replacing the process-wide globals of earlier revisions of
// this service.
package session

import (
	"context"
	"sync"
	"time"
)

// Turn is one completed question/answer exchange.
type Turn struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	At       time.Time `json:"at"`
}

// Memory is an ordered log of prior turns, scoped to exactly one retrieval
// context (main knowledge base or the current uploaded document). Switching
// scope resets the log; memory for an abandoned scope is discarded, not
// archived.
type Memory interface {
	// Append records a completed turn.
	Append(ctx context.Context, turn Turn) error

	// Turns returns all recorded turns, oldest first.
	Turns(ctx context.Context) ([]Turn, error)

	// Reset discards all recorded turns.
	Reset(ctx context.Context) error
}

// BufferMemory is an in-process Memory backed by a slice.
type BufferMemory struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewBufferMemory creates an empty in-process memory.
func NewBufferMemory() *BufferMemory {
	return &BufferMemory{}
}

// Append records a completed turn.
func (m *BufferMemory) Append(ctx context.Context, turn Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turn)
	return nil
}

// Turns returns a copy of all recorded turns, oldest first.
func (m *BufferMemory) Turns(ctx context.Context) ([]Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Turn, len(m.turns))
	copy(out, m.turns)
	return out, nil
}

// Reset discards all recorded turns.
func (m *BufferMemory) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = nil
	return nil
}
