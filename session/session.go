package session

import (
	"context"
	"sync"
	"time"

	"github.com/Odysseus24/neolatin-chatbot-api/rag"
)

// DocumentContext is the ephemeral, session-scoped document override. At most
// one is active per session; creating a new one invalidates the previous (no
// overlap, no stacking).
type DocumentContext struct {
	Filename  string
	Text      string
	Index     rag.VectorStore
	CreatedAt time.Time
}

// Session holds the mutable per-session state. All mutation must happen
// between Lock and Unlock; the chat pipeline serializes whole operations
// (ask, upload, clear) that way to keep upload-vs-ask races from corrupting
// the memory scope.
type Session struct {
	ID string

	mu     sync.Mutex
	doc    *DocumentContext
	memory Memory
}

// NewSession creates a session with the given memory implementation.
func NewSession(id string, memory Memory) *Session {
	if memory == nil {
		memory = NewBufferMemory()
	}
	return &Session{ID: id, memory: memory}
}

// Lock acquires the session for one logical operation.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session.
func (s *Session) Unlock() { s.mu.Unlock() }

// Document returns the active ephemeral context, or nil. Callers must hold
// the session lock.
func (s *Session) Document() *DocumentContext {
	return s.doc
}

// Memory returns the session's conversation memory. Callers must hold the
// session lock.
func (s *Session) Memory() Memory {
	return s.memory
}

// ReplaceDocument installs a new ephemeral context, discarding the previous
// one and resetting the conversation memory for the new scope. Callers must
// hold the session lock.
func (s *Session) ReplaceDocument(ctx context.Context, doc *DocumentContext) error {
	if err := s.memory.Reset(ctx); err != nil {
		return err
	}
	s.doc = doc
	return nil
}

// Clear drops the ephemeral context and truncates the active memory scope.
// Calling it on an already-empty session is a no-op, so it is idempotent.
// Callers must hold the session lock.
func (s *Session) Clear(ctx context.Context) error {
	if err := s.memory.Reset(ctx); err != nil {
		return err
	}
	s.doc = nil
	return nil
}
