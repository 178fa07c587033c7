package session

import "sync"

// MemoryFactory builds the Memory implementation for a new session.
type MemoryFactory func(sessionID string) Memory

// Manager is the session store. It creates sessions on first use and hands
// out the same *Session for a given ID thereafter.
type Manager struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	newMemory MemoryFactory
}

// NewManager creates a manager. A nil factory defaults to in-process buffer
// memory.
func NewManager(newMemory MemoryFactory) *Manager {
	if newMemory == nil {
		newMemory = func(string) Memory { return NewBufferMemory() }
	}
	return &Manager{
		sessions:  make(map[string]*Session),
		newMemory: newMemory,
	}
}

// Get returns the session for the given ID, creating it if needed.
func (m *Manager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s
	}
	s := NewSession(id, m.newMemory(id))
	m.sessions[id] = s
	return s
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
