package chat

import (
	"github.com/Odysseus24/neolatin-chatbot-api/rag"
	"github.com/Odysseus24/neolatin-chatbot-api/session"
)

// Scope names which index a retrieval ran against.
type Scope string

const (
	// ScopeEphemeral is the per-session index over an uploaded document.
	ScopeEphemeral Scope = "ephemeral"
	// ScopePersistent is the shared knowledge-base index.
	ScopePersistent Scope = "persistent"
)

// Resolution selects the single index a question is answered from.
type Resolution struct {
	Store rag.VectorStore
	TopK  int
	Scope Scope
}

// Resolver decides between the session's uploaded document and the
// persistent knowledge base. The two are never merged: an uploaded
// document shadows the knowledge base until it is cleared.
type Resolver struct {
	persistent  rag.VectorStore
	persistentK int
	ephemeralK  int
}

// NewResolver creates a resolver over the persistent store with the given
// result counts per scope.
func NewResolver(persistent rag.VectorStore, persistentTopK, ephemeralTopK int) *Resolver {
	return &Resolver{
		persistent:  persistent,
		persistentK: persistentTopK,
		ephemeralK:  ephemeralTopK,
	}
}

// Resolve maps the session's document state to a retrieval target. It has
// no side effects and touches no index.
func (r *Resolver) Resolve(doc *session.DocumentContext) Resolution {
	if doc != nil && doc.Index != nil {
		return Resolution{Store: doc.Index, TopK: r.ephemeralK, Scope: ScopeEphemeral}
	}
	return Resolution{Store: r.persistent, TopK: r.persistentK, Scope: ScopePersistent}
}
