package db

import (
	"sync"

	"github.com/google/uuid"
)

// EditorSource hands out mutation-session tokens. A MutableDb takes a new
// token whenever it publishes a snapshot or rolls back, so no published DB
// ever shares a session with further writes.
type EditorSource interface {
	Generate() string
}

// UUIDv7Editors generates time-sortable UUIDv7 session tokens.
//
// Thread-safety: UUIDv7Editors is stateless and safe for concurrent use.
type UUIDv7Editors struct{}

// Generate returns a new hyphenated UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Editors) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedEditors returns predetermined session tokens for testing.
//
// Thread-safety: FixedEditors is safe for concurrent use via internal mutex.
type FixedEditors struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedEditors creates a source that returns tokens in order.
func NewFixedEditors(tokens ...string) *FixedEditors {
	return &FixedEditors{tokens: tokens}
}

// Generate returns the next predetermined token.
//
// Panics when all tokens have been consumed: the test opened more sessions
// than it declared.
func (g *FixedEditors) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		panic("FixedEditors: all tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}
