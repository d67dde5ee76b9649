// Package store provides the relational repositories the question-answering
// service reads from: dialog ownership and corpus chunks with their
// embeddings.
//
// Two backends are provided. Postgres is the production store (pgvector for
// similarity search). SQLite is a single-file store for local development and
// tests; it ranks chunks in process.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a dialog or chunk does not exist, or when a
// dialog exists but is owned by another user.
var ErrNotFound = errors.New("store: not found")

// DefaultDialogTitle is the title given to a dialog before its first message.
const DefaultDialogTitle = "Новый диалог"

// Dialog is a conversation thread owned by one user.
type Dialog struct {
	ID        string
	OwnerID   string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PendingChunk is a corpus chunk whose embedding has not been computed yet.
type PendingChunk struct {
	ID      string
	Content string
}
