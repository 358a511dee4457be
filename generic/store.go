/*
store.go - Persistence interface for versioned loan documents

PURPOSE:
  Defines the boundary between the loan engine and the database. A loan is
  stored as one opaque JSON document plus a version number. Every action
  reads the whole document, mutates it and writes it back.

COMPARE-AND-SWAP:
  Update() carries the version the caller read. If the stored version has
  moved on, the write is rejected with ErrConcurrentModification and
  nothing is written. Two concurrent actions on the same loan can no
  longer silently drop each other's changes; the loser reloads and retries.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite (UPDATE ... WHERE version = ?)
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - loan/repository.go: JSON codec on top of RecordStore
*/
package generic

import (
	"context"
	"time"
)

// Record is one stored document.
type Record struct {
	ID        string
	Version   int64
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RecordStore persists versioned documents.
type RecordStore interface {
	// Get returns the record or ErrEntityNotFound.
	Get(ctx context.Context, id string) (Record, error)

	// List returns all records ordered by creation time.
	List(ctx context.Context) ([]Record, error)

	// Create inserts a record at version 1 and returns it.
	Create(ctx context.Context, id string, data []byte) (Record, error)

	// Update replaces the document if the stored version equals
	// expectedVersion, and returns the record at its new version.
	Update(ctx context.Context, id string, expectedVersion int64, data []byte) (Record, error)
}
