/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements generic.RecordStore for loan documents and keeps the history of
  fine recomputation runs. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  loans:      One row per loan: id, version, JSON document, timestamps
  fine_runs:  One row per fine batch run (audit and UI display)

COMPARE-AND-SWAP:
  Update() is a single statement:
    UPDATE loans SET ... version = version + 1 WHERE id = ? AND version = ?
  Zero affected rows means either the loan is gone or someone else wrote
  first; a follow-up existence check tells the two apart.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/loans.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  repo := loan.NewRepository(store)

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/equipment-loan/generic"
)

// Fixed-width so that text ordering matches time ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements generic.RecordStore using SQLite.
type Store struct {
	db *sql.DB
}

var _ generic.RecordStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers the way SQLite wants anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Loans (whole document per row)
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		version INTEGER NOT NULL DEFAULT 1,
		data_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_loans_created_at
		ON loans(created_at);

	-- Fine recomputation runs
	CREATE TABLE IF NOT EXISTS fine_runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0,
		updated INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_fine_runs_started_at
		ON fine_runs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LOAN DOCUMENTS (generic.RecordStore interface)
// =============================================================================

// Get returns a loan document by id.
func (s *Store) Get(ctx context.Context, id string) (generic.Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, version, data_json, created_at, updated_at FROM loans WHERE id = ?",
		id,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.Record{}, generic.ErrEntityNotFound
	}
	return rec, err
}

// List returns every loan document, oldest first.
func (s *Store) List(ctx context.Context) ([]generic.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, version, data_json, created_at, updated_at FROM loans ORDER BY created_at ASC, id ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer rows.Close()

	var records []generic.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Create inserts a new loan document at version 1.
func (s *Store) Create(ctx context.Context, id string, data []byte) (generic.Record, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO loans (id, version, data_json, created_at, updated_at) VALUES (?, 1, ?, ?, ?)",
		id, string(data), now.Format(timestampLayout), now.Format(timestampLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.Record{}, generic.ErrDuplicateRecord
		}
		return generic.Record{}, fmt.Errorf("failed to insert loan: %w", err)
	}
	return generic.Record{ID: id, Version: 1, Data: data, CreatedAt: now, UpdatedAt: now}, nil
}

// Update replaces the document when the stored version still matches.
func (s *Store) Update(ctx context.Context, id string, expectedVersion int64, data []byte) (generic.Record, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE loans
		SET data_json = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`, string(data), now.Format(timestampLayout), id, expectedVersion)
	if err != nil {
		return generic.Record{}, fmt.Errorf("failed to update loan: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return generic.Record{}, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return generic.Record{}, getErr
		}
		return generic.Record{}, generic.ErrConcurrentModification
	}

	return s.Get(ctx, id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (generic.Record, error) {
	var (
		rec                  generic.Record
		data                 string
		createdAt, updatedAt string
	)
	if err := row.Scan(&rec.ID, &rec.Version, &data, &createdAt, &updatedAt); err != nil {
		return generic.Record{}, err
	}
	rec.Data = []byte(data)
	rec.CreatedAt, _ = time.Parse(timestampLayout, createdAt)
	rec.UpdatedAt, _ = time.Parse(timestampLayout, updatedAt)
	return rec, nil
}

// =============================================================================
// FINE RUNS STORE
// =============================================================================

// FineRun records one execution of the fine recomputation batch.
type FineRun struct {
	ID          string
	Status      string // running, completed, failed
	Processed   int
	Updated     int
	Skipped     int
	Failed      int
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// SaveFineRun inserts or updates a run.
func (s *Store) SaveFineRun(ctx context.Context, r FineRun) error {
	query := `
		INSERT INTO fine_runs (id, status, processed, updated, skipped, failed, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			processed = excluded.processed,
			updated = excluded.updated,
			skipped = excluded.skipped,
			failed = excluded.failed,
			error = excluded.error,
			completed_at = excluded.completed_at
	`

	var completedAt *string
	if r.CompletedAt != nil {
		s := r.CompletedAt.UTC().Format(time.RFC3339)
		completedAt = &s
	}

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Status, r.Processed, r.Updated, r.Skipped, r.Failed,
		nullString(r.Error), r.StartedAt.UTC().Format(time.RFC3339), completedAt,
	)
	return err
}

// ListFineRuns returns the most recent runs first.
func (s *Store) ListFineRuns(ctx context.Context, limit int) ([]FineRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, processed, updated, skipped, failed, error, started_at, completed_at
		FROM fine_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []FineRun
	for rows.Next() {
		var (
			r           FineRun
			errText     sql.NullString
			startedAt   string
			completedAt sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Status, &r.Processed, &r.Updated, &r.Skipped, &r.Failed,
			&errText, &startedAt, &completedAt); err != nil {
			return nil, err
		}
		r.Error = errText.String
		r.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		if completedAt.Valid {
			t, _ := time.Parse(time.RFC3339, completedAt.String)
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Reset clears all tables (dev only).
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM loans; DELETE FROM fine_runs;")
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
