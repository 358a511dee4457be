package loan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/warp/equipment-loan/generic"
)

// =============================================================================
// REPOSITORY - JSON codec over a versioned record store
// =============================================================================

// Stored is a decoded loan together with the version it was read at.
type Stored struct {
	Loan      *Loan
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository reads and writes whole loan documents.
type Repository struct {
	store generic.RecordStore
}

func NewRepository(store generic.RecordStore) *Repository {
	return &Repository{store: store}
}

// Get loads one loan. A missing loan wraps generic.ErrEntityNotFound.
func (r *Repository) Get(ctx context.Context, id string) (*Stored, error) {
	rec, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loan %s: %w", id, err)
	}
	return decode(rec)
}

// List loads every loan. Records that fail to decode are returned in the
// second slice instead of aborting the listing.
func (r *Repository) List(ctx context.Context) ([]Stored, []error, error) {
	recs, err := r.store.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list loans: %w", err)
	}
	loans := make([]Stored, 0, len(recs))
	var bad []error
	for _, rec := range recs {
		s, err := decode(rec)
		if err != nil {
			bad = append(bad, err)
			continue
		}
		loans = append(loans, *s)
	}
	return loans, bad, nil
}

// Create stores a new loan at version 1.
func (r *Repository) Create(ctx context.Context, l *Loan) (*Stored, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("encode loan %s: %w", l.ID, err)
	}
	rec, err := r.store.Create(ctx, l.ID, data)
	if err != nil {
		return nil, fmt.Errorf("create loan %s: %w", l.ID, err)
	}
	return decode(rec)
}

// Save writes the loan if the stored version is still expectedVersion.
// A lost race returns *ConcurrencyConflictError.
func (r *Repository) Save(ctx context.Context, l *Loan, expectedVersion int64) (*Stored, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("encode loan %s: %w", l.ID, err)
	}
	rec, err := r.store.Update(ctx, l.ID, expectedVersion, data)
	if errors.Is(err, generic.ErrConcurrentModification) {
		return nil, &ConcurrencyConflictError{LoanID: l.ID, ExpectedVersion: expectedVersion}
	}
	if err != nil {
		return nil, fmt.Errorf("save loan %s: %w", l.ID, err)
	}
	return decode(rec)
}

func decode(rec generic.Record) (*Stored, error) {
	var l Loan
	if err := json.Unmarshal(rec.Data, &l); err != nil {
		return nil, &DecodeError{LoanID: rec.ID, Err: err}
	}
	if l.ID == "" {
		l.ID = rec.ID
	}
	return &Stored{Loan: &l, Version: rec.Version, CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt}, nil
}
