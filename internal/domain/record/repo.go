package record

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("record not found")

// Repository is one backing store for the record vault. Save is an upsert
// by ID (last-write-wins, never a merge); List is ordered by date
// descending.
type Repository interface {
	Save(ctx context.Context, r *SavedRecord) error
	List(ctx context.Context) ([]*SavedRecord, error)
	Get(ctx context.Context, id string) (*SavedRecord, error)
	Delete(ctx context.Context, id string) error
}
