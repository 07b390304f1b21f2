// Package activity records clinician actions as an append-only audit
// trail. Logging is fire and forget: a write failure is itself logged
// and absorbed so it can never interrupt clinical flow.
package activity

import (
	"context"
	"time"
)

// Entry is one audit event.
type Entry struct {
	Email  string    `json:"email"`
	Action string    `json:"action"`
	At     time.Time `json:"at"`
}

// Repository appends and reads audit entries. Entries are immutable once
// written.
type Repository interface {
	Append(ctx context.Context, e *Entry) error
	List(ctx context.Context) ([]*Entry, error)
}
