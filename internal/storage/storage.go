// Package storage defines the durable accumulated-activity store consumed by
// the tracker (writes) and the reconciler (reads).
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested entity doesn't exist.
var ErrNotFound = errors.New("not found")

// UserTotal is one accumulated-activity row: a user and the total number of
// seconds of completed voice sessions credited to them.
type UserTotal struct {
	UserID       string
	TotalSeconds int64
}

// ActivityStore persists accumulated voice time per user. Totals only ever
// grow through IncrementTotal; nothing in the bot decrements them.
type ActivityStore interface {
	// IncrementTotal atomically adds delta seconds to the user's total,
	// creating the row if absent, and returns the new total.
	IncrementTotal(ctx context.Context, userID string, delta int64) (int64, error)

	// ListTotals returns every accumulated-activity row.
	ListTotals(ctx context.Context) ([]UserTotal, error)

	// GetTotal returns one user's total, or ErrNotFound.
	GetTotal(ctx context.Context, userID string) (int64, error)

	// DeleteTotals removes the given rows. Used only by the stress endpoint
	// to clean up its synthetic users.
	DeleteTotals(ctx context.Context, userIDs ...string) error
}
