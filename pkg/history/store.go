// Package history stores the ordered turn log of each chat session.
package history

import (
	"context"

	"github.com/entrhq/medisimple/pkg/types"
)

// Store is an append-only per-session turn log.
//
// RecentWindow returns at most limit turns, the most recent ones, in
// chronological order. An unknown session yields an empty slice and no error.
// Clear is idempotent.
type Store interface {
	Append(ctx context.Context, sessionID string, role types.MessageRole, content string) error
	RecentWindow(ctx context.Context, sessionID string, limit int) ([]types.Turn, error)
	Clear(ctx context.Context, sessionID string) error
	Close() error
}

// StorageError reports a failure of the underlying storage.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "history " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
