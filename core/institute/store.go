package institute

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrPersistence      = errors.New("persistence failure")
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrCorruptSnapshot  = errors.New("corrupt snapshot")
)

// Store loads and saves the whole institute at once.
// Save must be atomic: when it fails, the previously saved snapshot is left untouched.
// Load reports a missing snapshot with ErrSnapshotNotFound and an unreadable one with ErrCorruptSnapshot.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
}

// PersistenceError is returned by Open and Commit when the Store fails.
type PersistenceError struct {
	Op  string // load | save
	Err error
}

func (err *PersistenceError) Error() string {
	return "persistence " + err.Op + ": " + err.Err.Error()
}

func (err *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func (err *PersistenceError) Unwrap() error { return err.Err }
