// Package filestore keeps the snapshot in a single file, replaced atomically on save.
package filestore

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/AntoVGreco/app-instituto-MCV/core/institute"
)

type Store struct {
	path string
}

var _ institute.Store = (*Store)(nil)

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

func (s *Store) Load(ctx context.Context) (*institute.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(institute.ErrSnapshotNotFound, s.path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", s.path)
	}
	snap, err := institute.DecodeSnapshot(data)
	if err != nil {
		return nil, errors.Wrap(err, s.path)
	}
	return snap, nil
}

// Save writes a temp file next to the target, syncs it, then renames it over the target.
func (s *Store) Save(ctx context.Context, snap *institute.Snapshot) (err error) {
	if err = ctx.Err(); err != nil {
		return err
	}
	data, err := institute.EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return errors.Wrapf(err, "creating temp file in %s", dir)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return errors.Wrap(err, "writing snapshot")
	}
	if err = tmp.Sync(); err != nil {
		return errors.Wrap(err, "syncing snapshot")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "closing snapshot")
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrapf(err, "replacing %s", s.path)
	}
	return nil
}
