package boltstore

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/AntoVGreco/app-instituto-MCV/core/institute"
)

var (
	bucket = []byte("snapshots")
	key    = []byte("institute")
)

// Store keeps the encoded snapshot under a single key. A bbolt transaction
// either commits entirely or leaves the previous value in place.
type Store struct {
	db *bbolt.DB
}

var _ institute.Store = (*Store)(nil)

// Open opens (or creates) the bolt file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrapf(err, "creating %s", filepath.Dir(path))
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating bucket")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Load(ctx context.Context) (*institute.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return institute.ErrSnapshotNotFound
		}
		v := b.Get(key)
		if v == nil {
			return institute.ErrSnapshotNotFound
		}
		// v is only valid inside the transaction
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return institute.DecodeSnapshot(data)
}

func (s *Store) Save(ctx context.Context, snap *institute.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := institute.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}
