// Package sqlstore keeps the snapshot in a one-row SQL table, on sqlite or postgres.
package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/AntoVGreco/app-instituto-MCV/core/institute"
)

// driver names registered by the imported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const rowID = 1

var (
	schema = `
CREATE TABLE IF NOT EXISTS institute_snapshot (
	id       INTEGER PRIMARY KEY,
	version  INTEGER NOT NULL,
	payload  TEXT NOT NULL,
	saved_at TIMESTAMP NOT NULL
)`

	upsert = `
INSERT INTO institute_snapshot (id, version, payload, saved_at) VALUES (?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET version = excluded.version, payload = excluded.payload, saved_at = excluded.saved_at`

	selectPayload = `SELECT payload FROM institute_snapshot WHERE id = ?`
)

type Store struct {
	db *sqlx.DB
}

var _ institute.Store = (*Store)(nil)

// Open connects with driverName (sqlite or postgres) and creates the table if needed.
func Open(ctx context.Context, driverName, dsn string) (*Store, error) {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s database", driverName)
	}
	if err := ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating snapshot table")
	}
	return &Store{db: db}, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(ctx context.Context, db *sqlx.DB) error {
	var err error
	maxAttempts := 5
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		}
	}
	return errors.Wrap(err, "database ping timeout")
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Load(ctx context.Context) (*institute.Snapshot, error) {
	var payload string
	err := s.db.GetContext(ctx, &payload, s.db.Rebind(selectPayload), rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, institute.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "selecting snapshot")
	}
	return institute.DecodeSnapshot([]byte(payload))
}

func (s *Store) Save(ctx context.Context, snap *institute.Snapshot) error {
	data, err := institute.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(upsert), rowID, snap.Version, string(data), snap.SavedAt.UTC()); err != nil {
		return errors.Wrap(err, "saving snapshot")
	}
	return nil
}
