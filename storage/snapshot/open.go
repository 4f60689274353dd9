// Package snapshot picks the institute.Store configured by Snapshot.Driver.
package snapshot

import (
	"context"

	"github.com/pkg/errors"

	"github.com/AntoVGreco/app-instituto-MCV/core"
	"github.com/AntoVGreco/app-instituto-MCV/core/institute"
	"github.com/AntoVGreco/app-instituto-MCV/storage/snapshot/boltstore"
	"github.com/AntoVGreco/app-instituto-MCV/storage/snapshot/filestore"
	inmemstore "github.com/AntoVGreco/app-instituto-MCV/storage/snapshot/inmem"
	"github.com/AntoVGreco/app-instituto-MCV/storage/snapshot/sqlstore"
)

// CloseFunc releases what Open acquired. It is never nil.
type CloseFunc func() error

func noop() error { return nil }

func Open(ctx context.Context, conf *core.Config) (institute.Store, CloseFunc, error) {
	switch conf.Snapshot.Driver {
	case core.DriverFile, "":
		return filestore.New(conf.Snapshot.Path), noop, nil
	case core.DriverMemory:
		return inmemstore.New(), noop, nil
	case core.DriverBolt:
		st, err := boltstore.Open(conf.Snapshot.Path)
		if err != nil {
			return nil, noop, err
		}
		return st, st.Close, nil
	case core.DriverSQLite:
		st, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, conf.Snapshot.Path)
		if err != nil {
			return nil, noop, err
		}
		return st, st.Close, nil
	case core.DriverPostgres:
		st, err := sqlstore.Open(ctx, sqlstore.DriverPostgres, conf.DSN())
		if err != nil {
			return nil, noop, err
		}
		return st, st.Close, nil
	}
	return nil, noop, errors.Errorf("unknown snapshot driver %q", conf.Snapshot.Driver)
}
