package inmemstore

import (
	"context"
	"sync"

	"github.com/AntoVGreco/app-instituto-MCV/core/institute"
)

// Store keeps the encoded snapshot in memory: loaded snapshots never share state with saved ones.
type Store struct {
	mutex sync.RWMutex
	data  []byte
	saves int

	// FailSave, when set, is returned by Save before anything is stored.
	FailSave error
}

var _ institute.Store = (*Store)(nil)

func New() *Store {
	return &Store{}
}

func (s *Store) Load(_ context.Context) (*institute.Snapshot, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.data == nil {
		return nil, institute.ErrSnapshotNotFound
	}
	return institute.DecodeSnapshot(s.data)
}

func (s *Store) Save(_ context.Context, snap *institute.Snapshot) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.FailSave != nil {
		return s.FailSave
	}
	data, err := institute.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	s.data = data
	s.saves++
	return nil
}

// Raw replaces the stored bytes, e.g. with a corrupt payload.
func (s *Store) Raw(data []byte) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.data = data
}

// Saves counts the successful saves.
func (s *Store) Saves() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.saves
}
