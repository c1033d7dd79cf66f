package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/uhyunpark/leaftrade/pkg/tracker"
)

// PebbleStore is the submission journal. Every tracker transition overwrites
// the submission's record, so the latest snapshot survives a restart.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

// SaveSubmission persists snap under its ID.
func (s *PebbleStore) SaveSubmission(snap tracker.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal submission: %w", err)
	}
	if err := s.db.Set(submissionKey(snap.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save submission: %w", err)
	}
	return nil
}

// LoadSubmission returns tracker.ErrNotFound if id was never saved.
func (s *PebbleStore) LoadSubmission(id string) (tracker.Snapshot, error) {
	data, closer, err := s.db.Get(submissionKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return tracker.Snapshot{}, tracker.ErrNotFound
	}
	if err != nil {
		return tracker.Snapshot{}, fmt.Errorf("failed to get submission: %w", err)
	}
	defer closer.Close()

	var snap tracker.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return tracker.Snapshot{}, fmt.Errorf("failed to unmarshal submission: %w", err)
	}
	return snap, nil
}

// LoadSubmissions scans every record. Entries that fail to decode are skipped.
func (s *PebbleStore) LoadSubmissions() ([]tracker.Snapshot, error) {
	prefix := []byte(prefixSubmission)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	var out []tracker.Snapshot
	for iter.First(); iter.Valid(); iter.Next() {
		var snap tracker.Snapshot
		if err := json.Unmarshal(iter.Value(), &snap); err != nil {
			continue
		}
		out = append(out, snap)
	}
	return out, iter.Error()
}

// Observer adapts the store to tracker.Registry.OnTransition. Save errors go
// to onErr.
func (s *PebbleStore) Observer(onErr func(error)) tracker.Observer {
	return func(_, next tracker.Snapshot) {
		if err := s.SaveSubmission(next); err != nil && onErr != nil {
			onErr(err)
		}
	}
}
