package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uhyunpark/leaftrade/pkg/util"
)

var ErrNotFound = errors.New("submission not found")

// Registry holds the live trackers keyed by submission ID. Terminal trackers
// stay until Prune drops them; the journal keeps their final state.
type Registry struct {
	mu        sync.RWMutex
	trackers  map[string]*Tracker
	observers []Observer
	clock     util.Clock
}

func NewRegistry(clock util.Clock) *Registry {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Registry{
		trackers: make(map[string]*Tracker),
		clock:    clock,
	}
}

// OnTransition registers obs on every tracker created afterwards.
func (r *Registry) OnTransition(obs Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, obs)
}

// New creates a NotSubmitted tracker for method with a fresh ID.
func (r *Registry) New(method string) *Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()

	observers := make([]Observer, len(r.observers))
	copy(observers, r.observers)

	t := newTracker(uuid.NewString(), method, r.clock, observers)
	r.trackers[t.ID()] = t
	return t
}

// Restore registers a tracker for a snapshot loaded from the journal, under
// its original ID.
func (r *Registry) Restore(snap Snapshot) (*Tracker, error) {
	if snap.ID == "" {
		return nil, errors.New("restore: empty submission id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.trackers[snap.ID]; ok {
		return nil, fmt.Errorf("restore %s: already registered", snap.ID)
	}

	observers := make([]Observer, len(r.observers))
	copy(observers, r.observers)

	t := restoreTracker(snap, r.clock, observers)
	r.trackers[t.ID()] = t
	return t, nil
}

// Prune drops terminal trackers whose last update is older than retention
// and returns how many it removed.
func (r *Registry) Prune(retention time.Duration) int {
	cutoff := r.clock.Now().Add(-retention)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, t := range r.trackers {
		snap := t.Snapshot()
		if snap.Status.IsTerminal() && snap.UpdatedAt.Before(cutoff) {
			delete(r.trackers, id)
			removed++
		}
	}
	return removed
}

// RunEviction calls Prune every interval until ctx is done. onPrune, if set,
// receives each non-zero count.
func (r *Registry) RunEviction(ctx context.Context, retention, interval time.Duration, onPrune func(removed int)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.clock.After(interval):
		}
		if n := r.Prune(retention); n > 0 && onPrune != nil {
			onPrune(n)
		}
	}
}

func (r *Registry) Get(id string) (*Tracker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.trackers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

// List returns snapshots ordered by creation time, newest first.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	out := make([]Snapshot, 0, len(r.trackers))
	for _, t := range r.trackers {
		out = append(out, t.Snapshot())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
