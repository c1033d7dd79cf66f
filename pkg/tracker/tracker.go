package tracker

import (
	"context"
	"errors"
	"sync"

	"github.com/uhyunpark/leaftrade/pkg/chain"
	"github.com/uhyunpark/leaftrade/pkg/util"
)

// Observer is called after every successful transition, outside the lock.
type Observer func(prev, next Snapshot)

// Tracker owns one transaction handle for the lifetime of one submission.
type Tracker struct {
	id        string
	mu        sync.Mutex
	snap      Snapshot
	clock     util.Clock
	observers []Observer
	done      chan struct{}
}

func newTracker(id, method string, clock util.Clock, observers []Observer) *Tracker {
	now := clock.Now()
	return &Tracker{
		id: id,
		snap: Snapshot{
			ID:        id,
			Method:    method,
			Status:    NotSubmitted,
			CreatedAt: now,
			UpdatedAt: now,
		},
		clock:     clock,
		observers: observers,
		done:      make(chan struct{}),
	}
}

// restoreTracker rebuilds a tracker from a journaled snapshot.
func restoreTracker(snap Snapshot, clock util.Clock, observers []Observer) *Tracker {
	t := &Tracker{
		id:        snap.ID,
		snap:      snap,
		clock:     clock,
		observers: observers,
		done:      make(chan struct{}),
	}
	if snap.Status.IsTerminal() {
		close(t.done)
	}
	return t
}

func (t *Tracker) ID() string { return t.id }

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// Done is closed once the tracker reaches Confirmed or Failed.
func (t *Tracker) Done() <-chan struct{} { return t.done }

// Apply feeds one event through the state machine.
func (t *Tracker) Apply(ev Event) (Snapshot, error) {
	t.mu.Lock()
	prev := t.snap
	next, err := Transition(prev, ev, t.clock.Now())
	if err != nil {
		t.mu.Unlock()
		return prev, err
	}
	t.snap = next
	observers := t.observers
	t.mu.Unlock()

	for _, obs := range observers {
		obs(prev, next)
	}
	if next.Status.IsTerminal() {
		close(t.done)
	}
	return next, nil
}

// Watch waits on w for the pending transaction and applies the outcome.
// It has no timeout. If ctx ends first the status is left untouched.
func (t *Tracker) Watch(ctx context.Context, w chain.ReceiptWatcher) {
	snap := t.Snapshot()
	if snap.Status != Pending || snap.TxHash == nil {
		return
	}

	receipt, err := w.WaitReceipt(ctx, *snap.TxHash)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return
		}
		_, _ = t.Apply(ReceiptFailed{Err: err})
		return
	}

	if receipt.Success {
		_, _ = t.Apply(ReceiptSuccess{Block: receipt.BlockNumber})
	} else {
		_, _ = t.Apply(ReceiptFailed{Block: receipt.BlockNumber, Err: receipt.Err()})
	}
}
