package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/uhyunpark/leaftrade/pkg/chain"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) After(time.Duration) <-chan time.Time { return make(chan time.Time) }
func (c fixedClock) Now() time.Time                       { return c.t }

var (
	t0   = time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	hash = common.HexToHash("0x1234")
)

func TestTransition_Table(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		from    Status
		ev      Event
		want    Status
		wantErr bool
	}{
		{"submit", NotSubmitted, Submitted{Hash: hash}, Pending, false},
		{"submit call failed", NotSubmitted, SubmitFailed{Err: boom}, Failed, false},
		{"confirmed", Pending, ReceiptSuccess{Block: 3}, Confirmed, false},
		{"reverted", Pending, ReceiptFailed{Block: 3, Err: boom}, Failed, false},
		{"double submit", Pending, Submitted{Hash: hash}, Pending, true},
		{"receipt before submit", NotSubmitted, ReceiptSuccess{}, NotSubmitted, true},
		{"confirmed is terminal", Confirmed, ReceiptFailed{Err: boom}, Confirmed, true},
		{"failed is terminal", Failed, ReceiptSuccess{}, Failed, true},
		{"failed cannot resubmit", Failed, Submitted{Hash: hash}, Failed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(Snapshot{Status: tt.from}, tt.ev, t0)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, t0, got.UpdatedAt)
			}
			assert.Equal(t, tt.want, got.Status)
		})
	}
}

func TestTransition_RecordsDetails(t *testing.T) {
	s, err := Transition(Snapshot{}, Submitted{Hash: hash}, t0)
	require.NoError(t, err)
	require.NotNil(t, s.TxHash)
	assert.Equal(t, hash, *s.TxHash)

	s, err = Transition(s, ReceiptFailed{Block: 9, Err: errors.New("reverted")}, t0)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), s.Block)
	assert.Equal(t, "reverted", s.Error)

	s, err = Transition(Snapshot{}, SubmitFailed{}, t0)
	require.NoError(t, err)
	assert.Equal(t, "unknown error", s.Error)
}

// Confirmed is reachable only through Pending, and terminal states never move.
func TestTransition_Property(t *testing.T) {
	events := []Event{
		Submitted{Hash: hash},
		SubmitFailed{Err: errors.New("x")},
		ReceiptSuccess{Block: 1},
		ReceiptFailed{Err: errors.New("y")},
	}
	rapid.Check(t, func(t *rapid.T) {
		seq := rapid.SliceOf(rapid.IntRange(0, len(events)-1)).Draw(t, "events")
		s := Snapshot{}
		sawPending := false
		for _, i := range seq {
			prev := s
			next, err := Transition(s, events[i], t0)
			if prev.Status.IsTerminal() && err == nil {
				t.Fatalf("terminal state %s moved to %s", prev.Status, next.Status)
			}
			if next.Status == Confirmed && !sawPending {
				t.Fatalf("reached confirmed without pending")
			}
			if next.Status == Pending {
				sawPending = true
			}
			s = next
		}
	})
}

func TestStatus_Text(t *testing.T) {
	for _, s := range []Status{NotSubmitted, Pending, Confirmed, Failed} {
		b, err := s.MarshalText()
		require.NoError(t, err)
		var back Status
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, s, back)
	}
	var s Status
	assert.Error(t, s.UnmarshalText([]byte("lost")))

	b, err := json.Marshal(Snapshot{Status: Pending})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"status":"pending"`)
}

type stubWatcher struct {
	receipt *chain.Receipt
	err     error
	block   chan struct{}
}

func (w *stubWatcher) WaitReceipt(ctx context.Context, _ common.Hash) (*chain.Receipt, error) {
	if w.block != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-w.block:
		}
	}
	return w.receipt, w.err
}

func newTestRegistry() *Registry { return NewRegistry(fixedClock{t: t0}) }

func TestTracker_WatchConfirms(t *testing.T) {
	reg := newTestRegistry()
	var transitions []Status
	var mu sync.Mutex
	reg.OnTransition(func(_, next Snapshot) {
		mu.Lock()
		transitions = append(transitions, next.Status)
		mu.Unlock()
	})

	tr := reg.New(chain.MethodCreateTrade)
	assert.Equal(t, NotSubmitted, tr.Snapshot().Status)

	_, err := tr.Apply(Submitted{Hash: hash})
	require.NoError(t, err)

	tr.Watch(context.Background(), &stubWatcher{receipt: &chain.Receipt{TxHash: hash, BlockNumber: 5, Success: true}})

	snap := tr.Snapshot()
	assert.Equal(t, Confirmed, snap.Status)
	assert.Equal(t, uint64(5), snap.Block)
	assert.Equal(t, []Status{Pending, Confirmed}, transitions)

	select {
	case <-tr.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}

func TestTracker_WatchRevertFails(t *testing.T) {
	tr := newTestRegistry().New(chain.MethodExecuteTrade)
	_, _ = tr.Apply(Submitted{Hash: hash})

	tr.Watch(context.Background(), &stubWatcher{receipt: &chain.Receipt{TxHash: hash, BlockNumber: 2}})

	snap := tr.Snapshot()
	assert.Equal(t, Failed, snap.Status)
	assert.Contains(t, snap.Error, "reverted")
}

func TestTracker_WatcherErrorFails(t *testing.T) {
	tr := newTestRegistry().New(chain.MethodCreateTrade)
	_, _ = tr.Apply(Submitted{Hash: hash})

	tr.Watch(context.Background(), &stubWatcher{err: errors.New("node gone")})

	assert.Equal(t, Failed, tr.Snapshot().Status)
}

func TestTracker_WatchCancelledLeavesPending(t *testing.T) {
	tr := newTestRegistry().New(chain.MethodCreateTrade)
	_, _ = tr.Apply(Submitted{Hash: hash})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr.Watch(ctx, &stubWatcher{block: make(chan struct{})})

	assert.Equal(t, Pending, tr.Snapshot().Status)
}

func TestTracker_WatchIgnoresNonPending(t *testing.T) {
	tr := newTestRegistry().New(chain.MethodCreateTrade)
	_, _ = tr.Apply(SubmitFailed{Err: errors.New("rejected")})

	tr.Watch(context.Background(), &stubWatcher{receipt: &chain.Receipt{Success: true}})

	assert.Equal(t, Failed, tr.Snapshot().Status)
}

func TestRegistry_GetAndList(t *testing.T) {
	reg := newTestRegistry()
	a := reg.New(chain.MethodCreateTrade)
	b := reg.New(chain.MethodExecuteTrade)
	assert.NotEqual(t, a.ID(), b.ID())

	got, err := reg.Get(a.ID())
	require.NoError(t, err)
	assert.Same(t, a, got)

	_, err = reg.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Len(t, reg.List(), 2)
}

type manualClock struct {
	mu   sync.Mutex
	now  time.Time
	tick chan time.Time
}

func newManualClock(now time.Time) *manualClock {
	return &manualClock{now: now, tick: make(chan time.Time)}
}

func (c *manualClock) After(time.Duration) <-chan time.Time { return c.tick }

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRegistry_Restore(t *testing.T) {
	reg := newTestRegistry()
	var seen []Snapshot
	reg.OnTransition(func(_, next Snapshot) { seen = append(seen, next) })

	h := hash
	pending := Snapshot{ID: "prior-1", Method: chain.MethodCreateTrade, Status: Pending, TxHash: &h, CreatedAt: t0, UpdatedAt: t0}
	tr, err := reg.Restore(pending)
	require.NoError(t, err)
	assert.Equal(t, "prior-1", tr.ID())
	assert.Equal(t, pending, tr.Snapshot())

	got, err := reg.Get("prior-1")
	require.NoError(t, err)
	assert.Same(t, tr, got)

	tr.Watch(context.Background(), &stubWatcher{receipt: &chain.Receipt{TxHash: hash, BlockNumber: 9, Success: true}})
	assert.Equal(t, Confirmed, tr.Snapshot().Status)
	require.Len(t, seen, 1)
	assert.Equal(t, uint64(9), seen[0].Block)

	_, err = reg.Restore(pending)
	assert.Error(t, err)
	_, err = reg.Restore(Snapshot{})
	assert.Error(t, err)

	done, err := reg.Restore(Snapshot{ID: "prior-2", Status: Failed, CreatedAt: t0, UpdatedAt: t0})
	require.NoError(t, err)
	select {
	case <-done.Done():
	default:
		t.Fatal("restored terminal tracker should be done")
	}
}

func TestRegistry_PruneDropsOldTerminal(t *testing.T) {
	clock := newManualClock(t0)
	reg := NewRegistry(clock)

	confirmed := reg.New(chain.MethodCreateTrade)
	_, err := confirmed.Apply(Submitted{Hash: hash})
	require.NoError(t, err)
	_, err = confirmed.Apply(ReceiptSuccess{Block: 1})
	require.NoError(t, err)

	pending := reg.New(chain.MethodExecuteTrade)
	_, err = pending.Apply(Submitted{Hash: hash})
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	assert.Equal(t, 0, reg.Prune(time.Hour))

	clock.Advance(time.Hour)
	assert.Equal(t, 1, reg.Prune(time.Hour))

	_, err = reg.Get(confirmed.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = reg.Get(pending.ID())
	assert.NoError(t, err)
	assert.Len(t, reg.List(), 1)
}

func TestRegistry_RunEviction(t *testing.T) {
	clock := newManualClock(t0)
	reg := NewRegistry(clock)

	tr := reg.New(chain.MethodCreateTrade)
	_, err := tr.Apply(SubmitFailed{Err: errors.New("rejected")})
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	pruned := make(chan int, 1)
	stopped := make(chan struct{})
	go func() {
		reg.RunEviction(ctx, time.Hour, time.Minute, func(n int) { pruned <- n })
		close(stopped)
	}()

	clock.tick <- t0
	select {
	case n := <-pruned:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("eviction did not run")
	}
	assert.Empty(t, reg.List())

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("eviction loop did not stop")
	}
}
