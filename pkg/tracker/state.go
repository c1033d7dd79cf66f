package tracker

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// Status of one submission.
//
//	NotSubmitted -> Pending -> Confirmed
//	NotSubmitted -> Failed            (the write call itself failed)
//	Pending      -> Failed            (reverted, or the watcher failed)
type Status int

const (
	NotSubmitted Status = iota
	Pending
	Confirmed
	Failed
)

func (s Status) String() string {
	switch s {
	case NotSubmitted:
		return "not_submitted"
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s Status) IsTerminal() bool { return s == Confirmed || s == Failed }

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	for _, v := range []Status{NotSubmitted, Pending, Confirmed, Failed} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", b)
}

// Event drives a tracker. The concrete types below are the only events.
type Event interface{ isEvent() }

// Submitted: the write capability accepted the call and returned a handle.
type Submitted struct{ Hash common.Hash }

// SubmitFailed: the write capability rejected the call.
type SubmitFailed struct{ Err error }

// ReceiptSuccess: the confirmation watcher saw a successful receipt.
type ReceiptSuccess struct{ Block uint64 }

// ReceiptFailed: the receipt reverted or the watcher itself failed.
type ReceiptFailed struct {
	Block uint64
	Err   error
}

func (Submitted) isEvent()      {}
func (SubmitFailed) isEvent()   {}
func (ReceiptSuccess) isEvent() {}
func (ReceiptFailed) isEvent()  {}

// Snapshot is the observable state of a submission.
type Snapshot struct {
	ID        string       `json:"id"`
	Method    string       `json:"method"`
	Status    Status       `json:"status"`
	TxHash    *common.Hash `json:"txHash,omitempty"`
	Block     uint64       `json:"block,omitempty"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Transition applies ev to s. It is pure; on error s is returned unchanged.
func Transition(s Snapshot, ev Event, now time.Time) (Snapshot, error) {
	next := s
	switch e := ev.(type) {
	case Submitted:
		if s.Status != NotSubmitted {
			return s, invalid(s.Status, ev)
		}
		h := e.Hash
		next.Status = Pending
		next.TxHash = &h

	case SubmitFailed:
		if s.Status != NotSubmitted {
			return s, invalid(s.Status, ev)
		}
		next.Status = Failed
		next.Error = errString(e.Err)

	case ReceiptSuccess:
		if s.Status != Pending {
			return s, invalid(s.Status, ev)
		}
		next.Status = Confirmed
		next.Block = e.Block

	case ReceiptFailed:
		if s.Status != Pending {
			return s, invalid(s.Status, ev)
		}
		next.Status = Failed
		next.Block = e.Block
		next.Error = errString(e.Err)

	default:
		return s, fmt.Errorf("%w: unknown event %T", ErrInvalidTransition, ev)
	}
	next.UpdatedAt = now
	return next, nil
}

func invalid(from Status, ev Event) error {
	return fmt.Errorf("%w: %T in state %s", ErrInvalidTransition, ev, from)
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
