package trade

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/leaftrade/pkg/chain"
	"github.com/uhyunpark/leaftrade/pkg/metrics"
	"github.com/uhyunpark/leaftrade/pkg/storage"
	"github.com/uhyunpark/leaftrade/pkg/tracker"
	"github.com/uhyunpark/leaftrade/pkg/wallet"
)

// WalletSession is the part of the wallet the service consults.
type WalletSession interface {
	Status() wallet.Status
}

type Deps struct {
	Wallet   WalletSession
	Writer   chain.Writer
	Watcher  chain.ReceiptWatcher
	Registry *tracker.Registry
	Contract common.Address
	Events   storage.EventLog // optional
	Logger   *zap.SugaredLogger
}

// Service turns form input into exactly one contract write per call and
// hands the resulting hash to a tracker.
type Service struct {
	deps Deps

	// watchers outlive the request that started them
	watchCtx context.Context
	wg       sync.WaitGroup
}

// NewService wires a Service. Confirmation watchers run until ctx is done.
func NewService(ctx context.Context, deps Deps) *Service {
	if deps.Events == nil {
		deps.Events = storage.NopEventLog{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}
	return &Service{deps: deps, watchCtx: ctx}
}

// CreateTrade validates form and submits createTrade.
func (s *Service) CreateTrade(ctx context.Context, form Form) (tracker.Snapshot, error) {
	if err := s.requireWallet(chain.MethodCreateTrade); err != nil {
		return tracker.Snapshot{}, err
	}
	req, err := form.Request()
	if err != nil {
		s.rejectInvalid(chain.MethodCreateTrade, err)
		return tracker.Snapshot{}, err
	}

	call := chain.Call{
		Address: s.deps.Contract,
		Method:  chain.MethodCreateTrade,
		Args:    chain.CreateTradeArgs(req.Amount, req.Price, uint8(req.Side), req.AssetSymbol),
	}
	return s.submit(ctx, call, map[string]interface{}{
		"amount":       req.Amount,
		"price":        req.Price,
		"side":         req.Side.String(),
		"asset_symbol": req.AssetSymbol,
	})
}

// ExecuteTrade validates tradeID and submits executeTrade.
func (s *Service) ExecuteTrade(ctx context.Context, tradeID string) (tracker.Snapshot, error) {
	if err := s.requireWallet(chain.MethodExecuteTrade); err != nil {
		return tracker.Snapshot{}, err
	}
	id, err := ParseTradeID(tradeID)
	if err != nil {
		s.rejectInvalid(chain.MethodExecuteTrade, err)
		return tracker.Snapshot{}, err
	}

	call := chain.Call{
		Address: s.deps.Contract,
		Method:  chain.MethodExecuteTrade,
		Args:    chain.ExecuteTradeArgs(id),
	}
	return s.submit(ctx, call, map[string]interface{}{"trade_id": id.String()})
}

// Wait blocks until every confirmation watcher has returned.
func (s *Service) Wait() { s.wg.Wait() }

func (s *Service) requireWallet(method string) error {
	if !s.deps.Wallet.Status().IsConnected {
		s.rejectInvalid(method, ErrWalletNotConnected)
		return ErrWalletNotConnected
	}
	return nil
}

func (s *Service) rejectInvalid(method string, err error) {
	metrics.IncSubmission(method, "invalid")
	s.deps.Logger.Infow("trade_rejected", "method", method, "err", err)
}

func (s *Service) submit(ctx context.Context, call chain.Call, fields map[string]interface{}) (tracker.Snapshot, error) {
	t := s.deps.Registry.New(call.Method)
	fields["submission_id"] = t.ID()

	hash, err := s.deps.Writer.WriteContract(ctx, call)
	if err != nil {
		snap, _ := t.Apply(tracker.SubmitFailed{Err: err})
		metrics.IncSubmission(call.Method, "rejected")
		s.deps.Logger.Errorw("trade_submit_failed",
			"submission_id", t.ID(),
			"method", call.Method,
			"err", err)
		fields["error"] = err.Error()
		s.recordEvent(call.Method, "FAILED", fields)
		return snap, &SubmissionError{Method: call.Method, SubmissionID: t.ID(), Err: err}
	}

	snap, err := t.Apply(tracker.Submitted{Hash: hash})
	if err != nil {
		// fresh tracker, cannot happen
		return snap, err
	}
	metrics.IncSubmission(call.Method, "accepted")
	s.deps.Logger.Infow("trade_submitted",
		"submission_id", t.ID(),
		"method", call.Method,
		"hash", hash.Hex())
	fields["tx_hash"] = hash.Hex()
	s.recordEvent(call.Method, "SUBMIT", fields)

	s.watch(t)
	return snap, nil
}

// Resume picks up submissions that were still Pending when the daemon last
// stopped: each is re-registered under its ID and its receipt watched again.
// It returns how many were resumed.
func (s *Service) Resume(prior []tracker.Snapshot) int {
	resumed := 0
	for _, snap := range prior {
		if snap.Status != tracker.Pending || snap.TxHash == nil {
			continue
		}
		t, err := s.deps.Registry.Restore(snap)
		if err != nil {
			s.deps.Logger.Warnw("submission_resume_failed", "submission_id", snap.ID, "err", err)
			continue
		}
		s.deps.Logger.Infow("submission_resumed",
			"submission_id", snap.ID,
			"method", snap.Method,
			"hash", snap.TxHash.Hex())
		s.watch(t)
		resumed++
	}
	return resumed
}

func (s *Service) watch(t *tracker.Tracker) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t.Watch(s.watchCtx, s.deps.Watcher)
	}()
}

func (s *Service) recordEvent(method, kind string, fields map[string]interface{}) {
	event := "TRADE_CREATE_" + kind
	if method == chain.MethodExecuteTrade {
		event = "TRADE_EXECUTE_" + kind
	}
	if err := s.deps.Events.Append(event, fields); err != nil {
		s.deps.Logger.Warnw("event_log_failed", "event", event, "err", err)
	}
}
