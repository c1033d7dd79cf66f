package wallet

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/uhyunpark/leaftrade/pkg/crypto"
)

var (
	ErrNotConnected = errors.New("wallet not connected")
	ErrNoKey        = errors.New("no wallet key configured")
	ErrKeyMismatch  = errors.New("wallet key failed connect challenge")
)

// ConnectChallenge is signed on every connect. The signature is returned in
// Status so a client can check the account itself.
const ConnectChallenge = "connect LeafConfidentialTrade"

// Status is what the connect button shows: connected or not, and the account.
type Status struct {
	IsConnected bool            `json:"isConnected"`
	Address     *common.Address `json:"address"`
	Signature   hexutil.Bytes   `json:"signature,omitempty"`
}

// Session is the single wallet connection of the daemon. The key is loaded
// once; Connect and Disconnect only toggle whether it may be used.
type Session struct {
	mu        sync.RWMutex
	signer    *crypto.Signer
	connected bool
	proof     []byte
	listeners []func(Status)
	logger    *zap.SugaredLogger
}

// NewSession returns a disconnected session for signer. signer may be nil
// when no key is configured; Connect then fails with ErrNoKey.
func NewSession(signer *crypto.Signer, logger *zap.SugaredLogger) *Session {
	return &Session{signer: signer, logger: logger}
}

// FromPrivateKeyHex builds a session from a hex key; an empty key gives a
// keyless session.
func FromPrivateKeyHex(hexKey string, logger *zap.SugaredLogger) (*Session, error) {
	if hexKey == "" {
		return NewSession(nil, logger), nil
	}
	signer, err := crypto.FromPrivateKeyHex(hexKey)
	if err != nil {
		return nil, err
	}
	return NewSession(signer, logger), nil
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statusLocked()
}

func (s *Session) statusLocked() Status {
	if !s.connected {
		return Status{}
	}
	addr := s.signer.Address()
	return Status{IsConnected: true, Address: &addr, Signature: s.proof}
}

// Connect signs ConnectChallenge and marks the session connected once the
// signature recovers to the session's address.
func (s *Session) Connect() (Status, error) {
	if s.signer == nil {
		return Status{}, ErrNoKey
	}
	proof, err := prove(s.signer)
	if err != nil {
		s.logger.Warnw("wallet_connect_failed", "address", s.signer.Address().Hex(), "err", err)
		return Status{}, err
	}

	s.mu.Lock()
	changed := !s.connected
	s.connected = true
	s.proof = proof
	st := s.statusLocked()
	listeners := s.listeners
	s.mu.Unlock()

	if changed {
		s.logger.Infow("wallet_connected", "address", st.Address.Hex())
		notify(listeners, st)
	}
	return st, nil
}

func (s *Session) Disconnect() Status {
	s.mu.Lock()
	changed := s.connected
	s.connected = false
	s.proof = nil
	listeners := s.listeners
	s.mu.Unlock()

	if changed {
		s.logger.Infow("wallet_disconnected")
		notify(listeners, Status{})
	}
	return Status{}
}

// OnChange registers fn to be called after every connect/disconnect.
func (s *Session) OnChange(fn func(Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// TransactOpts implements chain.Transactor for the connected account.
func (s *Session) TransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error) {
	s.mu.RLock()
	signer, connected := s.signer, s.connected
	s.mu.RUnlock()

	if !connected {
		return nil, ErrNotConnected
	}
	opts, err := signer.TransactOpts(chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}

func prove(signer *crypto.Signer) ([]byte, error) {
	msg := []byte(ConnectChallenge)
	sig, err := signer.SignMessage(msg)
	if err != nil {
		return nil, err
	}
	if !crypto.VerifySignature(signer.Address(), msg, sig) {
		return nil, ErrKeyMismatch
	}
	return sig, nil
}

func notify(listeners []func(Status), st Status) {
	for _, fn := range listeners {
		fn(st)
	}
}
