package trade

import (
	"errors"
	"fmt"
)

// ErrWalletNotConnected rejects a submission before any network call.
var ErrWalletNotConnected = errors.New("please connect your wallet first")

// ValidationError is a missing or malformed form field. Nothing was sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SubmissionError is a write call the external capability rejected.
type SubmissionError struct {
	Method       string
	SubmissionID string
	Err          error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit %s: %v", e.Method, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// IsValidation reports whether err was raised before anything was sent,
// either a bad field or a disconnected wallet.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) || errors.Is(err, ErrWalletNotConnected)
}
