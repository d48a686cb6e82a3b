package walletauth

import (
	"errors"
	"fmt"
)

var (
	// ErrUserRejected is returned by signers when the user declines to sign
	ErrUserRejected = errors.New("user rejected the request")

	// ErrNoChallenge is returned when the backend did not issue a challenge
	ErrNoChallenge = errors.New("failed to create authentication challenge")

	// ErrVerificationFailed is returned when the backend rejects a signed challenge
	ErrVerificationFailed = errors.New("wallet verification failed")

	// ErrSessionNotRecognized is returned when the identity probe disagrees with the session
	ErrSessionNotRecognized = errors.New("session is not recognized by the data layer")

	// ErrAccountMismatch is returned when a signer is asked for an account it does not hold
	ErrAccountMismatch = errors.New("wallet does not control the requested account")

	// ErrWalletChanged is returned when the connected wallet moved away from
	// the signing address before a session could be committed
	ErrWalletChanged = errors.New("wallet changed during authentication")
)

// BackendError is a non-2xx response from the hosted backend
type BackendError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *BackendError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
}
