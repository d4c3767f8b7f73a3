package merchantd

import (
	"errors"
	"fmt"
)

// ErrInvalidTokenFormat rejects claim tokens that are not 32 lowercase hex characters.
var ErrInvalidTokenFormat = errors.New("merchantd: claim token must be 32 lowercase hex characters")

// ErrInvalidCodeFormat rejects promo codes outside the 6-8 alphanumeric shape.
var ErrInvalidCodeFormat = errors.New("merchantd: promo code must be 6-8 alphanumeric characters")

// ErrOutOfRange indicates a numeric setting outside its permitted range.
var ErrOutOfRange = errors.New("merchantd: value out of range")

// ErrInvalidRate indicates a commission level outside [0,50] or off the 0.5 step.
var ErrInvalidRate = errors.New("merchantd: invalid commission rate")

// ErrStateViolation indicates an action attempted outside its allowed state.
var ErrStateViolation = errors.New("merchantd: action not allowed in current state")

// ErrRemoteUnavailable indicates the commerce platform could not be reached or
// returned an unparseable payload. Callers must treat this as unknown, not failure.
var ErrRemoteUnavailable = errors.New("merchantd: commerce platform unreachable")

// ErrRemoteRejected indicates the commerce platform returned success=false.
var ErrRemoteRejected = errors.New("merchantd: commerce platform rejected the request")

// ErrUnauthorized indicates the caller lacks the admin capability.
var ErrUnauthorized = errors.New("merchantd: admin capability required")

// ErrModeUnsupported indicates the connected wallet type cannot serve the payout mode.
var ErrModeUnsupported = errors.New("merchantd: payout mode not supported by connected wallet")

// ErrReferralAlreadySet indicates the one-time referral code was already applied.
var ErrReferralAlreadySet = errors.New("merchantd: referral code already applied")

// ErrStatusUnavailable indicates wallet status could not be determined.
var ErrStatusUnavailable = errors.New("merchantd: wallet status unavailable")

// ErrPollTimeout indicates a bounded poll exhausted its attempt ceiling.
var ErrPollTimeout = errors.New("merchantd: polling attempt ceiling reached")

// ErrNotConnected indicates a store-scoped action was attempted without credentials.
var ErrNotConnected = errors.New("merchantd: store is not connected")

// ErrConfirmationMismatch rejects a delete request without the exact confirmation phrase.
var ErrConfirmationMismatch = errors.New("merchantd: confirmation phrase does not match")

func remoteRejected(reason string) error {
	if reason == "" {
		reason = "unknown error"
	}
	return fmt.Errorf("%w: %s", ErrRemoteRejected, reason)
}

func remoteUnavailable(err error) error {
	if err == nil {
		return ErrRemoteUnavailable
	}
	return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
}
