package bridge

import "errors"

var (
	errNilConfig = errors.New("bridge: engine not configured")

	// ErrInvalidAddress rejects a zero identifier where an entity reference
	// is required.
	ErrInvalidAddress = errors.New("bridge: invalid address")
	// ErrInvalidAmount rejects a zero or negative amount where a positive
	// value is required.
	ErrInvalidAmount = errors.New("bridge: amount must be positive")
	// ErrFeeTooHigh rejects a request whose max fee is not strictly below
	// the transfer amount.
	ErrFeeTooHigh = errors.New("bridge: max fee must be below amount")
	// ErrTransferFailed reports a failed custody pull or refund.
	ErrTransferFailed = errors.New("bridge: asset transfer failed")
	// ErrExternalCallFailed reports a failed or reverted call into the
	// lending facility, the messenger or the oracle.
	ErrExternalCallFailed = errors.New("bridge: external call failed")
	// ErrInvalidConfiguration reports degenerate pricing or reserve data
	// encountered while sizing a borrow.
	ErrInvalidConfiguration = errors.New("bridge: invalid configuration")
)
