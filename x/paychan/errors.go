package paychan

import "github.com/iov-one/canal/errors"

// Payment channel extension takes error codes 1021-1029.
var (
	// ErrChannelExists is returned when opening a channel under an
	// identifier that is already taken.
	ErrChannelExists = errors.Register(1021, "channel exists")

	// ErrChannelNotFound is returned when no channel is stored under the
	// given identifier.
	ErrChannelNotFound = errors.Register(1022, "channel not found")

	// ErrChannelClosed is returned when a channel no longer accepts
	// fresh off chain updates.
	ErrChannelClosed = errors.Register(1023, "channel closed")

	// ErrInvalidSignature is returned when a balance update does not
	// carry a valid signature by the sender's key.
	ErrInvalidSignature = errors.Register(1024, "invalid signature")

	// ErrTimeoutNotReached is returned when a timeout gated operation is
	// submitted before the channel's timeout height.
	ErrTimeoutNotReached = errors.Register(1025, "timeout not reached")

	// ErrInvalidState is returned when the channel status does not allow
	// the operation, or when a balance update does not supersede the
	// last recorded nonce.
	ErrInvalidState = errors.Register(1026, "invalid state")

	// ErrInvalidAmount is returned when a balance split does not
	// redistribute exactly the locked total, or an opening deposit is
	// not positive.
	ErrInvalidAmount = errors.Register(1027, "invalid amount")
)
