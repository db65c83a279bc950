package mesh

import "errors"

// Frame codec errors. Every decode failure wraps ErrFrameMalformed.
var (
	ErrFrameMalformed  = errors.New("mesh: malformed frame")
	ErrFrameTooShort   = errors.New("mesh: frame shorter than header")
	ErrLengthMismatch  = errors.New("mesh: payload length does not match frame size")
	ErrUnknownType     = errors.New("mesh: unknown message type")
	ErrPayloadTooLarge = errors.New("mesh: payload exceeds 31 bytes")
	ErrShortBuffer     = errors.New("mesh: destination buffer too small")
)

// Filter errors. Frames rejected by the filter are dropped silently.
var (
	ErrForeignNetwork = errors.New("mesh: frame belongs to another network")
	ErrNotAddressed   = errors.New("mesh: frame not addressed to this device")
	ErrOwnFrame       = errors.New("mesh: frame originated by this device")
)

// Table and lifecycle errors.
var (
	// ErrTableFull indicates that a bounded table (pending acknowledgments or
	// group memberships) has no free slot. The request was not recorded.
	ErrTableFull = errors.New("mesh: table full")

	// ErrInvalidGroup indicates a reserved group identifier (0x0000 or 0xFFFF).
	ErrInvalidGroup = errors.New("mesh: invalid group identifier")

	// ErrInvalidDestination indicates a unicast destination that can never
	// accept the frame: the broadcast address or the local device itself.
	ErrInvalidDestination = errors.New("mesh: invalid destination")

	// ErrNotMember indicates that the device is not a member of the group.
	ErrNotMember = errors.New("mesh: not a member of group")

	// ErrClosed indicates that the transport has been closed.
	ErrClosed = errors.New("mesh: transport closed")

	// ErrHostNil indicates that NewTransport was called without a host.
	ErrHostNil = errors.New("mesh: host is nil")

	// ErrConfigNil indicates that NewTransport was called without a config.
	ErrConfigNil = errors.New("mesh: config is nil")
)
