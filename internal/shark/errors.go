package shark

import "errors"

// Domain errors for the shark package.
var (
	// ErrRoomEncoding is returned when a rooms-to-clean payload cannot be
	// expressed in the wire format.
	ErrRoomEncoding = errors.New("shark: room list encoding failed")
)
