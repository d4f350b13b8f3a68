package bridge

import "errors"

// Sentinel errors for engine operations.
var (
	// ErrNotRunning is returned when the engine has not been started or
	// has been stopped.
	ErrNotRunning = errors.New("bridge: engine not running")

	// ErrNoCredentials is returned when no account credentials are stored
	// and none were supplied.
	ErrNoCredentials = errors.New("bridge: no credentials configured")

	// ErrUnknownDevice is returned when a command addresses a serial the
	// engine has no binding for.
	ErrUnknownDevice = errors.New("bridge: unknown device")

	// ErrUnknownAction is returned when a command carries an action the
	// bridge does not implement.
	ErrUnknownAction = errors.New("bridge: unknown action")

	// ErrCommandNotReady is returned when a command needs a setter
	// property key the device has not reported yet (no completed poll).
	ErrCommandNotReady = errors.New("bridge: device not ready for commands")

	// ErrNoRoomList is returned when a room-clean command arrives before
	// the device has reported its room list.
	ErrNoRoomList = errors.New("bridge: device has not reported a room list")

	// ErrUnknownRoom is returned when a room-clean command names a room
	// the device's reported list does not contain.
	ErrUnknownRoom = errors.New("bridge: unknown room")
)
