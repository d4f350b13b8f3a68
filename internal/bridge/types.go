package bridge

import (
	"time"

	"github.com/nerrad567/gray-logic-shark/internal/shark"
)

// Binding ties one cloud device to its host registry entries. Bindings are
// rebuilt by reconciliation after every login and are owned exclusively by
// the engine's control flow.
type Binding struct {
	// DSN is the cloud serial, the reconciliation key.
	DSN string

	// Name is the display name last reported by the cloud.
	Name string

	// Registry handles. Opaque; never derived from cloud identifiers.
	DeviceID           string
	StatusFeatureID    string
	PowerModeFeatureID string
	BatteryFeatureID   string

	// LastProperties is the most recent successful readout. It carries
	// the setter keys commands need, so a device accepts no commands
	// until its first completed poll.
	LastProperties shark.DeviceProperties

	// LastStatus is the most recent resolved status. Retained across
	// failed polls so a single missed fetch never flaps the displayed
	// state.
	LastStatus shark.Status

	// Observed is false until the first successful readout.
	Observed bool
}

// EngineStatusLevel grades the engine's aggregate condition.
type EngineStatusLevel int

// Engine status levels, ordered by severity.
const (
	// LevelOK: last poll pass succeeded for every device.
	LevelOK EngineStatusLevel = iota

	// LevelInfo: transitional states such as logging in or syncing.
	LevelInfo

	// LevelWarning: the engine is degraded but self-healing - a device
	// fetch failed, or a token refresh failed and is being retried.
	LevelWarning

	// LevelCritical: login failed; the engine keeps retrying but no
	// polling happens until it succeeds.
	LevelCritical

	// LevelFatal: a condition retries cannot fix, such as missing
	// credentials.
	LevelFatal
)

// String returns a short level name for logs and health payloads.
func (l EngineStatusLevel) String() string {
	switch l {
	case LevelOK:
		return "ok"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	case LevelFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// EngineStatus is the engine's aggregate condition plus the human-readable
// message of the last failure that set it.
type EngineStatus struct {
	Level   EngineStatusLevel `json:"level"`
	Message string            `json:"message,omitempty"`
	Since   time.Time         `json:"since"`
}

// DeviceSnapshot is a read-only view of one binding for the admin API and
// discovery payloads.
type DeviceSnapshot struct {
	DSN        string          `json:"dsn"`
	Name       string          `json:"name"`
	Status     shark.Status    `json:"status"`
	StatusText string          `json:"status_text"`
	Battery    int             `json:"battery"`
	PowerMode  shark.PowerMode `json:"power_mode"`
	Observed   bool            `json:"observed"`
	RoomsKnown bool            `json:"rooms_known"`
}
