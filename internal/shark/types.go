package shark

// OperatingMode is the vacuum's commanded operating mode as reported by the
// GET_Operating_Mode property (and written through SET_Operating_Mode).
type OperatingMode int

// Operating mode values on the wire.
const (
	OperatingModeNotRunning OperatingMode = 0
	OperatingModeSpotClean  OperatingMode = 1
	OperatingModeRunning    OperatingMode = 2
	OperatingModeDock       OperatingMode = 3
)

// String returns a human-readable operating mode name.
func (m OperatingMode) String() string {
	switch m {
	case OperatingModeNotRunning:
		return "not_running"
	case OperatingModeSpotClean:
		return "spot_clean"
	case OperatingModeRunning:
		return "running"
	case OperatingModeDock:
		return "dock"
	default:
		return "unknown"
	}
}

// PowerMode is the suction power setting.
type PowerMode int

// Power mode values on the wire.
const (
	PowerModeNormal PowerMode = 0
	PowerModeEco    PowerMode = 1
	PowerModeMax    PowerMode = 2
)

// String returns a human-readable power mode name.
func (m PowerMode) String() string {
	switch m {
	case PowerModeEco:
		return "eco"
	case PowerModeNormal:
		return "normal"
	case PowerModeMax:
		return "max"
	default:
		return "unknown"
	}
}

// DeviceProperties is a point-in-time readout of one vacuum. Each poll
// produces a fresh value that fully replaces the previous one; no history
// is kept.
type DeviceProperties struct {
	// DeviceName is the product name the cloud reports alongside the
	// battery property.
	DeviceName string

	// BatteryCapacity is the charge percentage (0-100).
	BatteryCapacity int

	OperatingMode OperatingMode
	PowerMode     PowerMode

	Charging           bool
	Docked             bool
	RechargingToResume bool

	// ErrorCode is the vacuum's error code, nil when the property was not
	// present in the readout. Zero is a real value meaning "no error".
	ErrorCode *int

	// RoomList is the raw base64 room-list payload, when the vacuum
	// reports one.
	RoomList string

	// Setter property keys captured from the same readout. The cloud
	// addresses writable properties by integer key; a zero key means the
	// property was absent (Ayla keys are positive).
	SetOperatingModeKey int
	SetPowerModeKey     int
	SetFindDeviceKey    int
}

// Status is the discrete, user-facing vacuum status derived from a
// DeviceProperties readout. The numeric values are part of the bridge's
// external contract (they appear as feature values on the bus) and must
// not be renumbered.
type Status int

// Status values.
const (
	StatusDisconnected       Status = 0
	StatusCharging           Status = 1
	StatusFullyChargedOnDock Status = 2
	StatusChargingToResume   Status = 3
	StatusEvacuating         Status = 4

	StatusNotRunning   Status = 10
	StatusRunning      Status = 11
	StatusSpotClean    Status = 12
	StatusReturnToDock Status = 13

	StatusStuck Status = 20

	StatusUnknownError Status = 99

	// StatusLocate is a write-only control value ("find my robot"). It is
	// accepted as a command but never produced by the resolver.
	StatusLocate Status = 100
)

// String returns a stable machine-readable status name.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusCharging:
		return "charging"
	case StatusFullyChargedOnDock:
		return "fully_charged_on_dock"
	case StatusChargingToResume:
		return "charging_to_resume"
	case StatusEvacuating:
		return "evacuating"
	case StatusNotRunning:
		return "not_running"
	case StatusRunning:
		return "running"
	case StatusSpotClean:
		return "spot_clean"
	case StatusReturnToDock:
		return "return_to_dock"
	case StatusStuck:
		return "stuck"
	case StatusUnknownError:
		return "unknown_error"
	case StatusLocate:
		return "locate"
	default:
		return "unknown"
	}
}
