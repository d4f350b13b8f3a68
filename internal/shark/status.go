package shark

import "fmt"

// stuckErrorCodes are the error codes that indicate the vacuum is stuck
// rather than suffering some other fault (wheel jam, side brush jam,
// cliff sensor).
var stuckErrorCodes = map[int]bool{
	5: true,
	6: true,
	8: true,
}

// ResolveStatus collapses a raw property readout into one discrete status.
//
// The rules form an ordered decision list; the first match wins and the
// order is part of the contract. A docked, fully charged vacuum also
// satisfies the plain "charging" rule, but reports FullyChargedOnDock
// because that rule is checked first.
//
// ResolveStatus is pure: no I/O, no mutation, identical input always
// produces identical output.
func ResolveStatus(props DeviceProperties) Status {
	errorCode := 0
	if props.ErrorCode != nil {
		errorCode = *props.ErrorCode
	}

	switch {
	case (props.Charging || props.Docked) && props.BatteryCapacity == 100 && !props.RechargingToResume:
		return StatusFullyChargedOnDock

	case props.Charging && props.RechargingToResume:
		return StatusChargingToResume

	case props.Charging:
		return StatusCharging

	case props.OperatingMode == OperatingModeRunning:
		return StatusRunning

	case props.OperatingMode == OperatingModeSpotClean:
		return StatusSpotClean

	case props.OperatingMode == OperatingModeDock && !props.Docked:
		return StatusReturnToDock

	case stuckErrorCodes[errorCode]:
		return StatusStuck

	case errorCode > 0:
		return StatusUnknownError

	default:
		return StatusNotRunning
	}
}

// StatusDisplayText returns the display string written alongside a status
// value. Most statuses carry no text; unknown errors carry the raw code so
// the user can look it up.
func StatusDisplayText(status Status, props DeviceProperties) string {
	if status != StatusUnknownError || props.ErrorCode == nil {
		return ""
	}
	return fmt.Sprintf("Unknown Error %d", *props.ErrorCode)
}
