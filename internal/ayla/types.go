package ayla

import (
	"encoding/json"

	"github.com/nerrad567/gray-logic-shark/internal/shark"
)

// Device is one entry from the cloud's device list. The DSN is the stable
// serial identifier used as the reconciliation key against local state.
type Device struct {
	DSN              string `json:"dsn"`
	ProductName      string `json:"product_name"`
	Model            string `json:"model"`
	OEMModel         string `json:"oem_model"`
	SwVersion        string `json:"sw_version"`
	ConnectionStatus string `json:"connection_status"`
}

// deviceEnvelope matches the cloud's device-list shape: each array element
// wraps the device under a "device" key.
type deviceEnvelope struct {
	Device Device `json:"device"`
}

// propertyEnvelope matches the cloud's property-list shape: each array
// element wraps the property under a "property" key.
type propertyEnvelope struct {
	Property wireProperty `json:"property"`
}

// wireProperty is one named device property. Value is raw because the cloud
// mixes integer and string values in the same array; the whitelist switch
// decodes each name with the type it expects.
type wireProperty struct {
	Name        string          `json:"name"`
	Key         int             `json:"key"`
	Value       json.RawMessage `json:"value"`
	ProductName string          `json:"product_name"`
}

// Whitelisted property names. Anything else in the readout is ignored.
const (
	propBatteryCapacity    = "GET_Battery_Capacity"
	propOperatingMode      = "GET_Operating_Mode"
	propPowerMode          = "GET_Power_Mode"
	propChargingStatus     = "GET_Charging_Status"
	propDockedStatus       = "GET_DockedStatus"
	propErrorCode          = "GET_Error_Code"
	propRechargingToResume = "GET_Recharging_To_Resume"
	propRoomList           = "GET_Room_List"

	propSetOperatingMode = "SET_Operating_Mode"
	propSetPowerMode     = "SET_Power_Mode"
	propSetFindDevice    = "SET_Find_Device"
)

// parseProperties folds a property readout into a DeviceProperties value.
// Only whitelisted names are interpreted; a property whose value fails to
// decode is treated as absent rather than failing the whole readout.
func parseProperties(envelopes []propertyEnvelope) shark.DeviceProperties {
	var props shark.DeviceProperties

	for _, env := range envelopes {
		p := env.Property
		switch p.Name {
		case propBatteryCapacity:
			if v, ok := intValue(p.Value); ok {
				props.BatteryCapacity = v
			}
			// The battery property carries the product name the app
			// shows as the device's display name.
			props.DeviceName = p.ProductName

		case propOperatingMode:
			if v, ok := intValue(p.Value); ok {
				props.OperatingMode = shark.OperatingMode(v)
			}

		case propPowerMode:
			if v, ok := intValue(p.Value); ok {
				props.PowerMode = shark.PowerMode(v)
			}

		case propChargingStatus:
			if v, ok := intValue(p.Value); ok {
				props.Charging = v != 0
			}

		case propDockedStatus:
			if v, ok := intValue(p.Value); ok {
				props.Docked = v != 0
			}

		case propErrorCode:
			if v, ok := intValue(p.Value); ok {
				code := v
				props.ErrorCode = &code
			}

		case propRechargingToResume:
			if v, ok := intValue(p.Value); ok {
				props.RechargingToResume = v != 0
			}

		case propRoomList:
			if v, ok := stringValue(p.Value); ok {
				props.RoomList = v
			}

		case propSetOperatingMode:
			props.SetOperatingModeKey = p.Key

		case propSetPowerMode:
			props.SetPowerModeKey = p.Key

		case propSetFindDevice:
			props.SetFindDeviceKey = p.Key
		}
	}

	return props
}

// intValue decodes a raw property value as an integer. The cloud reports
// numeric properties as JSON numbers; null or a mismatched type reads as
// absent.
func intValue(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

// stringValue decodes a raw property value as a string.
func stringValue(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return v, true
}
