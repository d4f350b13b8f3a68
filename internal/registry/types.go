package registry

import (
	"fmt"
	"time"
)

// Device is a host-side registry entry for one vacuum. The Key is the
// stable reconciliation address derived from the cloud serial; the ID is an
// opaque handle generated locally.
type Device struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Feature is one exposed value of a device: status, power mode, battery.
// Value is nil until the first poll writes one.
type Feature struct {
	ID          string    `json:"id"`
	DeviceID    string    `json:"device_id"`
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Value       *float64  `json:"value,omitempty"`
	DisplayText string    `json:"display_text,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Feature names used by the bridge.
const (
	FeatureStatus    = "status"
	FeaturePowerMode = "power_mode"
	FeatureBattery   = "battery"
)

// DeviceKey returns the registry address for a vacuum, derived from its
// cloud serial.
func DeviceKey(dsn string) string {
	return fmt.Sprintf("shark:%s", dsn)
}

// FeatureKey returns the registry address for one feature of a vacuum.
func FeatureKey(dsn, feature string) string {
	return fmt.Sprintf("shark:%s:%s", dsn, feature)
}
