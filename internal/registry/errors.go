package registry

import "errors"

// Sentinel errors for registry operations.
var (
	// ErrDeviceNotFound is returned when a device lookup matches nothing.
	ErrDeviceNotFound = errors.New("registry: device not found")

	// ErrFeatureNotFound is returned when a feature lookup matches nothing.
	ErrFeatureNotFound = errors.New("registry: feature not found")

	// ErrSettingNotFound is returned when a setting lookup matches nothing
	// and no default was supplied.
	ErrSettingNotFound = errors.New("registry: setting not found")

	// ErrMalformedSecret is returned when an obfuscated value cannot be
	// decoded back to cleartext.
	ErrMalformedSecret = errors.New("registry: malformed secret")
)
