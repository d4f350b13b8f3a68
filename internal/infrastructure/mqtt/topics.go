package mqtt

import "fmt"

// Topic layout for the Shark bridge on the Gray Logic bus.
//
// The bridge follows the flat bridge scheme used by all Gray Logic protocol
// bridges: graylogic/{category}/shark/{address...}. Feature state topics are
// retained so the host sees current state immediately after (re)subscribing;
// command and ack topics are not retained.
const (
	// topicPrefix is the base for all bus topics.
	topicPrefix = "graylogic"

	// protocolName identifies this bridge in topic paths.
	protocolName = "shark"
)

// Topics provides builders for the bridge's MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.FeatureState("AC000W000000000", "status")
//	// Returns: "graylogic/state/shark/AC000W000000000/status"
type Topics struct{}

// FeatureState returns the retained state topic for one feature of a device.
//
// Example: graylogic/state/shark/AC000W000000000/battery
func (Topics) FeatureState(dsn, feature string) string {
	return fmt.Sprintf("%s/state/%s/%s/%s", topicPrefix, protocolName, dsn, feature)
}

// DeviceCommand returns the command topic for a device.
//
// Example: graylogic/command/shark/AC000W000000000
func (Topics) DeviceCommand(dsn string) string {
	return fmt.Sprintf("%s/command/%s/%s", topicPrefix, protocolName, dsn)
}

// CommandAck returns the acknowledgement topic for a specific command.
//
// Example: graylogic/ack/shark/7f8a2c
func (Topics) CommandAck(commandID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", topicPrefix, protocolName, commandID)
}

// BridgeHealth returns the bridge health status topic.
//
// Example: graylogic/health/shark
func (Topics) BridgeHealth() string {
	return fmt.Sprintf("%s/health/%s", topicPrefix, protocolName)
}

// BridgeAvailability returns the online/offline availability topic.
// This topic carries the LWT message on unexpected disconnect.
//
// Example: graylogic/availability/shark
func (Topics) BridgeAvailability() string {
	return fmt.Sprintf("%s/availability/%s", topicPrefix, protocolName)
}

// DeviceDiscovery returns the topic where newly bound devices are announced.
//
// Example: graylogic/discovery/shark
func (Topics) DeviceDiscovery() string {
	return fmt.Sprintf("%s/discovery/%s", topicPrefix, protocolName)
}

// AllDeviceCommands returns a pattern matching commands for every device.
//
// Pattern: graylogic/command/shark/+
func (Topics) AllDeviceCommands() string {
	return fmt.Sprintf("%s/command/%s/+", topicPrefix, protocolName)
}

// CommandDSN extracts the device serial from a command topic.
// Returns an empty string if the topic does not match the command scheme.
func (Topics) CommandDSN(topic string) string {
	prefix := fmt.Sprintf("%s/command/%s/", topicPrefix, protocolName)
	if len(topic) <= len(prefix) || topic[:len(prefix)] != prefix {
		return ""
	}
	dsn := topic[len(prefix):]
	for i := 0; i < len(dsn); i++ {
		if dsn[i] == '/' {
			return "" // deeper than the command scheme allows
		}
	}
	return dsn
}
