// Package mqtt provides the Shark bridge's connection to the Gray Logic bus.
//
// The bridge publishes retained per-feature state topics, subscribes to
// device command topics, and reports its own health and availability. It
// wraps paho.mqtt.golang with connection management, automatic
// re-subscription after reconnects, and panic-safe message handlers.
//
// # Topic layout
//
//	graylogic/state/shark/{dsn}/{feature}   retained feature state (status, power_mode, battery)
//	graylogic/command/shark/{dsn}           inbound device commands
//	graylogic/ack/shark/{command_id}        command acknowledgements
//	graylogic/health/shark                  periodic engine health
//	graylogic/availability/shark            retained online/offline (LWT)
//	graylogic/discovery/shark               announcements for newly bound devices
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{}
//	client.PublishRetained(topics.FeatureState(dsn, "battery"), payload)
//
// # Thread Safety
//
// All exported methods are safe for concurrent use.
package mqtt
