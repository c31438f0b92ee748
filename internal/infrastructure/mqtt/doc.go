// Package mqtt provides the bus client for the Tuya bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS and retain flags
//   - Topic subscriptions with wildcard support, restored on reconnect
//   - Bridge availability via Last Will and Testament
//   - Topic builders for the device hierarchy (see Topics)
//
// # Architecture
//
//	Tuya Cloud ↔ bridge ↔ MQTT Broker ↔ home automation / dashboards
//
// The bridge publishes retained state, telemetry and discovery topics and
// subscribes to command topics under the configured prefix.
//
// # Security Considerations
//
//   - Enable TLS when the broker is not on localhost (cfg.Broker.TLS=true)
//   - Set credentials via MQTT_USERNAME / MQTT_PASSWORD
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.AllSingleSets(), 1, router.HandleMessage)
//	client.Publish(topics.DeviceState("bf1234", "switch_1"), []byte("ON"), 1, true)
package mqtt
