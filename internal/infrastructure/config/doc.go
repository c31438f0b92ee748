// Package config handles loading and validating the Tuya bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (cleanenv, see the env struct tags)
//   - Validation of required credentials and governance rules
//   - Default value handling
//
// Security Considerations:
//   - Registry and broker secrets should be set via environment variables
//     (TUYA_API_KEY, TUYA_API_SECRET, MQTT_PASSWORD)
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// A minimal environment-only deployment passes an empty path:
//
//	TUYA_API_KEY=... TUYA_API_SECRET=... MQTT_BROKER=broker.local tuyabridge
package config
