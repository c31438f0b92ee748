// Package logging provides structured logging for the Tuya bridge.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same format and default fields.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// TUYABRIDGE_LOG_LEVEL and TUYABRIDGE_LOG_FORMAT override the file.
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("poller").Info("cycle complete", "devices", 12)
//
// # Security
//
// Never log the registry access secret, access tokens or broker passwords.
package logging
