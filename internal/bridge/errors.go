package bridge

import "errors"

// Domain errors for the bridge package.
var (
	// ErrNoDevices is returned at startup when the registry lists no devices.
	ErrNoDevices = errors.New("bridge: registry returned no devices")

	// ErrMalformedCommand is returned when a batch command payload is not a
	// JSON object.
	ErrMalformedCommand = errors.New("bridge: malformed command payload")

	// ErrNoRecognisedCodes is returned when a batch command contains no
	// switch or countdown codes.
	ErrNoRecognisedCodes = errors.New("bridge: no recognised codes in command")

	// ErrCommandFailed is returned when the registry rejects a command.
	ErrCommandFailed = errors.New("bridge: command rejected by registry")

	// ErrDispatchFailed is returned when a command could not reach the
	// registry and no result is available.
	ErrDispatchFailed = errors.New("bridge: command dispatch failed")
)
