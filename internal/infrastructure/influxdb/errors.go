package influxdb

import "errors"

var (
	ErrNotConnected     = errors.New("influxdb: not connected")
	ErrConnectionFailed = errors.New("influxdb: connection failed")
	ErrDisabled         = errors.New("influxdb: disabled in configuration")

	// ErrWriteFailed means a point was rejected before queueing. Network
	// failures are reported asynchronously through SetOnError.
	ErrWriteFailed = errors.New("influxdb: write failed")
)
