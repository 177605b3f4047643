package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	// The daemon treats it as "no metrics sink" rather than a failure.
	ErrDisabled = errors.New("influxdb: sink disabled")

	// ErrConnectionFailed wraps the startup ping failure.
	ErrConnectionFailed = errors.New("influxdb: server unreachable at startup")

	// ErrNotConnected is reported once Close has run or the last ping failed.
	ErrNotConnected = errors.New("influxdb: sink not connected")

	// ErrWriteFailed wraps asynchronous batch write errors handed to the
	// OnError callback.
	ErrWriteFailed = errors.New("influxdb: task point write failed")
)
