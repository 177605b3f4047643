package bridge

import "errors"

// Domain-specific errors for the bridge.
var (
	// ErrTimeout is returned to a caller whose wait for an Outcome expired.
	ErrTimeout = errors.New("bridge: timed out waiting for outcome")

	// ErrPumpStopped is returned by Pump.Run after the pump has shut down.
	ErrPumpStopped = errors.New("bridge: pump stopped")
)
