// Package driver defines the capability contract every protocol driver
// implements and the base supervisor that gives all of them a common
// connect/poll/retry/timeout/status state machine, grounded on the
// teacher's SerialBusPoller ticker+select loop (internal/poller/poller.go)
// but generalized from "one bus, many devices" to "one driver per sensor",
// since the unit of concurrency the spec cares about is the sensor.
package driver

import "context"

// Driver is the capability set §4.1 requires of every protocol
// implementation. Write defaults to ErrUnsupportedWrite; only Modbus
// (holding/coil), MQTT (command topic) and virtual-output override it.
type Driver interface {
	Connect(ctx context.Context) error
	Disconnect()
	Read(ctx context.Context) (float64, error)
	Write(ctx context.Context, value float64) error
}

// BaseWrite can be embedded by read-only drivers so they only need to
// implement Connect/Disconnect/Read.
type BaseWrite struct{}

func (BaseWrite) Write(ctx context.Context, value float64) error {
	return ErrUnsupportedWrite
}

// State is the supervisor's lifecycle state machine (§4.1):
// STOPPED -> CONNECTING -> ONLINE <-> ERROR -> OFFLINE -> STOPPED.
type State int

const (
	StateStopped State = iota
	StateConnecting
	StateOnline
	StateError
	StateOffline
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateConnecting:
		return "CONNECTING"
	case StateOnline:
		return "ONLINE"
	case StateError:
		return "ERROR"
	case StateOffline:
		return "OFFLINE"
	default:
		return "UNKNOWN"
	}
}

// ValueEvent is what the supervisor delivers to value callbacks: the
// sensor's raw reading at ts. The orchestrator applies the formula to
// Raw and republishes (sensor_id, raw, processed, ts) to its own
// subscribers; the driver layer only ever produces raw values.
type ValueEvent struct {
	SensorID int64
	Raw      float64
	Ts       int64 // unix millis
}

// StatusEvent is delivered whenever the supervisor's State changes.
type StatusEvent struct {
	SensorID int64
	State    State
	Err      error // set for StateError, and for StateOffline after read failures
}

// ErrorEvent is delivered on every read failure, independent of whether it
// crosses the retry threshold into StateOffline.
type ErrorEvent struct {
	SensorID int64
	Err      error
}

type ValueCallback func(ValueEvent)
type StatusCallback func(StatusEvent)
type ErrorCallback func(ErrorEvent)

// ValueNotifier/ErrNotifier are the shared function types event-driven
// protocol drivers (MQTT, CAN, virtual-output) use to push into their
// owning Supervisor's DeliverValue/DeliverError, bypassing the poll
// cadence (§4.2). Each protocol package aliases these rather than
// declaring its own named func type so a single Notifiable interface
// can wire any of them interchangeably.
type ValueNotifier func(value float64)
type ErrNotifier func(err error)

// Notifiable is implemented by event-driven drivers; the orchestrator's
// AddSensor wires SetNotifier/SetErrNotifier to the Supervisor it creates
// around the driver.
type Notifiable interface {
	SetNotifier(ValueNotifier)
}

type ErrNotifiable interface {
	SetErrNotifier(ErrNotifier)
}
