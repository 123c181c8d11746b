package fed

import (
	"errors"
	"time"
)

// DigitalInput reads the two poke inputs.
type DigitalInput interface {
	ReadLevel(side Side) Level
}

// TouchController is the capacitive lick sensor.
type TouchController interface {
	Begin() error
	// Touched returns the electrode bitmask. Only called after a data-ready
	// interrupt.
	Touched() (uint16, error)
}

// Actuator dispenses one dose. It returns false when no drop was confirmed.
type Actuator interface {
	RequestDelivery(side Side, steps int) bool
}

// RecordSink durably appends one record's ordered fields.
type RecordSink interface {
	Append(fields []string) error
}

// Clock provides monotonic milliseconds since boot and the adjustable
// wall clock used in record timestamps.
type Clock interface {
	Millis() int64
	Now() time.Time
	SetClock(t time.Time)
}

// Battery reports the supply voltage.
type Battery interface {
	Voltage() float64
}

// EnvSensor reads temperature (C) and relative humidity (%).
type EnvSensor interface {
	Read() (tempC, humidity float64, err error)
}

// Cue is a user-visible feedback signal (tone, light, screen refresh).
type Cue int

const (
	CueClick Cue = iota
	CueDeliver
	CueDeliveryFailed
	CueModeChange
	CueConfirm
)

func (c Cue) String() string {
	switch c {
	case CueClick:
		return "click"
	case CueDeliver:
		return "deliver"
	case CueDeliveryFailed:
		return "delivery-failed"
	case CueModeChange:
		return "mode-change"
	case CueConfirm:
		return "confirm"
	default:
		return "unknown"
	}
}

// Indicator surfaces cues and fault codes to the operator.
type Indicator interface {
	Cue(c Cue)
	// SDError is set while the record sink is failing and cleared on the
	// next successful append.
	SDError(on bool)
	Fault(code int)
}

// ConfigStore loads and saves the persisted configuration.
type ConfigStore interface {
	Load() (Persisted, error)
	Save(p Persisted) error
}

// Rebooter restarts the device after a configuration change.
type Rebooter interface {
	Reboot()
}

// Hardware groups the device's collaborators. Env is nil when no
// environmental sensor is fitted.
type Hardware struct {
	Pokes     DigitalInput
	Touch     TouchController
	Actuator  Actuator
	Clock     Clock
	Battery   Battery
	Env       EnvSensor
	Indicator Indicator
	Config    ConfigStore
	Rebooter  Rebooter
}

// FaultTouchInit is the fault code shown when the lick sensor fails to start.
const FaultTouchInit = 6

var (
	// ErrSensorUnavailable is returned when the lick sensor fails to start.
	// The device halts and keeps signalling the fault.
	ErrSensorUnavailable = errors.New("touch sensor unavailable")

	// ErrRebooted is returned by Tick after a configuration change has been
	// persisted and the Rebooter invoked. The caller rebuilds the device.
	ErrRebooted = errors.New("device rebooted")
)

// MultiSink fans each record out to several sinks. Every sink is attempted;
// the joined error reports those that failed.
type MultiSink []RecordSink

// Append implements RecordSink.
func (m MultiSink) Append(fields []string) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(fields); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
