// Package rig is a virtual feeding device: poke inputs, a touch controller,
// an actuator and an indicator, all in memory, plus a replay loop that feeds
// a timed stimulus script to a fed.Device.
//
// Input methods (Press, Release, Touch, ...) may be called from any
// goroutine, like hardware lines changing under the main loop. Everything
// else belongs to the goroutine that ticks the device.
package rig

import (
	"sync/atomic"
	"time"

	"github.com/twobottle/fedcore/fed"
)

// Delivery is one confirmed actuation.
type Delivery struct {
	AtMs  int64
	Side  fed.Side
	Steps int
}

// Rig implements every fed hardware collaborator.
type Rig struct {
	clock    *Clock
	channels [2]uint
	beginErr error
	battery  float64
	env      fed.EnvSensor
	config   fed.ConfigStore

	levels   [2]atomic.Bool // true while the poke reads active (Low)
	touched  atomic.Uint32
	failNext atomic.Int32
	irq      atomic.Pointer[fed.Interrupts]

	Deliveries []Delivery
	Cues       []fed.Cue
	SDErrorOn  bool
	Faults     []int
	Reboots    int
}

// Option configures a Rig.
type Option func(*Rig)

// WithConfig sets the persisted configuration store. The default is an
// in-memory store holding fed.DefaultPersisted().
func WithConfig(c fed.ConfigStore) Option { return func(r *Rig) { r.config = c } }

// WithEnv fits an environmental sensor.
func WithEnv(e fed.EnvSensor) Option { return func(r *Rig) { r.env = e } }

// WithEpoch sets the wall time at 0 ms.
func WithEpoch(t time.Time) Option { return func(r *Rig) { r.clock = NewClock(t) } }

// WithBeginError makes the touch controller fail to start.
func WithBeginError(err error) Option { return func(r *Rig) { r.beginErr = err } }

// WithLickChannels wires the lick sensors to the given electrodes.
func WithLickChannels(left, right uint) Option {
	return func(r *Rig) { r.channels = [2]uint{left, right} }
}

// WithBattery sets the reported supply voltage.
func WithBattery(v float64) Option { return func(r *Rig) { r.battery = v } }

// New builds a rig with both pokes released and nothing touched.
func New(opts ...Option) *Rig {
	r := &Rig{
		clock:    NewClock(time.Date(2026, time.January, 1, 9, 0, 0, 0, time.Local)),
		channels: [2]uint{fed.DefaultLeftLickChannel, fed.DefaultRightLickChannel},
		battery:  4.2,
		config:   &MemoryConfig{P: fed.DefaultPersisted()},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Hardware returns the collaborators for fed.NewDevice.
func (r *Rig) Hardware() fed.Hardware {
	return fed.Hardware{
		Pokes:     r,
		Touch:     r,
		Actuator:  r,
		Clock:     r.clock,
		Battery:   r,
		Env:       r.env,
		Indicator: r,
		Config:    r.config,
		Rebooter:  r,
	}
}

// Clock returns the virtual clock.
func (r *Rig) Clock() *Clock { return r.clock }

// Config returns the persisted configuration store.
func (r *Rig) Config() fed.ConfigStore { return r.config }

// Attach routes interrupts to a device's flags.
func (r *Rig) Attach(irq *fed.Interrupts) { r.irq.Store(irq) }

// Press drives a poke active and fires its falling-edge interrupt.
func (r *Rig) Press(side fed.Side) {
	r.levels[side].Store(true)
	if irq := r.irq.Load(); irq != nil {
		irq.PokeFalling(side)
	}
}

// Release drives a poke inactive. Rising edges raise no interrupt.
func (r *Rig) Release(side fed.Side) { r.levels[side].Store(false) }

// Tap is a press shorter than one poll: only the interrupt records it.
func (r *Rig) Tap(side fed.Side) {
	r.Press(side)
	r.Release(side)
}

// Touch sets a lick electrode and signals new touch data.
func (r *Rig) Touch(side fed.Side) { r.setTouch(side, true) }

// Untouch clears a lick electrode and signals new touch data.
func (r *Rig) Untouch(side fed.Side) { r.setTouch(side, false) }

// Pressed reports whether a poke currently reads active.
func (r *Rig) Pressed(side fed.Side) bool { return r.levels[side].Load() }

// Licking reports whether a lick electrode is currently touched.
func (r *Rig) Licking(side fed.Side) bool {
	return r.touched.Load()&(uint32(1)<<r.channels[side]) != 0
}

func (r *Rig) setTouch(side fed.Side, on bool) {
	bit := uint32(1) << r.channels[side]
	for {
		old := r.touched.Load()
		next := old &^ bit
		if on {
			next = old | bit
		}
		if r.touched.CompareAndSwap(old, next) {
			break
		}
	}
	if irq := r.irq.Load(); irq != nil {
		irq.TouchReady()
	}
}

// FailDeliveries makes the next n delivery requests fail.
func (r *Rig) FailDeliveries(n int) { r.failNext.Add(int32(n)) }

// ReadLevel implements fed.DigitalInput.
func (r *Rig) ReadLevel(side fed.Side) fed.Level {
	if r.levels[side].Load() {
		return fed.Low
	}
	return fed.High
}

// Begin implements fed.TouchController.
func (r *Rig) Begin() error { return r.beginErr }

// Touched implements fed.TouchController.
func (r *Rig) Touched() (uint16, error) { return uint16(r.touched.Load()), nil }

// RequestDelivery implements fed.Actuator.
func (r *Rig) RequestDelivery(side fed.Side, steps int) bool {
	for {
		n := r.failNext.Load()
		if n <= 0 {
			break
		}
		if r.failNext.CompareAndSwap(n, n-1) {
			return false
		}
	}
	r.Deliveries = append(r.Deliveries, Delivery{AtMs: r.clock.Millis(), Side: side, Steps: steps})
	return true
}

// Voltage implements fed.Battery.
func (r *Rig) Voltage() float64 { return r.battery }

// Cue implements fed.Indicator.
func (r *Rig) Cue(c fed.Cue) { r.Cues = append(r.Cues, c) }

// SDError implements fed.Indicator.
func (r *Rig) SDError(on bool) { r.SDErrorOn = on }

// Fault implements fed.Indicator.
func (r *Rig) Fault(code int) { r.Faults = append(r.Faults, code) }

// Reboot implements fed.Rebooter.
func (r *Rig) Reboot() { r.Reboots++ }

// MemoryConfig is an in-memory fed.ConfigStore.
type MemoryConfig struct {
	P     fed.Persisted
	Saves int
}

func (m *MemoryConfig) Load() (fed.Persisted, error) { return m.P, nil }

func (m *MemoryConfig) Save(p fed.Persisted) error {
	m.P = p
	m.Saves++
	return nil
}

// Env is a fixed-reading environmental sensor.
type Env struct {
	TempC    float64
	Humidity float64
	Err      error
}

func (e *Env) Read() (float64, float64, error) { return e.TempC, e.Humidity, e.Err }
