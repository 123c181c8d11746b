package fed

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/twobottle/fedcore/fed/logrec"
)

var errNotStarted = errors.New("device not started; call Begin first")

// Device owns all session state and runs one pass of the main loop per Tick.
// It is not safe for concurrent use, except for Interrupts(), whose methods
// may be called from any goroutine.
type Device struct {
	hw      Hardware
	sink    RecordSink
	profile Profile
	cfg     Persisted
	schema  logrec.Schema
	obs     Observer

	irq      *Interrupts
	det      *EdgeDetector
	cls      *Classifier
	counters *Counters
	rng      *PartitionedRNG
	program  Program
	modes    *ModeMachine

	begun            bool
	fault            error
	rebooted         bool
	startScreenUntil int64
	timeoutUntilMs   int64
	sdError          bool
	records          int
}

// Option configures a Device.
type Option func(*Device)

// WithObserver routes activity notifications to o.
func WithObserver(o Observer) Option {
	return func(d *Device) { d.obs = o }
}

// NewDevice validates the profile and builds a device in Running mode.
// cfg is the persisted configuration read at startup; it is clamped.
func NewDevice(hw Hardware, profile Profile, cfg Persisted, sink RecordSink, opts ...Option) (*Device, error) {
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	if err := hw.validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, fmt.Errorf("record sink is required")
	}
	rng := NewPartitionedRNG(NewSessionKey(profile.Seed))
	program, err := NewProgram(profile, rng)
	if err != nil {
		return nil, err
	}
	cfg = ClampPersisted(cfg, profile.Modes())
	d := &Device{
		hw:       hw,
		sink:     sink,
		profile:  profile,
		cfg:      cfg,
		schema:   logrec.SchemaFor(profile.SessionType, hw.Env != nil),
		obs:      nopObserver{},
		irq:      &Interrupts{},
		det:      NewEdgeDetector(profile.LeftLickChannel, profile.RightLickChannel),
		cls:      NewClassifier(profile.MinPokeMs),
		counters: NewCounters(profile.CountAllPokes),
		rng:      rng,
		program:  program,
		modes:    NewModeMachine(cfg, profile.Modes(), profile.Menu),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (hw Hardware) validate() error {
	switch {
	case hw.Pokes == nil:
		return fmt.Errorf("hardware: poke input is required")
	case hw.Touch == nil:
		return fmt.Errorf("hardware: touch controller is required")
	case hw.Actuator == nil:
		return fmt.Errorf("hardware: actuator is required")
	case hw.Clock == nil:
		return fmt.Errorf("hardware: clock is required")
	case hw.Battery == nil:
		return fmt.Errorf("hardware: battery is required")
	case hw.Indicator == nil:
		return fmt.Errorf("hardware: indicator is required")
	case hw.Config == nil:
		return fmt.Errorf("hardware: config store is required")
	case hw.Rebooter == nil:
		return fmt.Errorf("hardware: rebooter is required")
	}
	return nil
}

// Interrupts returns the flags the interrupt handlers write to.
func (d *Device) Interrupts() *Interrupts { return d.irq }

// Schema returns the record layout of this session.
func (d *Device) Schema() logrec.Schema { return d.schema }

// Begin starts the lick sensor and opens the start screen. A sensor failure
// is fatal: the device enters its fault state and every later Tick returns
// ErrSensorUnavailable.
func (d *Device) Begin() error {
	if err := d.hw.Touch.Begin(); err != nil {
		d.fault = fmt.Errorf("%w: %v", ErrSensorUnavailable, err)
		logrus.Errorf("touch sensor failed to start: %v", err)
		d.hw.Indicator.Fault(FaultTouchInit)
		return d.fault
	}
	d.begun = true
	now := d.hw.Clock.Millis()
	d.startScreenUntil = now + d.profile.StartScreenMs
	logrus.WithFields(logrus.Fields{
		"device":  d.cfg.DeviceID,
		"session": d.profile.SessionType,
		"mode":    d.cfg.Mode,
		"seed":    int64(d.rng.Key()),
	}).Info("session started")
	return nil
}

// Tick runs one pass of the main loop. It returns ErrRebooted once a
// configuration change has been confirmed, and the fault error while the
// device is faulted. Append failures are not returned.
func (d *Device) Tick() error {
	switch {
	case d.fault != nil:
		d.hw.Indicator.Fault(FaultTouchInit)
		return d.fault
	case d.rebooted:
		return ErrRebooted
	case !d.begun:
		return errNotStarted
	}

	now := d.hw.Clock.Millis()
	s := d.sample()
	edges := d.det.PollEdges(s, now)

	if d.configuring(now) {
		return d.stepModes(s, edges, now)
	}
	for _, e := range edges {
		inTimeout := e.Kind == PokeEdge && d.pressInTimeout(now)
		if ev, ok := d.cls.Classify(e, d.det.Hold(e.Side), now, inTimeout); ok {
			d.handle(ev)
		}
	}
	for _, side := range Sides {
		if ev, ok := d.cls.Resolve(side, d.det.Hold(side), now); ok {
			d.handle(ev)
		}
	}
	return nil
}

func (d *Device) sample() Sample {
	var s Sample
	for _, side := range Sides {
		s.PokeIRQ[side] = d.irq.takePoke(side)
		s.PokeLevels[side] = d.hw.Pokes.ReadLevel(side)
	}
	s.Touched = d.det.LastTouched()
	if d.irq.takeTouch() {
		mask, err := d.hw.Touch.Touched()
		if err != nil {
			logrus.Warnf("touch read failed, keeping last bitmask: %v", err)
		} else {
			s.Touched = mask
		}
	}
	return s
}

func (d *Device) configuring(now int64) bool {
	return d.modes.Mode() != ModeRunning || now < d.startScreenUntil
}

// pressInTimeout reports whether a press at now falls inside the timeout
// window, restarting the window when the profile asks for it.
func (d *Device) pressInTimeout(now int64) bool {
	if now >= d.timeoutUntilMs {
		return false
	}
	if d.profile.TimeoutResetOnPoke {
		d.timeoutUntilMs = now + int64(d.profile.TimeoutS)*1000
	}
	return true
}

func (d *Device) handle(ev Event) {
	wall := d.hw.Clock.Now()
	d.counters.OnEvent(ev, wall)
	d.emit(ev, wall, [2]int{}, 0)
	if ev.Kind != KindPoke {
		return
	}
	if dec := d.program.OnPoke(ev.Side); dec.Deliver {
		d.deliver(dec.Side)
	}
}

func (d *Device) deliver(side Side) {
	d.counters.BeginDelivery(side)
	steps := d.profile.DoseStepsLeft
	if side == Right {
		steps = d.profile.DoseStepsRight
	}

	var turns [2]int
	delivered := false
	for attempt := 0; attempt < d.profile.DeliveryAttempts; attempt++ {
		if d.hw.Actuator.RequestDelivery(side, steps) {
			delivered = true
			break
		}
		turns[side]++
	}
	if !delivered {
		logrus.Warnf("[t %07d ms] %s delivery not confirmed after %d attempts", d.hw.Clock.Millis(), side, d.profile.DeliveryAttempts)
		d.obs.DeliveryFailed(side)
		d.hw.Indicator.Cue(CueDeliveryFailed)
		return
	}

	dropMs := d.hw.Clock.Millis()
	wall := d.hw.Clock.Now()
	ev := Event{Kind: KindDeliver, Side: side, AtMs: dropMs}
	d.counters.OnEvent(ev, wall)
	d.program.Delivered(side)
	d.emit(ev, wall, turns, d.hw.Clock.Millis()-dropMs)
	d.program.Advance()
	if d.profile.TimeoutS > 0 {
		d.timeoutUntilMs = dropMs + int64(d.profile.TimeoutS)*1000
	}
	d.hw.Indicator.Cue(CueDeliver)
}

func (d *Device) emit(ev Event, wall time.Time, turns [2]int, retrievalMs int64) {
	params := d.program.Params()
	c := d.counters
	rec := logrec.Record{
		Time:              wall,
		TempC:             math.NaN(),
		Humidity:          math.NaN(),
		SessionType:       d.profile.SessionType,
		DeviceID:          d.cfg.DeviceID,
		BatteryV:          d.hw.Battery.Voltage(),
		MotorTurns:        turns,
		RetrievalMs:       retrievalMs,
		Ratio:             params.Ratio,
		PelletsToSwitch:   params.PelletsToSwitch,
		ProbLeft:          params.ProbLeft,
		ProbRight:         params.ProbRight,
		Event:             ev.Name(),
		Delivery:          ev.Kind == KindDeliver,
		ActiveSide:        params.ActiveSide.String(),
		PokeCount:         c.PokeCount,
		LickCount:         c.LickCount,
		DeliverCount:      c.DeliverCount,
		BlockDeliverCount: params.BlockDeliveries,
		InterDeliveryS:    c.InterDeliveryS,
		HasInterDelivery:  c.HasInterDelivery,
		PokeHoldMs:        ev.HoldMs,
		HasPokeHold:       ev.IsPoke(),
	}
	if d.hw.Env != nil {
		if t, h, err := d.hw.Env.Read(); err == nil {
			rec.TempC, rec.Humidity = t, h
		} else {
			logrus.Debugf("environment sensor read failed: %v", err)
		}
	}

	d.records++
	logrus.Debugf("[t %07d ms] %s", ev.AtMs, ev.Name())
	if err := d.sink.Append(logrec.Encode(rec, d.schema)); err != nil {
		logrus.Warnf("[t %07d ms] record append failed for %s: %v", ev.AtMs, ev.Name(), err)
		d.obs.AppendFailed()
		d.sdError = true
		d.hw.Indicator.SDError(true)
	} else if d.sdError {
		d.sdError = false
		d.hw.Indicator.SDError(false)
	}
	d.obs.EventRecorded(ev)
}

func (d *Device) stepModes(s Sample, edges []EdgeSample, now int64) error {
	in := ModeInput{NowMs: now, StartScreen: now < d.startScreenUntil}
	for _, side := range Sides {
		in.Active[side] = s.PokeLevels[side].Active()
	}
	for _, e := range edges {
		if e.Kind == PokeEdge {
			in.Presses = append(in.Presses, e.Side)
		}
	}

	from := d.modes.Mode()
	act := d.modes.Step(in)
	for _, c := range act.Cues {
		d.hw.Indicator.Cue(c)
	}
	if act.ClockShift != 0 {
		d.hw.Clock.SetClock(d.hw.Clock.Now().Add(act.ClockShift))
	}
	if act.Entered {
		logrus.Infof("[t %07d ms] mode %s -> %s", now, from, d.modes.Mode())
		d.obs.ModeChanged(d.modes.Mode())
	}
	if act.Persist {
		d.cfg = d.modes.Persisted()
		if err := d.hw.Config.Save(d.cfg); err != nil {
			logrus.Warnf("saving configuration: %v", err)
		}
	}
	if act.Reboot {
		d.rebooted = true
		d.hw.Rebooter.Reboot()
		return ErrRebooted
	}
	return nil
}

// Snapshot is a read-only view of the session state.
type Snapshot struct {
	Mode      Mode
	Persisted Persisted
	Counters  Counters
	Gates     [2]DeliveryGate
	Hold      [2]HoldState
	Schedule  ScheduleParams
	Records   int
	Faulted   bool
}

// Snapshot copies the current session state.
func (d *Device) Snapshot() Snapshot {
	return Snapshot{
		Mode:      d.modes.Mode(),
		Persisted: d.cfg,
		Counters:  *d.counters,
		Gates:     [2]DeliveryGate{d.counters.Gate(Left), d.counters.Gate(Right)},
		Hold:      [2]HoldState{d.det.Hold(Left), d.det.Hold(Right)},
		Schedule:  d.program.Params(),
		Records:   d.records,
		Faulted:   d.fault != nil,
	}
}
