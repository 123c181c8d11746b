package fed

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/twobottle/fedcore/fed/logrec"
)

// fakeHW is every collaborator in one struct, driven by the test.
type fakeHW struct {
	ms    int64
	epoch time.Time
	shift time.Duration

	levels   [2]Level
	touched  uint16
	touchErr error
	beginErr error

	failDeliveries int // the next N delivery requests fail
	deliveries     []Side

	cues    []Cue
	sdError bool
	faults  []int

	saved   []Persisted
	reboots int

	records   [][]string
	appendErr error

	irq *Interrupts
}

func newFakeHW() *fakeHW {
	return &fakeHW{
		levels: [2]Level{High, High},
		epoch:  time.Date(2026, time.March, 4, 9, 5, 7, 0, time.UTC),
	}
}

func (f *fakeHW) hardware() Hardware {
	return Hardware{Pokes: f, Touch: f, Actuator: f, Clock: f, Battery: f, Indicator: f, Config: f, Rebooter: f}
}

func (f *fakeHW) ReadLevel(s Side) Level { return f.levels[s] }
func (f *fakeHW) Begin() error           { return f.beginErr }
func (f *fakeHW) Touched() (uint16, error) {
	if f.touchErr != nil {
		return 0, f.touchErr
	}
	return f.touched, nil
}

func (f *fakeHW) RequestDelivery(s Side, _ int) bool {
	if f.failDeliveries > 0 {
		f.failDeliveries--
		return false
	}
	f.deliveries = append(f.deliveries, s)
	return true
}

func (f *fakeHW) Millis() int64        { return f.ms }
func (f *fakeHW) Now() time.Time       { return f.epoch.Add(time.Duration(f.ms)*time.Millisecond + f.shift) }
func (f *fakeHW) SetClock(t time.Time) { f.shift = t.Sub(f.epoch) - time.Duration(f.ms)*time.Millisecond }
func (f *fakeHW) Voltage() float64     { return 4.2 }
func (f *fakeHW) Cue(c Cue)            { f.cues = append(f.cues, c) }
func (f *fakeHW) SDError(on bool)      { f.sdError = on }
func (f *fakeHW) Fault(code int)       { f.faults = append(f.faults, code) }
func (f *fakeHW) Load() (Persisted, error) {
	if len(f.saved) == 0 {
		return DefaultPersisted(), nil
	}
	return f.saved[len(f.saved)-1], nil
}
func (f *fakeHW) Save(p Persisted) error { f.saved = append(f.saved, p); return nil }
func (f *fakeHW) Reboot()                { f.reboots++ }

func (f *fakeHW) Append(fields []string) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.records = append(f.records, fields)
	return nil
}

func (f *fakeHW) press(s Side) {
	f.levels[s] = Low
	f.irq.PokeFalling(s)
}

func (f *fakeHW) release(s Side) { f.levels[s] = High }

func (f *fakeHW) touch(ch uint) {
	f.touched |= 1 << ch
	f.irq.TouchReady()
}

func (f *fakeHW) untouch(ch uint) {
	f.touched &^= 1 << ch
	f.irq.TouchReady()
}

// run ticks once per millisecond for ms milliseconds and returns the first
// error Tick reports.
func (f *fakeHW) run(d *Device, ms int64) error {
	for i := int64(0); i < ms; i++ {
		f.ms++
		if err := d.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// hold presses side, keeps it down for ms, releases it and ticks once more
// so the release is observed.
func (f *fakeHW) hold(t *testing.T, d *Device, s Side, ms int64) {
	t.Helper()
	f.press(s)
	require.NoError(t, f.run(d, ms))
	f.release(s)
	require.NoError(t, f.run(d, 1))
}

func (f *fakeHW) events(t *testing.T, d *Device) []string {
	t.Helper()
	idx := column(t, d.Schema(), "Event")
	out := make([]string, len(f.records))
	for i, r := range f.records {
		out[i] = r[idx]
	}
	return out
}

func column(t *testing.T, s logrec.Schema, name string) int {
	t.Helper()
	for i, c := range s.Columns() {
		if c == name {
			return i
		}
	}
	t.Fatalf("column %q not in schema", name)
	return -1
}

// testProfile is a fixed-ratio-1 left-side profile with no start screen.
func testProfile() Profile {
	p := DefaultProfile()
	p.ModePrograms = nil
	p.StartScreenMs = 0
	return p
}

func newTestDevice(t *testing.T, f *fakeHW, p Profile, cfg Persisted) *Device {
	t.Helper()
	d, err := NewDevice(f.hardware(), p, cfg, f)
	require.NoError(t, err)
	f.irq = d.Interrupts()
	require.NoError(t, d.Begin())
	return d
}

var errDisk = errors.New("card removed")
