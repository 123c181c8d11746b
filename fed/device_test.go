package fed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevice_FixedRatioPokeLickScenario(t *testing.T) {
	// GIVEN a fixed-ratio-1 session on the left with a 200 ms minimum poke
	f := newFakeHW()
	p := testProfile()
	p.MinPokeMs = 200
	d := newTestDevice(t, f, p, DefaultPersisted())

	// WHEN the left poke is held for 50 ms
	f.hold(t, d, Left, 50)

	// THEN a Short is logged and nothing is delivered
	snap := d.Snapshot()
	assert.Equal(t, []string{"LeftShort"}, f.events(t, d))
	assert.Equal(t, 1, snap.Counters.PokeCount[Left])
	assert.Empty(t, f.deliveries)

	// WHEN the left poke is held for 300 ms
	f.hold(t, d, Left, 300)

	// THEN a Poke is logged, a delivery is requested and the drop is available
	snap = d.Snapshot()
	assert.Equal(t, []string{"LeftShort", "LeftPoke", "LeftDeliver"}, f.events(t, d))
	assert.Equal(t, 2, snap.Counters.PokeCount[Left])
	assert.Equal(t, []Side{Left}, f.deliveries)
	assert.True(t, snap.Gates[Left].DropAvailable)
	assert.Equal(t, 1, snap.Counters.TotalDeliverCount)

	// WHEN the left lick sensor is touched
	f.touch(DefaultLeftLickChannel)
	require.NoError(t, f.run(d, 1))

	// THEN a Lick is logged and the drop is no longer available
	snap = d.Snapshot()
	assert.Equal(t, "LeftLick", f.events(t, d)[3])
	assert.Equal(t, 1, snap.Counters.LickCount[Left])
	assert.False(t, snap.Gates[Left].DropAvailable)
}

func TestDevice_ShortHoldNeverDelivers(t *testing.T) {
	f := newFakeHW()
	p := testProfile()
	p.MinPokeMs = 200
	d := newTestDevice(t, f, p, DefaultPersisted())

	for _, ms := range []int64{1, 10, 100, 198, 199} {
		f.hold(t, d, Left, ms)
	}

	for _, e := range f.events(t, d) {
		assert.Equal(t, "LeftShort", e)
	}
	assert.Len(t, f.records, 5)
	assert.Empty(t, f.deliveries)
}

func TestDevice_PressCaughtOnlyByInterrupt_IsShort(t *testing.T) {
	// GIVEN a press and release that both happen between two polls
	f := newFakeHW()
	d := newTestDevice(t, f, testProfile(), DefaultPersisted())
	f.press(Right)
	f.release(Right)

	// WHEN the next poll runs
	require.NoError(t, f.run(d, 1))

	// THEN the latched edge still yields one zero-length Short
	assert.Equal(t, []string{"RightShort"}, f.events(t, d))
	assert.Equal(t, "0.00", f.records[0][column(t, d.Schema(), "Poke_Time")])
}

func TestDevice_InterruptWhileHeld_IsDiscarded(t *testing.T) {
	f := newFakeHW()
	d := newTestDevice(t, f, testProfile(), DefaultPersisted())

	f.press(Right)
	require.NoError(t, f.run(d, 10))
	// bounce while held
	f.irq.PokeFalling(Right)
	require.NoError(t, f.run(d, 10))
	f.release(Right)
	require.NoError(t, f.run(d, 5))

	assert.Equal(t, []string{"RightShort"}, f.events(t, d))
}

func TestDevice_PokeInsideTimeout_IsTaggedAndNotRewarded(t *testing.T) {
	tests := []struct {
		name          string
		countAllPokes bool
		wantCount     int
	}{
		{"counted", true, 2},
		{"not counted", false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN a 5 s timeout after each delivery
			f := newFakeHW()
			p := testProfile()
			p.TimeoutS = 5
			p.CountAllPokes = tt.countAllPokes
			d := newTestDevice(t, f, p, DefaultPersisted())

			// WHEN a rewarded poke is followed by another poke inside the window
			f.hold(t, d, Left, 300)
			f.hold(t, d, Left, 300)

			// THEN the second poke is logged as in-timeout and not rewarded
			assert.Equal(t, []string{"LeftPoke", "LeftDeliver", "LeftinTimeout"}, f.events(t, d))
			assert.Equal(t, tt.wantCount, d.Snapshot().Counters.PokeCount[Left])
			assert.Len(t, f.deliveries, 1)

			// WHEN the window has passed
			require.NoError(t, f.run(d, 5000))
			f.hold(t, d, Left, 300)

			// THEN pokes are rewarded again
			assert.Len(t, f.deliveries, 2)
		})
	}
}

func TestDevice_TimeoutResetOnPoke_ExtendsWindow(t *testing.T) {
	f := newFakeHW()
	p := testProfile()
	p.TimeoutS = 2
	p.TimeoutResetOnPoke = true
	d := newTestDevice(t, f, p, DefaultPersisted())

	f.hold(t, d, Left, 300) // delivery at ~301 ms, window until ~2301 ms
	require.NoError(t, f.run(d, 1500))
	f.hold(t, d, Left, 300) // pressed at ~1802 ms, window now until ~3802 ms
	require.NoError(t, f.run(d, 800))
	f.hold(t, d, Left, 300) // pressed at ~2903 ms, still inside

	assert.Equal(t, []string{"LeftPoke", "LeftDeliver", "LeftinTimeout", "LeftinTimeout"}, f.events(t, d))
}

func TestDevice_InactiveSidePoke_IsLoggedButNotRewarded(t *testing.T) {
	f := newFakeHW()
	d := newTestDevice(t, f, testProfile(), DefaultPersisted())

	f.hold(t, d, Right, 300)

	assert.Equal(t, []string{"RightPoke"}, f.events(t, d))
	assert.Empty(t, f.deliveries)
	assert.Equal(t, "Left", f.records[0][column(t, d.Schema(), "Active_Poke")])
}

func TestDevice_DeliveryRetries(t *testing.T) {
	t.Run("succeeds after a retry", func(t *testing.T) {
		f := newFakeHW()
		d := newTestDevice(t, f, testProfile(), DefaultPersisted())
		f.failDeliveries = 1

		f.hold(t, d, Left, 300)

		require.Len(t, f.records, 2)
		deliver := f.records[1]
		assert.Equal(t, "2", deliver[column(t, d.Schema(), "Left_Motor_Turns")])
		assert.Equal(t, "1", deliver[column(t, d.Schema(), "Right_Motor_Turns")])
	})

	t.Run("gives up after the configured attempts", func(t *testing.T) {
		f := newFakeHW()
		p := testProfile()
		p.DeliveryAttempts = 2
		d := newTestDevice(t, f, p, DefaultPersisted())
		f.failDeliveries = 2

		f.hold(t, d, Left, 300)

		assert.Equal(t, []string{"LeftPoke"}, f.events(t, d))
		assert.Contains(t, f.cues, CueDeliveryFailed)
		assert.False(t, d.Snapshot().Gates[Left].DropAvailable)
		assert.Zero(t, d.Snapshot().Counters.TotalDeliverCount)
	})
}

func TestDevice_AppendFailure_KeepsCountingAndRaisesIndicator(t *testing.T) {
	// GIVEN a sink that fails
	f := newFakeHW()
	d := newTestDevice(t, f, testProfile(), DefaultPersisted())
	f.appendErr = errDisk

	// WHEN events occur
	f.hold(t, d, Left, 300)

	// THEN counters advance, nothing is stored and the indicator is up
	assert.Equal(t, 1, d.Snapshot().Counters.TotalDeliverCount)
	assert.Empty(t, f.records)
	assert.True(t, f.sdError)

	// WHEN the sink recovers
	f.appendErr = nil
	f.hold(t, d, Right, 300)

	// THEN the indicator clears
	assert.False(t, f.sdError)
	assert.Len(t, f.records, 1)
}

func TestDevice_TouchInitFailure_IsFatal(t *testing.T) {
	f := newFakeHW()
	f.beginErr = errDisk
	d, err := NewDevice(f.hardware(), testProfile(), DefaultPersisted(), f)
	require.NoError(t, err)
	f.irq = d.Interrupts()

	err = d.Begin()
	require.ErrorIs(t, err, ErrSensorUnavailable)

	f.press(Left)
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, f.run(d, 1), ErrSensorUnavailable)
	}
	assert.Equal(t, []int{FaultTouchInit, FaultTouchInit, FaultTouchInit, FaultTouchInit}, f.faults)
	assert.Empty(t, f.records)
}

func TestDevice_TouchReadFailure_KeepsLastMask(t *testing.T) {
	f := newFakeHW()
	d := newTestDevice(t, f, testProfile(), DefaultPersisted())

	f.touch(DefaultRightLickChannel)
	require.NoError(t, f.run(d, 1))
	f.touchErr = errDisk
	f.irq.TouchReady()
	require.NoError(t, f.run(d, 1))

	assert.Equal(t, []string{"RightLick"}, f.events(t, d))
}

func TestDevice_InterDeliveryInterval(t *testing.T) {
	f := newFakeHW()
	d := newTestDevice(t, f, testProfile(), DefaultPersisted())
	ipi := column(t, d.Schema(), "InterPelletInterval")

	f.hold(t, d, Left, 300)
	require.NoError(t, f.run(d, 90_000))
	f.hold(t, d, Left, 300)

	events := f.events(t, d)
	require.Equal(t, []string{"LeftPoke", "LeftDeliver", "LeftPoke", "LeftDeliver"}, events)
	assert.Equal(t, "nan", f.records[1][ipi])
	assert.Equal(t, "90", f.records[3][ipi])
	assert.Equal(t, "nan", f.records[2][ipi])
}

func TestDevice_RecordsHaveSchemaWidth(t *testing.T) {
	f := newFakeHW()
	d := newTestDevice(t, f, testProfile(), DefaultPersisted())

	f.hold(t, d, Left, 300)
	f.hold(t, d, Right, 50)
	f.touch(DefaultLeftLickChannel)
	require.NoError(t, f.run(d, 1))

	width := len(d.Schema().Columns())
	turns := column(t, d.Schema(), "Left_Motor_Turns")
	retrieval := column(t, d.Schema(), "Retrieval_Time")
	for i, r := range f.records {
		assert.Len(t, r, width, "record %d", i)
		if f.events(t, d)[i] != "LeftDeliver" {
			assert.Equal(t, "nan", r[turns])
			assert.Equal(t, "nan", r[retrieval])
		}
	}
}

func TestDevice_DeviceNumberScenario(t *testing.T) {
	// GIVEN a device with id 5 showing its start screen
	f := newFakeHW()
	p := testProfile()
	p.StartScreenMs = 5000
	p.Menu = false
	d := newTestDevice(t, f, p, Persisted{DeviceID: 5})

	// WHEN both pokes are held for 1.5 s
	f.press(Left)
	f.press(Right)
	require.NoError(t, f.run(d, 1501))
	require.Equal(t, ModeSettingDeviceNumber, d.Snapshot().Mode)
	f.release(Left)
	f.release(Right)
	require.NoError(t, f.run(d, 10))

	// AND the right poke is pressed four times
	for i := 0; i < 4; i++ {
		f.hold(t, d, Right, 20)
		require.NoError(t, f.run(d, 20))
	}
	assert.Equal(t, 9, d.modes.Persisted().DeviceID)

	// THEN after 3 s of silence the id is saved as 9
	require.NoError(t, f.run(d, 3000))
	require.NotEmpty(t, f.saved)
	assert.Equal(t, 9, f.saved[0].DeviceID)
	assert.Equal(t, ModeSettingClock, d.Snapshot().Mode)

	// AND after the clock and timed-window steps the device restarts
	assert.ErrorIs(t, f.run(d, 6000), ErrRebooted)
	assert.Equal(t, 1, f.reboots)
	assert.Equal(t, 9, f.saved[len(f.saved)-1].DeviceID)
	assert.Empty(t, f.records)
}

func TestDevice_ClockNudges(t *testing.T) {
	f := newFakeHW()
	p := testProfile()
	p.StartScreenMs = 5000
	p.Menu = false
	d := newTestDevice(t, f, p, DefaultPersisted())

	f.press(Left)
	f.press(Right)
	require.NoError(t, f.run(d, 1501))
	f.release(Left)
	f.release(Right)
	require.NoError(t, f.run(d, 3000))
	require.Equal(t, ModeSettingClock, d.Snapshot().Mode)

	before := f.Now()
	f.hold(t, d, Right, 10)
	f.hold(t, d, Right, 10)
	f.hold(t, d, Left, 10)

	// two forward nudges and one back, plus the 33 ms that elapsed
	assert.Equal(t, ClockStep+33*time.Millisecond, f.Now().Sub(before))
}

func TestDevice_MenuSelectsScheduleAndRestarts(t *testing.T) {
	// GIVEN the default four-entry menu with mode 1 (FR1) persisted
	f := newFakeHW()
	p := DefaultProfile()
	p, err := p.ForMode(1)
	require.NoError(t, err)
	d := newTestDevice(t, f, p, Persisted{Mode: 1, DeviceID: 3})

	// WHEN the right poke is pressed during the start screen
	f.hold(t, d, Right, 20)
	assert.Equal(t, ModeSelectingSchedule, d.Snapshot().Mode)

	// THEN after 1.5 s without activity mode 2 is saved and the device restarts
	assert.ErrorIs(t, f.run(d, 2000), ErrRebooted)
	require.Len(t, f.saved, 1)
	assert.Equal(t, Persisted{Mode: 2, DeviceID: 3}, f.saved[0])
	assert.Empty(t, f.records)
}

func TestDevice_StartScreenSuppressesEvents(t *testing.T) {
	f := newFakeHW()
	p := testProfile()
	p.StartScreenMs = 1000
	p.Menu = false
	d := newTestDevice(t, f, p, DefaultPersisted())

	f.hold(t, d, Left, 300)
	require.NoError(t, f.run(d, 1000))
	f.hold(t, d, Left, 300)

	assert.Equal(t, []string{"LeftPoke", "LeftDeliver"}, f.events(t, d))
}

func TestMultiSink_AttemptsEverySink(t *testing.T) {
	ok := newFakeHW()
	bad := newFakeHW()
	bad.appendErr = errDisk

	err := MultiSink{bad, ok}.Append([]string{"a"})

	assert.ErrorIs(t, err, errDisk)
	assert.Len(t, ok.records, 1)
}
