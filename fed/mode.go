package fed

import (
	"fmt"
	"time"
)

// Mode is the session mode state.
type Mode int

const (
	ModeRunning Mode = iota
	ModeSelectingSchedule
	ModeSettingDeviceNumber
	ModeSettingClock
	ModeSettingTimedWindow
)

func (m Mode) String() string {
	switch m {
	case ModeRunning:
		return "Running"
	case ModeSelectingSchedule:
		return "SelectingScheduleMode"
	case ModeSettingDeviceNumber:
		return "SettingDeviceNumber"
	case ModeSettingClock:
		return "SettingClock"
	case ModeSettingTimedWindow:
		return "SettingTimedWindow"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Configuration-flow timing.
const (
	SelectInactivityMs = 1500
	BothHoldMs         = 1500
	ConfirmMs          = 3000
	ClockWindowMs      = 3000
	ClockStep          = 60 * time.Second
	MaxDeviceID        = 700
	HoursPerDay        = 24
)

// Persisted is the configuration that survives a restart.
type Persisted struct {
	Mode       int `yaml:"mode" json:"mode"`
	DeviceID   int `yaml:"device_id" json:"device_id"`
	TimedStart int `yaml:"timed_start" json:"timed_start"`
	TimedEnd   int `yaml:"timed_end" json:"timed_end"`
}

// DefaultPersisted is used when nothing has been saved yet.
func DefaultPersisted() Persisted {
	return Persisted{DeviceID: 1}
}

// ClampPersisted forces every field into range. Out-of-range values are
// corrected silently.
func ClampPersisted(p Persisted, modeCount int) Persisted {
	p.Mode = clampInt(p.Mode, 0, max(modeCount-1, 0))
	p.DeviceID = clampInt(p.DeviceID, 0, MaxDeviceID)
	p.TimedStart = clampInt(p.TimedStart, 0, HoursPerDay-1)
	p.TimedEnd = clampInt(p.TimedEnd, 0, HoursPerDay-1)
	if p.TimedStart > p.TimedEnd {
		p.TimedEnd = p.TimedStart
	}
	return p
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// ModeInput is what the mode machine sees on one tick.
type ModeInput struct {
	NowMs int64
	// Active is the current poke level on each side.
	Active [2]bool
	// Presses are the poke press edges of this tick, in poll order.
	Presses []Side
	// StartScreen is true while the device shows its idle start screen.
	StartScreen bool
}

// ModeAction is what the device must do after a step.
type ModeAction struct {
	Entered    bool // the mode changed during this step
	ClockShift time.Duration
	Persist    bool
	Reboot     bool
	Cues       []Cue
}

// ModeMachine is the configuration pipeline:
// Running -> SelectingScheduleMode -> Running (restart), or
// Running/SelectingScheduleMode -> SettingDeviceNumber -> SettingClock ->
// SettingTimedWindow -> Running (restart). There is no way back a step.
type ModeMachine struct {
	mode      Mode
	modeCount int
	menu      bool
	cfg       Persisted

	bothHeld    bool
	bothSinceMs int64
	deadlineMs  int64
}

// NewModeMachine starts in Running with the given persisted configuration.
// menu enables the schedule-selection screen.
func NewModeMachine(cfg Persisted, modeCount int, menu bool) *ModeMachine {
	if modeCount < 1 {
		modeCount = 1
	}
	return &ModeMachine{mode: ModeRunning, modeCount: modeCount, menu: menu, cfg: ClampPersisted(cfg, modeCount)}
}

// Mode returns the current mode.
func (m *ModeMachine) Mode() Mode { return m.mode }

// Persisted returns the configuration as edited so far.
func (m *ModeMachine) Persisted() Persisted { return m.cfg }

// Step advances the machine by one tick.
func (m *ModeMachine) Step(in ModeInput) ModeAction {
	var act ModeAction

	if m.watchesBothHold(in) && in.Active[Left] && in.Active[Right] {
		if !m.bothHeld {
			m.bothHeld = true
			m.bothSinceMs = in.NowMs
		}
		if in.NowMs-m.bothSinceMs >= BothHoldMs {
			m.bothHeld = false
			m.enter(ModeSettingDeviceNumber, in.NowMs+ConfirmMs, &act)
			return act
		}
	} else {
		m.bothHeld = false
	}

	switch m.mode {
	case ModeRunning:
		if in.StartScreen && m.menu && len(in.Presses) > 0 {
			m.enter(ModeSelectingSchedule, in.NowMs+SelectInactivityMs, &act)
			m.stepSelect(in, &act)
		}
	case ModeSelectingSchedule:
		m.stepSelect(in, &act)
	case ModeSettingDeviceNumber:
		for _, s := range in.Presses {
			if s == Right {
				m.cfg.DeviceID = min(m.cfg.DeviceID+1, MaxDeviceID)
			} else {
				m.cfg.DeviceID = max(m.cfg.DeviceID-1, 0)
			}
			m.deadlineMs = in.NowMs + ConfirmMs
			act.Cues = append(act.Cues, CueClick)
		}
		if in.NowMs >= m.deadlineMs {
			act.Persist = true
			m.enter(ModeSettingClock, in.NowMs+ClockWindowMs, &act)
		}
	case ModeSettingClock:
		for _, s := range in.Presses {
			if s == Right {
				act.ClockShift += ClockStep
			} else {
				act.ClockShift -= ClockStep
			}
			act.Cues = append(act.Cues, CueClick)
		}
		if in.NowMs >= m.deadlineMs {
			m.enter(ModeSettingTimedWindow, in.NowMs+ConfirmMs, &act)
		}
	case ModeSettingTimedWindow:
		for _, s := range in.Presses {
			if s == Left {
				m.cfg.TimedStart = (m.cfg.TimedStart + 1) % HoursPerDay
				if m.cfg.TimedStart > m.cfg.TimedEnd {
					m.cfg.TimedEnd = m.cfg.TimedStart
				}
			} else {
				m.cfg.TimedEnd = (m.cfg.TimedEnd + 1) % HoursPerDay
				if m.cfg.TimedStart > m.cfg.TimedEnd {
					m.cfg.TimedStart = m.cfg.TimedEnd
				}
			}
			m.deadlineMs = in.NowMs + ConfirmMs
			act.Cues = append(act.Cues, CueClick)
		}
		if in.NowMs >= m.deadlineMs {
			m.finish(&act)
		}
	}
	return act
}

func (m *ModeMachine) watchesBothHold(in ModeInput) bool {
	return (m.mode == ModeRunning && in.StartScreen) || m.mode == ModeSelectingSchedule
}

func (m *ModeMachine) stepSelect(in ModeInput, act *ModeAction) {
	for _, s := range in.Presses {
		if s == Right {
			m.cfg.Mode = (m.cfg.Mode + 1) % m.modeCount
		} else {
			m.cfg.Mode = (m.cfg.Mode - 1 + m.modeCount) % m.modeCount
		}
		act.Cues = append(act.Cues, CueClick)
	}
	// A held poke keeps the screen open; the timer runs from the last activity.
	if len(in.Presses) > 0 || in.Active[Left] || in.Active[Right] {
		m.deadlineMs = in.NowMs + SelectInactivityMs
	}
	if in.NowMs >= m.deadlineMs {
		m.finish(act)
	}
}

func (m *ModeMachine) enter(next Mode, deadlineMs int64, act *ModeAction) {
	m.mode = next
	m.deadlineMs = deadlineMs
	act.Entered = true
	act.Cues = append(act.Cues, CueModeChange)
}

func (m *ModeMachine) finish(act *ModeAction) {
	m.mode = ModeRunning
	act.Entered = true
	act.Persist = true
	act.Reboot = true
	act.Cues = append(act.Cues, CueConfirm)
}
