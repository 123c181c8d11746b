package fed

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is the session configuration loaded from YAML. Fields missing from
// the file keep their DefaultProfile values.
type Profile struct {
	SessionType        string `yaml:"session_type"`
	Program            string `yaml:"program"`
	Ratio              int    `yaml:"ratio"`
	MinPokeMs          int64  `yaml:"min_poke_ms"`
	CountAllPokes      bool   `yaml:"count_all_pokes"`
	TimeoutS           int    `yaml:"timeout_s"`
	TimeoutResetOnPoke bool   `yaml:"timeout_reset_on_poke"`
	ActiveSide         string `yaml:"active_side"`
	RandomizeActive    bool   `yaml:"randomize_active"`
	MaxConsecutive     int    `yaml:"max_consecutive"`
	ProbLeft           int    `yaml:"prob_left"`
	ProbRight          int    `yaml:"prob_right"`
	PelletsToSwitch    int    `yaml:"pellets_to_switch"`
	DoseStepsLeft      int    `yaml:"dose_steps_left"`
	DoseStepsRight     int    `yaml:"dose_steps_right"`
	DeliveryAttempts   int    `yaml:"delivery_attempts"`
	LeftLickChannel    uint   `yaml:"left_lick_channel"`
	RightLickChannel   uint   `yaml:"right_lick_channel"`

	// ModePrograms maps a persisted mode index to a preset name. When set,
	// the selected preset overrides the schedule fields above.
	ModePrograms []string `yaml:"mode_programs"`
	ModeCount    int      `yaml:"mode_count"`
	Menu         bool     `yaml:"menu"`

	StartScreenMs  int64 `yaml:"start_screen_ms"`
	PollIntervalMs int64 `yaml:"poll_interval_ms"`
	Seed           int64 `yaml:"seed"`
}

// DefaultProfile describes the four-entry psygene menu: Bandit100, FR1,
// Bandit80 and PR1 at modes 0 to 3. The schedule fields hold FR1 on the left
// side and apply only when ModePrograms is cleared.
func DefaultProfile() Profile {
	return Profile{
		SessionType:      "FR1",
		Program:          ProgramFixedRatio,
		Ratio:            1,
		MinPokeMs:        200,
		CountAllPokes:    true,
		ActiveSide:       "left",
		MaxConsecutive:   3,
		ProbLeft:         80,
		ProbRight:        20,
		PelletsToSwitch:  30,
		DoseStepsLeft:    500,
		DoseStepsRight:   500,
		DeliveryAttempts: 3,
		LeftLickChannel:  DefaultLeftLickChannel,
		RightLickChannel: DefaultRightLickChannel,
		ModePrograms:     []string{"Bandit100", "FR1", "Bandit80", "PR1"},
		Menu:             true,
		StartScreenMs:    2000,
		PollIntervalMs:   1,
		Seed:             42,
	}
}

// Preset is a named schedule selectable from the mode menu.
type Preset struct {
	SessionType string
	Program     string
	Ratio       int
	ProbLeft    int
	ProbRight   int
}

// Presets lists the schedules that ModePrograms may name.
var Presets = map[string]Preset{
	"FR1":        {SessionType: "FR1", Program: ProgramFixedRatio, Ratio: 1},
	"FR3":        {SessionType: "FR3", Program: ProgramFixedRatio, Ratio: 3},
	"FR5":        {SessionType: "FR5", Program: ProgramFixedRatio, Ratio: 5},
	"PR1":        {SessionType: "PR1", Program: ProgramProgressiveRatio, Ratio: 1},
	"Bandit100":  {SessionType: "Bandit100", Program: ProgramBandit, ProbLeft: 100, ProbRight: 0},
	"Bandit80":   {SessionType: "Bandit80", Program: ProgramBandit, ProbLeft: 80, ProbRight: 20},
	"Extinction": {SessionType: "Extinct", Program: ProgramExtinction, Ratio: 1},
}

// LoadProfile reads a YAML profile over DefaultProfile.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("reading profile: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil {
		return p, fmt.Errorf("parsing profile: %w", err)
	}
	return p, nil
}

// Modes returns the number of entries in the schedule menu.
func (p Profile) Modes() int {
	if len(p.ModePrograms) > 0 {
		return len(p.ModePrograms)
	}
	return max(p.ModeCount, 1)
}

// ForMode applies the preset selected by a persisted mode index. Without
// ModePrograms the profile is returned unchanged.
func (p Profile) ForMode(mode int) (Profile, error) {
	if len(p.ModePrograms) == 0 {
		return p, nil
	}
	if mode < 0 || mode >= len(p.ModePrograms) {
		return p, fmt.Errorf("mode %d out of range [0, %d)", mode, len(p.ModePrograms))
	}
	name := p.ModePrograms[mode]
	preset, ok := Presets[name]
	if !ok {
		return p, fmt.Errorf("unknown preset %q", name)
	}
	p.SessionType = preset.SessionType
	p.Program = preset.Program
	p.Ratio = preset.Ratio
	if preset.Program == ProgramBandit {
		p.ProbLeft, p.ProbRight = preset.ProbLeft, preset.ProbRight
	}
	return p, nil
}

// Validate checks names and ranges.
func (p Profile) Validate() error {
	if p.SessionType == "" {
		return fmt.Errorf("session_type must not be empty")
	}
	if !IsValidProgram(p.Program) {
		return fmt.Errorf("unknown program %q; valid: %v", p.Program, ValidProgramNames())
	}
	if _, err := ParseSide(p.ActiveSide); err != nil {
		return fmt.Errorf("active_side: %w", err)
	}
	if p.Program == ProgramFixedRatio && p.Ratio < 1 {
		return fmt.Errorf("ratio must be >= 1, got %d", p.Ratio)
	}
	if p.MinPokeMs < 0 {
		return fmt.Errorf("min_poke_ms must be non-negative, got %d", p.MinPokeMs)
	}
	if p.TimeoutS < 0 {
		return fmt.Errorf("timeout_s must be non-negative, got %d", p.TimeoutS)
	}
	if p.MaxConsecutive < 1 {
		return fmt.Errorf("max_consecutive must be >= 1, got %d", p.MaxConsecutive)
	}
	for name, v := range map[string]int{"prob_left": p.ProbLeft, "prob_right": p.ProbRight} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s must be in [0, 100], got %d", name, v)
		}
	}
	if p.Program == ProgramBandit && p.PelletsToSwitch < 1 {
		return fmt.Errorf("pellets_to_switch must be >= 1, got %d", p.PelletsToSwitch)
	}
	if p.DoseStepsLeft < 1 || p.DoseStepsRight < 1 {
		return fmt.Errorf("dose steps must be positive, got left=%d right=%d", p.DoseStepsLeft, p.DoseStepsRight)
	}
	if p.DeliveryAttempts < 1 {
		return fmt.Errorf("delivery_attempts must be >= 1, got %d", p.DeliveryAttempts)
	}
	if p.LeftLickChannel > 15 || p.RightLickChannel > 15 {
		return fmt.Errorf("lick channels must be in [0, 15], got left=%d right=%d", p.LeftLickChannel, p.RightLickChannel)
	}
	if p.LeftLickChannel == p.RightLickChannel {
		return fmt.Errorf("left and right lick channels must differ")
	}
	if len(p.ModePrograms) > 0 && p.ModeCount != 0 && p.ModeCount != len(p.ModePrograms) {
		return fmt.Errorf("mode_count %d does not match %d mode_programs", p.ModeCount, len(p.ModePrograms))
	}
	for _, name := range p.ModePrograms {
		if _, ok := Presets[name]; !ok {
			return fmt.Errorf("unknown preset %q in mode_programs", name)
		}
	}
	if p.StartScreenMs < 0 {
		return fmt.Errorf("start_screen_ms must be non-negative, got %d", p.StartScreenMs)
	}
	if p.PollIntervalMs < 1 {
		return fmt.Errorf("poll_interval_ms must be >= 1, got %d", p.PollIntervalMs)
	}
	return nil
}
