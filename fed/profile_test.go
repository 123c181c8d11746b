package fed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultProfile_IsValid(t *testing.T) {
	assert.NoError(t, DefaultProfile().Validate())
}

func TestLoadProfile_OverlaysDefaults(t *testing.T) {
	path := writeProfile(t, "session_type: FR3\nratio: 3\nactive_side: right\nmode_programs: []\n")

	p, err := LoadProfile(path)

	require.NoError(t, err)
	assert.Equal(t, "FR3", p.SessionType)
	assert.Equal(t, 3, p.Ratio)
	assert.Equal(t, "right", p.ActiveSide)
	assert.Equal(t, int64(200), p.MinPokeMs, "unset fields keep defaults")
	assert.True(t, p.CountAllPokes)
	assert.Empty(t, p.ModePrograms)
	assert.NoError(t, p.Validate())
}

func TestLoadProfile_RejectsUnknownKeys(t *testing.T) {
	path := writeProfile(t, "min_pokes_ms: 100\n")
	_, err := LoadProfile(path)
	assert.Error(t, err)
}

func TestLoadProfile_MissingFile(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestProfile_ForMode(t *testing.T) {
	p := DefaultProfile()

	tests := []struct {
		mode        int
		sessionType string
		program     string
	}{
		{0, "Bandit100", ProgramBandit},
		{1, "FR1", ProgramFixedRatio},
		{2, "Bandit80", ProgramBandit},
		{3, "PR1", ProgramProgressiveRatio},
	}
	for _, tt := range tests {
		got, err := p.ForMode(tt.mode)
		require.NoError(t, err)
		assert.Equal(t, tt.sessionType, got.SessionType)
		assert.Equal(t, tt.program, got.Program)
		assert.NoError(t, got.Validate())
	}

	_, err := p.ForMode(4)
	assert.Error(t, err)
	assert.Equal(t, 4, p.Modes())
}

func TestProfile_ForModeWithoutMenuIsIdentity(t *testing.T) {
	p := testProfile()
	got, err := p.ForMode(7)
	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.Equal(t, 1, p.Modes())
}

func TestProfile_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"unknown program", func(p *Profile) { p.Program = "vi-30" }},
		{"bad side", func(p *Profile) { p.ActiveSide = "middle" }},
		{"zero ratio", func(p *Profile) { p.Ratio = 0 }},
		{"zero streak cap", func(p *Profile) { p.MaxConsecutive = 0 }},
		{"probability above 100", func(p *Profile) { p.ProbLeft = 101 }},
		{"same lick channel", func(p *Profile) { p.RightLickChannel = p.LeftLickChannel }},
		{"lick channel out of range", func(p *Profile) { p.LeftLickChannel = 16 }},
		{"no attempts", func(p *Profile) { p.DeliveryAttempts = 0 }},
		{"unknown preset", func(p *Profile) { p.ModePrograms = []string{"FR2"} }},
		{"mode count mismatch", func(p *Profile) { p.ModeCount = 2 }},
		{"zero poll interval", func(p *Profile) { p.PollIntervalMs = 0 }},
		{"empty session type", func(p *Profile) { p.SessionType = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultProfile()
			tt.mutate(&p)
			assert.Error(t, p.Validate())
		})
	}
}
