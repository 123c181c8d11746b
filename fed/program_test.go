package fed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProgram(t *testing.T, mutate func(*Profile)) Program {
	t.Helper()
	p := testProfile()
	mutate(&p)
	require.NoError(t, p.Validate())
	prog, err := NewProgram(p, NewPartitionedRNG(NewSessionKey(p.Seed)))
	require.NoError(t, err)
	return prog
}

func TestFixedRatio_CountsActivePokesOnly(t *testing.T) {
	prog := newTestProgram(t, func(p *Profile) { p.Ratio = 3; p.ActiveSide = "right" })

	assert.False(t, prog.OnPoke(Right).Deliver)
	assert.False(t, prog.OnPoke(Left).Deliver)
	assert.False(t, prog.OnPoke(Right).Deliver)
	assert.Equal(t, Decision{Deliver: true, Side: Right}, prog.OnPoke(Right))

	prog.Delivered(Right)
	prog.Advance()
	assert.False(t, prog.OnPoke(Right).Deliver, "progress resets after delivery")
	assert.Equal(t, ScheduleParams{Ratio: 3, ActiveSide: Right}, prog.Params())
}

func TestFixedRatio_RandomizedActiveSideRespectsStreakCap(t *testing.T) {
	prog := newTestProgram(t, func(p *Profile) { p.RandomizeActive = true; p.MaxConsecutive = 2 })

	prev, run := prog.Params().ActiveSide, 1
	for i := 0; i < 500; i++ {
		active := prog.Params().ActiveSide
		require.True(t, prog.OnPoke(active).Deliver)
		prog.Delivered(active)
		prog.Advance()

		next := prog.Params().ActiveSide
		if next == prev {
			run++
		} else {
			prev, run = next, 1
		}
		require.LessOrEqual(t, run, 2)
	}
}

func TestProgressiveRatio_RequirementGrows(t *testing.T) {
	prog := newTestProgram(t, func(p *Profile) { p.Program = ProgramProgressiveRatio })

	var got []int
	for i := 0; i < 5; i++ {
		req := prog.Params().Ratio
		got = append(got, req)
		for j := 1; j < req; j++ {
			require.False(t, prog.OnPoke(Left).Deliver)
		}
		require.True(t, prog.OnPoke(Left).Deliver)
		prog.Delivered(Left)
		prog.Advance()
	}

	assert.Equal(t, []int{1, 2, 4, 6, 9}, got)
}

func TestBandit_CertainAndImpossibleSides(t *testing.T) {
	prog := newTestProgram(t, func(p *Profile) {
		p.SessionType = "Bandit100"
		p.Program = ProgramBandit
		p.ProbLeft, p.ProbRight = 100, 0
		p.PelletsToSwitch = 1000
	})

	for i := 0; i < 100; i++ {
		assert.True(t, prog.OnPoke(Left).Deliver)
		assert.False(t, prog.OnPoke(Right).Deliver)
	}
}

func TestBandit_BlockSwitchKeepsHighSideConsistent(t *testing.T) {
	prog := newTestProgram(t, func(p *Profile) {
		p.SessionType = "Bandit80"
		p.Program = ProgramBandit
		p.ProbLeft, p.ProbRight = 80, 20
		p.PelletsToSwitch = 3
	})

	for block := 0; block < 20; block++ {
		for i := 0; i < 3; i++ {
			prog.Delivered(Left)
			assert.Equal(t, i+1, prog.Params().BlockDeliveries)
			prog.Advance()
		}
		params := prog.Params()
		assert.Zero(t, params.BlockDeliveries)
		assert.ElementsMatch(t, []int{80, 20}, []int{params.ProbLeft, params.ProbRight})
		high := Left
		if params.ProbRight > params.ProbLeft {
			high = Right
		}
		assert.Equal(t, high, params.ActiveSide)
	}
}

func TestExtinction_NeverDelivers(t *testing.T) {
	prog := newTestProgram(t, func(p *Profile) { p.Program = ProgramExtinction })
	for i := 0; i < 50; i++ {
		assert.False(t, prog.OnPoke(Left).Deliver)
	}
}

func TestNewProgram_UnknownName(t *testing.T) {
	p := testProfile()
	p.Program = "random-interval"
	_, err := NewProgram(p, NewPartitionedRNG(1))
	assert.Error(t, err)
	assert.False(t, IsValidProgram("random-interval"))
	assert.Contains(t, ValidProgramNames(), ProgramBandit)
}
