package fed

import "math/rand"

// ScheduleState is the active-side scheduler's state.
type ScheduleState struct {
	ActiveSide                 Side
	ConsecutiveCount           int
	MaxConsecutiveBeforeSwitch int
}

// Scheduler picks which side is active for the next trial. Each draw is a
// fair coin, except that a streak reaching the configured maximum forces a
// switch, so no side stays active for more than max trials in a row.
type Scheduler struct {
	state ScheduleState
	rng   *rand.Rand
}

// NewScheduler starts with initial active. rng must not be nil.
func NewScheduler(initial Side, maxConsecutive int, rng *rand.Rand) *Scheduler {
	if maxConsecutive < 1 {
		maxConsecutive = 1
	}
	return &Scheduler{
		state: ScheduleState{ActiveSide: initial, MaxConsecutiveBeforeSwitch: maxConsecutive},
		rng:   rng,
	}
}

// Advance draws the active side for the next trial.
func (s *Scheduler) Advance(maxConsecutive int) Side {
	if maxConsecutive < 1 {
		maxConsecutive = 1
	}
	s.state.MaxConsecutiveBeforeSwitch = maxConsecutive

	drawn := Side(s.rng.Intn(2))
	if drawn == s.state.ActiveSide {
		s.state.ConsecutiveCount++
	} else {
		s.state.ConsecutiveCount = 0
	}
	s.state.ActiveSide = drawn
	if s.state.ConsecutiveCount >= maxConsecutive {
		s.state.ActiveSide = drawn.Other()
		s.state.ConsecutiveCount = 0
	}
	return s.state.ActiveSide
}

// Active returns the current active side.
func (s *Scheduler) Active() Side {
	return s.state.ActiveSide
}

// State returns a copy of the scheduler state.
func (s *Scheduler) State() ScheduleState {
	return s.state
}
