package fed

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Decision is a program's answer to one qualifying poke.
type Decision struct {
	Deliver bool
	Side    Side
}

// ScheduleParams are the schedule columns of a record.
type ScheduleParams struct {
	Ratio           int
	PelletsToSwitch int
	ProbLeft        int
	ProbRight       int
	ActiveSide      Side
	BlockDeliveries int
}

// Program is a reward schedule. It sees only Poke events that occurred
// outside a timeout window; Short and PokeDuringTimeout never reach it.
type Program interface {
	// OnPoke decides whether a poke earns a delivery.
	OnPoke(side Side) Decision
	// Delivered is called after a confirmed delivery, before it is logged.
	Delivered(side Side)
	// Advance is called after the delivery record has been written and opens
	// the next trial.
	Advance()
	Params() ScheduleParams
}

// Program names accepted by NewProgram.
const (
	ProgramFixedRatio       = "fixed-ratio"
	ProgramProgressiveRatio = "progressive-ratio"
	ProgramBandit           = "bandit"
	ProgramExtinction       = "extinction"
)

// validPrograms is shared by Profile.Validate and NewProgram.
var validPrograms = map[string]bool{
	ProgramFixedRatio:       true,
	ProgramProgressiveRatio: true,
	ProgramBandit:           true,
	ProgramExtinction:       true,
}

// IsValidProgram reports whether name is a recognized program.
func IsValidProgram(name string) bool { return validPrograms[name] }

// ValidProgramNames returns the recognized program names, sorted.
func ValidProgramNames() []string {
	names := make([]string, 0, len(validPrograms))
	for n := range validPrograms {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewProgram builds the program named by p.Program.
// p must have passed Validate.
func NewProgram(p Profile, rng *PartitionedRNG) (Program, error) {
	active, err := ParseSide(p.ActiveSide)
	if err != nil {
		return nil, err
	}
	sched := NewScheduler(active, p.MaxConsecutive, rng.ForSubsystem(SubsystemScheduler))
	switch p.Program {
	case ProgramFixedRatio:
		return &FixedRatio{ratio: p.Ratio, sched: sched, randomize: p.RandomizeActive, maxConsecutive: p.MaxConsecutive}, nil
	case ProgramProgressiveRatio:
		return &ProgressiveRatio{sched: sched, ratio: progressiveRequirement(0)}, nil
	case ProgramBandit:
		return newBandit(p, rng.ForSubsystem(SubsystemBandit), rng.ForSubsystem(SubsystemScheduler)), nil
	case ProgramExtinction:
		return &Extinction{active: active}, nil
	default:
		return nil, fmt.Errorf("unknown program %q; valid: %v", p.Program, ValidProgramNames())
	}
}

// FixedRatio delivers on the active side after ratio active pokes.
// With randomize set, the active side is redrawn after every delivery.
type FixedRatio struct {
	ratio          int
	sched          *Scheduler
	randomize      bool
	maxConsecutive int
	progress       int
}

func (f *FixedRatio) OnPoke(side Side) Decision {
	if side != f.sched.Active() {
		return Decision{}
	}
	f.progress++
	if f.progress < f.ratio {
		return Decision{}
	}
	return Decision{Deliver: true, Side: side}
}

func (f *FixedRatio) Delivered(Side) { f.progress = 0 }

func (f *FixedRatio) Advance() {
	if f.randomize {
		f.sched.Advance(f.maxConsecutive)
	}
}

func (f *FixedRatio) Params() ScheduleParams {
	return ScheduleParams{Ratio: f.ratio, ActiveSide: f.sched.Active()}
}

// ProgressiveRatio raises the requirement exponentially with each delivery:
// round(5*e^(0.2*(n+1)) - 5) for the n-th delivery.
type ProgressiveRatio struct {
	sched      *Scheduler
	ratio      int
	progress   int
	deliveries int
}

func progressiveRequirement(deliveries int) int {
	return int(math.Round(5*math.Exp(0.2*float64(deliveries+1)) - 5))
}

func (p *ProgressiveRatio) OnPoke(side Side) Decision {
	if side != p.sched.Active() {
		return Decision{}
	}
	p.progress++
	if p.progress < p.ratio {
		return Decision{}
	}
	return Decision{Deliver: true, Side: side}
}

func (p *ProgressiveRatio) Delivered(Side) {
	p.progress = 0
	p.deliveries++
}

func (p *ProgressiveRatio) Advance() {
	p.ratio = progressiveRequirement(p.deliveries)
}

func (p *ProgressiveRatio) Params() ScheduleParams {
	return ScheduleParams{Ratio: p.ratio, ActiveSide: p.sched.Active()}
}

// Bandit rewards each poke with the side's probability (percent). After
// pelletsToSwitch deliveries the block ends and the scheduler picks which
// side carries the higher probability for the next block.
type Bandit struct {
	prob            [2]int
	pelletsToSwitch int
	maxConsecutive  int
	draw            *rand.Rand
	sched           *Scheduler
	block           int
}

func newBandit(p Profile, draw, schedRNG *rand.Rand) *Bandit {
	prob := [2]int{p.ProbLeft, p.ProbRight}
	high := Left
	if prob[Right] > prob[Left] {
		high = Right
	}
	return &Bandit{
		prob:            prob,
		pelletsToSwitch: p.PelletsToSwitch,
		maxConsecutive:  p.MaxConsecutive,
		draw:            draw,
		sched:           NewScheduler(high, p.MaxConsecutive, schedRNG),
	}
}

func (b *Bandit) OnPoke(side Side) Decision {
	if b.draw.Intn(100) < b.prob[side] {
		return Decision{Deliver: true, Side: side}
	}
	return Decision{}
}

func (b *Bandit) Delivered(Side) { b.block++ }

func (b *Bandit) Advance() {
	if b.pelletsToSwitch <= 0 || b.block < b.pelletsToSwitch {
		return
	}
	b.block = 0
	high := b.sched.Advance(b.maxConsecutive)
	if b.prob[high] < b.prob[high.Other()] {
		b.prob[Left], b.prob[Right] = b.prob[Right], b.prob[Left]
	}
}

func (b *Bandit) Params() ScheduleParams {
	return ScheduleParams{
		PelletsToSwitch: b.pelletsToSwitch,
		ProbLeft:        b.prob[Left],
		ProbRight:       b.prob[Right],
		ActiveSide:      b.sched.Active(),
		BlockDeliveries: b.block,
	}
}

// Extinction logs pokes but never delivers.
type Extinction struct {
	active Side
}

func (e *Extinction) OnPoke(Side) Decision { return Decision{} }
func (e *Extinction) Delivered(Side)       {}
func (e *Extinction) Advance()             {}

func (e *Extinction) Params() ScheduleParams {
	return ScheduleParams{Ratio: 1, ActiveSide: e.active}
}
