package fed

// EdgeKind distinguishes the two sensor families.
type EdgeKind int

const (
	PokeEdge EdgeKind = iota
	LickEdge
)

func (k EdgeKind) String() string {
	if k == LickEdge {
		return "lick"
	}
	return "poke"
}

// EdgeSample is one rising edge observed by a poll.
type EdgeSample struct {
	Side        Side
	Kind        EdgeKind
	TimestampMs int64
}

// HoldState tracks whether a poke is currently held.
// IsHeld is true exactly between a press edge and the next observed release.
type HoldState struct {
	IsHeld      bool
	HeldSinceMs int64
}

// Sample is the raw input state gathered for one poll.
type Sample struct {
	PokeLevels [2]Level
	// PokeIRQ reports a falling edge latched since the previous poll. It
	// catches presses shorter than the poll interval.
	PokeIRQ [2]bool
	// Touched is the touch controller's electrode bitmask.
	Touched uint16
}

// Lick sensor electrodes used when the profile does not override them.
const (
	DefaultLeftLickChannel  = 0
	DefaultRightLickChannel = 1
)

// EdgeDetector turns raw samples into rising edges.
//
// Lick edges are emitted before poke edges within one poll, left before right.
// A lick edge is a 0->1 transition of the side's electrode bit relative to the
// previous poll, so re-polling an unchanged bitmask yields nothing.
type EdgeDetector struct {
	hold        [2]HoldState
	lastTouched uint16
	channel     [2]uint
}

// NewEdgeDetector builds a detector that watches the given electrodes.
func NewEdgeDetector(leftChannel, rightChannel uint) *EdgeDetector {
	return &EdgeDetector{channel: [2]uint{leftChannel, rightChannel}}
}

// PollEdges consumes one sample and returns the rising edges it contains.
func (d *EdgeDetector) PollEdges(s Sample, nowMs int64) []EdgeSample {
	var edges []EdgeSample

	rise := s.Touched &^ d.lastTouched
	d.lastTouched = s.Touched
	for _, side := range Sides {
		if rise&(1<<d.channel[side]) != 0 {
			edges = append(edges, EdgeSample{Side: side, Kind: LickEdge, TimestampMs: nowMs})
		}
	}

	for _, side := range Sides {
		h := &d.hold[side]
		active := s.PokeLevels[side].Active()
		switch {
		case !h.IsHeld && (active || s.PokeIRQ[side]):
			// A latched falling edge with the level already back up is a
			// press and release inside one poll interval.
			*h = HoldState{IsHeld: active, HeldSinceMs: nowMs}
			edges = append(edges, EdgeSample{Side: side, Kind: PokeEdge, TimestampMs: nowMs})
		case h.IsHeld && !active:
			h.IsHeld = false
		}
	}
	return edges
}

// Hold returns the current hold state of one poke.
func (d *EdgeDetector) Hold(side Side) HoldState {
	return d.hold[side]
}

// LastTouched returns the bitmask seen by the most recent poll.
func (d *EdgeDetector) LastTouched() uint16 {
	return d.lastTouched
}
