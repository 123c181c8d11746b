package fed

// Classifier turns rising edges into events.
//
// A poke edge opens a pending press on its side. The press resolves once the
// hold ends, at which point its duration decides between Poke and Short. A
// press that started inside a timeout window resolves as PokeDuringTimeout
// regardless of duration. Lick edges resolve immediately.
//
// Resolution never blocks: the device calls Resolve on every tick until the
// release is observed.
type Classifier struct {
	minPokeMs int64
	pending   [2]pendingPress
}

type pendingPress struct {
	open      bool
	pressMs   int64
	inTimeout bool
}

// NewClassifier creates a Classifier with the minimum hold for a valid poke.
func NewClassifier(minPokeMs int64) *Classifier {
	return &Classifier{minPokeMs: minPokeMs}
}

// Classify handles one edge. inTimeout is the timeout state at the moment of
// the edge. It returns an event if the edge resolved within this call.
func (c *Classifier) Classify(e EdgeSample, hold HoldState, nowMs int64, inTimeout bool) (Event, bool) {
	switch e.Kind {
	case LickEdge:
		return Event{Kind: KindLick, Side: e.Side, AtMs: e.TimestampMs}, true
	case PokeEdge:
		c.pending[e.Side] = pendingPress{open: true, pressMs: e.TimestampMs, inTimeout: inTimeout}
		return c.Resolve(e.Side, hold, nowMs)
	}
	return Event{}, false
}

// Resolve completes a pending press once its hold has ended.
func (c *Classifier) Resolve(side Side, hold HoldState, nowMs int64) (Event, bool) {
	p := c.pending[side]
	if !p.open || hold.IsHeld {
		return Event{}, false
	}
	c.pending[side] = pendingPress{}

	held := nowMs - p.pressMs
	kind := KindPoke
	switch {
	case p.inTimeout:
		kind = KindPokeDuringTimeout
	case held < c.minPokeMs:
		kind = KindShort
	}
	return Event{Kind: kind, Side: side, AtMs: nowMs, HoldMs: held}, true
}

// Pending reports whether a press on side is waiting for release.
func (c *Classifier) Pending(side Side) bool {
	return c.pending[side].open
}
