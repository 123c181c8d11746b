package fed

import "time"

// DeliveryGate tracks whether a dispensed drop is waiting at a bottle.
type DeliveryGate struct {
	DropAvailable bool
}

// Counters are the per-session tallies. They are monotonic within a session
// and reset only by a reboot.
type Counters struct {
	PokeCount         [2]int
	LickCount         [2]int
	DeliverCount      [2]int
	TotalDeliverCount int

	// InterDeliveryS is the difference of the whole-second wall-clock stamps
	// of the two most recent deliveries, valid once HasInterDelivery is set.
	InterDeliveryS   int64
	HasInterDelivery bool

	countAllPokes bool
	gate          [2]DeliveryGate
	lastDelivery  time.Time
}

// NewCounters creates zeroed counters. With countAllPokes, pokes inside a
// timeout window also increment the poke count.
func NewCounters(countAllPokes bool) *Counters {
	return &Counters{countAllPokes: countAllPokes}
}

// OnEvent updates tallies and the side's gate for one event. wall is the
// wall-clock time of the event.
func (c *Counters) OnEvent(e Event, wall time.Time) {
	switch e.Kind {
	case KindPoke, KindShort:
		c.PokeCount[e.Side]++
		c.gate[e.Side].DropAvailable = false
	case KindPokeDuringTimeout:
		if c.countAllPokes {
			c.PokeCount[e.Side]++
		}
		c.gate[e.Side].DropAvailable = false
	case KindLick:
		c.LickCount[e.Side]++
		c.gate[e.Side].DropAvailable = false
	case KindDeliver:
		c.DeliverCount[e.Side]++
		c.TotalDeliverCount++
		if c.TotalDeliverCount > 1 {
			c.InterDeliveryS = wall.Unix() - c.lastDelivery.Unix()
			c.HasInterDelivery = true
		}
		c.lastDelivery = wall
		c.gate[e.Side].DropAvailable = true
	}
}

// BeginDelivery clears the side's gate before the actuator runs.
func (c *Counters) BeginDelivery(side Side) {
	c.gate[side].DropAvailable = false
}

// Gate returns the side's gate.
func (c *Counters) Gate(side Side) DeliveryGate {
	return c.gate[side]
}
