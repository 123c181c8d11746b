package fed

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters_GateFollowsLastEvent(t *testing.T) {
	// GIVEN random interleavings of every event kind on both sides
	kinds := []EventKind{KindPoke, KindShort, KindLick, KindDeliver, KindPokeDuringTimeout}
	rng := rand.New(rand.NewSource(5))
	wall := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for trial := 0; trial < 50; trial++ {
		c := NewCounters(trial%2 == 0)
		for i := 0; i < 200; i++ {
			e := Event{Kind: kinds[rng.Intn(len(kinds))], Side: Side(rng.Intn(2))}
			if e.Kind == KindDeliver {
				c.BeginDelivery(e.Side)
			}
			c.OnEvent(e, wall)
			wall = wall.Add(time.Second)

			// THEN the gate reflects the most recent event on that side
			require.Equal(t, e.Kind == KindDeliver, c.Gate(e.Side).DropAvailable, "trial %d step %d %s", trial, i, e.Name())
		}
	}
}

func TestCounters_Tallies(t *testing.T) {
	wall := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCounters(false)

	c.OnEvent(Event{Kind: KindPoke, Side: Left}, wall)
	c.OnEvent(Event{Kind: KindShort, Side: Left}, wall)
	c.OnEvent(Event{Kind: KindPokeDuringTimeout, Side: Left}, wall)
	c.OnEvent(Event{Kind: KindLick, Side: Right}, wall)
	c.OnEvent(Event{Kind: KindDeliver, Side: Right}, wall)

	assert.Equal(t, [2]int{2, 0}, c.PokeCount)
	assert.Equal(t, [2]int{0, 1}, c.LickCount)
	assert.Equal(t, [2]int{0, 1}, c.DeliverCount)
	assert.Equal(t, 1, c.TotalDeliverCount)
}

func TestCounters_InterDeliveryInterval(t *testing.T) {
	wall := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewCounters(true)

	// GIVEN the first delivery
	c.OnEvent(Event{Kind: KindDeliver, Side: Left}, wall)

	// THEN there is no interval yet
	assert.False(t, c.HasInterDelivery)

	// WHEN a second delivery follows 75.9 s later on the other side
	c.OnEvent(Event{Kind: KindDeliver, Side: Right}, wall.Add(75900*time.Millisecond))

	// THEN the interval is whole seconds
	assert.True(t, c.HasInterDelivery)
	assert.Equal(t, int64(75), c.InterDeliveryS)
}

func TestCounters_InterDeliveryUsesWholeSecondStamps(t *testing.T) {
	// GIVEN deliveries at 09:00:00.900 and 09:00:02.100
	first := time.Date(2026, 1, 1, 9, 0, 0, 900_000_000, time.UTC)
	c := NewCounters(true)
	c.OnEvent(Event{Kind: KindDeliver, Side: Left}, first)

	// WHEN the second one is counted
	c.OnEvent(Event{Kind: KindDeliver, Side: Left}, first.Add(1200*time.Millisecond))

	// THEN the interval is the difference of the second stamps, not the
	// truncated duration
	assert.Equal(t, int64(2), c.InterDeliveryS)
}
