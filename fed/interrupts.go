package fed

import "sync/atomic"

// Interrupts holds the pending flags raised from interrupt context.
//
// Each flag has exactly one producer (the interrupt handler) and one consumer
// (the main loop, which clears it with an atomic swap after consuming it).
// Handlers must do nothing beyond calling PokeFalling or TouchReady: no
// logging, no bus transactions, no waits.
type Interrupts struct {
	poke  [2]atomic.Bool
	touch atomic.Bool
}

// PokeFalling is the falling-edge handler for a poke input.
func (i *Interrupts) PokeFalling(s Side) {
	i.poke[s].Store(true)
}

// TouchReady is the handler for the touch controller's data-ready line.
func (i *Interrupts) TouchReady() {
	i.touch.Store(true)
}

func (i *Interrupts) takePoke(s Side) bool {
	return i.poke[s].Swap(false)
}

func (i *Interrupts) takeTouch() bool {
	return i.touch.Swap(false)
}
