package fed

import "fmt"

// EventKind classifies one logged occurrence.
type EventKind int

const (
	KindPoke EventKind = iota
	KindShort
	KindLick
	KindDeliver
	KindPokeDuringTimeout
)

// eventSuffix is appended to the side name to form the logged event string.
var eventSuffix = map[EventKind]string{
	KindPoke:              "Poke",
	KindShort:             "Short",
	KindLick:              "Lick",
	KindDeliver:           "Deliver",
	KindPokeDuringTimeout: "inTimeout",
}

func (k EventKind) String() string {
	switch k {
	case KindPoke:
		return "Poke"
	case KindShort:
		return "Short"
	case KindLick:
		return "Lick"
	case KindDeliver:
		return "Deliver"
	case KindPokeDuringTimeout:
		return "PokeDuringTimeout"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a classified occurrence ready to be counted and logged.
type Event struct {
	Kind   EventKind
	Side   Side
	AtMs   int64
	HoldMs int64 // press-to-release duration; only meaningful for poke kinds
}

// Name returns the logged event string, e.g. "LeftPoke" or "RightinTimeout".
func (e Event) Name() string {
	return e.Side.String() + eventSuffix[e.Kind]
}

// IsPoke reports whether the event came from a poke sensor.
func (e Event) IsPoke() bool {
	return e.Kind == KindPoke || e.Kind == KindShort || e.Kind == KindPokeDuringTimeout
}
