package fed

import (
	"fmt"
	"strings"
)

// Side identifies the left or right poke, lick sensor and bottle.
// It is used as an array index everywhere.
type Side int

const (
	Left Side = iota
	Right
)

// Sides lists both sides in poll order.
var Sides = [2]Side{Left, Right}

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == Left {
		return Right
	}
	return Left
}

func (s Side) String() string {
	switch s {
	case Left:
		return "Left"
	case Right:
		return "Right"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// ParseSide accepts "left" or "right" in any case.
func ParseSide(name string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "left", "l":
		return Left, nil
	case "right", "r":
		return Right, nil
	default:
		return Left, fmt.Errorf("unknown side %q; valid: left, right", name)
	}
}

// Level is a digital input reading.
type Level uint8

const (
	Low Level = iota
	High
)

// Active reports whether a poke input reads closed-circuit. Poke inputs are
// pulled up, so a beam break reads Low.
func (l Level) Active() bool {
	return l == Low
}

func (l Level) String() string {
	if l == Low {
		return "LOW"
	}
	return "HIGH"
}
