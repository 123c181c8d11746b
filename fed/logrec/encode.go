package logrec

import (
	"fmt"
	"math"
	"strconv"
)

// Encode renders r in the column order of s. Fields that do not apply to
// the event are NaN, so every record of a session has len(s.Columns())
// fields.
func Encode(r Record, s Schema) []string {
	out := make([]string, 0, len(s.Columns()))
	out = append(out, timestamp(r))
	if s.EnvSensor {
		out = append(out, float2(r.TempC), float2(r.Humidity))
	}
	out = append(out, Version, r.SessionType, strconv.Itoa(r.DeviceID), float2(r.BatteryV))

	if r.Delivery {
		out = append(out, strconv.Itoa(r.MotorTurns[0]+1), strconv.Itoa(r.MotorTurns[1]+1))
	} else {
		out = append(out, NaN, NaN)
	}

	if s.Bandit {
		out = append(out, strconv.Itoa(r.PelletsToSwitch), strconv.Itoa(r.ProbLeft), strconv.Itoa(r.ProbRight),
			r.Event, highProbSide(r.ProbLeft, r.ProbRight))
	} else {
		out = append(out, strconv.Itoa(r.Ratio), r.Event, r.ActiveSide)
	}

	out = append(out,
		strconv.Itoa(r.PokeCount[0]), strconv.Itoa(r.PokeCount[1]),
		strconv.Itoa(r.LickCount[0]), strconv.Itoa(r.LickCount[1]),
		strconv.Itoa(r.DeliverCount[0]), strconv.Itoa(r.DeliverCount[1]),
		strconv.Itoa(r.BlockDeliverCount),
		retrieval(r), interDelivery(r), pokeTime(r),
	)
	return out
}

// timestamp renders M/D/YYYY H:MM:SS:mmm.
func timestamp(r Record) string {
	t := r.Time
	return fmt.Sprintf("%d/%d/%d %d:%02d:%02d:%03d",
		int(t.Month()), t.Day(), t.Year(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond()/1e6)
}

func float2(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NaN
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func highProbSide(left, right int) string {
	switch {
	case left > right:
		return "Left"
	case left < right:
		return "Right"
	default:
		return NaN
	}
}

func retrieval(r Record) string {
	if !r.Delivery {
		return NaN
	}
	if r.RetrievalMs >= TimedOutMs {
		return TimedOut
	}
	return float2(float64(r.RetrievalMs) / 1000)
}

func interDelivery(r Record) string {
	if !r.Delivery || !r.HasInterDelivery {
		return NaN
	}
	return strconv.FormatInt(r.InterDeliveryS, 10)
}

func pokeTime(r Record) string {
	if r.Delivery || !r.HasPokeHold {
		return NaN
	}
	return float2(float64(r.PokeHoldMs) / 1000)
}
