// Package logrec defines the event record written for every classified
// event, its column schema, and the encoder that turns one into an ordered
// field sequence. It is pure data: no I/O, no device state.
package logrec

import "time"

// Version is written in the Library_Version column.
const Version = "1.17.0"

// NaN is the sentinel for fields that carry no meaning for an event.
const NaN = "nan"

// TimedOutMs is the retrieval interval at or above which the field reads
// TimedOut instead of seconds.
const TimedOutMs = 60000

// TimedOut is written in the retrieval column for slow retrievals.
const TimedOut = "Timed_out"

// Record is one logged event.
type Record struct {
	Time        time.Time
	TempC       float64 // NaN when the sensor read failed
	Humidity    float64
	SessionType string
	DeviceID    int
	BatteryV    float64

	// MotorTurns and RetrievalMs are meaningful only for deliveries.
	MotorTurns  [2]int
	RetrievalMs int64

	Ratio           int
	PelletsToSwitch int
	ProbLeft        int
	ProbRight       int

	Event      string
	Delivery   bool
	ActiveSide string

	PokeCount         [2]int
	LickCount         [2]int
	DeliverCount      [2]int
	BlockDeliverCount int

	// InterDeliveryS is valid when HasInterDelivery is set.
	InterDeliveryS   int64
	HasInterDelivery bool

	// PokeHoldMs is valid when HasPokeHold is set.
	PokeHoldMs  int64
	HasPokeHold bool
}
