// Package fed provides the behavioral core of the two-bottle feeding device.
//
// # Reading Guide
//
// Start with these files to understand one pass of the main loop:
//   - edge.go: raw poke levels and the touch bitmask become rising edges
//   - classify.go: edges become Poke, Short, Lick or PokeDuringTimeout events
//   - device.go: the tick loop that owns all session state and drives the
//     collaborators (actuator, record sink, clock, persisted configuration)
//
// # Architecture
//
// The package owns every piece of mutable session state (HoldState,
// ScheduleState, DeliveryGate, Counters, ModeMachine) inside a single Device.
// Interrupt handlers only reach the Interrupts flags, which the main loop
// clears with an atomic swap; nothing else is shared across goroutines.
//
// Implementations of the outer surfaces live in sub-packages:
//   - fed/logrec/: pure-data event record, column schema and encoder
//   - fed/rig/: virtual hardware that replays a scripted stimulus
//   - fed/store/: SQLite persisted configuration and record archive
//   - fed/logfile/: CSV durable-append sink
//   - fed/telemetry/: OpenTelemetry instruments implementing Observer
//
// # Key Interfaces
//
// Collaborators are small interfaces grouped in Hardware (hardware.go):
// DigitalInput, TouchController, Actuator, Clock, Battery, EnvSensor,
// Indicator, ConfigStore and Rebooter. RecordSink receives one ordered field
// sequence per classified event. Program (program.go) is the reward schedule
// that consumes qualifying pokes.
package fed
