package rig

import (
	"bytes"
	"container/heap"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/twobottle/fedcore/fed"
)

// Stimulus actions.
const (
	ActionPress       = "press"
	ActionRelease     = "release"
	ActionTap         = "tap" // press and release inside one poll; only the interrupt sees it
	ActionTouch       = "touch"
	ActionUntouch     = "untouch"
	ActionFailDeliver = "fail_delivery"
)

// actionPriority orders stimuli sharing a timestamp: releases before presses,
// so a release and re-press at the same instant produce a fresh edge.
var actionPriority = map[string]int{
	ActionRelease:     0,
	ActionUntouch:     0,
	ActionFailDeliver: 1,
	ActionPress:       2,
	ActionTap:         2,
	ActionTouch:       2,
}

// Stimulus is one scripted input change.
type Stimulus struct {
	AtMs   int64  `yaml:"at_ms"`
	Action string `yaml:"action"`
	Side   string `yaml:"side"`
	// Count is the number of deliveries to fail for fail_delivery.
	Count int `yaml:"count,omitempty"`

	side fed.Side
	seq  int
}

// Script is a timed stimulus sequence.
type Script struct {
	DurationMs int64      `yaml:"duration_ms"`
	Stimuli    []Stimulus `yaml:"stimuli"`
}

// LoadScript reads and validates a YAML script.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	var s Script
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks every stimulus and resolves its side.
func (s *Script) Validate() error {
	if s.DurationMs <= 0 {
		return fmt.Errorf("duration_ms must be positive, got %d", s.DurationMs)
	}
	for i := range s.Stimuli {
		st := &s.Stimuli[i]
		if _, ok := actionPriority[st.Action]; !ok {
			return fmt.Errorf("stimulus %d: unknown action %q", i, st.Action)
		}
		if st.AtMs < 0 {
			return fmt.Errorf("stimulus %d: at_ms must be non-negative, got %d", i, st.AtMs)
		}
		if st.Action == ActionFailDeliver {
			if st.Count < 1 {
				return fmt.Errorf("stimulus %d: fail_delivery count must be >= 1", i)
			}
			continue
		}
		side, err := fed.ParseSide(st.Side)
		if err != nil {
			return fmt.Errorf("stimulus %d: %w", i, err)
		}
		st.side = side
	}
	return nil
}

// Hold returns a press at atMs and the matching release durMs later.
func Hold(side string, atMs, durMs int64) []Stimulus {
	return []Stimulus{
		{AtMs: atMs, Action: ActionPress, Side: side},
		{AtMs: atMs + durMs, Action: ActionRelease, Side: side},
	}
}

// Lick returns a touch at atMs and the matching untouch durMs later.
func Lick(side string, atMs, durMs int64) []Stimulus {
	return []Stimulus{
		{AtMs: atMs, Action: ActionTouch, Side: side},
		{AtMs: atMs + durMs, Action: ActionUntouch, Side: side},
	}
}

// StimulusQueue orders stimuli deterministically:
// timestamp, then action priority, then script order.
type StimulusQueue struct {
	items []Stimulus
}

// NewStimulusQueue queues a copy of stimuli.
func NewStimulusQueue(stimuli []Stimulus) *StimulusQueue {
	q := &StimulusQueue{items: make([]Stimulus, 0, len(stimuli))}
	for i, st := range stimuli {
		st.seq = i
		q.items = append(q.items, st)
	}
	heap.Init(q)
	return q
}

func (q *StimulusQueue) Len() int { return len(q.items) }

func (q *StimulusQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.AtMs != b.AtMs {
		return a.AtMs < b.AtMs
	}
	if pa, pb := actionPriority[a.Action], actionPriority[b.Action]; pa != pb {
		return pa < pb
	}
	return a.seq < b.seq
}

func (q *StimulusQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *StimulusQueue) Push(x any) { q.items = append(q.items, x.(Stimulus)) }

func (q *StimulusQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	q.items = old[:n-1]
	return item
}

// Peek returns the next stimulus without removing it. The queue must not be
// empty.
func (q *StimulusQueue) Peek() Stimulus { return q.items[0] }

// PopNext removes and returns the next stimulus.
func (q *StimulusQueue) PopNext() Stimulus { return heap.Pop(q).(Stimulus) }
