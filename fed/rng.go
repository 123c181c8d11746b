package fed

import (
	"hash/fnv"
	"math/rand"
)

// SessionKey identifies a reproducible session. Two devices built from the
// same SessionKey and profile, fed the same input trace, draw the same
// active-side and bandit sequences.
type SessionKey int64

// NewSessionKey creates a SessionKey from a seed value.
func NewSessionKey(seed int64) SessionKey {
	return SessionKey(seed)
}

const (
	// SubsystemScheduler drives active-side randomization.
	// Uses the master seed directly, so a profile seed reproduces the same
	// side sequence as rand.New(rand.NewSource(seed)).
	SubsystemScheduler = "scheduler"

	// SubsystemBandit drives the per-poke reward draw of the bandit program.
	SubsystemBandit = "bandit"
)

// PartitionedRNG hands out an isolated, deterministically seeded RNG per
// subsystem, so drawing bandit outcomes never shifts the side sequence.
//
// Derivation:
//   - SubsystemScheduler: masterSeed
//   - anything else: masterSeed XOR fnv1a64(name)
//
// Not safe for concurrent use. The device only touches it from the main loop.
type PartitionedRNG struct {
	key        SessionKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SessionKey.
func NewPartitionedRNG(key SessionKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns the cached RNG for name, creating it on first use.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	seed := int64(p.key)
	if name != SubsystemScheduler {
		seed ^= fnv1a64(name)
	}
	rng := rand.New(rand.NewSource(seed))
	p.subsystems[name] = rng
	return rng
}

// Key returns the SessionKey this generator was built from.
func (p *PartitionedRNG) Key() SessionKey {
	return p.key
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
