package sim

import (
	"hash/fnv"
	"math"
	"math/rand"
	"strconv"
)

const (
	// SubsystemArrivals is the RNG subsystem for inter-arrival times.
	SubsystemArrivals = "arrivals"

	// SubsystemLengths is the RNG subsystem for sampling request shapes.
	SubsystemLengths = "lengths"
)

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
//
// Derivation formula: key XOR fnv1a64(subsystemName).
//
// Thread-safety: NOT thread-safe. Each probe owns its own PartitionedRNG.
type PartitionedRNG struct {
	key        int64
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a key.
func NewPartitionedRNG(key int64) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(p.key ^ fnv1a64(name)))
	p.subsystems[name] = rng
	return rng
}

// Key returns the key used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() int64 {
	return p.key
}

// ProbeKey derives the key of one feasibility probe from the run seed, the
// configuration and the offered rate. Identical inputs give identical probes
// regardless of which goroutine runs them.
func ProbeKey(seed int64, cfg Configuration, rate float64) int64 {
	return seed ^ fnv1a64(cfg.String()) ^ fnv1a64(strconv.FormatUint(math.Float64bits(rate), 16))
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
