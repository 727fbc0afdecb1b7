package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionedRNG_DeterministicDerivation(t *testing.T) {
	// BDD: Same key+name produces same sequence
	rng1 := NewPartitionedRNG(42)
	rng2 := NewPartitionedRNG(42)
	for i := 0; i < 3; i++ {
		assert.Equal(t, rng1.ForSubsystem(SubsystemArrivals).Float64(), rng2.ForSubsystem(SubsystemArrivals).Float64())
	}
	assert.Equal(t, int64(42), rng1.Key())
}

func TestPartitionedRNG_SubsystemIsolation(t *testing.T) {
	// BDD: Drawing from subsystem A doesn't affect subsystem B
	a := NewPartitionedRNG(42)
	b := NewPartitionedRNG(42)
	for i := 0; i < 100; i++ {
		a.ForSubsystem(SubsystemArrivals).Float64()
	}
	assert.Equal(t, b.ForSubsystem(SubsystemLengths).Int63(), a.ForSubsystem(SubsystemLengths).Int63())
}

func TestPartitionedRNG_CachesInstances(t *testing.T) {
	p := NewPartitionedRNG(7)
	assert.Same(t, p.ForSubsystem(SubsystemLengths), p.ForSubsystem(SubsystemLengths))
}

func TestProbeKey_DependsOnEveryInput(t *testing.T) {
	cfg := Monolithic{TP: 1, PP: 1}
	base := ProbeKey(1, cfg, 2.5)
	assert.Equal(t, base, ProbeKey(1, cfg, 2.5))
	assert.NotEqual(t, base, ProbeKey(2, cfg, 2.5))
	assert.NotEqual(t, base, ProbeKey(1, Monolithic{TP: 2, PP: 1}, 2.5))
	assert.NotEqual(t, base, ProbeKey(1, cfg, 1.25))
}
