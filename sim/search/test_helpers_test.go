package search

import (
	"context"
	"sync/atomic"

	"github.com/inference-sim/pdsearch/sim"
)

// thresholdOracle is feasible for every rate <= limit.
func thresholdOracle(limit float64) OracleFunc {
	return func(_ context.Context, _ sim.Configuration, rate float64, _ sim.Model, _ sim.AttainmentTarget, _ int) (bool, error) {
		return rate <= limit, nil
	}
}

// countingOracle wraps an oracle and counts calls.
type countingOracle struct {
	inner FeasibilityOracle
	calls atomic.Int64
}

func (c *countingOracle) Feasible(ctx context.Context, cfg sim.Configuration, rate float64, m sim.Model, t sim.AttainmentTarget, n int) (bool, error) {
	c.calls.Add(1)
	return c.inner.Feasible(ctx, cfg, rate, m, t, n)
}

func testTarget() sim.AttainmentTarget {
	return sim.AttainmentTarget{PrefillLatencyMs: 200, DecodeLatencyMs: 100, PrefillPercentile: 90, DecodePercentile: 90}
}

func testParams(backend sim.Backend) Params {
	return Params{
		Topology: sim.Topology{Nodes: 1, GPUsPerNode: 4},
		Backend:  backend,
		Model:    sim.Model{Name: "test"},
		Target:   testTarget(),
		MaxRate:  5,
		Epsilon:  0.25,
		Samples:  10,
		Workers:  4,
	}
}

func testBisector(oracle FeasibilityOracle) *Bisector {
	return NewBisector(oracle, testParams(sim.BackendMonolithic), nil, nil)
}
