package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/inference-sim/pdsearch/sim"
)

// ErrConfigurationExhausted reports that no configuration fits the topology
// budget. It is informational: Run still returns an empty Result.
var ErrConfigurationExhausted = errors.New("no configuration fits the topology budget")

// FeasibilityOracle decides whether cfg meets target at a per-GPU rate.
//
// Precondition: feasibility is non-increasing in rate. Bisection relies on it
// and never checks it. Implementations must be safe for concurrent calls.
type FeasibilityOracle interface {
	Feasible(ctx context.Context, cfg sim.Configuration, rate float64, model sim.Model, target sim.AttainmentTarget, samples int) (bool, error)
}

// OracleFunc adapts a function to FeasibilityOracle.
type OracleFunc func(ctx context.Context, cfg sim.Configuration, rate float64, model sim.Model, target sim.AttainmentTarget, samples int) (bool, error)

func (f OracleFunc) Feasible(ctx context.Context, cfg sim.Configuration, rate float64, model sim.Model, target sim.AttainmentTarget, samples int) (bool, error) {
	return f(ctx, cfg, rate, model, target, samples)
}

// Params are the immutable inputs of one search run.
type Params struct {
	Topology sim.Topology
	Backend  sim.Backend
	Model    sim.Model
	Target   sim.AttainmentTarget

	MaxRate float64 // upper bound of the per-GPU rate search (req/s/GPU)
	Epsilon float64 // stop once high - low <= Epsilon
	Samples int     // requests simulated per probe

	Workers  int           // concurrent bisections; <= 0 means GOMAXPROCS
	Deadline time.Duration // 0 means no deadline
	// VerifyLow re-probes the converged low bound and warns when it is
	// infeasible, a sign the oracle is not monotone in rate.
	VerifyLow bool
}

// Validate checks every precondition of a run.
func (p Params) Validate() error {
	if err := p.Topology.Validate(); err != nil {
		return fmt.Errorf("invalid topology: %w", err)
	}
	if p.Backend != sim.BackendDisaggregated && p.Backend != sim.BackendMonolithic {
		return fmt.Errorf("unknown backend %q; valid: %s, %s", p.Backend, sim.BackendDisaggregated, sim.BackendMonolithic)
	}
	if err := p.Target.Validate(); err != nil {
		return fmt.Errorf("invalid attainment target: %w", err)
	}
	if math.IsNaN(p.MaxRate) || math.IsInf(p.MaxRate, 0) || p.MaxRate <= 0 {
		return fmt.Errorf("max per-GPU rate must be a finite positive number, got %f", p.MaxRate)
	}
	if math.IsNaN(p.Epsilon) || p.Epsilon <= 0 {
		return fmt.Errorf("epsilon must be positive, got %f", p.Epsilon)
	}
	if p.Epsilon >= p.MaxRate {
		return fmt.Errorf("epsilon %f must be smaller than the max per-GPU rate %f", p.Epsilon, p.MaxRate)
	}
	if p.Samples < 1 {
		return fmt.Errorf("sample count must be >= 1, got %d", p.Samples)
	}
	if p.Deadline < 0 {
		return fmt.Errorf("deadline must not be negative, got %s", p.Deadline)
	}
	return nil
}
