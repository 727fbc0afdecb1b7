package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/pdsearch/sim/workload"
)

// Oracle answers feasibility probes by simulating a configuration under a
// sampled workload. An Oracle holds only immutable state and each call builds
// its own simulator and RNG, so one Oracle may serve concurrent probes.
type Oracle struct {
	dataset  *workload.Dataset
	hardware Hardware
	arrival  workload.ArrivalSpec
	seed     int64
}

// NewOracle creates an Oracle over a loaded dataset.
func NewOracle(dataset *workload.Dataset, hw Hardware, arrival workload.ArrivalSpec, seed int64) (*Oracle, error) {
	if dataset == nil || len(dataset.Entries) == 0 {
		return nil, fmt.Errorf("oracle needs a non-empty dataset")
	}
	if err := arrival.Validate(); err != nil {
		return nil, err
	}
	return &Oracle{dataset: dataset, hardware: hw, arrival: arrival, seed: seed}, nil
}

// Feasible simulates samples requests arriving at rate requests/s per GPU of
// cfg and reports whether the attainment target is met.
func (o *Oracle) Feasible(ctx context.Context, cfg Configuration, rate float64, model Model, target AttainmentTarget, samples int) (bool, error) {
	a, err := o.Evaluate(ctx, cfg, rate, model, target, samples)
	if err != nil {
		return false, err
	}
	ok := a.Meets(target)
	logrus.Debugf("probe %s rate=%.4f: ttft_ok=%.3f tpot_ok=%.3f dropped=%d p90_ttft=%.1fms p90_tpot=%.1fms feasible=%v",
		cfg, rate, a.PrefillRatio(), a.DecodeRatio(), a.Dropped, a.TTFT.P90, a.TPOT.P90, ok)
	return ok, nil
}

// Evaluate runs one probe and returns the full attainment breakdown.
func (o *Oracle) Evaluate(ctx context.Context, cfg Configuration, rate float64, model Model, target AttainmentTarget, samples int) (Attainment, error) {
	if samples < 1 {
		return Attainment{}, fmt.Errorf("sample count must be >= 1, got %d", samples)
	}
	if math.IsNaN(rate) || rate < 0 {
		return Attainment{}, fmt.Errorf("rate must be non-negative, got %f", rate)
	}
	s, err := NewSimulator(cfg, model, o.hardware)
	if err != nil {
		return Attainment{}, err
	}
	if !s.CanHost() {
		// Weights do not fit: nothing is ever served.
		return Attainment{Requests: samples, Dropped: samples}, nil
	}

	rng := NewPartitionedRNG(ProbeKey(o.seed, cfg, rate))
	entries := o.dataset.Sample(rng.ForSubsystem(SubsystemLengths), samples)
	sampler := workload.NewArrivalSampler(o.arrival, rate*float64(cfg.TotalGPUs()))
	arrivals := rng.ForSubsystem(SubsystemArrivals)

	reqs := make([]*Request, samples)
	var clock int64
	for i, e := range entries {
		clock += sampler.SampleIAT(arrivals)
		reqs[i] = NewRequest(i, clock, e.PromptLen, e.OutputLen)
	}
	s.Inject(reqs)
	if err := s.Run(ctx); err != nil {
		return Attainment{}, fmt.Errorf("simulating %s at rate %.4f: %w", cfg, rate, err)
	}
	return EvaluateAttainment(reqs, target), nil
}
