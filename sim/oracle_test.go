package sim

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/pdsearch/sim/workload"
)

func TestNewOracle_Validation(t *testing.T) {
	_, err := NewOracle(nil, DefaultHardware(), workload.ArrivalSpec{Process: "poisson"}, 1)
	assert.Error(t, err)
	_, err = NewOracle(&workload.Dataset{}, DefaultHardware(), workload.ArrivalSpec{Process: "poisson"}, 1)
	assert.Error(t, err)
	_, err = NewOracle(smallDataset(), DefaultHardware(), workload.ArrivalSpec{Process: "weibull"}, 1)
	assert.Error(t, err)
}

func TestOracle_LowRate_Feasible(t *testing.T) {
	o := testOracle(t)
	m := testModel(t, "opt_13b")
	for _, cfg := range []Configuration{
		Monolithic{TP: 1, PP: 1},
		Disaggregated{PPCross: 1, TPPrefill: 1, PPPrefill: 1, TPDecode: 1, PPDecode: 1},
	} {
		ok, err := o.Feasible(context.Background(), cfg, 0.05, m, defaultTarget(), 50)
		require.NoError(t, err)
		assert.True(t, ok, cfg.String())
	}
}

func TestOracle_TargetBelowPrefillTime_Infeasible(t *testing.T) {
	// Every prompt needs well over 1ms of prefill.
	target := defaultTarget()
	target.PrefillLatencyMs = 1

	ok, err := testOracle(t).Feasible(context.Background(), Monolithic{TP: 1, PP: 1}, 0.05, testModel(t, "opt_13b"), target, 20)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOracle_WeightsDoNotFit_Infeasible(t *testing.T) {
	a, err := testOracle(t).Evaluate(context.Background(), Monolithic{TP: 1, PP: 1}, 0.01, testModel(t, "opt_175b"), defaultTarget(), 20)
	require.NoError(t, err)
	assert.Equal(t, 20, a.Dropped)
	assert.False(t, a.Meets(defaultTarget()))
}

func TestOracle_SameInputsSameAttainment(t *testing.T) {
	o := testOracle(t)
	m := testModel(t, "opt_13b")
	cfg := Disaggregated{PPCross: 1, TPPrefill: 1, PPPrefill: 1, TPDecode: 1, PPDecode: 1}

	first, err := o.Evaluate(context.Background(), cfg, 3, m, defaultTarget(), 200)
	require.NoError(t, err)

	// Concurrent probes share the oracle and must not disturb each other.
	var wg sync.WaitGroup
	results := make([]Attainment, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := o.Evaluate(context.Background(), cfg, 3, m, defaultTarget(), 200)
			assert.NoError(t, err)
			results[i] = a
		}()
	}
	wg.Wait()
	for _, a := range results {
		assert.Equal(t, first, a)
	}
}

func TestOracle_HigherRateNoBetterAttainment(t *testing.T) {
	o := testOracle(t)
	m := testModel(t, "opt_13b")
	cfg := Monolithic{TP: 1, PP: 1}

	low, err := o.Evaluate(context.Background(), cfg, 0.05, m, defaultTarget(), 200)
	require.NoError(t, err)
	high, err := o.Evaluate(context.Background(), cfg, 50, m, defaultTarget(), 200)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, low.PrefillRatio(), high.PrefillRatio())
	assert.Greater(t, high.TTFT.P90, low.TTFT.P90)
}

func TestOracle_RejectsBadArguments(t *testing.T) {
	o := testOracle(t)
	m := testModel(t, "opt_13b")
	_, err := o.Evaluate(context.Background(), Monolithic{TP: 1, PP: 1}, 1, m, defaultTarget(), 0)
	assert.Error(t, err)
	_, err = o.Evaluate(context.Background(), Monolithic{TP: 1, PP: 1}, -1, m, defaultTarget(), 10)
	assert.Error(t, err)
}

func TestOracle_CancelledContext_ReturnsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testOracle(t).Feasible(ctx, Monolithic{TP: 1, PP: 1}, 1, testModel(t, "opt_13b"), defaultTarget(), 10)
	assert.ErrorIs(t, err, context.Canceled)
}
