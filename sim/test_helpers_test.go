package sim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inference-sim/pdsearch/sim/workload"
)

func testModel(t *testing.T, name string) Model {
	t.Helper()
	m, err := DefaultModels().Lookup(name)
	require.NoError(t, err)
	return m
}

func defaultTarget() AttainmentTarget {
	return AttainmentTarget{PrefillLatencyMs: 200, DecodeLatencyMs: 100, PrefillPercentile: 90, DecodePercentile: 90}
}

// smallDataset holds short chat-like requests that a single A100 serves
// comfortably at low load.
func smallDataset() *workload.Dataset {
	return &workload.Dataset{Name: "sharegpt", Entries: []workload.Entry{
		{PromptLen: 100, OutputLen: 10},
		{PromptLen: 200, OutputLen: 20},
		{PromptLen: 64, OutputLen: 1},
		{PromptLen: 300, OutputLen: 16},
	}}
}

func testOracle(t *testing.T) *Oracle {
	t.Helper()
	o, err := NewOracle(smallDataset(), DefaultHardware(), workload.ArrivalSpec{Process: "poisson"}, 42)
	require.NoError(t, err)
	return o
}
