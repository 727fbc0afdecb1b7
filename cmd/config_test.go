package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/pdsearch/sim"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadRunConfig_OverridesDefaults(t *testing.T) {
	// GIVEN a run file that sets a few keys
	path := writeFile(t, "run.yaml", `nodes: 2
gpus_per_node: 8
high_affinity: true
backend: vllm
attainment:
  prefill_target_ms: 400
deadline: 90s
arrival:
  process: gamma
  cv: 2.5
hardware:
  kv_transfer_gbps: 50
`)

	rc, err := LoadRunConfig(path)

	// THEN set keys win and the rest keep their defaults
	require.NoError(t, err)
	assert.Equal(t, 2, rc.Nodes)
	assert.Equal(t, 8, rc.GPUsPerNode)
	assert.True(t, rc.HighAffinity)
	assert.Equal(t, "vllm", rc.Backend)
	assert.Equal(t, 400.0, rc.Attainment.PrefillLatencyMs)
	assert.Equal(t, 100.0, rc.Attainment.DecodeLatencyMs)
	assert.Equal(t, 90*time.Second, rc.Deadline)
	assert.Equal(t, "gamma", rc.Arrival.Process)
	require.NotNil(t, rc.Arrival.CV)
	assert.Equal(t, 2.5, *rc.Arrival.CV)
	assert.Equal(t, 50.0, rc.Hardware.KVTransferGBps)
	assert.Equal(t, 80.0, rc.Hardware.GPUMemoryGB)
	assert.Equal(t, 300, rc.Samples)
}

func TestLoadRunConfig_UnknownKey_Rejected(t *testing.T) {
	path := writeFile(t, "run.yaml", "nodes: 1\nepsilom: 0.1\n")
	_, err := LoadRunConfig(path)
	assert.Error(t, err)
}

func TestLoadRunConfig_MissingFile(t *testing.T) {
	_, err := LoadRunConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRunConfig_Params(t *testing.T) {
	rc := DefaultRunConfig()
	rc.Backend = "Monolithic"
	rc.Workers = 3

	p, err := rc.Params(sim.DefaultModels())

	require.NoError(t, err)
	assert.Equal(t, sim.BackendMonolithic, p.Backend)
	assert.Equal(t, "opt_13b", p.Model.Name)
	assert.Equal(t, sim.Topology{Nodes: 1, GPUsPerNode: 4}, p.Topology)
	assert.Equal(t, 3, p.Workers)
	assert.Equal(t, 0.25, p.Epsilon)
}

func TestRunConfig_Params_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RunConfig)
	}{
		{"unknown backend", func(rc *RunConfig) { rc.Backend = "tgi" }},
		{"unknown model", func(rc *RunConfig) { rc.Model = "gpt2" }},
		{"unknown arrival", func(rc *RunConfig) { rc.Arrival.Process = "uniform" }},
		{"zero nodes", func(rc *RunConfig) { rc.Nodes = 0 }},
		{"bad percentile", func(rc *RunConfig) { rc.Attainment.DecodePercentile = 0 }},
		{"epsilon not below max", func(rc *RunConfig) { rc.Epsilon = rc.MaxRate }},
		{"zero decode batch", func(rc *RunConfig) { rc.Hardware.MaxDecodeBatch = 0 }},
		{"zero prefill tokens", func(rc *RunConfig) { rc.Hardware.MaxPrefillTokens = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := DefaultRunConfig()
			tt.mutate(&rc)
			_, err := rc.Params(sim.DefaultModels())
			assert.Error(t, err)
		})
	}
}
