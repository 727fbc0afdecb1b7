package cmd

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/pdsearch/sim"
	"github.com/inference-sim/pdsearch/sim/search"
	"github.com/inference-sim/pdsearch/sim/workload"
)

// RunConfig is the YAML layout of a search run file. Every key is optional;
// missing keys keep the defaults of DefaultRunConfig.
type RunConfig struct {
	Nodes        int    `yaml:"nodes"`
	GPUsPerNode  int    `yaml:"gpus_per_node"`
	HighAffinity bool   `yaml:"high_affinity"`
	Backend      string `yaml:"backend"`
	Model        string `yaml:"model"`
	Workload     string `yaml:"workload"`

	Attainment sim.AttainmentTarget `yaml:"attainment"`
	MaxRate    float64              `yaml:"max_per_gpu_rate"`
	Epsilon    float64              `yaml:"epsilon"`
	Samples    int                  `yaml:"samples"`
	Seed       int64                `yaml:"seed"`
	Workers    int                  `yaml:"workers"`
	Deadline   time.Duration        `yaml:"deadline"`
	VerifyLow  bool                 `yaml:"verify_low"`

	Arrival  workload.ArrivalSpec `yaml:"arrival"`
	Hardware sim.Hardware         `yaml:"hardware"`
}

// DefaultRunConfig mirrors the search command's flag defaults.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Nodes:       1,
		GPUsPerNode: 4,
		Backend:     string(sim.BackendDisaggregated),
		Model:       "opt_13b",
		Workload:    "sharegpt",
		Attainment: sim.AttainmentTarget{
			PrefillLatencyMs:  200,
			DecodeLatencyMs:   100,
			PrefillPercentile: 90,
			DecodePercentile:  90,
		},
		MaxRate:  5,
		Epsilon:  0.25,
		Samples:  300,
		Seed:     0,
		Arrival:  workload.ArrivalSpec{Process: "poisson"},
		Hardware: sim.DefaultHardware(),
	}
}

// LoadRunConfig decodes a run file over DefaultRunConfig.
// Uses strict parsing: unrecognized keys are rejected.
func LoadRunConfig(path string) (RunConfig, error) {
	rc := DefaultRunConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return rc, fmt.Errorf("reading run config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&rc); err != nil {
		return rc, fmt.Errorf("parsing run config %s: %w", path, err)
	}
	return rc, nil
}

// Params resolves names against the registry and builds the search inputs.
func (rc RunConfig) Params(models sim.ModelRegistry) (search.Params, error) {
	backend, err := sim.ParseBackend(rc.Backend)
	if err != nil {
		return search.Params{}, err
	}
	model, err := models.Lookup(rc.Model)
	if err != nil {
		return search.Params{}, err
	}
	if err := rc.Arrival.Validate(); err != nil {
		return search.Params{}, err
	}
	if err := rc.Hardware.Validate(); err != nil {
		return search.Params{}, fmt.Errorf("hardware: %w", err)
	}
	p := search.Params{
		Topology:  sim.Topology{Nodes: rc.Nodes, GPUsPerNode: rc.GPUsPerNode, HighAffinity: rc.HighAffinity},
		Backend:   backend,
		Model:     model,
		Target:    rc.Attainment,
		MaxRate:   rc.MaxRate,
		Epsilon:   rc.Epsilon,
		Samples:   rc.Samples,
		Workers:   rc.Workers,
		Deadline:  rc.Deadline,
		VerifyLow: rc.VerifyLow,
	}
	return p, p.Validate()
}
