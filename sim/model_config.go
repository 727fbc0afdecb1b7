package sim

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// StageCoeffs are regression coefficients (milliseconds) for one serving phase
// on a single GPU.
//
// Prefill batch time: Alpha + Beta*sum(promptLen) + Gamma*sum(promptLen²).
// Decode step time:   Alpha + Beta*batchSize + Gamma*sum(contextLen).
type StageCoeffs struct {
	Alpha float64 `yaml:"alpha"`
	Beta  float64 `yaml:"beta"`
	Gamma float64 `yaml:"gamma"`
}

// Model describes a served model: size, KV footprint and latency coefficients.
type Model struct {
	Name          string      `yaml:"name"`
	NumParamsB    float64     `yaml:"params_b"`
	NumLayers     int         `yaml:"num_layers"`
	HiddenSize    int         `yaml:"hidden_size"`
	BytesPerParam float64     `yaml:"bytes_per_param"`
	Prefill       StageCoeffs `yaml:"prefill"`
	Decode        StageCoeffs `yaml:"decode"`
}

// WeightBytes is the total size of the model weights.
func (m Model) WeightBytes() float64 {
	return m.NumParamsB * 1e9 * m.BytesPerParam
}

// KVBytesPerToken is the size of one token's K and V across all layers.
func (m Model) KVBytesPerToken() float64 {
	return 2 * float64(m.NumLayers) * float64(m.HiddenSize) * m.BytesPerParam
}

// Validate rejects models the simulator cannot evaluate.
func (m Model) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("model name is empty")
	}
	if m.NumLayers < 1 || m.HiddenSize < 1 {
		return fmt.Errorf("model %s: num_layers and hidden_size must be >= 1", m.Name)
	}
	for name, v := range map[string]float64{"params_b": m.NumParamsB, "bytes_per_param": m.BytesPerParam} {
		if err := validateFinitePositive(fmt.Sprintf("model %s: %s", m.Name, name), v); err != nil {
			return err
		}
	}
	return nil
}

// Hardware holds the GPU and interconnect constants used by the simulator.
type Hardware struct {
	GPUMemoryGB       float64 `yaml:"gpu_memory_gb"`
	MemoryUtilization float64 `yaml:"memory_utilization"`
	// TPOverhead is the fractional slowdown added per extra tensor-parallel rank.
	TPOverhead float64 `yaml:"tp_overhead"`
	// PPHopMs is the activation hand-off latency between pipeline stages.
	PPHopMs float64 `yaml:"pp_hop_ms"`
	// KVTransferGBps is the prefill-to-decode KV cache migration bandwidth.
	KVTransferGBps float64 `yaml:"kv_transfer_gbps"`
	// MaxPrefillTokens bounds the prompt tokens in one prefill batch.
	MaxPrefillTokens int `yaml:"max_prefill_tokens"`
	// MaxDecodeBatch bounds the requests in one decode step.
	MaxDecodeBatch int `yaml:"max_decode_batch"`
}

// DefaultHardware models an 80GB A100 node with NVLink.
func DefaultHardware() Hardware {
	return Hardware{
		GPUMemoryGB:       80,
		MemoryUtilization: 0.9,
		TPOverhead:        0.05,
		PPHopMs:           0.5,
		KVTransferGBps:    25,
		MaxPrefillTokens:  4096,
		MaxDecodeBatch:    256,
	}
}

// Validate rejects hardware constants that would make every configuration
// infeasible or the latency model undefined.
func (h Hardware) Validate() error {
	if err := validateFinitePositive("gpu_memory_gb", h.GPUMemoryGB); err != nil {
		return err
	}
	if err := validateFinitePositive("memory_utilization", h.MemoryUtilization); err != nil {
		return err
	}
	if h.MemoryUtilization > 1 {
		return fmt.Errorf("memory_utilization must be <= 1, got %f", h.MemoryUtilization)
	}
	for _, f := range []struct {
		name string
		val  float64
	}{
		{"tp_overhead", h.TPOverhead},
		{"pp_hop_ms", h.PPHopMs},
		{"kv_transfer_gbps", h.KVTransferGBps},
	} {
		if math.IsNaN(f.val) || math.IsInf(f.val, 0) || f.val < 0 {
			return fmt.Errorf("%s must be a finite non-negative number, got %f", f.name, f.val)
		}
	}
	if h.MaxPrefillTokens < 1 {
		return fmt.Errorf("max_prefill_tokens must be >= 1, got %d", h.MaxPrefillTokens)
	}
	if h.MaxDecodeBatch < 1 {
		return fmt.Errorf("max_decode_batch must be >= 1, got %d", h.MaxDecodeBatch)
	}
	return nil
}

// builtinModels are the OPT family presets, fp16.
var builtinModels = map[string]Model{
	"opt_13b": {
		Name: "opt_13b", NumParamsB: 13, NumLayers: 40, HiddenSize: 5120, BytesPerParam: 2,
		Prefill: StageCoeffs{Alpha: 5, Beta: 0.17, Gamma: 1.2e-5},
		Decode:  StageCoeffs{Alpha: 13, Beta: 0.05, Gamma: 4e-4},
	},
	"opt_66b": {
		Name: "opt_66b", NumParamsB: 66, NumLayers: 64, HiddenSize: 9216, BytesPerParam: 2,
		Prefill: StageCoeffs{Alpha: 12, Beta: 0.85, Gamma: 3.5e-5},
		Decode:  StageCoeffs{Alpha: 66, Beta: 0.2, Gamma: 1.2e-3},
	},
	"opt_175b": {
		Name: "opt_175b", NumParamsB: 175, NumLayers: 96, HiddenSize: 12288, BytesPerParam: 2,
		Prefill: StageCoeffs{Alpha: 25, Beta: 2.2, Gamma: 7e-5},
		Decode:  StageCoeffs{Alpha: 175, Beta: 0.5, Gamma: 2.4e-3},
	},
}

// ModelRegistry resolves model names to descriptors.
type ModelRegistry map[string]Model

// DefaultModels returns a copy of the built-in registry.
func DefaultModels() ModelRegistry {
	reg := make(ModelRegistry, len(builtinModels))
	for k, v := range builtinModels {
		reg[k] = v
	}
	return reg
}

// Lookup returns the named model.
func (r ModelRegistry) Lookup(name string) (Model, error) {
	m, ok := r[name]
	if !ok {
		return Model{}, fmt.Errorf("unknown model type %q; valid: %v", name, r.Names())
	}
	return m, nil
}

// Names lists registered model names in sorted order.
func (r ModelRegistry) Names() []string {
	names := make([]string, 0, len(r))
	for k := range r {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// modelsFile is the YAML layout accepted by LoadModels.
type modelsFile struct {
	Models []Model `yaml:"models"`
}

// LoadModels reads a YAML model list and merges it over the built-in registry.
// Uses strict parsing: unrecognized keys are rejected.
func LoadModels(path string) (ModelRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading models file: %w", err)
	}
	var f modelsFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing models file: %w", err)
	}
	reg := DefaultModels()
	for _, m := range f.Models {
		if err := m.Validate(); err != nil {
			return nil, err
		}
		reg[m.Name] = m
	}
	return reg, nil
}
