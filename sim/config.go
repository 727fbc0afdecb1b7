package sim

import (
	"fmt"
	"math"
	"strings"
)

// Backend selects the serving mode whose configurations are searched.
type Backend string

const (
	// BackendDisaggregated places prefill and decode on separate GPU groups (DistServe).
	BackendDisaggregated Backend = "distserve"
	// BackendMonolithic serves both phases from one GPU group (vLLM).
	BackendMonolithic Backend = "vllm"
)

// backendAliases maps accepted spellings to their canonical Backend.
var backendAliases = map[string]Backend{
	"distserve":     BackendDisaggregated,
	"disaggregated": BackendDisaggregated,
	"vllm":          BackendMonolithic,
	"monolithic":    BackendMonolithic,
}

// ParseBackend resolves a backend name. Matching is case-insensitive.
func ParseBackend(name string) (Backend, error) {
	if b, ok := backendAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return b, nil
	}
	return "", fmt.Errorf("unknown backend %q; valid: distserve, vllm", name)
}

// Topology is the fixed cluster shape a search runs against.
type Topology struct {
	Nodes        int
	GPUsPerNode  int
	HighAffinity bool
}

// Budget is the total number of GPUs in the cluster.
func (t Topology) Budget() int {
	return t.Nodes * t.GPUsPerNode
}

// Validate checks that the topology has at least one node with one GPU.
func (t Topology) Validate() error {
	if t.Nodes < 1 {
		return fmt.Errorf("nodes must be >= 1, got %d", t.Nodes)
	}
	if t.GPUsPerNode < 1 {
		return fmt.Errorf("gpus per node must be >= 1, got %d", t.GPUsPerNode)
	}
	return nil
}

// AttainmentTarget is the latency SLO: at least PrefillPercentile percent of
// requests must see TTFT <= PrefillLatencyMs, and at least DecodePercentile
// percent must see TPOT <= DecodeLatencyMs.
type AttainmentTarget struct {
	PrefillLatencyMs  float64 `yaml:"prefill_target_ms"`
	DecodeLatencyMs   float64 `yaml:"decode_target_ms"`
	PrefillPercentile float64 `yaml:"prefill_percentile"`
	DecodePercentile  float64 `yaml:"decode_percentile"`
}

// Validate checks that latencies are positive and percentiles lie in (0, 100].
func (a AttainmentTarget) Validate() error {
	if err := validateFinitePositive("prefill latency target", a.PrefillLatencyMs); err != nil {
		return err
	}
	if err := validateFinitePositive("decode latency target", a.DecodeLatencyMs); err != nil {
		return err
	}
	if err := validatePercentile("prefill percentile", a.PrefillPercentile); err != nil {
		return err
	}
	return validatePercentile("decode percentile", a.DecodePercentile)
}

func validatePercentile(name string, p float64) error {
	if math.IsNaN(p) || p <= 0 || p > 100 {
		return fmt.Errorf("%s must be in (0, 100], got %f", name, p)
	}
	return nil
}

// Configuration is one candidate parallelism layout. Implementations are
// comparable value types so they can key maps.
type Configuration interface {
	Backend() Backend
	TotalGPUs() int
	// Tuple returns the parallelism degrees in report column order.
	Tuple() []int
	Validate() error
	String() string
}

// Disaggregated is a DistServe layout: PPCross replicas of a prefill stage
// (TPPrefill x PPPrefill GPUs) and a decode stage (TPDecode x PPDecode GPUs).
type Disaggregated struct {
	PPCross   int
	TPPrefill int
	PPPrefill int
	TPDecode  int
	PPDecode  int
}

func (d Disaggregated) Backend() Backend { return BackendDisaggregated }

// PrefillGPUs is the per-replica footprint of the prefill stage.
func (d Disaggregated) PrefillGPUs() int { return d.TPPrefill * d.PPPrefill }

// DecodeGPUs is the per-replica footprint of the decode stage.
func (d Disaggregated) DecodeGPUs() int { return d.TPDecode * d.PPDecode }

func (d Disaggregated) TotalGPUs() int {
	return d.PPCross * (d.PrefillGPUs() + d.DecodeGPUs())
}

func (d Disaggregated) Tuple() []int {
	return []int{d.PPCross, d.TPPrefill, d.PPPrefill, d.TPDecode, d.PPDecode}
}

func (d Disaggregated) Validate() error {
	return validateDegrees(d.Tuple(), "pp_cross", "tp_prefill", "pp_prefill", "tp_decode", "pp_decode")
}

func (d Disaggregated) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d,%d)", d.PPCross, d.TPPrefill, d.PPPrefill, d.TPDecode, d.PPDecode)
}

// Monolithic is a vLLM layout serving both phases on TP x PP GPUs.
type Monolithic struct {
	TP int
	PP int
}

func (m Monolithic) Backend() Backend { return BackendMonolithic }

func (m Monolithic) TotalGPUs() int { return m.TP * m.PP }

func (m Monolithic) Tuple() []int { return []int{m.TP, m.PP} }

func (m Monolithic) Validate() error {
	return validateDegrees(m.Tuple(), "tp", "pp")
}

func (m Monolithic) String() string {
	return fmt.Sprintf("(%d,%d)", m.TP, m.PP)
}

// ConfigurationFromTuple rebuilds a Configuration from its report columns.
func ConfigurationFromTuple(backend Backend, tuple []int) (Configuration, error) {
	var cfg Configuration
	switch backend {
	case BackendDisaggregated:
		if len(tuple) != 5 {
			return nil, fmt.Errorf("distserve configuration needs 5 degrees, got %d", len(tuple))
		}
		cfg = Disaggregated{PPCross: tuple[0], TPPrefill: tuple[1], PPPrefill: tuple[2], TPDecode: tuple[3], PPDecode: tuple[4]}
	case BackendMonolithic:
		if len(tuple) != 2 {
			return nil, fmt.Errorf("vllm configuration needs 2 degrees, got %d", len(tuple))
		}
		cfg = Monolithic{TP: tuple[0], PP: tuple[1]}
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateDegrees(values []int, names ...string) error {
	for i, v := range values {
		if v < 1 {
			return fmt.Errorf("%s must be >= 1, got %d", names[i], v)
		}
	}
	return nil
}

func validateFinitePositive(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%s must be a finite number, got %f", name, val)
	}
	if val <= 0 {
		return fmt.Errorf("%s must be positive, got %f", name, val)
	}
	return nil
}
