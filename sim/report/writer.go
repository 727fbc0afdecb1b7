// Package report formats search results as tab-separated tables and reads
// them back from result files that mix several runs.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inference-sim/pdsearch/sim"
	"github.com/inference-sim/pdsearch/sim/search"
)

const (
	// DisaggregatedHeader is the table header of a distserve run.
	DisaggregatedHeader = "pp_cross\ttp_prefill\tpp_prefill\ttp_decode\tpp_decode\ttotal_gpus\tper_gpu_rate\ttotal_throughput"
	// MonolithicHeader is the table header of a vllm run.
	MonolithicHeader = "tp\tpp\ttotal_gpus\tper_gpu_rate\ttotal_throughput"

	// DefaultMarker introduces each run's block in a result file.
	DefaultMarker = "Namespace("
)

// Header returns the table header for backend.
func Header(backend sim.Backend) (string, error) {
	switch backend {
	case sim.BackendDisaggregated:
		return DisaggregatedHeader, nil
	case sim.BackendMonolithic:
		return MonolithicHeader, nil
	}
	return "", fmt.Errorf("unknown backend %q", backend)
}

// Meta describes one run. It is printed as the block marker line.
type Meta struct {
	RunID        string
	Backend      sim.Backend
	Nodes        int
	GPUsPerNode  int
	HighAffinity bool
	Workload     string
	Model        string
	Target       sim.AttainmentTarget
	MaxRate      float64
	Epsilon      float64
	Samples      int
	Seed         int64
}

// String renders the marker line, e.g.
// Namespace(backend='distserve', num_node=1, ..., run_id='...').
func (m Meta) String() string {
	pyBool := "False"
	if m.HighAffinity {
		pyBool = "True"
	}
	fields := []string{
		"backend=" + quote(string(m.Backend)),
		"num_node=" + strconv.Itoa(m.Nodes),
		"ngpu_per_node=" + strconv.Itoa(m.GPUsPerNode),
		"is_high_affinity=" + pyBool,
		"workload=" + quote(m.Workload),
		"prefill_target=" + formatFloat(m.Target.PrefillLatencyMs),
		"decode_target=" + formatFloat(m.Target.DecodeLatencyMs),
		"prefill_percentage=" + formatFloat(m.Target.PrefillPercentile),
		"decode_percentage=" + formatFloat(m.Target.DecodePercentile),
		"max_per_gpu_rate=" + formatFloat(m.MaxRate),
		"esp=" + formatFloat(m.Epsilon),
		"N=" + strconv.Itoa(m.Samples),
		"model_type=" + quote(m.Model),
		"seed=" + strconv.FormatInt(m.Seed, 10),
		"run_id=" + quote(m.RunID),
	}
	return DefaultMarker + strings.Join(fields, ", ") + ")"
}

func quote(s string) string { return "'" + s + "'" }

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// WriteTable writes the header and one row per entry, in the given order.
// Nothing is written if any entry does not belong to backend.
func WriteTable(w io.Writer, backend sim.Backend, entries []search.Entry) error {
	var buf bytes.Buffer
	if err := formatTable(&buf, backend, entries); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Write writes the marker line of meta followed by the table of res.
func Write(w io.Writer, meta Meta, res *search.Result) error {
	if res == nil {
		return fmt.Errorf("nil result")
	}
	if meta.RunID == "" {
		meta.RunID = res.RunID
	}
	if meta.Backend == "" {
		meta.Backend = res.Backend
	}
	var buf bytes.Buffer
	buf.WriteString(meta.String())
	buf.WriteByte('\n')
	if err := formatTable(&buf, res.Backend, res.Entries()); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func formatTable(buf *bytes.Buffer, backend sim.Backend, entries []search.Entry) error {
	header, err := Header(backend)
	if err != nil {
		return err
	}
	buf.WriteString(header)
	buf.WriteByte('\n')
	for _, e := range entries {
		if e.Config.Backend() != backend {
			return fmt.Errorf("configuration %s is not a %s configuration", e.Config, backend)
		}
		for _, d := range e.Config.Tuple() {
			buf.WriteString(strconv.Itoa(d))
			buf.WriteByte('\t')
		}
		fmt.Fprintf(buf, "%d\t%.2f\t%.2f\n", e.Config.TotalGPUs(), e.Rate, e.TotalThroughput())
	}
	return nil
}
