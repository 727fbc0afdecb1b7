package report

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/pdsearch/sim"
)

// Policy controls how Parse treats malformed table rows.
type Policy int

const (
	// Lenient skips malformed rows and keeps parsing.
	Lenient Policy = iota
	// Strict drops the rest of a block at its first malformed row; parsing
	// resumes at the next marker.
	Strict
)

// ParseOptions configure Parse. The zero value is lenient with DefaultMarker.
type ParseOptions struct {
	Marker string
	Policy Policy
}

// Row is one configuration read back from a result file.
type Row struct {
	Block      int // 0-based index of the marker block the row came from
	Backend    sim.Backend
	Config     sim.Configuration
	TotalGPUs  int
	PerGPURate float64
}

// TotalThroughput is recomputed from the rate and GPU count; the file's own
// column is ignored.
func (r Row) TotalThroughput() float64 {
	return r.PerGPURate * float64(r.TotalGPUs)
}

// Label renders the configuration and GPU count, e.g. (1,2,1,1,1,3).
func (r Row) Label() string {
	parts := make([]string, 0, 6)
	for _, d := range r.Config.Tuple() {
		parts = append(parts, strconv.Itoa(d))
	}
	parts = append(parts, strconv.Itoa(r.TotalGPUs))
	return "(" + strings.Join(parts, ",") + ")"
}

// ParseStats counts what Parse saw. Skipped counts malformed rows; Aborted
// counts blocks Strict parsing gave up on.
type ParseStats struct {
	Blocks  int
	Rows    int
	Skipped int
	Aborted int
}

// Parse reads every block of a result stream. A block starts at a line
// containing the marker; its table starts at a header line and ends at an
// empty line, the next marker or EOF. Text outside tables is ignored.
// The returned error is reserved for read failures.
func Parse(r io.Reader, opts ParseOptions) ([]Row, ParseStats, error) {
	marker := opts.Marker
	if marker == "" {
		marker = DefaultMarker
	}
	var (
		rows    []Row
		stats   ParseStats
		backend sim.Backend // set while inside a table
		aborted bool        // rest of the current block is ignored
		block   = -1
		lineNum int
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")

		if strings.Contains(line, marker) {
			block++
			stats.Blocks++
			backend = ""
			aborted = false
			continue
		}
		if block < 0 || aborted {
			continue
		}
		switch line {
		case DisaggregatedHeader:
			backend = sim.BackendDisaggregated
			continue
		case MonolithicHeader:
			backend = sim.BackendMonolithic
			continue
		}
		if backend == "" {
			continue
		}
		if strings.TrimSpace(line) == "" {
			backend = ""
			continue
		}

		row, err := parseRow(line, backend)
		if err != nil {
			stats.Skipped++
			if opts.Policy == Strict {
				stats.Aborted++
				aborted = true
				backend = ""
				logrus.Debugf("report: dropping rest of block %d at line %d %q: %v", block, lineNum, line, err)
				continue
			}
			logrus.Debugf("report: skipping line %d %q: %v", lineNum, line, err)
			continue
		}
		row.Block = block
		rows = append(rows, row)
		stats.Rows++
	}
	if err := scanner.Err(); err != nil {
		return rows, stats, fmt.Errorf("reading report: %w", err)
	}
	if stats.Aborted > 0 {
		logrus.Warnf("report: %d blocks were cut short at a malformed line", stats.Aborted)
	} else if stats.Skipped > 0 {
		logrus.Warnf("report: %d malformed lines were skipped", stats.Skipped)
	}
	return rows, stats, nil
}

// parseRow reads the degree columns, total_gpus and per_gpu_rate. A trailing
// total_throughput column is optional.
func parseRow(line string, backend sim.Backend) (Row, error) {
	if line[0] < '0' || line[0] > '9' {
		return Row{}, fmt.Errorf("row does not start with a digit")
	}
	if !strings.Contains(line, "\t") {
		return Row{}, fmt.Errorf("row has no tab separators")
	}
	degrees := 2
	if backend == sim.BackendDisaggregated {
		degrees = 5
	}
	fields := strings.Split(line, "\t")
	if len(fields) != degrees+2 && len(fields) != degrees+3 {
		return Row{}, fmt.Errorf("expected %d or %d columns, got %d", degrees+2, degrees+3, len(fields))
	}

	tuple := make([]int, degrees)
	for i := range tuple {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return Row{}, fmt.Errorf("column %d: %w", i+1, err)
		}
		tuple[i] = v
	}
	cfg, err := sim.ConfigurationFromTuple(backend, tuple)
	if err != nil {
		return Row{}, err
	}
	total, err := strconv.Atoi(fields[degrees])
	if err != nil {
		return Row{}, fmt.Errorf("total_gpus: %w", err)
	}
	if total != cfg.TotalGPUs() {
		return Row{}, fmt.Errorf("total_gpus %d does not match %s (%d GPUs)", total, cfg, cfg.TotalGPUs())
	}
	rate, err := strconv.ParseFloat(fields[degrees+1], 64)
	if err != nil {
		return Row{}, fmt.Errorf("per_gpu_rate: %w", err)
	}
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		return Row{}, fmt.Errorf("per_gpu_rate %v out of range", rate)
	}
	return Row{Backend: backend, Config: cfg, TotalGPUs: total, PerGPURate: rate}, nil
}
