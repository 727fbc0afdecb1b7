package workload

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// DatasetEnvVar names the directory holding the workload datasets.
const DatasetEnvVar = "DATASET"

// ErrMissingDataset is returned when DATASET is unset or empty.
var ErrMissingDataset = errors.New("environment variable DATASET is not set; export DATASET=<path to workload datasets>")

// Workloads known to the dataset loader. Each maps to <DATASET>/<name>.json.
var knownWorkloads = map[string]bool{"sharegpt": true, "humaneval": true, "longbench": true}

// Entry is one request shape: prompt and output lengths in tokens.
type Entry struct {
	PromptLen int `json:"prompt_len"`
	OutputLen int `json:"output_len"`
}

// Dataset is an immutable pool of request shapes sampled with replacement.
// Safe for concurrent readers.
type Dataset struct {
	Name    string
	Entries []Entry
}

// DatasetDir returns the dataset directory from the environment.
func DatasetDir() (string, error) {
	dir := os.Getenv(DatasetEnvVar)
	if dir == "" {
		return "", ErrMissingDataset
	}
	return dir, nil
}

// LoadDataset reads <dir>/<workload>.json, a JSON array of
// {"prompt_len": N, "output_len": M} objects. Entries with non-positive
// lengths are dropped.
func LoadDataset(dir, workload string) (*Dataset, error) {
	if !knownWorkloads[workload] {
		return nil, fmt.Errorf("unknown workload %q; valid: sharegpt, humaneval, longbench", workload)
	}
	path := filepath.Join(dir, workload+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	var raw []Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing dataset %s: %w", path, err)
	}
	ds := &Dataset{Name: workload, Entries: make([]Entry, 0, len(raw))}
	dropped := 0
	for _, e := range raw {
		if e.PromptLen < 1 || e.OutputLen < 1 {
			dropped++
			continue
		}
		ds.Entries = append(ds.Entries, e)
	}
	if dropped > 0 {
		logrus.Warnf("LoadDataset: %d entries in %s were dropped (non-positive lengths)", dropped, path)
	}
	if len(ds.Entries) == 0 {
		return nil, fmt.Errorf("dataset %s has no usable entries", path)
	}
	logrus.Infof("Loaded dataset %s: %d requests", path, len(ds.Entries))
	return ds, nil
}

// Sample draws n entries with replacement.
func (d *Dataset) Sample(rng *rand.Rand, n int) []Entry {
	out := make([]Entry, n)
	for i := range out {
		out[i] = d.Entries[rng.Intn(len(d.Entries))]
	}
	return out
}
