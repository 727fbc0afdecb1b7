package search

import (
	"sort"

	"github.com/inference-sim/pdsearch/sim"
)

// Status is the outcome of one configuration's bisection.
type Status int

const (
	// StatusFeasible: some probed rate met the SLO.
	StatusFeasible Status = iota
	// StatusInfeasible: no probed rate met the SLO.
	StatusInfeasible
	// StatusFailed: an oracle call returned an error.
	StatusFailed
	// StatusInterrupted: the deadline hit mid-bisection; Rate is the last known low.
	StatusInterrupted
	// StatusSkipped: the deadline hit before the bisection started.
	StatusSkipped
)

var statusNames = map[Status]string{
	StatusFeasible:    "feasible",
	StatusInfeasible:  "infeasible",
	StatusFailed:      "failed",
	StatusInterrupted: "interrupted",
	StatusSkipped:     "skipped",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Entry is the search outcome of one configuration.
type Entry struct {
	Index  int // position in enumeration order
	Config sim.Configuration
	Status Status
	// Rate is the best per-GPU rate reported for the configuration. It is 0
	// for infeasible, failed and skipped configurations.
	Rate float64
	// Low is the highest probed rate the oracle accepted; High the lowest it
	// rejected, or the search bound.
	Low, High float64
	Probes    int
	// Clipped is set when every probe was feasible, so Rate is only a lower
	// bound on the configuration's capacity.
	Clipped bool
	Err     error
}

// TotalThroughput is Rate scaled to the configuration's GPU count.
func (e Entry) TotalThroughput() float64 {
	return e.Rate * float64(e.Config.TotalGPUs())
}

// Valid reports whether the configuration met the SLO at a positive rate.
func (e Entry) Valid() bool {
	return e.Rate > 0
}

// Counts tallies entries per status.
type Counts struct {
	Feasible    int
	Infeasible  int
	Failed      int
	Interrupted int
	Skipped     int
}

// Result is the ordered outcome of a search run. Entries keep enumeration
// order. A Result is immutable once returned by Run.
type Result struct {
	RunID       string
	Backend     sim.Backend
	Interrupted bool // the run deadline expired before every bisection finished

	entries []Entry
	byKey   map[sim.Configuration]int
}

// NewResult wraps entries, which must already be in enumeration order.
func NewResult(runID string, backend sim.Backend, entries []Entry) *Result {
	r := &Result{
		RunID:   runID,
		Backend: backend,
		entries: entries,
		byKey:   make(map[sim.Configuration]int, len(entries)),
	}
	for i, e := range entries {
		r.byKey[e.Config] = i
	}
	return r
}

// Len is the number of configurations searched.
func (r *Result) Len() int {
	return len(r.entries)
}

// Entries returns a copy of the entries in enumeration order.
func (r *Result) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Lookup returns the entry of cfg.
func (r *Result) Lookup(cfg sim.Configuration) (Entry, bool) {
	i, ok := r.byKey[cfg]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Valid returns the entries with a positive rate, in enumeration order.
func (r *Result) Valid() []Entry {
	var out []Entry
	for _, e := range r.entries {
		if e.Valid() {
			out = append(out, e)
		}
	}
	return out
}

// Best returns the valid entry with the highest rate. Ties go to the fewest
// GPUs, then to the earliest enumerated configuration.
func (r *Result) Best() (Entry, bool) {
	ranked := r.RankByRate()
	if len(ranked) == 0 || !ranked[0].Valid() {
		return Entry{}, false
	}
	return ranked[0], true
}

// BestThroughput returns the valid entry with the highest total throughput.
func (r *Result) BestThroughput() (Entry, bool) {
	ranked := r.RankByThroughput()
	if len(ranked) == 0 || !ranked[0].Valid() {
		return Entry{}, false
	}
	return ranked[0], true
}

// RankByRate orders all entries by rate descending, then GPU count ascending,
// then enumeration order.
func (r *Result) RankByRate() []Entry {
	out := r.Entries()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rate != out[j].Rate {
			return out[i].Rate > out[j].Rate
		}
		if gi, gj := out[i].Config.TotalGPUs(), out[j].Config.TotalGPUs(); gi != gj {
			return gi < gj
		}
		return out[i].Index < out[j].Index
	})
	return out
}

// RankByThroughput orders all entries by total throughput descending, then
// GPU count ascending, then enumeration order.
func (r *Result) RankByThroughput() []Entry {
	out := r.Entries()
	sort.SliceStable(out, func(i, j int) bool {
		if ti, tj := out[i].TotalThroughput(), out[j].TotalThroughput(); ti != tj {
			return ti > tj
		}
		if gi, gj := out[i].Config.TotalGPUs(), out[j].Config.TotalGPUs(); gi != gj {
			return gi < gj
		}
		return out[i].Index < out[j].Index
	})
	return out
}

// Counts tallies entries per status. Infeasible and Failed both carry a zero
// rate but are counted apart.
func (r *Result) Counts() Counts {
	var c Counts
	for _, e := range r.entries {
		switch e.Status {
		case StatusFeasible:
			c.Feasible++
		case StatusInfeasible:
			c.Infeasible++
		case StatusFailed:
			c.Failed++
		case StatusInterrupted:
			c.Interrupted++
		case StatusSkipped:
			c.Skipped++
		}
	}
	return c
}
