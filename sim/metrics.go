package sim

import (
	"math"
	"sort"
)

// Distribution captures a statistical summary of a latency metric (ms).
type Distribution struct {
	Mean  float64
	P50   float64
	P90   float64
	P99   float64
	Max   float64
	Count int
}

// NewDistribution computes a Distribution from raw values.
// Returns zero-value Distribution for empty input.
func NewDistribution(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	return Distribution{
		Mean:  sum / float64(len(sorted)),
		P50:   percentile(sorted, 50),
		P90:   percentile(sorted, 90),
		P99:   percentile(sorted, 99),
		Max:   sorted[len(sorted)-1],
		Count: len(sorted),
	}
}

// percentile computes the p-th percentile using linear interpolation.
// Input must be sorted.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// Attainment is the SLO outcome of one simulated probe.
type Attainment struct {
	Requests int
	TTFTMet  int
	TPOTMet  int
	Dropped  int
	TTFT     Distribution // ms, completed prefills only
	TPOT     Distribution // ms, completed requests only
}

// PrefillRatio is the fraction of requests whose TTFT met the target.
func (a Attainment) PrefillRatio() float64 {
	if a.Requests == 0 {
		return 1
	}
	return float64(a.TTFTMet) / float64(a.Requests)
}

// DecodeRatio is the fraction of requests whose TPOT met the target.
func (a Attainment) DecodeRatio() float64 {
	if a.Requests == 0 {
		return 1
	}
	return float64(a.TPOTMet) / float64(a.Requests)
}

// Meets reports whether both ratios reach their target percentiles. Counts
// are compared without dividing, so a ratio exactly at the target passes.
func (a Attainment) Meets(target AttainmentTarget) bool {
	if a.Requests == 0 {
		return true
	}
	n := float64(a.Requests)
	return float64(a.TTFTMet)*100 >= target.PrefillPercentile*n &&
		float64(a.TPOTMet)*100 >= target.DecodePercentile*n
}

// EvaluateAttainment scores requests against the latency targets.
// Requests that never produced a token, or never finished, count as misses.
func EvaluateAttainment(reqs []*Request, target AttainmentTarget) Attainment {
	a := Attainment{Requests: len(reqs)}
	ttfts := make([]float64, 0, len(reqs))
	tpots := make([]float64, 0, len(reqs))
	for _, r := range reqs {
		if r.State == StateDropped {
			a.Dropped++
			continue
		}
		if ttft, ok := r.TTFT(); ok {
			ms := float64(ttft) / 1000
			ttfts = append(ttfts, ms)
			if ms <= target.PrefillLatencyMs {
				a.TTFTMet++
			}
		}
		if tpot, ok := r.TPOT(); ok {
			ms := tpot / 1000
			tpots = append(tpots, ms)
			if ms <= target.DecodeLatencyMs {
				a.TPOTMet++
			}
		}
	}
	a.TTFT = NewDistribution(ttfts)
	a.TPOT = NewDistribution(tpots)
	return a
}
