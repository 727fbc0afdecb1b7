package report

import "sort"

// Summary aggregates the rows of one or more result blocks.
type Summary struct {
	Rows  int // every parsed row
	Valid int // rows with a positive per-GPU rate

	BestRate  float64
	BestLabel string
	WorstRate float64
	MeanRate  float64

	// Ranked holds the valid rows ordered by total GPUs, then per-GPU rate.
	Ranked []Row
}

// Summarize computes statistics over the valid rows.
// Safe for empty input (returns zero-value fields).
func Summarize(rows []Row) Summary {
	s := Summary{Rows: len(rows)}
	for _, r := range rows {
		if r.PerGPURate > 0 {
			s.Ranked = append(s.Ranked, r)
		}
	}
	s.Valid = len(s.Ranked)
	if s.Valid == 0 {
		return s
	}

	total := 0.0
	best := s.Ranked[0]
	s.WorstRate = s.Ranked[0].PerGPURate
	for _, r := range s.Ranked {
		total += r.PerGPURate
		if r.PerGPURate > best.PerGPURate {
			best = r
		}
		if r.PerGPURate < s.WorstRate {
			s.WorstRate = r.PerGPURate
		}
	}
	s.BestRate = best.PerGPURate
	s.BestLabel = best.Label()
	s.MeanRate = total / float64(s.Valid)

	sort.SliceStable(s.Ranked, func(i, j int) bool {
		if s.Ranked[i].TotalGPUs != s.Ranked[j].TotalGPUs {
			return s.Ranked[i].TotalGPUs < s.Ranked[j].TotalGPUs
		}
		return s.Ranked[i].PerGPURate < s.Ranked[j].PerGPURate
	})
	return s
}

// TopByRate returns up to n rows with the highest per-GPU rate, fewest GPUs
// first on ties. n <= 0 returns every row.
func TopByRate(rows []Row, n int) []Row {
	out := append([]Row(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PerGPURate != out[j].PerGPURate {
			return out[i].PerGPURate > out[j].PerGPURate
		}
		return out[i].TotalGPUs < out[j].TotalGPUs
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
