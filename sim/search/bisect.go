package search

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/pdsearch/sim"
)

// ProbeBudget is the number of oracle calls one bisection makes over
// [0, maxRate] with tolerance epsilon: ceil(log2(maxRate/epsilon)), or 0 when
// maxRate <= epsilon. It is counted the way the loop halves, so it matches
// the bisection exactly.
func ProbeBudget(maxRate, epsilon float64) int {
	if epsilon <= 0 {
		return 0
	}
	n := 0
	for width := maxRate; width > epsilon; width /= 2 {
		n++
	}
	return n
}

// Bisector finds the highest per-GPU rate at which one configuration meets
// the attainment target.
//
// Precondition: the oracle is monotone in rate (a higher offered rate is no
// more likely to meet the SLO). The bisector does not retry or average; it
// trusts each aggregated answer.
type Bisector struct {
	Oracle    FeasibilityOracle
	Model     sim.Model
	Target    sim.AttainmentTarget
	MaxRate   float64
	Epsilon   float64
	Samples   int
	VerifyLow bool
	Metrics   *Metrics
	Log       *logrus.Entry
}

// NewBisector builds a Bisector from run parameters.
func NewBisector(oracle FeasibilityOracle, p Params, metrics *Metrics, log *logrus.Entry) *Bisector {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Bisector{
		Oracle:    oracle,
		Model:     p.Model,
		Target:    p.Target,
		MaxRate:   p.MaxRate,
		Epsilon:   p.Epsilon,
		Samples:   p.Samples,
		VerifyLow: p.VerifyLow,
		Metrics:   metrics,
		Log:       log,
	}
}

// Search bisects [0, MaxRate] for cfg. The returned entry has no Index set.
//
// The reported Rate is 0 when no probe was feasible. Otherwise it is the
// upper edge of the converged bracket, or its midpoint when the bracket closed
// exactly Epsilon wide, so Low <= Rate < Low+Epsilon and Rate never exceeds
// MaxRate. Clipped marks a bracket whose upper edge never left MaxRate.
// An oracle error ends the search as StatusFailed with Rate 0. Context expiry
// ends it as StatusInterrupted with Rate set to the last known Low.
func (b *Bisector) Search(ctx context.Context, cfg sim.Configuration) (e Entry) {
	start := time.Now()
	e = Entry{Config: cfg, Low: 0, High: b.MaxRate}
	defer func() {
		b.Metrics.observeBisection(cfg.Backend(), e.Status, time.Since(start))
	}()

	for e.High-e.Low > b.Epsilon {
		if ctx.Err() != nil {
			return b.interrupted(e)
		}
		mid := (e.Low + e.High) / 2
		feasible, err := b.Oracle.Feasible(ctx, cfg, mid, b.Model, b.Target, b.Samples)
		e.Probes++
		b.Metrics.observeProbe(cfg.Backend(), feasible, err)
		if err != nil {
			if ctx.Err() != nil {
				return b.interrupted(e)
			}
			e.Status = StatusFailed
			e.Err = err
			e.Rate = 0
			b.Log.WithField("config", cfg.String()).Warnf("oracle failed at rate %.4f: %v", mid, err)
			return e
		}
		if feasible {
			e.Low = mid
		} else {
			e.High = mid
		}
	}

	if e.Low == 0 {
		e.Status = StatusInfeasible
		return e
	}
	e.Status = StatusFeasible
	e.Clipped = e.High == b.MaxRate
	e.Rate = e.High
	if e.High-e.Low >= b.Epsilon {
		e.Rate = (e.Low + e.High) / 2
	}
	if b.VerifyLow {
		b.verify(ctx, &e)
	}
	return e
}

// verify re-probes Low. A rejection means successive answers contradicted
// each other, so the bracket may be wrong.
func (b *Bisector) verify(ctx context.Context, e *Entry) {
	feasible, err := b.Oracle.Feasible(ctx, e.Config, e.Low, b.Model, b.Target, b.Samples)
	e.Probes++
	b.Metrics.observeProbe(e.Config.Backend(), feasible, err)
	if err != nil {
		b.Log.WithField("config", e.Config.String()).Warnf("verification probe failed at rate %.4f: %v", e.Low, err)
		return
	}
	if !feasible {
		b.Metrics.observeNonMonotone(e.Config.Backend())
		b.Log.WithField("config", e.Config.String()).Warnf(
			"non-monotone oracle: rate %.4f accepted during bisection but rejected on re-probe", e.Low)
	}
}

func (b *Bisector) interrupted(e Entry) Entry {
	if e.Probes == 0 {
		e.Status = StatusSkipped
		e.Rate = 0
		return e
	}
	e.Status = StatusInterrupted
	e.Rate = e.Low
	return e
}
