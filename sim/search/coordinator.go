package search

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Coordinator runs one bisection per enumerated configuration on a bounded
// pool of goroutines and assembles the results in enumeration order.
type Coordinator struct {
	oracle  FeasibilityOracle
	metrics *Metrics
}

// NewCoordinator creates a Coordinator. The oracle is shared by all workers
// and must be safe for concurrent calls. metrics may be nil.
func NewCoordinator(oracle FeasibilityOracle, metrics *Metrics) *Coordinator {
	return &Coordinator{oracle: oracle, metrics: metrics}
}

// Run searches every configuration of p.Backend on p.Topology.
//
// Only precondition failures are returned as errors, before any probe is
// issued. Per-configuration oracle failures are recorded on their entries and
// never stop sibling searches. When p.Deadline (or ctx) expires no new probes
// are issued; in-flight configurations report their last known low bound and
// the rest are marked skipped.
func (c *Coordinator) Run(ctx context.Context, p Params) (*Result, error) {
	if c.oracle == nil {
		return nil, fmt.Errorf("coordinator has no feasibility oracle")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	runID := uuid.New().String()
	log := logrus.WithFields(logrus.Fields{"run_id": runID, "backend": string(p.Backend)})

	configs := Enumerate(p.Topology, p.Backend)
	if len(configs) == 0 {
		log.Warnf("%v: nodes=%d gpus_per_node=%d high_affinity=%v",
			ErrConfigurationExhausted, p.Topology.Nodes, p.Topology.GPUsPerNode, p.Topology.HighAffinity)
		return NewResult(runID, p.Backend, nil), nil
	}

	if p.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Deadline)
		defer cancel()
	}

	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, len(configs))
	log.Infof("Searching %d configurations with %d workers (max rate %.2f, epsilon %.3f, %d probes each)",
		len(configs), workers, p.MaxRate, p.Epsilon, ProbeBudget(p.MaxRate, p.Epsilon))

	bisector := NewBisector(c.oracle, p, c.metrics, log)

	// Every entry starts as skipped; each worker overwrites only its own slot.
	entries := make([]Entry, len(configs))
	for i, cfg := range configs {
		entries[i] = Entry{Index: i, Config: cfg, Status: StatusSkipped, High: p.MaxRate}
	}

	tickets := make(chan struct{}, workers)
	var wg sync.WaitGroup
	dispatched := 0
dispatch:
	for i, cfg := range configs {
		select {
		case tickets <- struct{}{}:
		case <-ctx.Done():
			break dispatch
		}
		dispatched++
		wg.Add(1)
		go func() {
			defer func() {
				<-tickets
				wg.Done()
			}()
			e := bisector.Search(ctx, cfg)
			e.Index = i
			entries[i] = e
			log.WithFields(logrus.Fields{
				"config": cfg.String(),
				"status": e.Status.String(),
				"probes": e.Probes,
			}).Infof("per-GPU rate %.2f", e.Rate)
		}()
	}
	wg.Wait()
	// Configurations never handed to a worker still count as skipped.
	for _, e := range entries[dispatched:] {
		c.metrics.observeBisection(p.Backend, e.Status, 0)
	}

	res := NewResult(runID, p.Backend, entries)
	counts := res.Counts()
	res.Interrupted = counts.Interrupted > 0 || counts.Skipped > 0
	if best, ok := res.Best(); ok {
		c.metrics.setBest(p.Backend, best.Rate)
		log.Infof("Best configuration %s: %.2f req/s/GPU, %.2f req/s total", best.Config, best.Rate, best.TotalThroughput())
	} else {
		c.metrics.setBest(p.Backend, 0)
		log.Warn("No configuration met the SLO at any tested rate")
	}
	if counts.Failed > 0 || counts.Interrupted > 0 || counts.Skipped > 0 {
		log.Warnf("%d configurations failed, %d interrupted, %d skipped", counts.Failed, counts.Interrupted, counts.Skipped)
	}
	return res, nil
}
