package sim

import (
	"context"
	"fmt"
)

// prefillInstance runs prompt batches for a disaggregated layout.
type prefillInstance struct {
	lat            StageLatency
	capacity       int64 // KV tokens that fit next to the weights
	maxBatchTokens int64
	queue          []*Request
	busy           bool
}

// decodeInstance runs continuous-batching decode steps. A colocated instance
// also runs prefill batches, which take priority over decode steps.
type decodeInstance struct {
	lat      StageLatency
	capacity int64
	maxBatch int
	waiting  []*Request
	running  []*Request
	usedKV   int64
	stepping bool

	colocated        bool
	prefillLat       StageLatency
	maxPrefillTokens int64
}

func (d *decodeInstance) load() int {
	return len(d.waiting) + len(d.running)
}

// Simulator is a discrete-event model of one serving configuration.
// A Simulator is single-use and not safe for concurrent use.
type Simulator struct {
	Clock    int64
	Requests []*Request

	events      *EventHeap
	nextEventID uint64
	model       Model
	hw          Hardware
	prefill     []*prefillInstance
	decode      []*decodeInstance
	nextPrefill int
}

// NewSimulator lays out the instances of cfg for the given model.
func NewSimulator(cfg Configuration, model Model, hw Hardware) (*Simulator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Simulator{events: NewEventHeap(), model: model, hw: hw}
	switch c := cfg.(type) {
	case Disaggregated:
		for i := 0; i < c.PPCross; i++ {
			prefillCap := KVCapacityTokens(model, hw, c.PrefillGPUs())
			s.prefill = append(s.prefill, &prefillInstance{
				lat:            NewStageLatency(model.Prefill, c.TPPrefill, c.PPPrefill, hw),
				capacity:       prefillCap,
				maxBatchTokens: min(int64(hw.MaxPrefillTokens), prefillCap),
			})
			s.decode = append(s.decode, &decodeInstance{
				lat:      NewStageLatency(model.Decode, c.TPDecode, c.PPDecode, hw),
				capacity: KVCapacityTokens(model, hw, c.DecodeGPUs()),
				maxBatch: hw.MaxDecodeBatch,
			})
		}
	case Monolithic:
		capacity := KVCapacityTokens(model, hw, c.TotalGPUs())
		s.decode = append(s.decode, &decodeInstance{
			lat:              NewStageLatency(model.Decode, c.TP, c.PP, hw),
			capacity:         capacity,
			maxBatch:         hw.MaxDecodeBatch,
			colocated:        true,
			prefillLat:       NewStageLatency(model.Prefill, c.TP, c.PP, hw),
			maxPrefillTokens: int64(hw.MaxPrefillTokens),
		})
	default:
		return nil, fmt.Errorf("unsupported configuration type %T", cfg)
	}
	return s, nil
}

// CanHost reports whether every instance has room for the model weights.
func (s *Simulator) CanHost() bool {
	for _, p := range s.prefill {
		if p.capacity <= 0 {
			return false
		}
	}
	for _, d := range s.decode {
		if d.capacity <= 0 {
			return false
		}
	}
	return true
}

// Inject schedules the arrival of every request.
func (s *Simulator) Inject(reqs []*Request) {
	for _, r := range reqs {
		s.Requests = append(s.Requests, r)
		s.schedule(&arrivalEvent{baseEvent: s.newBase(r.ArrivalTime, EventRequestArrival), req: r})
	}
}

// Run drains the event queue. The context is polled between events.
func (s *Simulator) Run(ctx context.Context) error {
	for n := 0; s.events.Len() > 0; n++ {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		ev := s.events.PopNext()
		if ev.Timestamp() < s.Clock {
			panic(fmt.Sprintf("Clock went backwards: %d < %d", ev.Timestamp(), s.Clock))
		}
		s.Clock = ev.Timestamp()
		ev.Execute(s)
	}
	return nil
}

func (s *Simulator) newBase(ts int64, t EventType) baseEvent {
	s.nextEventID++
	return baseEvent{timestamp: ts, eventID: s.nextEventID, eventType: t}
}

func (s *Simulator) schedule(e Event) {
	s.events.Schedule(e)
}

func (s *Simulator) handleArrival(now int64, req *Request) {
	if len(s.prefill) == 0 {
		d := s.decode[0]
		if req.KVTokens() > d.capacity {
			req.State = StateDropped
			return
		}
		d.waiting = append(d.waiting, req)
		s.tryStep(now, 0)
		return
	}

	idx := s.nextPrefill % len(s.prefill)
	s.nextPrefill++
	p := s.prefill[idx]
	if int64(req.PromptLen) > p.maxBatchTokens || req.KVTokens() > s.decode[0].capacity {
		req.State = StateDropped
		return
	}
	p.queue = append(p.queue, req)
	s.tryStartPrefill(now, idx)
}

func (s *Simulator) tryStartPrefill(now int64, idx int) {
	p := s.prefill[idx]
	if p.busy || len(p.queue) == 0 {
		return
	}
	var tokens int64
	n := 0
	for n < len(p.queue) && tokens+int64(p.queue[n].PromptLen) <= p.maxBatchTokens {
		tokens += int64(p.queue[n].PromptLen)
		n++
	}
	batch := append([]*Request(nil), p.queue[:n]...)
	p.queue = p.queue[n:]

	lens := make([]int, len(batch))
	for i, r := range batch {
		r.State = StateRunning
		lens[i] = r.PromptLen
	}
	latency, busy := p.lat.Prefill(lens)
	p.busy = true
	s.schedule(&prefillFreeEvent{baseEvent: s.newBase(now+busy, EventPrefillFree), instance: idx})
	s.schedule(&prefillDoneEvent{baseEvent: s.newBase(now+latency, EventPrefillDone), instance: idx, batch: batch})
}

func (s *Simulator) handlePrefillFree(now int64, idx int) {
	s.prefill[idx].busy = false
	s.tryStartPrefill(now, idx)
}

func (s *Simulator) handlePrefillDone(now int64, _ int, batch []*Request) {
	for _, r := range batch {
		r.FirstTokenTime = now
		r.Generated = 1
		if r.Generated >= r.OutputLen {
			s.complete(now, r)
			continue
		}
		target := s.leastLoadedDecode()
		arrive := now + KVTransferTime(s.model, s.hw, r.PromptLen)
		s.schedule(&decodeArrivalEvent{baseEvent: s.newBase(arrive, EventDecodeArrival), instance: target, req: r})
	}
}

// leastLoadedDecode picks the decode instance with the fewest requests,
// lowest index on ties.
func (s *Simulator) leastLoadedDecode() int {
	best := 0
	for i, d := range s.decode {
		if d.load() < s.decode[best].load() {
			best = i
		}
	}
	return best
}

func (s *Simulator) handleDecodeArrival(now int64, idx int, req *Request) {
	d := s.decode[idx]
	d.waiting = append(d.waiting, req)
	s.tryStep(now, idx)
}

// tryStep starts the next iteration of an idle decode instance.
func (s *Simulator) tryStep(now int64, idx int) {
	d := s.decode[idx]
	if d.stepping {
		return
	}

	if d.colocated {
		if batch := s.admitPrefill(d); len(batch) > 0 {
			lens := make([]int, len(batch))
			for i, r := range batch {
				lens[i] = r.PromptLen
			}
			latency, _ := d.prefillLat.Prefill(lens)
			d.stepping = true
			s.schedule(&decodeStepDoneEvent{baseEvent: s.newBase(now+latency, EventDecodeStepDone), instance: idx, prefill: batch})
			return
		}
	} else {
		for len(d.waiting) > 0 && len(d.running) < d.maxBatch && d.usedKV+d.waiting[0].KVTokens() <= d.capacity {
			r := d.waiting[0]
			d.waiting = d.waiting[1:]
			d.usedKV += r.KVTokens()
			r.State = StateRunning
			d.running = append(d.running, r)
		}
	}

	if len(d.running) == 0 {
		return
	}
	var ctxTokens int64
	for _, r := range d.running {
		ctxTokens += r.ContextLen()
	}
	d.stepping = true
	step := d.lat.DecodeStep(len(d.running), ctxTokens)
	s.schedule(&decodeStepDoneEvent{baseEvent: s.newBase(now+step, EventDecodeStepDone), instance: idx})
}

// admitPrefill takes waiting requests FCFS for a colocated prefill batch,
// bounded by the token budget, the batch size and free KV cache.
func (s *Simulator) admitPrefill(d *decodeInstance) []*Request {
	var batch []*Request
	var tokens int64
	for len(d.waiting) > 0 {
		r := d.waiting[0]
		if len(batch) > 0 && tokens+int64(r.PromptLen) > d.maxPrefillTokens {
			break
		}
		if len(d.running)+len(batch) >= d.maxBatch || d.usedKV+r.KVTokens() > d.capacity {
			break
		}
		d.waiting = d.waiting[1:]
		d.usedKV += r.KVTokens()
		tokens += int64(r.PromptLen)
		r.State = StateRunning
		batch = append(batch, r)
	}
	return batch
}

func (s *Simulator) handleStepDone(now int64, idx int, prefill []*Request) {
	d := s.decode[idx]
	d.stepping = false

	if len(prefill) > 0 {
		for _, r := range prefill {
			r.FirstTokenTime = now
			r.Generated = 1
			if r.Generated >= r.OutputLen {
				d.usedKV -= r.KVTokens()
				s.complete(now, r)
				continue
			}
			d.running = append(d.running, r)
		}
	} else {
		kept := d.running[:0]
		for _, r := range d.running {
			r.Generated++
			if r.Generated >= r.OutputLen {
				d.usedKV -= r.KVTokens()
				s.complete(now, r)
				continue
			}
			kept = append(kept, r)
		}
		d.running = kept
	}
	s.tryStep(now, idx)
}

func (s *Simulator) complete(now int64, r *Request) {
	r.State = StateCompleted
	r.CompletionTime = now
}
