// Package aisched computes AI decisions off the tick goroutine.
package aisched

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"roguecloud.io/internal/sim/world"
)

// DecisionFunc computes one intent. It may be slow and must not retain snap or events after returning.
type DecisionFunc func(self world.CreatureView, snap *world.Snapshot, events []world.Event) world.Action

type Intent struct {
	CreatureID int64
	Tick       uint64
	Action     world.Action
}

type request struct {
	id     int64
	self   world.CreatureView
	snap   *world.Snapshot
	events []world.Event
	decide DecisionFunc
}

type Stats struct {
	Workers        int
	QueueDepth     int
	QueueCapacity  int
	InFlight       int
	SubmittedTotal uint64
	BusyDropTotal  uint64
	FullDropTotal  uint64
	PanicTotal     uint64
	CompletedTotal uint64
}

// Scheduler runs decisions on a fixed worker pool with at most one computation in flight per creature.
type Scheduler struct {
	log     *zap.Logger
	workers int
	jobs    chan request

	mu       sync.Mutex
	inflight map[int64]struct{}
	intents  map[int64]Intent

	wg      sync.WaitGroup
	started atomic.Bool
	stopped atomic.Bool
	stop    chan struct{}

	submittedTotal atomic.Uint64
	busyDropTotal  atomic.Uint64
	fullDropTotal  atomic.Uint64
	panicTotal     atomic.Uint64
	completedTotal atomic.Uint64
}

// Workers returns the pool size for perCPU workers on each available processor.
func Workers(perCPU int) int {
	if perCPU <= 0 {
		perCPU = 1
	}
	return runtime.GOMAXPROCS(0) * perCPU
}

func New(workers, queueCapacity int, log *zap.Logger) *Scheduler {
	if workers <= 0 {
		workers = 1
	}
	if queueCapacity <= 0 {
		queueCapacity = 1024
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		log:      log,
		workers:  workers,
		jobs:     make(chan request, queueCapacity),
		inflight: map[int64]struct{}{},
		intents:  map[int64]Intent{},
		stop:     make(chan struct{}),
	}
}

// Start launches the workers. They exit when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-s.stop:
					return
				case req := <-s.jobs:
					s.run(req)
				}
			}
		}()
	}
}

// Stop signals the workers and waits for them; a decision still running is waited for.
func (s *Scheduler) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	close(s.stop)
	s.wg.Wait()
}

// Submit enqueues a decision for creature id and reports whether it was accepted.
// A creature with a computation already in flight, or a full queue, drops the request.
func (s *Scheduler) Submit(id int64, self world.CreatureView, snap *world.Snapshot, events []world.Event, decide DecisionFunc) bool {
	if decide == nil || s.stopped.Load() {
		return false
	}
	s.mu.Lock()
	if _, busy := s.inflight[id]; busy {
		s.mu.Unlock()
		s.busyDropTotal.Add(1)
		return false
	}
	s.inflight[id] = struct{}{}
	s.mu.Unlock()

	select {
	case s.jobs <- request{id: id, self: self, snap: snap, events: events, decide: decide}:
		s.submittedTotal.Add(1)
		return true
	default:
		s.mu.Lock()
		delete(s.inflight, id)
		s.mu.Unlock()
		s.fullDropTotal.Add(1)
		return false
	}
}

func (s *Scheduler) run(req request) {
	action, ok := s.call(req)

	s.mu.Lock()
	delete(s.inflight, req.id)
	if ok {
		var tick uint64
		if req.snap != nil {
			tick = req.snap.Tick
		}
		s.intents[req.id] = Intent{CreatureID: req.id, Tick: tick, Action: action}
	}
	s.mu.Unlock()
	s.completedTotal.Add(1)
}

func (s *Scheduler) call(req request) (action world.Action, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.panicTotal.Add(1)
			s.log.Error("decision function panicked", zap.Int64("creature", req.id), zap.Any("panic", r))
			ok = false
		}
	}()
	return req.decide(req.self, req.snap, req.events), true
}

// TakeIntents returns every intent published since the last call, ordered by creature id.
func (s *Scheduler) TakeIntents() []Intent {
	s.mu.Lock()
	if len(s.intents) == 0 {
		s.mu.Unlock()
		return nil
	}
	out := make([]Intent, 0, len(s.intents))
	for _, in := range s.intents {
		out = append(out, in)
	}
	s.intents = map[int64]Intent{}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatureID < out[j].CreatureID })
	return out
}

// Forget discards a published intent for a creature that left the world.
func (s *Scheduler) Forget(id int64) {
	s.mu.Lock()
	delete(s.intents, id)
	s.mu.Unlock()
}

func (s *Scheduler) InFlight(id int64) bool {
	s.mu.Lock()
	_, ok := s.inflight[id]
	s.mu.Unlock()
	return ok
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	inflight := len(s.inflight)
	s.mu.Unlock()
	return Stats{
		Workers:        s.workers,
		QueueDepth:     len(s.jobs),
		QueueCapacity:  cap(s.jobs),
		InFlight:       inflight,
		SubmittedTotal: s.submittedTotal.Load(),
		BusyDropTotal:  s.busyDropTotal.Load(),
		FullDropTotal:  s.fullDropTotal.Load(),
		PanicTotal:     s.panicTotal.Load(),
		CompletedTotal: s.completedTotal.Load(),
	}
}
