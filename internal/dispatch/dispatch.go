// Package dispatch buffers client actions per connection and deduplicates them by message id.
package dispatch

import (
	"sort"
	"sync"

	"roguecloud.io/internal/sim/world"
)

// Result is the answer recorded for one attempted action.
type Result struct {
	MessageID int64
	Outcome   world.Outcome
}

type connState struct {
	queue   *Queue
	seen    *Window
	results map[int64]Result
	high    int64
}

type Stats struct {
	Connections int
	Depth       int
	Dropped     uint64
	Duplicates  uint64
}

// Dispatcher holds one bounded queue, seen window and result log per connection.
// Offer may be called from any goroutine; PollNext, Record and ResultsAfter belong to the round goroutine.
type Dispatcher struct {
	capacity int
	window   int

	mu    sync.Mutex
	conns map[string]*connState

	duplicates uint64
}

func New(capacity, window int) *Dispatcher {
	if capacity <= 0 {
		capacity = 500
	}
	if window < 600 {
		window = 600
	}
	return &Dispatcher{capacity: capacity, window: window, conns: map[string]*connState{}}
}

func (d *Dispatcher) state(connID string) *connState {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.conns[connID]
	if st == nil {
		st = &connState{
			queue:   NewQueue(d.capacity),
			seen:    NewWindow(d.window),
			results: map[int64]Result{},
		}
		d.conns[connID] = st
	}
	return st
}

// Offer queues an action. It reports false when the oldest queued action had to be dropped.
func (d *Dispatcher) Offer(connID string, messageID int64, a world.Action) bool {
	return !d.state(connID).queue.Push(Pending{MessageID: messageID, Action: a})
}

// PollNext returns the oldest queued action whose id has not been seen, marking it seen.
// Already seen ids are discarded silently.
func (d *Dispatcher) PollNext(connID string) (Pending, bool) {
	st := d.state(connID)
	for {
		p, ok := st.queue.Pop()
		if !ok {
			return Pending{}, false
		}
		d.mu.Lock()
		fresh := st.seen.Mark(p.MessageID)
		if !fresh {
			d.duplicates++
		}
		d.mu.Unlock()
		if fresh {
			return p, true
		}
	}
}

// Record stores the outcome of an attempted action for replay on resume.
func (d *Dispatcher) Record(connID string, messageID int64, o world.Outcome) {
	st := d.state(connID)
	d.mu.Lock()
	defer d.mu.Unlock()
	st.results[messageID] = Result{MessageID: messageID, Outcome: o}
	if messageID > st.high {
		st.high = messageID
	}
	if len(st.results) > 2*d.window {
		floor := st.high - int64(d.window)
		for id := range st.results {
			if id <= floor {
				delete(st.results, id)
			}
		}
	}
}

// ResultsAfter returns retained results with ids greater than lastAcked, in id order.
func (d *Dispatcher) ResultsAfter(connID string, lastAcked int64) []Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.conns[connID]
	if st == nil {
		return nil
	}
	var out []Result
	for id, r := range st.results {
		if id > lastAcked {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageID < out[j].MessageID })
	return out
}

// Reset forgets queued actions, seen ids and results for a connection whose client restarted
// its message numbering. The drop counter survives.
func (d *Dispatcher) Reset(connID string) {
	d.mu.Lock()
	st := d.conns[connID]
	if st != nil {
		st.seen.Reset()
		st.results = map[int64]Result{}
		st.high = 0
	}
	d.mu.Unlock()
	if st != nil {
		st.queue.Clear()
	}
}

// Remove drops the connection entirely.
func (d *Dispatcher) Remove(connID string) {
	d.mu.Lock()
	delete(d.conns, connID)
	d.mu.Unlock()
}

func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	conns := make([]*connState, 0, len(d.conns))
	for _, st := range d.conns {
		conns = append(conns, st)
	}
	s := Stats{Connections: len(d.conns), Duplicates: d.duplicates}
	d.mu.Unlock()
	for _, st := range conns {
		s.Depth += st.queue.Len()
		s.Dropped += st.queue.Dropped()
	}
	return s
}
