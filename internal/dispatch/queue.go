package dispatch

import (
	"sync"

	"roguecloud.io/internal/sim/world"
)

// Pending is a client action waiting for its tick.
type Pending struct {
	MessageID int64
	Action    world.Action
}

// Queue is a fixed-size ring of pending actions. When full, the oldest entry is overwritten.
// It is safe for concurrent producers and a single consumer.
type Queue struct {
	mu    sync.Mutex
	data  []Pending
	head  int
	count int

	dropped uint64
}

func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{data: make([]Pending, capacity)}
}

// Push appends p and reports whether an older entry was evicted to make room.
func (q *Queue) Push(p Pending) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	evicted := false
	if q.count == len(q.data) {
		q.head = (q.head + 1) % len(q.data)
		q.count--
		q.dropped++
		evicted = true
	}
	q.data[(q.head+q.count)%len(q.data)] = p
	q.count++
	return evicted
}

// Pop removes and returns the oldest entry.
func (q *Queue) Pop() (Pending, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return Pending{}, false
	}
	p := q.data[q.head]
	q.data[q.head] = Pending{}
	q.head = (q.head + 1) % len(q.data)
	q.count--
	return p, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.data {
		q.data[i] = Pending{}
	}
	q.head, q.count = 0, 0
}
