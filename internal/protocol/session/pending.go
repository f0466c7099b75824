package session

import (
	"sync"

	"github.com/danmuck/iggywire/internal/protocol/fault"
)

// Pending is one request awaiting its response.
type Pending struct {
	Seq  uint64
	Code uint32
	Name string
}

// Unanswered reports a request that was still pending when its session closed.
type Unanswered struct {
	Pending
	Fault fault.Fault
}

// PendingQueue is the FIFO of outstanding requests for one connection.
type PendingQueue struct {
	mu    sync.Mutex
	items []Pending
	head  int
}

func NewPendingQueue() *PendingQueue {
	return &PendingQueue{}
}

func (q *PendingQueue) Push(item Pending) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
}

// Pop removes the oldest pending request.
func (q *PendingQueue) Pop() (Pending, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == len(q.items) {
		return Pending{}, false
	}
	item := q.items[q.head]
	q.items[q.head] = Pending{}
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return item, true
}

// Peek returns the oldest pending request without removing it.
func (q *PendingQueue) Peek() (Pending, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == len(q.items) {
		return Pending{}, false
	}
	return q.items[q.head], true
}

func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// List returns the pending requests in arrival order.
func (q *PendingQueue) List() []Pending {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Pending, len(q.items)-q.head)
	copy(out, q.items[q.head:])
	return out
}

// Drain empties the queue and returns what it held in arrival order.
func (q *PendingQueue) Drain() []Pending {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Pending, len(q.items)-q.head)
	copy(out, q.items[q.head:])
	q.items = nil
	q.head = 0
	return out
}
