package midi

import (
	"sync/atomic"

	"github.com/cbegin/qinwave-go/internal/qerr"
)

// QueueSize is the capacity of the input event queue.
const QueueSize = 64

// Queue is a bounded single-producer/single-consumer ring. Exactly one
// goroutine may Push and exactly one may Pop; the indices are atomic so the
// two sides may live on different goroutines without a lock.
type Queue struct {
	buf   [QueueSize]Event
	head  atomic.Uint64 // next slot to read, owned by the consumer
	tail  atomic.Uint64 // next slot to write, owned by the producer
	drops atomic.Uint64
}

func NewQueue() *Queue { return &Queue{} }

// Push appends ev. A full queue drops the event and returns QueueFull.
func (q *Queue) Push(ev Event) error {
	tail := q.tail.Load()
	if tail-q.head.Load() == QueueSize {
		q.drops.Add(1)
		return qerr.New(qerr.QueueFull, "midi queue push", "")
	}
	q.buf[tail%QueueSize] = ev
	q.tail.Store(tail + 1)
	return nil
}

// Pop removes the oldest event. An empty queue returns QueueEmpty.
func (q *Queue) Pop() (Event, error) {
	head := q.head.Load()
	if head == q.tail.Load() {
		return Event{}, qerr.New(qerr.QueueEmpty, "midi queue pop", "")
	}
	ev := q.buf[head%QueueSize]
	q.buf[head%QueueSize] = Event{}
	q.head.Store(head + 1)
	return ev, nil
}

func (q *Queue) Len() int { return int(q.tail.Load() - q.head.Load()) }
func (q *Queue) Empty() bool { return q.Len() == 0 }
func (q *Queue) Full() bool { return q.Len() == QueueSize }
func (q *Queue) Drops() uint64 { return q.drops.Load() }
