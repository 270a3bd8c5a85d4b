package delivery

import (
	"context"
	"sync"

	"github.com/labstack/gommon/log"
	"uk.co.dudmesh.bitlink/internal/model"
)

const DefaultQueueCapacity = 1000

// Queue is the pull-mode channel: a bounded in-memory FIFO drained in full
// by each poll. When full it evicts the oldest entry rather than blocking
// the ingest path. Nothing survives a process restart.
type Queue struct {
	mu       sync.Mutex
	capacity int
	items    []model.InboundMessage
	evicted  uint64
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		capacity: capacity,
		items:    []model.InboundMessage{},
	}
}

func (q *Queue) Deliver(ctx context.Context, message *model.InboundMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.capacity {
		oldest := q.items[0]
		q.items = q.items[1:]
		q.evicted++
		log.Warnf("queue full, dropping oldest message %s", oldest.ExternalID)
	}
	q.items = append(q.items, *message)
	return nil
}

// Drain removes and returns every queued message. Two consecutive drains
// with nothing arriving in between yield the batch and then an empty slice;
// no message is ever returned twice.
func (q *Queue) Drain() []model.InboundMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := q.items
	q.items = []model.InboundMessage{}
	return drained
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// NearCapacity reports whether the queue has reached 90% of its bound, so
// the health endpoint can warn the operator before evictions start.
func (q *Queue) NearCapacity() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)*10 >= q.capacity*9
}

// Evicted returns how many messages have been dropped to make room.
func (q *Queue) Evicted() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.evicted
}
