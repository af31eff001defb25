package realtime

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event types published when a record is written.
const (
	ExecutionRecorded = "execution.recorded"
	QualityRecorded   = "quality.recorded"
	SystemSampled     = "system.sampled"
)

// Event tells dashboard clients that new data is available. It carries only
// enough to decide what to refetch.
type Event struct {
	ID           int64     `json:"id"`
	Type         string    `json:"type"`
	PipelineName string    `json:"pipeline_name,omitempty"`
	ExecutionID  string    `json:"execution_id,omitempty"`
	Status       string    `json:"status,omitempty"`
	MetricName   string    `json:"metric_name,omitempty"`
	Count        int       `json:"count,omitempty"`
	At           time.Time `json:"at"`
}

// Broker is an in-memory fan-out event bus for SSE subscribers.
type Broker struct {
	mu     sync.RWMutex
	nextID atomic.Int64
	nextCh atomic.Int64
	subs   map[int64]chan Event
}

// NewBroker creates a Broker.
func NewBroker() *Broker {
	return &Broker{
		subs: make(map[int64]chan Event),
	}
}

// Publish broadcasts an event to all active subscribers.
// Slow subscribers drop events instead of blocking producers.
// A nil Broker discards events.
func (b *Broker) Publish(evt Event) {
	if b == nil {
		return
	}
	evt.ID = b.nextID.Add(1)
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribe registers a subscriber and returns an event channel and cancel func.
// The channel is closed by cancel, which is safe to call more than once.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	id := b.nextCh.Add(1)
	ch := make(chan Event, 32)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}

	return ch, cancel
}

// Subscribers returns the number of active subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
