package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOut(t *testing.T) {
	b := NewBroker()
	a, cancelA := b.Subscribe()
	c, cancelC := b.Subscribe()
	defer cancelA()
	defer cancelC()

	b.Publish(Event{Type: ExecutionRecorded, PipelineName: "etl"})

	for _, ch := range []<-chan Event{a, c} {
		evt := <-ch
		assert.Equal(t, ExecutionRecorded, evt.Type)
		assert.Equal(t, "etl", evt.PipelineName)
		assert.Equal(t, int64(1), evt.ID)
		assert.False(t, evt.At.IsZero())
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe()
	defer cancel()

	for i := 0; i < 100; i++ {
		b.Publish(Event{Type: SystemSampled})
	}
	assert.Len(t, ch, cap(ch))
}

func TestCancelClosesAndUnsubscribes(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe()
	require.Equal(t, 1, b.Subscribers())

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, b.Subscribers())

	b.Publish(Event{Type: QualityRecorded})
}

func TestNilBrokerPublishIsNoop(t *testing.T) {
	var b *Broker
	assert.NotPanics(t, func() { b.Publish(Event{Type: ExecutionRecorded}) })
}
