package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// everyTick fires at a fixed interval regardless of wall-clock alignment.
type everyTick time.Duration

func (e everyTick) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }

func TestParseSchedule(t *testing.T) {
	_, err := ParseSchedule("@every 1m")
	require.NoError(t, err)
	_, err = ParseSchedule("*/5 * * * *")
	require.NoError(t, err)
	_, err = ParseSchedule("not a schedule")
	assert.Error(t, err)
}

func TestTaskFiresRepeatedlyUntilStopped(t *testing.T) {
	s := New()
	var n atomic.Int32
	s.AddTask("sample", everyTick(5*time.Millisecond), func() { n.Add(1) })
	s.Start()

	require.Eventually(t, func() bool { return n.Load() >= 3 }, 2*time.Second, time.Millisecond)
	s.Stop()
	s.Stop()

	after := n.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, n.Load())
}

func TestAddTaskReplacesAndRemoveTask(t *testing.T) {
	s := New()
	s.AddTask("a", everyTick(time.Hour), func() {})
	first, ok := s.NextRunTime("a")
	require.True(t, ok)

	s.AddTask("a", everyTick(2*time.Hour), func() {})
	second, ok := s.NextRunTime("a")
	require.True(t, ok)
	assert.True(t, second.After(first))
	assert.Len(t, s.heap, 1)

	s.RemoveTask("a")
	_, ok = s.NextRunTime("a")
	assert.False(t, ok)
}
