package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnlyLastTriggerRuns(t *testing.T) {
	d := New(40 * time.Millisecond)

	var last atomic.Int64
	var calls atomic.Int64
	for i := 1; i <= 5; i++ {
		value := int64(i)
		revoked := d.Trigger(func() {
			calls.Add(1)
			last.Store(value)
		})
		assert.Equal(t, i > 1, revoked)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, int64(5), last.Load())
	assert.False(t, d.Pending())
}

func TestStopDiscardsPending(t *testing.T) {
	d := New(20 * time.Millisecond)

	var calls atomic.Int64
	d.Trigger(func() { calls.Add(1) })
	assert.True(t, d.Pending())
	assert.True(t, d.Stop())
	assert.False(t, d.Stop())

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestSeparatedTriggersBothRun(t *testing.T) {
	d := New(10 * time.Millisecond)

	var calls atomic.Int64
	d.Trigger(func() { calls.Add(1) })
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	assert.False(t, d.Trigger(func() { calls.Add(1) }))
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestDefaultDelay(t *testing.T) {
	assert.Equal(t, DefaultDelay, New(0).Delay())
}
