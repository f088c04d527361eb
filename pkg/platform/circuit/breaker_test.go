package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := New("kafka", WithFailureThreshold(3))
	assert.Equal(t, "kafka", b.Name())
	assert.Equal(t, StateClosed, b.State())

	for range 2 {
		useFallback, change := b.RecordFailure()
		assert.False(t, useFallback)
		assert.False(t, change.Opened)
	}
	b.RecordSuccess()
	for range 2 {
		b.RecordFailure()
	}
	assert.False(t, b.IsOpen(), "a success in between restarts the count")

	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.Equal(t, "open", b.State().String())

	_, change = b.RecordFailure()
	assert.False(t, change.Opened, "already open")
}

func TestBreakerRetriesAfterCooldown(t *testing.T) {
	clock := &fakeClock{t: time.Date(2019, time.July, 15, 0, 0, 0, 0, time.UTC)}
	b := New("kafka", WithFailureThreshold(1), WithCooldown(time.Minute), WithClock(clock.now))

	b.RecordFailure()
	assert.False(t, b.Allow())

	clock.advance(time.Minute)
	assert.True(t, b.Allow())

	b.RecordFailure()
	assert.False(t, b.Allow(), "a failed trial call restarts the cooldown")

	clock.advance(time.Minute)
	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.True(t, b.Allow())
}

func TestBreakerSuccessThreshold(t *testing.T) {
	b := New("kafka", WithFailureThreshold(1), WithSuccessThreshold(2))
	b.RecordFailure()

	usePrimary, _ := b.RecordSuccess()
	assert.False(t, usePrimary)
	b.RecordFailure()
	usePrimary, _ = b.RecordSuccess()
	assert.False(t, usePrimary, "failure resets the success run")

	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
}

func TestBreakerReset(t *testing.T) {
	b := New("kafka", WithFailureThreshold(1))
	b.RecordFailure()
	b.Reset()
	assert.False(t, b.IsOpen())
	assert.True(t, b.Allow())
}
