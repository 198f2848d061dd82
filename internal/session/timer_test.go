package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const testInterval = 5 * time.Millisecond

// settle waits long enough for a compressed-interval countdown to finish.
func settle(ticks int) {
	time.Sleep(time.Duration(ticks+10) * testInterval)
}

func TestTimerExpireFiresExactlyOnce(t *testing.T) {
	timer := newTimerWithInterval(testInterval)

	var ticks, expires int32
	timer.Start(3,
		func(remaining int) { atomic.AddInt32(&ticks, 1) },
		func() { atomic.AddInt32(&expires, 1) },
	)

	settle(3)

	assert.Equal(t, int32(1), atomic.LoadInt32(&expires))
	// Remaining 2 and 1 tick; 0 is the expiry, not a tick.
	assert.Equal(t, int32(2), atomic.LoadInt32(&ticks))
	assert.False(t, timer.Active())
}

func TestTimerCancelPreventsExpiry(t *testing.T) {
	timer := newTimerWithInterval(testInterval)

	var expires int32
	timer.Start(2, nil, func() { atomic.AddInt32(&expires, 1) })
	timer.Cancel()

	settle(2)
	assert.Equal(t, int32(0), atomic.LoadInt32(&expires))
}

func TestTimerCancelIsIdempotent(t *testing.T) {
	timer := newTimerWithInterval(testInterval)

	timer.Start(2, nil, nil)
	timer.Cancel()
	timer.Cancel() // Second cancel on a stopped timer is a no-op.
	timer.Cancel()

	assert.False(t, timer.Active())
}

func TestTimerStartSupersedesRunningCountdown(t *testing.T) {
	timer := newTimerWithInterval(testInterval)

	var firstExpired, secondExpired int32
	timer.Start(1000, nil, func() { atomic.AddInt32(&firstExpired, 1) })
	timer.Start(2, nil, func() { atomic.AddInt32(&secondExpired, 1) })

	settle(2)

	assert.Equal(t, int32(0), atomic.LoadInt32(&firstExpired))
	assert.Equal(t, int32(1), atomic.LoadInt32(&secondExpired))
}

func TestTimerRemainingCountsDown(t *testing.T) {
	timer := newTimerWithInterval(testInterval)

	timer.Start(5, nil, nil)
	assert.Equal(t, 5, timer.Remaining())

	settle(5)
	assert.Equal(t, 0, timer.Remaining())
}
