package session

import (
	"errors"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCanceller struct {
	calls atomic.Int32
	err   error
}

func (c *countingCanceller) AbortCommand() error {
	c.calls.Add(1)
	return c.err
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestWatchdog(flag *Outstanding, canceller Canceller, delay time.Duration) *Watchdog {
	return NewWatchdog(flag, canceller, WatchdogConfig{
		PollInterval: 5 * time.Millisecond,
		Delay:        delay,
		Jitter:       -1,
	}, quietLogger())
}

func TestWatchdog_CancelsLongCallOnce(t *testing.T) {
	t.Parallel()

	flag := NewOutstanding()
	canceller := &countingCanceller{}
	w := newTestWatchdog(flag, canceller, 30*time.Millisecond)
	w.Start()
	defer w.Stop()

	flag.Begin()
	require.Eventually(t, func() bool { return canceller.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// the call ignores the abort and stays in flight: no second cancel
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), canceller.calls.Load())
	assert.Equal(t, int64(1), w.Cancels())
	flag.End()
}

func TestWatchdog_OneCancelPerEpisode(t *testing.T) {
	t.Parallel()

	flag := NewOutstanding()
	canceller := &countingCanceller{}
	w := newTestWatchdog(flag, canceller, 20*time.Millisecond)
	w.Start()
	defer w.Stop()

	for i := 1; i <= 3; i++ {
		flag.Begin()
		require.Eventually(t, func() bool { return canceller.calls.Load() == int32(i) }, time.Second, 5*time.Millisecond)
		flag.End()
	}
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(3), canceller.calls.Load())
}

func TestWatchdog_NoCancelWhenIdle(t *testing.T) {
	t.Parallel()

	flag := NewOutstanding()
	canceller := &countingCanceller{}
	w := newTestWatchdog(flag, canceller, 10*time.Millisecond)
	w.Start()

	time.Sleep(100 * time.Millisecond)
	w.Stop()
	assert.Equal(t, int32(0), canceller.calls.Load())
}

func TestWatchdog_CompletedCallNotCancelled(t *testing.T) {
	t.Parallel()

	flag := NewOutstanding()
	canceller := &countingCanceller{}
	w := newTestWatchdog(flag, canceller, 80*time.Millisecond)
	w.Start()
	defer w.Stop()

	for i := 0; i < 5; i++ {
		flag.Begin()
		time.Sleep(10 * time.Millisecond)
		flag.End()
	}
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), canceller.calls.Load())
}

func TestWatchdog_StopDuringDelay(t *testing.T) {
	t.Parallel()

	flag := NewOutstanding()
	canceller := &countingCanceller{}
	w := newTestWatchdog(flag, canceller, time.Hour)
	w.Start()

	flag.Begin()
	time.Sleep(20 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return while the watchdog was waiting to cancel")
	}
	assert.Equal(t, int32(0), canceller.calls.Load())
	flag.End()

	// Stop is idempotent
	w.Stop()
}

func TestWatchdog_AbortErrorIsTolerated(t *testing.T) {
	t.Parallel()

	flag := NewOutstanding()
	canceller := &countingCanceller{err: errors.New("nothing to abort")}
	w := newTestWatchdog(flag, canceller, 10*time.Millisecond)
	w.Start()
	defer w.Stop()

	flag.Begin()
	require.Eventually(t, func() bool { return canceller.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	flag.End()

	flag.Begin()
	require.Eventually(t, func() bool { return canceller.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	flag.End()
}

func TestWatchdog_DefaultDelayWindow(t *testing.T) {
	t.Parallel()

	w := NewWatchdog(NewOutstanding(), &countingCanceller{}, WatchdogConfig{}, quietLogger())
	for i := 0; i < 200; i++ {
		d := w.delay()
		assert.GreaterOrEqual(t, d, DefaultWatchdogDelay)
		assert.Less(t, d, DefaultWatchdogDelay+DefaultWatchdogJitter)
	}
}
