package session

import (
	"log"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Watchdog timings.
const (
	DefaultWatchdogPoll   = 25 * time.Millisecond
	DefaultWatchdogDelay  = 2500 * time.Millisecond
	DefaultWatchdogJitter = 500 * time.Millisecond
)

// Canceller is the part of a transport the watchdog is allowed to touch.
type Canceller interface {
	AbortCommand() error
}

// WatchdogConfig tunes a Watchdog. Zero fields take the defaults.
type WatchdogConfig struct {
	// PollInterval bounds how long a flag change can go unnoticed.
	PollInterval time.Duration
	// Delay is the minimum time a call may stay in flight before it is
	// cancelled.
	Delay time.Duration
	// Jitter is the width of the random window added to Delay. A negative
	// value disables it.
	Jitter time.Duration
}

func (c WatchdogConfig) withDefaults() WatchdogConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultWatchdogPoll
	}
	if c.Delay <= 0 {
		c.Delay = DefaultWatchdogDelay
	}
	if c.Jitter == 0 {
		c.Jitter = DefaultWatchdogJitter
	} else if c.Jitter < 0 {
		c.Jitter = 0
	}
	return c
}

// Watchdog cancels a blocking transport call that stays in flight for longer
// than a randomized delay. It issues at most one cancellation per episode of
// the Outstanding flag and never cancels a call that has already returned.
type Watchdog struct {
	flag      *Outstanding
	canceller Canceller
	config    WatchdogConfig
	logger    *log.Logger

	// delay draws the wait before a cancellation; replaced in tests.
	delay func() time.Duration

	cancels  atomic.Int64
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWatchdog creates a watchdog supervising flag. Call Start to run it.
func NewWatchdog(flag *Outstanding, canceller Canceller, config WatchdogConfig, logger *log.Logger) *Watchdog {
	if logger == nil {
		logger = log.New(os.Stderr, "[watchdog] ", log.LstdFlags)
	}
	config = config.withDefaults()
	w := &Watchdog{
		flag:      flag,
		canceller: canceller,
		config:    config,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
	w.delay = func() time.Duration {
		if config.Jitter == 0 {
			return config.Delay
		}
		return config.Delay + rand.N(config.Jitter)
	}
	return w
}

// Start runs the watchdog in its own goroutine.
func (w *Watchdog) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop asks the watchdog to exit and waits until it has. A cancellation
// decision in progress either completes before Stop returns or is dropped.
func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
}

// Cancels returns how many cancellations the watchdog has issued.
func (w *Watchdog) Cancels() int64 {
	return w.cancels.Load()
}

func (w *Watchdog) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	var handled uint64
	for {
		changed := w.flag.Changed()
		episode, active := w.flag.Active()

		if !active || episode == handled {
			select {
			case <-w.stopChan:
				return
			case <-changed:
			case <-ticker.C:
			}
			continue
		}

		handled = episode
		if !w.waitEpisode(episode) {
			select {
			case <-w.stopChan:
				return
			default:
			}
			continue
		}

		if w.flag.CancelEpisode(episode, w.abort) {
			w.cancels.Add(1)
		}
	}
}

// waitEpisode sleeps the randomized delay. It returns false early when the
// episode ends or the watchdog is stopped.
func (w *Watchdog) waitEpisode(episode uint64) bool {
	timer := time.NewTimer(w.delay())
	defer timer.Stop()

	for {
		changed := w.flag.Changed()
		if current, active := w.flag.Active(); !active || current != episode {
			return false
		}
		select {
		case <-w.stopChan:
			return false
		case <-timer.C:
			return true
		case <-changed:
		}
	}
}

// abort runs under the flag lock, while the episode's call is in flight.
func (w *Watchdog) abort() {
	w.logger.Println("Blocking call outstanding for too long, aborting it")
	if err := w.canceller.AbortCommand(); err != nil {
		// the call may have completed on its own in the meantime
		w.logger.Printf("Abort request not applied: %v", err)
	}
}
