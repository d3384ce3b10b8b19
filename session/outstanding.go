// Package session drives the alternating initiator/target NFC session and
// the supervision around its blocking transport calls.
package session

import "sync"

// Outstanding tracks whether a blocking transport call is in flight.
//
// Every Begin/End pair is one episode with its own number. Cancellation goes
// through CancelEpisode or CancelAny, which hold the same lock as End: a
// cancel is therefore issued only while the episode's call is still in
// flight, and at most once per episode.
type Outstanding struct {
	mu        sync.Mutex
	active    bool
	episode   uint64
	cancelled bool
	changed   chan struct{}
}

// NewOutstanding creates a cleared flag.
func NewOutstanding() *Outstanding {
	return &Outstanding{changed: make(chan struct{})}
}

// Begin marks a blocking call as started and returns its episode number.
func (o *Outstanding) Begin() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.episode++
	o.active = true
	o.cancelled = false
	o.notify()
	return o.episode
}

// End clears the flag. It must be called once the blocking call returns,
// whatever its outcome. It reports whether a cancellation was issued during
// the episode.
func (o *Outstanding) End() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.active = false
	o.notify()
	return o.cancelled
}

// Active returns the current episode and whether its call is in flight.
func (o *Outstanding) Active() (uint64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.episode, o.active
}

// Changed returns a channel that is closed at the next Begin or End.
func (o *Outstanding) Changed() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.changed
}

// CancelEpisode runs cancel if episode is still in flight and has not been
// cancelled yet. It reports whether cancel ran.
func (o *Outstanding) CancelEpisode(episode uint64, cancel func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.active || o.episode != episode || o.cancelled {
		return false
	}
	o.cancelled = true
	cancel()
	return true
}

// CancelAny cancels whichever episode is in flight. The second result is
// true when a call was in flight, even if it had already been cancelled.
func (o *Outstanding) CancelAny(cancel func()) (issued, inFlight bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.active {
		return false, false
	}
	if o.cancelled {
		return false, true
	}
	o.cancelled = true
	cancel()
	return true, true
}

func (o *Outstanding) notify() {
	close(o.changed)
	o.changed = make(chan struct{})
}
