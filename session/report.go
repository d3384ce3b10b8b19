package session

import (
	"errors"
	"time"

	"github.com/dotside-studios/nfc-handoff-agent/emulator"
	"github.com/dotside-studios/nfc-handoff-agent/nfc"
)

// Outcome classifies how one phase of an attempt ended.
type Outcome string

const (
	OutcomeSkipped      Outcome = "skipped"
	OutcomeCompleted    Outcome = "completed"
	OutcomeNoPeer       Outcome = "no-peer"
	OutcomeTimeout      Outcome = "timeout"
	OutcomeAborted      Outcome = "aborted"
	OutcomeReleased     Outcome = "released"
	OutcomeHalted       Outcome = "halted"
	OutcomeNotSupported Outcome = "not-supported"
	OutcomeNoSpace      Outcome = "no-space"
	OutcomeIOError      Outcome = "io-error"
	OutcomeFailed       Outcome = "failed"
)

// Normal reports whether the outcome is an expected end of a phase rather
// than a failure.
func (o Outcome) Normal() bool {
	switch o {
	case OutcomeCompleted, OutcomeHalted, OutcomeNoPeer, OutcomeSkipped:
		return true
	}
	return false
}

// Classify maps a phase error onto an Outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeCompleted
	case errors.Is(err, emulator.ErrHalted):
		return OutcomeHalted
	case errors.Is(err, emulator.ErrNoSpace):
		return OutcomeNoSpace
	case errors.Is(err, emulator.ErrNotSupported), errors.Is(err, emulator.ErrBlockOutOfRange):
		return OutcomeNotSupported
	case nfc.IsAbortedError(err):
		return OutcomeAborted
	case nfc.IsTimeoutError(err):
		return OutcomeTimeout
	case nfc.IsNoPeerError(err):
		return OutcomeNoPeer
	case nfc.GetErrorCode(err) == nfc.ErrCodeTargetReleased:
		return OutcomeReleased
	case nfc.IsIOError(err):
		return OutcomeIOError
	default:
		return OutcomeFailed
	}
}

// PhaseResult is the result of the initiator or the target half of an attempt.
type PhaseResult struct {
	Outcome Outcome `json:"outcome"`
	// Op names the transport or dispatcher step that failed.
	Op    string `json:"op,omitempty"`
	Error string `json:"error,omitempty"`
	Peer  string `json:"peer,omitempty"`
	// Frames counts the frames received from the peer.
	Frames int `json:"frames"`
	// Reply holds the initiator's view of the peer's answer.
	Reply string `json:"reply,omitempty"`

	err error
}

// Err returns the error that ended the phase, if any.
func (r PhaseResult) Err() error { return r.err }

func (r *PhaseResult) fail(op string, err error) {
	r.Outcome = Classify(err)
	r.Op = op
	r.Error = err.Error()
	r.err = err
}

// AttemptReport describes one pass of the session loop: an initiator
// attempt followed by a target attempt.
type AttemptReport struct {
	ID        string        `json:"id"`
	Variant   Variant       `json:"variant"`
	Initiator PhaseResult   `json:"initiator"`
	Target    PhaseResult   `json:"target"`
	Relayed   int           `json:"relayed"`
	Started   time.Time     `json:"started"`
	Duration  time.Duration `json:"duration"`
}

// bothIOFailed reports whether both phases failed on the device itself,
// which usually means the reader went away.
func (r AttemptReport) bothIOFailed() bool {
	return r.Initiator.Outcome == OutcomeIOError && r.Target.Outcome == OutcomeIOError
}
