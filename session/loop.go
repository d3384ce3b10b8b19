package session

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/dotside-studios/nfc-handoff-agent/emulator"
	"github.com/dotside-studios/nfc-handoff-agent/nfc"
)

// Variant selects what the session does in each role.
type Variant string

const (
	// VariantDEP pushes the address to a D.E.P. peer as initiator and
	// receives the peer's address as D.E.P. target.
	VariantDEP Variant = "dep"
	// VariantTag polls for nearby tags as initiator and emulates a read-only
	// NFC Forum Type 2 tag carrying the address as target.
	VariantTag Variant = "tag"
)

// ParseVariant parses a variant name. The empty string selects VariantDEP.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case "", VariantDEP:
		return VariantDEP, nil
	case VariantTag:
		return VariantTag, nil
	}
	return "", fmt.Errorf("unknown session variant %q (want %q or %q)", s, VariantDEP, VariantTag)
}

// Session timings and limits.
const (
	DefaultSelectTimeout  = 1000 * time.Millisecond
	DefaultPollRounds     = 20
	DefaultPollPeriod     = 2
	DefaultPostErrorPause = 1 * time.Second

	// RelayThreshold is the shortest received frame that is forwarded to
	// the address sink.
	RelayThreshold = emulator.AddressLen
)

// DEPAcknowledgment is sent back to a D.E.P. initiator after its frame was
// received. The trailing NUL is part of the payload.
var DEPAcknowledgment = []byte("Address received!\x00")

// AddressSink receives addresses relayed by the session.
type AddressSink interface {
	Relay(addr []byte) error
}

// Config configures a Session. Zero fields take the defaults.
type Config struct {
	Variant Variant
	// Payload is the address sent as initiator and served by the emulated tag.
	Payload []byte

	SelectTimeout time.Duration
	// TargetTimeout bounds each target-side call. 0 blocks until a peer
	// shows up or the call is aborted.
	TargetTimeout  time.Duration
	PollRounds     byte
	PollPeriod     byte
	PostErrorPause time.Duration

	Logger *log.Logger
}

// Session is the foreground loop alternating between the initiator and the
// target role on a single transport. It is the only goroutine performing
// I/O on the transport.
type Session struct {
	transport  nfc.Transport
	flag       *Outstanding
	config     Config
	dispatcher *emulator.Dispatcher
	sink       AddressSink
	observer   func(AttemptReport)
	logger     *log.Logger
}

// New creates a session on transport. Blocking calls are published on flag
// so that a Watchdog or Coordinator can abort them.
func New(transport nfc.Transport, flag *Outstanding, config Config) (*Session, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport cannot be nil")
	}
	if len(config.Payload) == 0 {
		return nil, fmt.Errorf("address payload cannot be empty")
	}
	if len(config.Payload) > nfc.MaxFrameLen {
		return nil, fmt.Errorf("address payload of %d bytes exceeds the %d byte frame limit", len(config.Payload), nfc.MaxFrameLen)
	}
	variant, err := ParseVariant(string(config.Variant))
	if err != nil {
		return nil, err
	}
	config.Variant = variant
	if config.SelectTimeout <= 0 {
		config.SelectTimeout = DefaultSelectTimeout
	}
	if config.PollRounds == 0 {
		config.PollRounds = DefaultPollRounds
	}
	if config.PollPeriod == 0 {
		config.PollPeriod = DefaultPollPeriod
	}
	if config.PostErrorPause < 0 {
		config.PostErrorPause = 0
	} else if config.PostErrorPause == 0 {
		config.PostErrorPause = DefaultPostErrorPause
	}
	if flag == nil {
		flag = NewOutstanding()
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[session] ", log.LstdFlags)
	}

	s := &Session{
		transport: transport,
		flag:      flag,
		config:    config,
		logger:    logger,
	}

	if variant == VariantTag {
		mem, err := emulator.NewForumTag2Image(string(config.Payload))
		if err != nil {
			return nil, fmt.Errorf("failed to build tag image: %w", err)
		}
		s.dispatcher = emulator.NewDispatcher(mem)
	}
	return s, nil
}

// SetSink sets where received addresses are relayed. A nil sink disables
// relaying.
func (s *Session) SetSink(sink AddressSink) { s.sink = sink }

// SetObserver registers a function called with the report of every attempt.
// It runs on the session goroutine.
func (s *Session) SetObserver(fn func(AttemptReport)) { s.observer = fn }

// Flag returns the outstanding flag the session publishes its blocking
// calls on.
func (s *Session) Flag() *Outstanding { return s.flag }

// Variant returns the configured variant.
func (s *Session) Variant() Variant { return s.config.Variant }

// Dispatcher returns the tag dispatcher, or nil for the D.E.P. variant.
func (s *Session) Dispatcher() *emulator.Dispatcher { return s.dispatcher }

// Run loops over attempts until ctx is cancelled. No attempt error ends the
// loop. A blocking call in flight when ctx is cancelled keeps the loop alive
// until it is aborted.
func (s *Session) Run(ctx context.Context) {
	s.logger.Printf("Session loop started on %s (%s variant)", s.transport.String(), s.config.Variant)
	defer s.logger.Println("Session loop stopped")

	for ctx.Err() == nil {
		report := s.RunAttempt(ctx)
		if s.observer != nil {
			s.observer(report)
		}

		if report.bothIOFailed() && s.config.PostErrorPause > 0 {
			s.logger.Printf("Device errors in both roles, pausing for %v", s.config.PostErrorPause)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.config.PostErrorPause):
			}
		}
	}
}

// RunAttempt performs one initiator attempt followed by one target attempt.
func (s *Session) RunAttempt(ctx context.Context) AttemptReport {
	report := AttemptReport{
		ID:      uuid.NewString(),
		Variant: s.config.Variant,
		Started: time.Now(),
	}

	switch s.config.Variant {
	case VariantTag:
		report.Initiator = s.pollTags(ctx)
	default:
		report.Initiator = s.pushAddress(ctx)
	}

	if ctx.Err() != nil {
		report.Target.Outcome = OutcomeSkipped
	} else {
		switch s.config.Variant {
		case VariantTag:
			report.Target, report.Relayed = s.emulateTag(ctx)
		default:
			report.Target, report.Relayed = s.receiveAddress(ctx)
		}
	}

	report.Duration = time.Since(report.Started)
	return report
}

// guarded runs a blocking transport call with the outstanding flag raised.
// The flag is lowered when the call returns, whatever its outcome. A
// cancellation that landed after the call had already returned is dropped
// so it cannot abort the next call.
func (s *Session) guarded(ctx context.Context, op string, call func() error) error {
	s.flag.Begin()
	defer func() {
		if s.flag.End() {
			if d, ok := s.transport.(nfc.AbortDiscarder); ok {
				d.DiscardAbort()
			}
		}
	}()

	if ctx.Err() != nil {
		return nfc.NewAbortedError(op)
	}
	return call()
}

func (s *Session) logFailure(op string, err error) {
	if nfc.IsExpectedMiss(err) {
		s.logger.Printf("%s: %v", op, err)
		return
	}
	s.logger.Printf("%s failed: %v", op, err)
}

// pushAddress is the D.E.P. initiator role: select a peer, send the address
// and print the reply.
func (s *Session) pushAddress(ctx context.Context) PhaseResult {
	var res PhaseResult

	if err := s.transport.InitiatorInit(); err != nil {
		s.logFailure("initiator init", err)
		res.fail("InitiatorInit", err)
		return res
	}
	s.logger.Println("NFC device: initiator mode")

	var peer *nfc.Peer
	err := s.guarded(ctx, "InitiatorSelectDEP", func() error {
		var err error
		peer, err = s.transport.InitiatorSelectDEP(nfc.DEPPassive, nfc.Baud212, s.config.SelectTimeout)
		return err
	})
	if err == nil && peer == nil {
		err = nfc.NewNoPeerError("InitiatorSelectDEP")
	}
	if err != nil {
		s.logFailure("initiator select D.E.P. target", err)
		res.fail("InitiatorSelectDEP", err)
		return res
	}
	res.Peer = s.transport.Describe(peer, false)
	s.logger.Printf("D.E.P. peer selected: %s", res.Peer)

	s.logger.Printf("Sending: %s", s.config.Payload)
	var rx []byte
	err = s.guarded(ctx, "InitiatorTransceive", func() error {
		var err error
		rx, err = s.transport.InitiatorTransceive(s.config.Payload, nfc.MaxFrameLen, 0)
		return err
	})
	if err != nil {
		s.logFailure("initiator transceive", err)
		res.fail("InitiatorTransceive", err)
		s.deselect()
		return res
	}
	res.Frames = 1
	res.Reply = printable(rx)
	s.logger.Printf("Received: %s", res.Reply)

	if err := s.transport.InitiatorDeselect(); err != nil {
		s.logFailure("initiator deselect", err)
		res.fail("InitiatorDeselect", err)
		return res
	}
	res.Outcome = OutcomeCompleted
	return res
}

func (s *Session) deselect() {
	if err := s.transport.InitiatorDeselect(); err != nil {
		s.logger.Printf("initiator deselect after failure: %v", err)
	}
}

// pollTags is the tag initiator role: probe the usual modulations and
// describe whatever answered.
func (s *Session) pollTags(ctx context.Context) PhaseResult {
	var res PhaseResult

	if err := s.transport.InitiatorInit(); err != nil {
		s.logFailure("initiator init", err)
		res.fail("InitiatorInit", err)
		return res
	}

	var peer *nfc.Peer
	err := s.guarded(ctx, "InitiatorPoll", func() error {
		var err error
		peer, err = s.transport.InitiatorPoll(nfc.DefaultPollModulations(), s.config.PollRounds, s.config.PollPeriod)
		return err
	})
	if err != nil {
		s.logFailure("initiator poll", err)
		res.fail("InitiatorPoll", err)
		return res
	}
	if peer == nil {
		s.logger.Println("No target found")
		res.Outcome = OutcomeNoPeer
		return res
	}

	res.Peer = s.transport.Describe(peer, true)
	res.Frames = 1
	s.logger.Printf("Found target: %s", res.Peer)
	res.Outcome = OutcomeCompleted
	return res
}

// receiveAddress is the D.E.P. target role: wait for an initiator, receive
// its frame, relay it and acknowledge it.
func (s *Session) receiveAddress(ctx context.Context) (PhaseResult, int) {
	var res PhaseResult
	timeout := s.config.TargetTimeout

	s.logger.Println("NFC device: target mode, waiting for initiator request...")
	err := s.guarded(ctx, "TargetInit", func() error {
		_, err := s.transport.TargetInit(nfc.DefaultDEPTarget(), nfc.MaxFrameLen, timeout)
		return err
	})
	if err != nil {
		s.logFailure("target init", err)
		res.fail("TargetInit", err)
		return res, 0
	}

	s.logger.Println("Initiator request received. Waiting for data...")
	var rx []byte
	err = s.guarded(ctx, "TargetReceive", func() error {
		var err error
		rx, err = s.transport.TargetReceive(nfc.MaxFrameLen, timeout)
		return err
	})
	if err != nil {
		s.logFailure("target receive", err)
		res.fail("TargetReceive", err)
		return res, 0
	}
	res.Frames = 1
	s.logger.Printf("Received: %s", printable(rx))
	relayed := s.relay(rx)

	s.logger.Printf("Sending: %s", printable(DEPAcknowledgment))
	err = s.guarded(ctx, "TargetSend", func() error {
		return s.transport.TargetSend(DEPAcknowledgment, timeout)
	})
	if err != nil {
		s.logFailure("target send", err)
		res.fail("TargetSend", err)
		return res, relayed
	}
	s.logger.Println("Data sent")
	res.Outcome = OutcomeCompleted
	return res, relayed
}

// emulateTag is the tag target role: answer the initiator's commands from
// the tag image until it halts or something fails.
func (s *Session) emulateTag(ctx context.Context) (PhaseResult, int) {
	var res PhaseResult
	timeout := s.config.TargetTimeout
	out := make([]byte, nfc.MaxFrameLen)
	relayed := 0

	s.logger.Println("Emulating NFC Forum Type 2 tag, waiting for initiator...")
	var cmd []byte
	err := s.guarded(ctx, "TargetInit", func() error {
		var err error
		cmd, err = s.transport.TargetInit(nfc.DefaultTag2Target(), nfc.MaxFrameLen, timeout)
		return err
	})
	if err != nil {
		s.logFailure("target init", err)
		res.fail("TargetInit", err)
		return res, 0
	}

	for {
		res.Frames++
		relayed += s.relay(cmd)

		n, err := s.dispatcher.Handle(cmd, out)
		if err != nil {
			res.fail("Dispatch", err)
			if res.Outcome == OutcomeHalted {
				s.logger.Println("Initiator halted the tag")
			} else {
				s.logFailure("tag command", err)
			}
			return res, relayed
		}

		if n > 0 {
			err = s.guarded(ctx, "TargetSend", func() error {
				return s.transport.TargetSend(out[:n], timeout)
			})
			if err != nil {
				s.logFailure("target send", err)
				res.fail("TargetSend", err)
				return res, relayed
			}
		}

		err = s.guarded(ctx, "TargetReceive", func() error {
			var err error
			cmd, err = s.transport.TargetReceive(nfc.MaxFrameLen, timeout)
			return err
		})
		if err != nil {
			s.logFailure("target receive", err)
			res.fail("TargetReceive", err)
			return res, relayed
		}
	}
}

// relay forwards rx to the sink when it is long enough to hold an address.
// It returns the number of bytes relayed.
func (s *Session) relay(rx []byte) int {
	if len(rx) < RelayThreshold || s.sink == nil {
		return 0
	}
	if err := s.sink.Relay(rx); err != nil {
		s.logFailure("relay address", err)
		return 0
	}
	return len(rx)
}

// printable renders a frame received as text, stopping at the first NUL.
func printable(p []byte) string {
	if i := bytes.IndexByte(p, 0); i >= 0 {
		p = p[:i]
	}
	return string(p)
}
