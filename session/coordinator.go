package session

import (
	"context"
	"io"
	"log"
	"os"
	"syscall"
	"time"
)

// Process exit codes.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// DefaultShutdownGrace bounds how long a shutdown waits for the session loop
// to return after its outstanding call was aborted.
const DefaultShutdownGrace = 3 * time.Second

// Request is a termination request delivered to the Coordinator.
type Request int

const (
	// SoftInterrupt aborts the outstanding call, or shuts down when there
	// is none.
	SoftInterrupt Request = iota
	// HardTerminate always shuts down.
	HardTerminate
)

func (r Request) String() string {
	switch r {
	case SoftInterrupt:
		return "soft interrupt"
	case HardTerminate:
		return "hard terminate"
	}
	return "unknown request"
}

// RequestFor maps an OS signal onto a Request: SIGINT is a soft interrupt
// and SIGTERM a hard terminate.
func RequestFor(sig os.Signal) (Request, bool) {
	switch sig {
	case syscall.SIGINT:
		return SoftInterrupt, true
	case syscall.SIGTERM:
		return HardTerminate, true
	}
	return 0, false
}

// Transceiver is the part of the transport the coordinator drives.
type Transceiver interface {
	AbortCommand() error
	Close() error
}

// CoordinatorConfig wires a Coordinator to the components it shuts down.
// Only Flag and Transport are required.
type CoordinatorConfig struct {
	Flag      *Outstanding
	Transport Transceiver
	Watchdog  *Watchdog
	// SideChannel is the address relay, closed during shutdown.
	SideChannel io.Closer
	// CancelLoop cancels the session loop's context.
	CancelLoop context.CancelFunc
	// LoopDone is closed when the session loop has returned.
	LoopDone      <-chan struct{}
	ShutdownGrace time.Duration
	Logger        *log.Logger
}

// Coordinator turns termination requests into either an abort of the
// outstanding call or an orderly shutdown. It shares the cancellation
// primitive with the Watchdog.
type Coordinator struct {
	config CoordinatorConfig
	logger *log.Logger
	done   bool
}

// NewCoordinator creates a coordinator.
func NewCoordinator(config CoordinatorConfig) *Coordinator {
	if config.ShutdownGrace <= 0 {
		config.ShutdownGrace = DefaultShutdownGrace
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[coordinator] ", log.LstdFlags)
	}
	return &Coordinator{config: config, logger: logger}
}

// Run consumes signals until one of them ends the process and returns the
// exit code to use. A closed channel counts as a hard terminate.
func (c *Coordinator) Run(signals <-chan os.Signal) int {
	for sig := range signals {
		req, ok := RequestFor(sig)
		if !ok {
			c.logger.Printf("Ignoring signal %v", sig)
			continue
		}
		if exit, code := c.Handle(req); exit {
			return code
		}
	}
	_, code := c.Handle(HardTerminate)
	return code
}

// Handle applies req. It reports whether the process should exit and with
// which code.
func (c *Coordinator) Handle(req Request) (exit bool, code int) {
	if c.done {
		return true, ExitSuccess
	}

	switch req {
	case SoftInterrupt:
		issued, inFlight := c.config.Flag.CancelAny(c.abort)
		if inFlight {
			if issued {
				c.logger.Println("Interrupt: aborted the outstanding call")
			} else {
				c.logger.Println("Interrupt: outstanding call already being aborted")
			}
			return false, 0
		}
		c.logger.Println("Interrupt with no outstanding call, shutting down")
		c.shutdown()
		return true, ExitFailure
	default:
		c.logger.Println("Terminate requested, shutting down")
		c.shutdown()
		return true, ExitSuccess
	}
}

// shutdown stops the watchdog before anything it could act on is released,
// then stops the loop and closes the transport.
func (c *Coordinator) shutdown() {
	c.done = true

	if c.config.Watchdog != nil {
		c.config.Watchdog.Stop()
	}

	if c.config.SideChannel != nil {
		if err := c.config.SideChannel.Close(); err != nil {
			c.logger.Printf("Error closing address relay: %v", err)
		}
	}

	if c.config.CancelLoop != nil {
		c.config.CancelLoop()
	}
	c.config.Flag.CancelAny(c.abort)
	c.waitLoop()

	if err := c.config.Transport.Close(); err != nil {
		c.logger.Printf("Error closing NFC device: %v", err)
	}
	c.logger.Println("Shutdown complete")
}

// waitLoop waits for the session loop to return, aborting any call it
// starts before it notices the cancelled context.
func (c *Coordinator) waitLoop() {
	if c.config.LoopDone == nil {
		return
	}

	ticker := time.NewTicker(DefaultWatchdogPoll)
	defer ticker.Stop()
	deadline := time.NewTimer(c.config.ShutdownGrace)
	defer deadline.Stop()

	for {
		select {
		case <-c.config.LoopDone:
			return
		case <-deadline.C:
			c.logger.Printf("Session loop still busy after %v, closing the device anyway", c.config.ShutdownGrace)
			return
		case <-ticker.C:
			c.config.Flag.CancelAny(c.abort)
		}
	}
}

func (c *Coordinator) abort() {
	if err := c.config.Transport.AbortCommand(); err != nil {
		c.logger.Printf("Abort request not applied: %v", err)
	}
}
