package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dotside-studios/nfc-handoff-agent/nfc"
	"github.com/dotside-studios/nfc-handoff-agent/nfc/libnfc"
	"github.com/dotside-studios/nfc-handoff-agent/nfc/pn532"
	"github.com/dotside-studios/nfc-handoff-agent/relay"
	"github.com/dotside-studios/nfc-handoff-agent/server"
	"github.com/dotside-studios/nfc-handoff-agent/session"
)

// Agent builds and owns every component of the process: the transport, the
// session loop, the watchdog, the relay sinks and the optional server.
type Agent struct {
	Logger *log.Logger
	Config Config
	// Manager opens the transport. When nil it is chosen from Config.Device.
	Manager nfc.Manager

	Transport nfc.Transport
	Flag      *session.Outstanding
	Session   *session.Session
	Watchdog  *session.Watchdog
	Sinks     relay.Multi
	Server    *server.Server

	cancel   context.CancelFunc
	loopDone chan struct{}
}

func NewAgent(config Config, logger *log.Logger) *Agent {
	if logger == nil {
		logger = log.New(os.Stderr, "[agent] ", log.LstdFlags)
	}
	return &Agent{
		Logger:   logger,
		Config:   config,
		Flag:     session.NewOutstanding(),
		loopDone: make(chan struct{}),
	}
}

// managerFor picks the backend for a connection string.
func managerFor(device string, logger *log.Logger) nfc.Manager {
	if pn532.IsConnection(device) {
		return pn532.NewManager(logger)
	}
	return libnfc.NewManager(logger)
}

// Setup opens the device and wires the components. Any error is a setup
// failure: nothing is left open when it returns one.
func (a *Agent) Setup() (err error) {
	if a.Manager == nil {
		a.Manager = managerFor(a.Config.Device, a.Logger)
	}

	defer func() {
		if err != nil {
			a.release()
		}
	}()

	a.Transport, err = a.Manager.OpenTransport(a.Config.Device)
	if err != nil {
		return fmt.Errorf("failed to open NFC device: %w", err)
	}
	a.Logger.Printf("NFC device: %s opened (%s)", a.Transport.String(), a.Transport.Connection())

	a.Session, err = session.New(a.Transport, a.Flag, session.Config{
		Variant: session.Variant(a.Config.Mode),
		Payload: []byte(a.Config.Address),
		Logger:  a.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	if a.Config.PipeEnabled() {
		fifo, err := relay.NewFIFO(a.Config.AddressPipe, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to create address pipe: %w", err)
		}
		a.Sinks = append(a.Sinks, fifo)
	}

	if a.Config.Port != 0 {
		a.Server = server.New(server.Config{
			Port:       a.Config.Port,
			MDNS:       a.Config.MDNS,
			Device:     a.Transport.String(),
			Connection: a.Transport.Connection(),
			Variant:    string(a.Session.Variant()),
			Logger:     a.Logger,
		})
		if err := a.Server.Start(); err != nil {
			// the handoff works without local clients
			a.Logger.Printf("Warning: server disabled: %v", err)
			a.Server = nil
		} else {
			a.Sinks = append(a.Sinks, a.Server)
			a.Session.SetObserver(a.Server.ObserveAttempt)
		}
	}
	if len(a.Sinks) > 0 {
		a.Session.SetSink(a.Sinks)
	}

	a.Watchdog = session.NewWatchdog(a.Flag, a.Transport, session.WatchdogConfig{}, a.Logger)
	return nil
}

func (a *Agent) release() {
	if err := a.Sinks.Close(); err != nil {
		a.Logger.Printf("Error closing relay: %v", err)
	}
	a.Sinks = nil
	if a.Transport != nil {
		a.Transport.Close()
		a.Transport = nil
	}
}

// Start runs the watchdog and the session loop in the background.
func (a *Agent) Start() {
	a.Watchdog.Start()

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	go func() {
		defer close(a.loopDone)
		a.Session.Run(ctx)
	}()
}

// Coordinator returns the termination coordinator for the started agent.
func (a *Agent) Coordinator() *session.Coordinator {
	config := session.CoordinatorConfig{
		Flag:       a.Flag,
		Transport:  a.Transport,
		Watchdog:   a.Watchdog,
		CancelLoop: a.cancel,
		LoopDone:   a.loopDone,
		Logger:     a.Logger,
	}
	if len(a.Sinks) > 0 {
		config.SideChannel = a.Sinks
	}
	return session.NewCoordinator(config)
}
