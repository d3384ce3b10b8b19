// Command nfc-handoff-agent exchanges a Bluetooth address with a nearby NFC
// peer. It alternates between pushing its own address as initiator and
// waiting as a target for the peer's address, which it relays to a named
// pipe and to local WebSocket clients.
//
// The agent is configured through the environment (see config.go) and runs
// until SIGTERM, or until SIGINT arrives while no NFC call is in flight.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dotside-studios/nfc-handoff-agent/buildinfo"
	"github.com/dotside-studios/nfc-handoff-agent/session"
)

func main() {
	logger := log.New(os.Stderr, "[agent] ", log.LstdFlags)
	logger.Printf("%s %s: %s", buildinfo.Name, buildinfo.FullVersion(), buildinfo.Description)

	config, err := LoadConfig(os.LookupEnv)
	if err != nil {
		logger.Printf("Configuration error: %v", err)
		os.Exit(session.ExitFailure)
	}

	agent := NewAgent(config, logger)
	if err := agent.Setup(); err != nil {
		logger.Printf("Setup failed: %v", err)
		os.Exit(session.ExitFailure)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	agent.Start()
	os.Exit(agent.Coordinator().Run(sigChan))
}
