package server

import (
	"time"

	"github.com/dotside-studios/nfc-handoff-agent/buildinfo"
)

// mDNS service discovery
var (
	MDNSServiceType = "_nfc-handoff._tcp"
	MDNSServiceName = buildinfo.Name
	MDNSDomain      = "local."
)

// DefaultPort is the HTTP/WebSocket port used when none is configured.
const DefaultPort = 18090

// writeWait bounds a single write to a WebSocket client.
const writeWait = 5 * time.Second

// CORS configuration
const (
	CORSAllowOrigin  = "*"
	CORSAllowMethods = "GET, OPTIONS"
	CORSAllowHeaders = "Content-Type, Authorization"
)
