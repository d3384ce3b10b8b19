// Package server exposes the agent to local applications: relayed addresses
// and attempt reports are broadcast over a WebSocket, GET /status describes
// the agent, and the service can be advertised over mDNS.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"

	"github.com/dotside-studios/nfc-handoff-agent/buildinfo"
	"github.com/dotside-studios/nfc-handoff-agent/protocol"
	"github.com/dotside-studios/nfc-handoff-agent/session"
)

// Config holds the server configuration.
type Config struct {
	// Port to listen on; 0 picks a free port.
	Port int
	// MDNS advertises the server as MDNSServiceType when set.
	MDNS bool

	// Reported by /status.
	Device     string
	Connection string
	Variant    string

	Logger *log.Logger
}

// Server broadcasts what the NFC session does to WebSocket clients. It is a
// relay sink and an attempt observer.
type Server struct {
	config   Config
	logger   *log.Logger
	hub      *hub
	upgrader websocket.Upgrader

	httpServer *http.Server
	listener   net.Listener
	mdnsServer *zeroconf.Server

	addrMu      sync.RWMutex
	lastAddress *protocol.AddressPayload

	closeOnce sync.Once
}

// New creates a server. Nothing listens until Start is called.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[server] ", log.LstdFlags)
	}
	return &Server{
		config: config,
		logger: logger,
		hub:    newHub(logger),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local tool, any origin
			},
		},
	}
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/status", enableCORS(s.handleStatus))
	mux.HandleFunc("/api/v1/health", enableCORS(s.handleHealthCheck))
	return mux
}

// Start listens on the configured port and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.config.Port, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.logger.Printf("Starting server on %s", ln.Addr())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("HTTP server error: %v", err)
		}
	}()

	if s.config.MDNS {
		if err := s.startMDNS(); err != nil {
			s.logger.Printf("Warning: Failed to start mDNS service: %v", err)
		}
	}
	return nil
}

// Addr returns the address the server listens on, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) port() int {
	if tcp, ok := s.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return s.config.Port
}

func (s *Server) startMDNS() error {
	txt := []string{
		"version=" + buildinfo.Version,
		"protocol=websocket",
		"path=/ws",
		"variant=" + s.config.Variant,
	}
	server, err := zeroconf.Register(MDNSServiceName, MDNSServiceType, MDNSDomain, s.port(), txt, nil)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}
	s.mdnsServer = server
	s.logger.Printf("mDNS service registered: %s %s on port %d", MDNSServiceName, MDNSServiceType, s.port())
	return nil
}

// Close stops mDNS, disconnects every client and shuts the HTTP server down.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.mdnsServer != nil {
			s.mdnsServer.Shutdown()
			s.mdnsServer = nil
		}
		s.hub.closeAll()
		if s.httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			err = s.httpServer.Shutdown(ctx)
		}
	})
	return err
}

// Relay broadcasts a received address. It never fails: a client that cannot
// be written to is dropped.
func (s *Server) Relay(addr []byte) error {
	payload := &protocol.AddressPayload{
		Address:    string(bytes.TrimRight(addr, "\x00")),
		Length:     len(addr),
		ReceivedAt: time.Now(),
	}
	s.addrMu.Lock()
	s.lastAddress = payload
	s.addrMu.Unlock()

	s.hub.broadcast(protocol.WebSocketMessage{
		Type:    protocol.WSTypeAddressReceived,
		Payload: payload,
	})
	return nil
}

// ObserveAttempt broadcasts an attempt report.
func (s *Server) ObserveAttempt(report session.AttemptReport) {
	s.hub.broadcast(protocol.WebSocketMessage{
		ID:      report.ID,
		Type:    protocol.WSTypeAttempt,
		Payload: report,
	})
}

// LastAddress returns the most recently relayed address, or nil.
func (s *Server) LastAddress() *protocol.AddressPayload {
	s.addrMu.RLock()
	defer s.addrMu.RUnlock()
	return s.lastAddress
}

// Status describes the agent.
func (s *Server) Status() protocol.StatusPayload {
	hosts, err := clientURLs(s.port())
	if err != nil {
		s.logger.Printf("Failed to list LAN addresses: %v", err)
		hosts = []string{}
	}
	return protocol.StatusPayload{
		Name:        buildinfo.Name,
		Version:     buildinfo.FullVersion(),
		Device:      s.config.Device,
		Connection:  s.config.Connection,
		Variant:     s.config.Variant,
		Hosts:       hosts,
		Clients:     s.hub.count(),
		LastAddress: s.LastAddress(),
	}
}

// enableCORS is a middleware that adds CORS headers to responses
func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", CORSAllowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", CORSAllowMethods)
		w.Header().Set("Access-Control-Allow-Headers", CORSAllowHeaders)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Status())
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleWebSocket upgrades the connection, sends the current status and
// keeps the client registered until it disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("WebSocket upgrade error: %v", err)
		return
	}

	c := s.hub.register(conn)
	s.logger.Printf("WebSocket client %s connected from %s", c.id, r.RemoteAddr)
	defer func() {
		s.hub.unregister(c)
		conn.Close()
		s.logger.Printf("WebSocket client %s disconnected", c.id)
	}()

	status := s.Status()
	status.ClientID = c.id
	if err := c.write(protocol.WebSocketMessage{Type: protocol.WSTypeStatus, Payload: status}); err != nil {
		return
	}

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var req protocol.WebSocketRequest
		if err := json.Unmarshal(message, &req); err != nil {
			s.sendError(c, "", protocol.ErrCodeParse, "Invalid message format")
			continue
		}
		switch req.Type {
		case protocol.WSTypeStatus:
			status := s.Status()
			status.ClientID = c.id
			c.write(protocol.WebSocketResponse{
				ID:      req.ID,
				Type:    protocol.WSTypeStatus,
				Success: true,
				Payload: status,
			})
		default:
			s.sendError(c, req.ID, protocol.ErrCodeUnknownType, fmt.Sprintf("Unknown message type: %s", req.Type))
		}
	}
}

func (s *Server) sendError(c *client, requestID, code, message string) {
	err := c.write(protocol.WebSocketResponse{
		ID:      requestID,
		Type:    protocol.WSTypeError,
		Success: false,
		Error:   message,
		Payload: protocol.ErrorPayload{Code: code},
	})
	if err != nil {
		s.logger.Printf("Failed to send error response: %v", err)
	}
}
