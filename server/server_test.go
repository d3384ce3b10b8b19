package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotside-studios/nfc-handoff-agent/buildinfo"
	"github.com/dotside-studios/nfc-handoff-agent/protocol"
	"github.com/dotside-studios/nfc-handoff-agent/session"
)

type rawMessage struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(Config{
		Device:     "Mock NFC Transceiver",
		Connection: "mock:usb:001",
		Variant:    "dep",
		Logger:     log.New(io.Discard, "", 0),
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) rawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg rawMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketBroadcast(t *testing.T) {
	t.Parallel()

	s, ts := newTestServer(t)
	conn := dial(t, ts)

	hello := readMessage(t, conn)
	require.Equal(t, protocol.WSTypeStatus, hello.Type)
	var status protocol.StatusPayload
	require.NoError(t, json.Unmarshal(hello.Payload, &status))
	assert.NotEmpty(t, status.ClientID)
	assert.Equal(t, "dep", status.Variant)
	assert.Equal(t, 1, status.Clients)
	assert.Nil(t, status.LastAddress)

	require.NoError(t, s.Relay([]byte("11:22:33:44:55:66\x00\x00\x00")))
	msg := readMessage(t, conn)
	require.Equal(t, protocol.WSTypeAddressReceived, msg.Type)
	var addr protocol.AddressPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &addr))
	assert.Equal(t, "11:22:33:44:55:66", addr.Address)
	assert.Equal(t, 20, addr.Length)

	s.ObserveAttempt(session.AttemptReport{
		ID:        "attempt-1",
		Variant:   session.VariantDEP,
		Initiator: session.PhaseResult{Outcome: session.OutcomeNoPeer},
		Target:    session.PhaseResult{Outcome: session.OutcomeCompleted, Frames: 1},
		Relayed:   20,
	})
	msg = readMessage(t, conn)
	require.Equal(t, protocol.WSTypeAttempt, msg.Type)
	assert.Equal(t, "attempt-1", msg.ID)
	var report session.AttemptReport
	require.NoError(t, json.Unmarshal(msg.Payload, &report))
	assert.Equal(t, session.OutcomeNoPeer, report.Initiator.Outcome)
	assert.Equal(t, 20, report.Relayed)
}

func TestWebSocketRequests(t *testing.T) {
	t.Parallel()

	s, ts := newTestServer(t)
	require.NoError(t, s.Relay([]byte("AA:BB:CC:DD:EE:FF")))

	conn := dial(t, ts)
	hello := readMessage(t, conn)
	var status protocol.StatusPayload
	require.NoError(t, json.Unmarshal(hello.Payload, &status))
	require.NotNil(t, status.LastAddress)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", status.LastAddress.Address)

	require.NoError(t, conn.WriteJSON(protocol.WebSocketRequest{ID: "req-1", Type: protocol.WSTypeStatus}))
	resp := readMessage(t, conn)
	assert.Equal(t, "req-1", resp.ID)
	assert.Equal(t, protocol.WSTypeStatus, resp.Type)
	assert.True(t, resp.Success)

	require.NoError(t, conn.WriteJSON(protocol.WebSocketRequest{ID: "req-2", Type: "writeRequest"}))
	resp = readMessage(t, conn)
	assert.Equal(t, protocol.WSTypeError, resp.Type)
	assert.Equal(t, "req-2", resp.ID)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "writeRequest")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	resp = readMessage(t, conn)
	assert.Equal(t, protocol.WSTypeError, resp.Type)
	var errPayload protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(resp.Payload, &errPayload))
	assert.Equal(t, protocol.ErrCodeParse, errPayload.Code)
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()

	s, ts := newTestServer(t)
	require.NoError(t, s.Relay([]byte("11:22:33:44:55:66")))

	res, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, CORSAllowOrigin, res.Header.Get("Access-Control-Allow-Origin"))

	var status protocol.StatusPayload
	require.NoError(t, json.NewDecoder(res.Body).Decode(&status))
	assert.Equal(t, buildinfo.Name, status.Name)
	assert.Equal(t, "Mock NFC Transceiver", status.Device)
	assert.Equal(t, "mock:usb:001", status.Connection)
	assert.NotNil(t, status.Hosts)
	require.NotNil(t, status.LastAddress)
	assert.Equal(t, "11:22:33:44:55:66", status.LastAddress.Address)
	assert.Empty(t, status.ClientID)

	post, err := http.Post(ts.URL+"/status", "application/json", nil)
	require.NoError(t, err)
	post.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, post.StatusCode)
}

func TestCloseDisconnectsClients(t *testing.T) {
	t.Parallel()

	s, ts := newTestServer(t)
	conn := dial(t, ts)
	readMessage(t, conn)

	require.NoError(t, s.Close())
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	// broadcasting with no clients is harmless
	assert.NoError(t, s.Relay([]byte("11:22:33:44:55:66")))
	assert.NoError(t, s.Close())
}

func TestStartListens(t *testing.T) {
	t.Parallel()

	s := New(Config{Port: 0, Logger: log.New(io.Discard, "", 0)})
	require.NoError(t, s.Start())
	defer s.Close()

	addr, ok := s.Addr().(*net.TCPAddr)
	require.True(t, ok)
	res, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", addr.Port))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
