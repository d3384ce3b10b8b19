// Package protocol holds the messages the agent sends to WebSocket clients.
// It has no dependency on the server so that consumers can import it.
package protocol

import "time"

// AddressPayload is broadcast when a peer handed over its address.
type AddressPayload struct {
	// Address is the received address with trailing NUL padding removed.
	Address string `json:"address"`
	// Length is the size of the frame as received.
	Length     int       `json:"length"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// StatusPayload describes the running agent. It is served by GET /status and
// sent to every client right after it connects.
type StatusPayload struct {
	Name       string   `json:"name"`
	Version    string   `json:"version"`
	Device     string   `json:"device"`
	Connection string   `json:"connection"`
	Variant    string   `json:"variant"`
	Hosts      []string `json:"hosts"`
	Clients    int      `json:"clients"`
	// ClientID is only set in the status sent over a WebSocket.
	ClientID    string          `json:"clientId,omitempty"`
	LastAddress *AddressPayload `json:"lastAddress,omitempty"`
}

// ErrorPayload carries a machine readable code with an error response.
type ErrorPayload struct {
	Code string `json:"code"`
}

// Error codes for WSTypeError responses.
const (
	ErrCodeParse       = "PARSE_ERROR"
	ErrCodeUnknownType = "UNKNOWN_TYPE"
)
