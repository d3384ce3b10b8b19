package protocol

// WebSocket message types.
const (
	// WSTypeAddressReceived carries an AddressPayload.
	WSTypeAddressReceived = "addressReceived"
	// WSTypeAttempt carries the report of one session attempt.
	WSTypeAttempt = "attempt"
	// WSTypeStatus carries a StatusPayload. Clients may also send it to ask
	// for a fresh status.
	WSTypeStatus = "status"
	WSTypeError  = "error"
)

// WebSocketMessage is the envelope of every message sent to clients.
type WebSocketMessage struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// WebSocketRequest is a message received from a client.
type WebSocketRequest struct {
	ID      string         `json:"id,omitempty"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// WebSocketResponse answers a WebSocketRequest.
type WebSocketResponse struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}
