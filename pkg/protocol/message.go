// Package protocol defines the WebSocket message types exchanged between
// qrcam and its clients.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Server → Client events
	TypeMatch  MessageType = "match"  // QR code recognised
	TypeEnded  MessageType = "ended"  // Recognition loop ended
	TypeStatus MessageType = "status" // Session state
	TypePhoto  MessageType = "photo"  // Encoded still image
	TypeError  MessageType = "error"  // Command failed

	// Client → Server commands
	TypeAcquire MessageType = "acquire" // Acquire a camera
	TypeSwitch  MessageType = "switch"  // Switch to the next camera
	TypeStop    MessageType = "stop"    // Stop scanning and release the camera
	TypeScan    MessageType = "scan"    // Start a recognition loop

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Server → Client Message Types
// =============================================================================

// MatchData reports a decoded QR code
type MatchData struct {
	ScanID   string `json:"scan_id"`
	Payload  string `json:"payload"`
	DeviceID string `json:"device_id,omitempty"`
}

// EndedData reports why a recognition loop stopped
type EndedData struct {
	ScanID  string `json:"scan_id"`
	Reason  string `json:"reason"`          // "inactive", "cancelled", "error", "once"
	Error   string `json:"error,omitempty"` // Set when Reason is "error"
	Matches int    `json:"matches"`
}

// StatusData is a snapshot of the capture session
type StatusData struct {
	Active       bool   `json:"active"`
	DeviceID     string `json:"device_id,omitempty"`
	Scanning     bool   `json:"scanning"`
	ScanID       string `json:"scan_id,omitempty"`
	Capture      bool   `json:"capture_supported"`
	Enumeration  bool   `json:"enumeration_supported"`
	ClientsCount int    `json:"clients,omitempty"`
}

// PhotoData carries an encoded still image
type PhotoData struct {
	MIMEType string `json:"mime_type"`
	DataURI  string `json:"data_uri"`
}

// ErrorData reports a failed command
type ErrorData struct {
	Command MessageType `json:"command,omitempty"`
	Message string      `json:"message"`
}

// =============================================================================
// Client → Server Message Types
// =============================================================================

// AcquireCommand selects the camera to acquire. Empty fields mean the
// default rear-facing camera; DeviceID wins over FacingMode.
type AcquireCommand struct {
	DeviceID   string `json:"device_id,omitempty"`
	FacingMode string `json:"facing_mode,omitempty"`
}

// ScanCommand starts a recognition loop
type ScanCommand struct {
	Once bool `json:"once,omitempty"` // Tear the stream down after the first match
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
