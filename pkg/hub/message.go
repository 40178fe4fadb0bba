// Package hub provides a websocket broadcast hub using the channel-based
// fan-out pattern. One goroutine owns the client set.
package hub

import "github.com/teslashibe/go-qrcam/pkg/protocol"

// Message is one encoded event queued for every subscriber. Events are
// always sent as websocket text frames.
type Message struct {
	Data []byte
}

// NewJSONMessage creates a message from pre-encoded JSON
func NewJSONMessage(data []byte) Message {
	return Message{Data: data}
}

// FromProtocol encodes a protocol message for broadcast.
func FromProtocol(msg *protocol.Message) (Message, error) {
	data, err := msg.Bytes()
	if err != nil {
		return Message{}, err
	}
	return NewJSONMessage(data), nil
}
