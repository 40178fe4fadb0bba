// Package video receives a remote camera over WebRTC. Cameras are the
// producers advertised by a GStreamer webrtcsink signalling server.
package video

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// message is the signalling wire format. One struct covers every type;
// unused fields are omitted.
type message struct {
	Type      string      `json:"type"`
	PeerID    string      `json:"peerId,omitempty"`
	SessionID string      `json:"sessionId,omitempty"`
	Producers []producer  `json:"producers,omitempty"`
	SDP       *sdpMessage `json:"sdp,omitempty"`
	ICE       *iceMessage `json:"ice,omitempty"`
}

type sdpMessage struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type iceMessage struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

type producer struct {
	ID   string            `json:"id"`
	Meta map[string]string `json:"meta"`
}

func (p producer) name() string {
	return p.Meta["name"]
}

func (p producer) label() string {
	if name := p.name(); name != "" {
		return name
	}
	return p.ID
}

// signalling is one websocket connection to the signalling server.
type signalling struct {
	conn        *websocket.Conn
	writeMu     sync.Mutex
	readTimeout time.Duration
	peerID      string
	logger      *slog.Logger
}

// dialSignalling connects and waits for the welcome message.
func dialSignalling(ctx context.Context, cfg Config, logger *slog.Logger) (*signalling, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, cfg.SignallingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("video: signalling connect: %w", err)
	}

	s := &signalling{
		conn:        conn,
		readTimeout: cfg.ReadTimeout,
		logger:      logger,
	}

	welcome, err := s.readTimed()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("video: welcome: %w", err)
	}
	if welcome.Type != "welcome" {
		conn.Close()
		return nil, fmt.Errorf("%w: expected welcome, got %q", ErrUnexpectedMessage, welcome.Type)
	}
	s.peerID = welcome.PeerID

	logger.Debug("signalling connected", "url", cfg.SignallingURL, "peer_id", s.peerID)
	return s, nil
}

// listProducers asks for the producer list. Unrelated messages that
// arrive first are skipped.
func (s *signalling) listProducers() ([]producer, error) {
	if err := s.send(message{Type: "list"}); err != nil {
		return nil, fmt.Errorf("video: list: %w", err)
	}
	for {
		msg, err := s.readTimed()
		if err != nil {
			return nil, fmt.Errorf("video: list: %w", err)
		}
		if msg.Type == "list" {
			return msg.Producers, nil
		}
		s.logger.Debug("skipping signalling message", "type", msg.Type)
	}
}

func (s *signalling) send(msg message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(msg)
}

// read blocks until the next message.
func (s *signalling) read() (message, error) {
	var msg message
	err := s.conn.ReadJSON(&msg)
	return msg, err
}

func (s *signalling) readTimed() (message, error) {
	s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	defer s.conn.SetReadDeadline(time.Time{})
	return s.read()
}

func (s *signalling) close() error {
	return s.conn.Close()
}
