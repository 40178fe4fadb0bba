package capture

import (
	"errors"
	"log/slog"
	"sync"
)

// DefaultFrameRate paces the recognition loop when Config.Clock is nil.
const DefaultFrameRate = 30

// Config wires a Session to its host.
// A nil Enumerator or Acquirer means the host lacks that capability.
type Config struct {
	Enumerator Enumerator
	Acquirer   Acquirer
	Clock      FrameClock
	Decoder    Decoder
	Encoder    Encoder
}

// Validate checks that the collaborators every session needs are present.
func (c *Config) Validate() error {
	if c.Decoder == nil {
		return errors.New("decoder is required")
	}
	if c.Encoder == nil {
		return errors.New("encoder is required")
	}
	return nil
}

// Session owns at most one live stream and the id of the device it was
// switched to. Acquisitions are serialised: the previous stream is always
// torn down before a new one is requested.
type Session struct {
	enumerator Enumerator
	acquirer   Acquirer
	clock      FrameClock
	decoder    Decoder
	encoder    Encoder
	logger     *slog.Logger

	// acquireMu serialises teardown-then-acquire.
	acquireMu sync.Mutex

	mu             sync.RWMutex
	activeStream   Stream
	activeDeviceID string
}

// NewSession creates a session with no active stream.
func NewSession(cfg Config, logger *slog.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Join(errors.New("capture: invalid config"), err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = NewTickerClock(DefaultFrameRate)
	}
	return &Session{
		enumerator: cfg.Enumerator,
		acquirer:   cfg.Acquirer,
		clock:      clock,
		decoder:    cfg.Decoder,
		encoder:    cfg.Encoder,
		logger:     logger,
	}, nil
}

// SupportsCapture reports whether the host can acquire streams.
func (s *Session) SupportsCapture() bool {
	return s.acquirer != nil
}

// SupportsDeviceEnumeration reports whether the host can list devices.
func (s *Session) SupportsDeviceEnumeration() bool {
	return s.enumerator != nil
}

// ActiveStream returns the current stream handle, or nil.
func (s *Session) ActiveStream() Stream {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeStream
}

// ActiveDeviceID returns the id of the device last switched to.
func (s *Session) ActiveDeviceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeDeviceID
}

// IsActive reports whether there is a stream and it is live.
func (s *Session) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeStream != nil && s.activeStream.Active()
}

// liveStream returns the active stream or ErrStreamNotActive.
func (s *Session) liveStream() (Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeStream == nil || !s.activeStream.Active() {
		return nil, ErrStreamNotActive
	}
	return s.activeStream, nil
}
