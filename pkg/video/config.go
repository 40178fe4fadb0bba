package video

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// DefaultSignallingPort is the port webrtcsink's signalling server listens on.
const DefaultSignallingPort = 8443

// Config holds settings for the remote camera backend.
type Config struct {
	// SignallingURL is the websocket URL of the signalling server.
	SignallingURL string `json:"signalling_url"`

	// PreferredProducer is the producer name picked for default
	// constraints. Empty selects the first producer listed.
	PreferredProducer string `json:"preferred_producer"`

	HandshakeTimeout time.Duration `json:"handshake_timeout"`
	ReadTimeout      time.Duration `json:"read_timeout"`

	// DecodeInterval rate-limits H264 decoding.
	DecodeInterval time.Duration `json:"decode_interval"`
	DecodeTimeout  time.Duration `json:"decode_timeout"`

	FFmpegPath string   `json:"ffmpeg_path"`
	ICEServers []string `json:"ice_servers"`
}

// DefaultConfig returns settings for a signalling server on localhost.
func DefaultConfig() Config {
	return Config{
		SignallingURL:    SignallingURLForHost("localhost"),
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      5 * time.Second,
		DecodeInterval:   100 * time.Millisecond,
		DecodeTimeout:    2 * time.Second,
		FFmpegPath:       "ffmpeg",
	}
}

// SignallingURLForHost returns the default signalling URL for host.
func SignallingURLForHost(host string) string {
	return fmt.Sprintf("ws://%s:%d", host, DefaultSignallingPort)
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.SignallingURL)
	switch {
	case c.SignallingURL == "":
		errs = append(errs, errors.New("signalling url is required"))
	case err != nil:
		errs = append(errs, fmt.Errorf("signalling url: %w", err))
	case u.Scheme != "ws" && u.Scheme != "wss":
		errs = append(errs, fmt.Errorf("signalling url scheme %q must be ws or wss", u.Scheme))
	case u.Host == "":
		errs = append(errs, errors.New("signalling url has no host"))
	}

	if c.HandshakeTimeout <= 0 {
		errs = append(errs, errors.New("handshake timeout must be positive"))
	}
	if c.ReadTimeout <= 0 {
		errs = append(errs, errors.New("read timeout must be positive"))
	}
	if c.DecodeInterval <= 0 {
		errs = append(errs, errors.New("decode interval must be positive"))
	}
	if c.DecodeTimeout <= 0 {
		errs = append(errs, errors.New("decode timeout must be positive"))
	}
	if c.FFmpegPath == "" {
		errs = append(errs, errors.New("ffmpeg path is required"))
	}

	return errors.Join(errs...)
}
