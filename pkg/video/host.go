package video

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-qrcam/pkg/capture"
)

// Host implements capture.Enumerator and capture.Acquirer against a
// signalling server. Every call opens its own signalling connection; an
// acquired stream keeps its connection until stopped.
type Host struct {
	cfg     Config
	decoder *H264Decoder
	logger  *slog.Logger
}

// NewHost validates cfg and returns a host.
func NewHost(cfg Config, logger *slog.Logger) (*Host, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("video: invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{
		cfg:     cfg,
		decoder: NewH264Decoder(cfg.FFmpegPath),
		logger:  logger.With("backend", "webrtc"),
	}, nil
}

// EnumerateDevices lists the producers as video inputs.
func (h *Host) EnumerateDevices(ctx context.Context) ([]capture.DeviceDescriptor, error) {
	sig, err := dialSignalling(ctx, h.cfg, h.logger)
	if err != nil {
		return nil, err
	}
	defer sig.close()

	producers, err := sig.listProducers()
	if err != nil {
		return nil, err
	}

	devices := make([]capture.DeviceDescriptor, 0, len(producers))
	for _, p := range producers {
		devices = append(devices, capture.DeviceDescriptor{
			DeviceID: p.ID,
			Kind:     capture.KindVideoInput,
			Label:    p.label(),
		})
	}

	h.logger.Debug("producers enumerated", "count", len(devices))
	return devices, nil
}

// Acquire starts a WebRTC session with the producer selected by c.
func (h *Host) Acquire(ctx context.Context, c capture.Constraints) (capture.Stream, error) {
	if c.Audio {
		return nil, ErrAudioUnsupported
	}

	sig, err := dialSignalling(ctx, h.cfg, h.logger)
	if err != nil {
		return nil, err
	}

	producers, err := sig.listProducers()
	if err != nil {
		sig.close()
		return nil, err
	}

	p, err := selectProducer(producers, c, h.cfg.PreferredProducer)
	if err != nil {
		sig.close()
		return nil, err
	}

	s, err := startStream(h, sig, p)
	if err != nil {
		sig.close()
		return nil, err
	}

	h.logger.Info("remote camera session started", "producer", p.ID, "name", p.name())
	return s, nil
}

// selectProducer resolves constraints against the producer list. An exact
// device id must match a producer id. Otherwise a producer whose "facing"
// meta matches the facing mode wins, then the preferred name, then the
// first producer.
func selectProducer(producers []producer, c capture.Constraints, preferred string) (producer, error) {
	if len(producers) == 0 {
		return producer{}, ErrNoProducer
	}

	if c.IsExactDevice() {
		for _, p := range producers {
			if p.ID == c.Video.DeviceID {
				return p, nil
			}
		}
		return producer{}, fmt.Errorf("%w: %s", ErrProducerNotFound, c.Video.DeviceID)
	}

	if c.Video.FacingMode != "" {
		for _, p := range producers {
			if p.Meta["facing"] == c.Video.FacingMode {
				return p, nil
			}
		}
	}

	if preferred != "" {
		for _, p := range producers {
			if p.name() == preferred {
				return p, nil
			}
		}
	}

	return producers[0], nil
}
