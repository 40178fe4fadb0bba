package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-qrcam/internal/config"
	"github.com/teslashibe/go-qrcam/pkg/camera"
	"github.com/teslashibe/go-qrcam/pkg/capture"
	"github.com/teslashibe/go-qrcam/pkg/snapshot"
	"github.com/teslashibe/go-qrcam/pkg/video"
)

// host is what the session needs from a backend.
type host interface {
	capture.Enumerator
	capture.Acquirer
}

type backend struct {
	host    host
	encoder capture.Encoder
	clock   capture.FrameClock
	manager *camera.Manager // gocv only
}

type backendOptions struct {
	signallingURL string
	producer      string
	preset        string
}

func newBackend(name string, opts backendOptions, logger *slog.Logger) (*backend, error) {
	switch name {
	case "gocv":
		return newCameraBackend(opts, logger)
	case "webrtc":
		return newVideoBackend(opts, logger)
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

func newCameraBackend(opts backendOptions, logger *slog.Logger) (*backend, error) {
	cfg := camera.GetPreset(opts.preset)
	if cfg == nil {
		return nil, fmt.Errorf("unknown preset %q (have %v)", opts.preset, camera.PresetNames())
	}

	manager, err := camera.NewManager(*cfg)
	if err != nil {
		return nil, err
	}

	// Photos and recognition pacing follow runtime settings changes.
	return &backend{
		host:    camera.NewHost(manager, logger),
		encoder: manager.Encoder(),
		clock:   manager.Clock(),
		manager: manager,
	}, nil
}

func newVideoBackend(opts backendOptions, logger *slog.Logger) (*backend, error) {
	cfg := video.DefaultConfig()
	cfg.SignallingURL = config.SignallingURL(cfg.SignallingURL)
	if opts.signallingURL != "" {
		cfg.SignallingURL = opts.signallingURL
	}
	cfg.PreferredProducer = opts.producer

	h, err := video.NewHost(cfg, logger)
	if err != nil {
		return nil, err
	}

	encoder, err := snapshot.NewEncoder(snapshot.JPEG, snapshot.DefaultJPEGQuality)
	if err != nil {
		return nil, err
	}

	return &backend{
		host:    h,
		encoder: encoder,
		clock:   capture.NewTickerClock(capture.DefaultFrameRate),
	}, nil
}

// bind reopens the active local camera whenever its settings change. The
// web layer pauses a running scan around the update and resumes it after.
func (b *backend) bind(ctx context.Context, session *capture.Session, logger *slog.Logger) {
	if b.manager == nil {
		return
	}
	b.manager.OnConfigChange = func(camera.Config) error {
		stream, ok := session.ActiveStream().(*camera.Stream)
		if !ok || !session.IsActive() {
			return nil
		}
		logger.Info("reopening camera with new settings", "device_id", stream.DeviceID())
		_, err := session.AcquireStreamByDeviceID(ctx, stream.DeviceID())
		return err
	}
}
