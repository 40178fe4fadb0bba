package camera

import (
	"context"
	"image"
	"time"

	"github.com/teslashibe/go-qrcam/pkg/capture"
	"github.com/teslashibe/go-qrcam/pkg/snapshot"
)

// Encoder returns a capture.Encoder that uses the photo format and quality
// current at each call.
func (m *Manager) Encoder() capture.Encoder {
	return &photoEncoder{manager: m}
}

type photoEncoder struct {
	manager *Manager
}

func (e *photoEncoder) Encode(img image.Image) (capture.EncodedImage, error) {
	cfg := e.manager.GetConfig()
	enc, err := snapshot.NewEncoder(snapshot.Format(cfg.PhotoFormat), cfg.Quality)
	if err != nil {
		return capture.EncodedImage{}, err
	}
	return enc.Encode(img)
}

// Clock returns a capture.FrameClock ticking at the framerate current at
// each tick.
func (m *Manager) Clock() *Clock {
	return &Clock{manager: m}
}

// Clock paces recognition at the configured framerate.
type Clock struct {
	manager *Manager
}

// Interval returns the time until the next tick under the current settings.
func (c *Clock) Interval() time.Duration {
	return capture.NewTickerClock(c.manager.GetConfig().Framerate).Interval()
}

// Wait sleeps for one frame interval.
func (c *Clock) Wait(ctx context.Context) error {
	return capture.NewTickerClock(c.manager.GetConfig().Framerate).Wait(ctx)
}
